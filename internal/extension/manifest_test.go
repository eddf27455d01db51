package extension

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validManifest = `
[extension]
id = "test-extension"
name = "Test Extension"
version = "0.1.0"
api_version = "0.3.0"
description = "A test extension"
authors = ["Test Author"]
repository = "https://github.com/test/extension"

[lib]
kind = "rust"
path = "extension.wasm"

[capabilities]
lifecycle = true
provider = false

[lifecycle]
supported_task_types = ["bug_fix", "feature"]
templates = ["system", "task/*"]

[settings]
custom_setting = "value"
`

func TestParseManifestValid(t *testing.T) {
	t.Parallel()
	m, err := ParseManifest([]byte(validManifest))
	require.NoError(t, err)
	require.Equal(t, "test-extension", m.Extension.ID)
	require.Equal(t, "0.3.0", m.Extension.APIVersion)
	require.True(t, m.Capabilities.Lifecycle)
	require.False(t, m.Capabilities.Provider)
	require.Equal(t, []string{"lifecycle"}, m.ListCapabilities())
	require.True(t, m.HasCapability("lifecycle"))
	require.False(t, m.HasCapability("unknown"))
}

func TestParseManifestMissingRequiredField(t *testing.T) {
	t.Parallel()
	invalid := `
[extension]
name = "Test"
version = "0.1.0"
api_version = "0.3.0"
description = "Missing id"

[lib]
kind = "rust"
path = "extension.wasm"
`
	_, err := ParseManifest([]byte(invalid))
	require.ErrorContains(t, err, "extension.id is required")
}

func TestParseManifestMinimal(t *testing.T) {
	t.Parallel()
	minimal := `
[extension]
id = "minimal"
name = "Minimal Extension"
version = "0.1.0"
api_version = "0.3.0"
description = "Minimal"

[lib]
kind = "rust"
path = "extension.wasm"
`
	m, err := ParseManifest([]byte(minimal))
	require.NoError(t, err)
	require.Empty(t, m.ListCapabilities())
}

func TestSelectWorldChoosesNarrowest(t *testing.T) {
	t.Parallel()
	full := Manifest{Capabilities: Capabilities{Lifecycle: true, Provider: true}}
	w, err := full.SelectWorld()
	require.NoError(t, err)
	require.Equal(t, WorldFull, w)

	providerOnly := Manifest{Capabilities: Capabilities{Provider: true}}
	w, err = providerOnly.SelectWorld()
	require.NoError(t, err)
	require.Equal(t, WorldProviderOnly, w)

	lifecycleOnly := Manifest{Capabilities: Capabilities{Lifecycle: true}}
	w, err = lifecycleOnly.SelectWorld()
	require.NoError(t, err)
	require.Equal(t, WorldLifecycleOnly, w)

	_, err = (Manifest{}).SelectWorld()
	require.Error(t, err)
}

func TestCompatibleVersion(t *testing.T) {
	t.Parallel()
	require.True(t, CompatibleVersion("0.3.0", "0.3.0"))
	require.True(t, CompatibleVersion("0.2.0", "0.3.0"))
	require.False(t, CompatibleVersion("0.4.0", "0.3.0"))
	require.False(t, CompatibleVersion("1.0.0", "0.3.0"))
	require.True(t, CompatibleVersion("0.3.5", "0.3.0"))
	require.True(t, CompatibleVersion("not-a-version", "0.3.0"))
}

func TestManagerDiscoverEmptyAndNonexistentDirectory(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	empty := t.TempDir()
	m, err := NewManager(ctx, empty, nil)
	require.NoError(t, err)
	defer m.Close(ctx)

	manifests, err := m.Discover()
	require.NoError(t, err)
	require.Empty(t, manifests)

	missing, err := NewManager(ctx, filepath.Join(empty, "does-not-exist"), nil)
	require.NoError(t, err)
	defer missing.Close(ctx)

	manifests, err = missing.Discover()
	require.NoError(t, err)
	require.Empty(t, manifests)
}

func TestManagerDiscoverSkipsMalformedManifestButKeepsGood(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	root := t.TempDir()

	good := filepath.Join(root, "good-extension")
	require.NoError(t, os.Mkdir(good, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(good, "extension.toml"), []byte(validManifest), 0o644))

	bad := filepath.Join(root, "bad-extension")
	require.NoError(t, os.Mkdir(bad, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bad, "extension.toml"), []byte("not = [valid toml"), 0o644))

	m, err := NewManager(ctx, root, nil)
	require.NoError(t, err)
	defer m.Close(ctx)

	manifests, err := m.Discover()
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	require.Equal(t, "test-extension", manifests[0].Extension.ID)

	lifecycles := m.ByCapability("lifecycle")
	require.Len(t, lifecycles, 1)
}
