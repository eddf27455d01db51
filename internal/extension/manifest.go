// Package extension implements the WASM component-model extension host of
// SPEC_FULL §4.4: manifest discovery/parsing, semver version gating, and
// the three-world capability binding (lifecycle+provider, provider-only,
// lifecycle-only), built on github.com/tetratelabs/wazero. Grounded on
// original_source/src/extension/{manifest.rs,loader.rs,registry.rs,mod.rs,
// error.rs}, reimplemented in idiomatic Go rather than translated.
package extension

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// HostAPIVersion is the extension API version this host implements.
const HostAPIVersion = "0.3.0"

// Info is the `[extension]` table of an extension.toml manifest.
type Info struct {
	ID          string   `toml:"id"`
	Name        string   `toml:"name"`
	Version     string   `toml:"version"`
	APIVersion  string   `toml:"api_version"`
	Description string   `toml:"description"`
	Authors     []string `toml:"authors"`
	Repository  string   `toml:"repository"`
}

// Lib is the `[lib]` table: where to find the compiled WASM binary.
type Lib struct {
	Kind string `toml:"kind"`
	Path string `toml:"path"`
}

// Capabilities is the `[capabilities]` table: which worlds an extension
// implements.
type Capabilities struct {
	Lifecycle bool `toml:"lifecycle"`
	Provider  bool `toml:"provider"`
	Tools     bool `toml:"tools"`
	Context   bool `toml:"context"`
}

// LifecycleConfig is the optional `[lifecycle]` table.
type LifecycleConfig struct {
	SupportedTaskTypes []string `toml:"supported_task_types"`
	Templates          []string `toml:"templates"`
}

// ProviderConfig is the optional `[provider]` table.
type ProviderConfig struct {
	SupportedBackends []string `toml:"supported_backends"`
	SupportedModels   []string `toml:"supported_models"`
}

// Manifest is a fully parsed extension.toml.
type Manifest struct {
	Extension    Info                   `toml:"extension"`
	Lib          Lib                    `toml:"lib"`
	Capabilities Capabilities           `toml:"capabilities"`
	Lifecycle    *LifecycleConfig       `toml:"lifecycle"`
	Provider     *ProviderConfig        `toml:"provider"`
	Settings     map[string]any         `toml:"settings"`

	// Dir is the extension's directory, set by Discover, not part of the
	// manifest file itself.
	Dir string `toml:"-"`
}

// ParseManifest parses raw TOML content into a Manifest, validating the
// required fields per original_source's from_str.
func ParseManifest(content []byte) (Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(content, &m); err != nil {
		return Manifest{}, fmt.Errorf("invalid extension manifest: %w", err)
	}
	if m.Extension.ID == "" {
		return Manifest{}, fmt.Errorf("invalid extension manifest: extension.id is required")
	}
	if m.Extension.Name == "" {
		return Manifest{}, fmt.Errorf("invalid extension manifest: extension.name is required")
	}
	if m.Extension.Version == "" {
		return Manifest{}, fmt.Errorf("invalid extension manifest: extension.version is required")
	}
	if m.Extension.APIVersion == "" {
		return Manifest{}, fmt.Errorf("invalid extension manifest: extension.api_version is required")
	}
	if m.Lib.Path == "" {
		return Manifest{}, fmt.Errorf("invalid extension manifest: lib.path is required")
	}
	return m, nil
}

// ParseManifestFile reads and parses the extension.toml at path.
func ParseManifestFile(path string) (Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return ParseManifest(content)
}

// ListCapabilities returns the names of every world this manifest declares.
func (m Manifest) ListCapabilities() []string {
	var caps []string
	if m.Capabilities.Lifecycle {
		caps = append(caps, "lifecycle")
	}
	if m.Capabilities.Provider {
		caps = append(caps, "provider")
	}
	if m.Capabilities.Tools {
		caps = append(caps, "tools")
	}
	if m.Capabilities.Context {
		caps = append(caps, "context")
	}
	return caps
}

// HasCapability reports whether the manifest declares the named world.
func (m Manifest) HasCapability(capability string) bool {
	switch capability {
	case "lifecycle":
		return m.Capabilities.Lifecycle
	case "provider":
		return m.Capabilities.Provider
	case "tools":
		return m.Capabilities.Tools
	case "context":
		return m.Capabilities.Context
	default:
		return false
	}
}

// World identifies which of the three bindgen worlds an extension binds
// to, chosen at instantiate-time from its declared capabilities.
type World string

const (
	// WorldFull binds both lifecycle and provider exports (original's
	// "extension" world).
	WorldFull World = "extension"
	// WorldProviderOnly binds only the async provider exports.
	WorldProviderOnly World = "provider-only"
	// WorldLifecycleOnly binds only the synchronous lifecycle exports.
	WorldLifecycleOnly World = "lifecycle-only"
)

// SelectWorld chooses the narrowest world satisfying the manifest's
// declared capabilities, per SPEC_FULL §4.4.
func (m Manifest) SelectWorld() (World, error) {
	switch {
	case m.Capabilities.Lifecycle && m.Capabilities.Provider:
		return WorldFull, nil
	case m.Capabilities.Provider:
		return WorldProviderOnly, nil
	case m.Capabilities.Lifecycle:
		return WorldLifecycleOnly, nil
	default:
		return "", fmt.Errorf("extension %s declares no lifecycle or provider capability", m.Extension.ID)
	}
}
