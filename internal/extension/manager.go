package extension

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"agentcore/internal/observability"
)

// Manager discovers extension.toml manifests under a directory and owns
// the Registry/Loader pair extensions are instantiated through, per
// original_source/mod.rs's ExtensionManager.
type Manager struct {
	extensionsDir string
	registry      *Registry
	loader        *Loader
	log           observability.Logger
}

// NewManager builds a Manager rooted at extensionsDir. log may be nil, in
// which case discovery warnings are dropped.
func NewManager(ctx context.Context, extensionsDir string, log observability.Logger) (*Manager, error) {
	loader, err := NewLoader(ctx)
	if err != nil {
		return nil, err
	}
	return &Manager{
		extensionsDir: extensionsDir,
		registry:      NewRegistry(loader),
		loader:        loader,
		log:           observability.OrNop(log),
	}, nil
}

// Registry exposes the underlying extension registry.
func (m *Manager) Registry() *Registry { return m.registry }

// Close tears down every instantiated extension and the shared runtime.
func (m *Manager) Close(ctx context.Context) error {
	if err := m.registry.Close(ctx); err != nil {
		return err
	}
	return m.loader.Close(ctx)
}

// Discover scans extensionsDir for subdirectories containing an
// extension.toml, parses and registers each one, and returns every
// manifest it registered. A subdirectory whose manifest fails to parse, or
// whose api_version is not compatible with HostAPIVersion, is logged and
// skipped (neither registered nor returned), never aborting the rest of
// discovery —
// grounded on the reference repository's loadServerTools warn-and-continue
// pattern (internal/infra/mcp/registry.go) generalized from MCP servers to
// extensions.
func (m *Manager) Discover() ([]Manifest, error) {
	var manifests []Manifest

	entries, err := os.ReadDir(m.extensionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return manifests, nil
		}
		return nil, fmt.Errorf("read extensions directory %s: %w", m.extensionsDir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(m.extensionsDir, entry.Name())
		manifestPath := filepath.Join(dir, "extension.toml")
		if _, err := os.Stat(manifestPath); err != nil {
			continue
		}

		manifest, err := ParseManifestFile(manifestPath)
		if err != nil {
			m.log.Warn("skipping extension manifest %s: %v", manifestPath, err)
			continue
		}
		if !CompatibleVersion(manifest.Extension.APIVersion, HostAPIVersion) {
			err := newErr(ErrIncompatibleVersion, fmt.Sprintf("extension=%s host=%s",
				manifest.Extension.APIVersion, HostAPIVersion), nil)
			m.log.Warn("skipping extension manifest %s: %v", manifestPath, err)
			continue
		}
		manifest.Dir = dir
		m.registry.Register(manifest)
		manifests = append(manifests, manifest)
	}

	return manifests, nil
}

// Instantiate instantiates the extension registered under id.
func (m *Manager) Instantiate(ctx context.Context, id string) (*Instance, error) {
	return m.registry.Instantiate(ctx, id)
}

// ByCapability returns every discovered manifest declaring capability.
func (m *Manager) ByCapability(capability string) []Manifest {
	return m.registry.ByCapability(capability)
}
