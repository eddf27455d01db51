package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"agentcore/internal/agenterrors"
)

// Load builds a RuntimeConfig by merging, in increasing precedence:
// documented defaults, the YAML file at path (if it exists), then the
// LLM_PROVIDER environment variable. A missing file is not an error —
// defaults stand in its place, per the reference repository's own
// missing-file-is-not-fatal file-loader convention.
func Load(path string, lookup EnvLookup) (*RuntimeConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, agenterrors.Wrap(agenterrors.KindLogical, err)
			}
		case os.IsNotExist(err):
			// no file: defaults stand.
		default:
			return nil, agenterrors.Wrap(agenterrors.KindResource, err)
		}
	}

	applyEnv(&cfg, lookup)
	return &cfg, nil
}

// Save writes cfg as pretty-printed YAML to path, per spec.md §6's "All
// JSON/YAML files are UTF-8, pretty-printed, with trailing newline."
func Save(path string, cfg RuntimeConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return agenterrors.Wrap(agenterrors.KindLogical, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return agenterrors.Wrap(agenterrors.KindResource, err)
	}
	return nil
}
