package config

import "os"

// EnvLookup resolves the value for an environment variable, grounded on
// the reference repository's internal/config/loader.go's EnvLookup
// abstraction (kept so tests can substitute a fake without touching the
// process environment).
type EnvLookup func(string) (string, bool)

// DefaultEnvLookup delegates to os.LookupEnv.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// applyEnv overlays the single environment variable the core itself names
// per spec.md §6: "LLM_PROVIDER (selects extension by id). All other
// provider-specific variables are read by the extension itself; the core
// neither names nor validates them."
func applyEnv(cfg *RuntimeConfig, lookup EnvLookup) {
	if lookup == nil {
		lookup = DefaultEnvLookup
	}
	if v, ok := lookup("LLM_PROVIDER"); ok && v != "" {
		cfg.LLMProvider = v
	}
}
