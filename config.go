package bear

import "github.com/devmarvs/bear/config"

// Config is the framework configuration.
type Config = config.Config

// ConfigProfile describes layered config sources.
type ConfigProfile = config.Profile

// DefaultConfig returns default config values.
func DefaultConfig() config.Config {
	return config.Default()
}

// LoadConfig loads config from a YAML file and applies env overrides.
func LoadConfig(path, envPrefix string) (config.Config, error) {
	return config.Load(path, envPrefix)
}

// LoadConfigProfile loads config from base/env/secrets profiles with validation.
func LoadConfigProfile(profile config.Profile) (config.Config, error) {
	return config.LoadProfile(profile)
}
