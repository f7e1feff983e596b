package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the environment variable prefix used by the CLI.
const DefaultEnvPrefix = "BEAR_"

// Profile describes layered config sources. Later layers override earlier
// ones: BasePath, EnvPath, SecretsPath, then environment variables.
type Profile struct {
	BasePath     string
	EnvPath      string
	SecretsPath  string
	EnvPrefix    string
	AllowMissing bool
}

// Loader composes layered config with defaults and validation.
type Loader[T any] struct {
	Defaults func() T
	Validate func(cfg T) error
}

// Load merges profile layers into a typed config.
func (l Loader[T]) Load(profile Profile) (T, error) {
	var cfg T
	if l.Defaults != nil {
		cfg = l.Defaults()
	}

	k := koanf.New(".")
	for _, path := range []string{profile.BasePath, profile.EnvPath, profile.SecretsPath} {
		if path == "" {
			continue
		}
		if err := loadYAML(k, path, profile.AllowMissing); err != nil {
			return cfg, err
		}
	}
	if profile.EnvPrefix != "" {
		if err := k.Load(env.Provider(profile.EnvPrefix, ".", envKey(profile.EnvPrefix)), nil); err != nil {
			return cfg, fmt.Errorf("load env: %w", err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	if l.Validate != nil {
		if err := l.Validate(cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// LoadProfile loads Config from a layered profile with validation. When the
// profile has no secrets layer, the secrets_path named by the earlier layers
// is used.
func LoadProfile(profile Profile) (Config, error) {
	loader := Loader[Config]{Defaults: Default, Validate: Validate}
	cfg, err := loader.Load(profile)
	if err == nil && profile.SecretsPath == "" && cfg.SecretsPath != "" {
		profile.SecretsPath = cfg.SecretsPath
		profile.AllowMissing = true
		cfg, err = loader.Load(profile)
	}
	if err != nil {
		return cfg, err
	}
	cfg.Sessions.Lifetimes = foldLifetimes(cfg.Sessions.Lifetimes)
	return cfg, nil
}

// foldLifetimes lowercases session kinds. Environment keys arrive lowercased
// next to the mixed-case defaults, so an already lowercase key wins a
// collision; otherwise the lexically smaller key does.
func foldLifetimes(lifetimes map[string]int64) map[string]int64 {
	folded := make(map[string]int64, len(lifetimes))
	source := make(map[string]string, len(lifetimes))
	for key, lifetime := range lifetimes {
		kind := strings.ToLower(key)
		if prev, taken := source[kind]; taken {
			if prev == kind || (key != kind && key > prev) {
				continue
			}
		}
		source[kind] = key
		folded[kind] = lifetime
	}
	return folded
}

// Load loads config from a YAML file (if provided) and applies env overrides.
func Load(path, envPrefix string) (Config, error) {
	return LoadProfile(Profile{BasePath: path, EnvPrefix: envPrefix})
}

func loadYAML(k *koanf.Koanf, path string, allowMissing bool) error {
	if _, err := os.Stat(path); err != nil {
		if allowMissing && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}
	return nil
}

// envKey maps BEAR_SERVER__READ_TIMEOUT to server.read_timeout.
func envKey(prefix string) func(string) string {
	return func(s string) string {
		s = strings.TrimPrefix(s, prefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}
}
