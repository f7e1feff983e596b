package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/devmarvs/bear/apperr"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadProfileLayering(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.yaml")
	envPath := filepath.Join(dir, "env.yaml")
	secretsPath := filepath.Join(dir, "secrets.yaml")

	writeFile(t, basePath, "server:\n  address: \":8080\"\n  read_timeout: 3s\nlog:\n  level: info\n")
	writeFile(t, envPath, "server:\n  address: \":9090\"\n")
	writeFile(t, secretsPath, "log:\n  level: error\noidc:\n  client_secret: hunter2\n")

	t.Setenv("BEAR_SERVER__ADDRESS", ":7070")

	cfg, err := LoadProfile(Profile{
		BasePath:    basePath,
		EnvPath:     envPath,
		SecretsPath: secretsPath,
		EnvPrefix:   "BEAR_",
	})
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}

	if cfg.Server.Address != ":7070" {
		t.Fatalf("expected address override, got %q", cfg.Server.Address)
	}
	if cfg.Server.ReadTimeout != 3*time.Second {
		t.Fatalf("expected read timeout from base, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Log.Level != "error" {
		t.Fatalf("expected log level from secrets, got %q", cfg.Log.Level)
	}
	if cfg.OIDC.ClientSecret != "hunter2" {
		t.Fatalf("expected client secret from secrets, got %q", cfg.OIDC.ClientSecret)
	}
	if cfg.Server.WriteTimeout != Default().Server.WriteTimeout {
		t.Fatalf("expected default write timeout kept, got %s", cfg.Server.WriteTimeout)
	}
	if cfg.Sessions.Lifetimes["oidc"] != Default().Sessions.Lifetimes["Oidc"] {
		t.Fatalf("expected default lifetimes kept, got %v", cfg.Sessions.Lifetimes)
	}
}

func TestLoadProfileFollowsSecretsPath(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.yaml")
	secretsPath := filepath.Join(dir, "secrets.yaml")
	writeFile(t, basePath, "secrets_path: "+secretsPath+"\n")
	writeFile(t, secretsPath, "oidc:\n  client_secret: s3cret\n")

	cfg, err := LoadProfile(Profile{BasePath: basePath})
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if cfg.OIDC.ClientSecret != "s3cret" {
		t.Fatalf("expected client secret, got %q", cfg.OIDC.ClientSecret)
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	if _, err := LoadProfile(Profile{BasePath: filepath.Join(t.TempDir(), "absent.yaml")}); err == nil {
		t.Fatal("expected error for missing file")
	}
	cfg, err := LoadProfile(Profile{BasePath: filepath.Join(t.TempDir(), "absent.yaml"), AllowMissing: true})
	if err != nil {
		t.Fatalf("load with allow missing: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("expected defaults, got %q", cfg.Server.Address)
	}
}

func TestLoadProfileValidation(t *testing.T) {
	cfg := Default()
	cfg.Server.ReadTimeout = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error")
	}

	cfg = Default()
	cfg.Database.Driver = "mysql"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected driver validation error")
	}

	cfg = Default()
	cfg.Sessions.Lifetimes = map[string]int64{"Oidc": 0}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected lifetime validation error")
	}
}

func TestLoadProfileFoldsLifetimes(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.yaml")
	writeFile(t, basePath, "sessions:\n  lifetimes:\n    Device: 50\n")
	t.Setenv("BEAR_SESSIONS__LIFETIMES__OIDC", "70")

	cfg, err := LoadProfile(Profile{BasePath: basePath, EnvPrefix: "BEAR_"})
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	want := map[string]int64{"oidc": 70, "device": 50}
	if len(cfg.Sessions.Lifetimes) != len(want) {
		t.Fatalf("expected lifetimes %v, got %v", want, cfg.Sessions.Lifetimes)
	}
	for kind, lifetime := range want {
		if cfg.Sessions.Lifetimes[kind] != lifetime {
			t.Fatalf("expected %s lifetime %d, got %v", kind, lifetime, cfg.Sessions.Lifetimes)
		}
	}
}

func TestFoldLifetimesCollisions(t *testing.T) {
	for i := 0; i < 20; i++ {
		got := foldLifetimes(map[string]int64{"Oidc": 1, "oidc": 2, "OIDC": 3, "DEVICE": 4, "Device": 5})
		if got["oidc"] != 2 || got["device"] != 4 || len(got) != 2 {
			t.Fatalf("unexpected folded lifetimes %v", got)
		}
	}
}

func TestOIDCEnabled(t *testing.T) {
	o := OIDC{Issuer: "https://issuer.example", ClientID: "bear"}
	err := o.Enabled()
	if !apperr.HasCode(err, apperr.CodeDisabled) {
		t.Fatalf("expected disabled error, got %v", err)
	}

	o.ClientSecret = "x"
	if err := o.Enabled(); err != nil {
		t.Fatalf("expected enabled, got %v", err)
	}
}

func TestTypedLoader(t *testing.T) {
	type sample struct {
		Name string `koanf:"name"`
	}

	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.yaml")
	writeFile(t, basePath, "name: fromfile\n")

	loader := Loader[sample]{
		Defaults: func() sample { return sample{Name: "default"} },
		Validate: func(cfg sample) error {
			if cfg.Name == "" {
				return errors.New("name required")
			}
			return nil
		},
	}

	cfg, err := loader.Load(Profile{BasePath: basePath})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "fromfile" {
		t.Fatalf("expected name from file, got %q", cfg.Name)
	}
}
