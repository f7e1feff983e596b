package config

import (
	"time"

	"github.com/devmarvs/bear/apperr"
)

// Config holds app configuration.
type Config struct {
	Server      Server   `koanf:"server"`
	Log         Log      `koanf:"log"`
	Database    Database `koanf:"database"`
	Sessions    Sessions `koanf:"sessions"`
	OIDC        OIDC     `koanf:"oidc"`
	SecretsPath string   `koanf:"secrets_path"`
}

// Server configures the HTTP listener.
type Server struct {
	Address           string        `koanf:"address"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	MaxHeaderBytes    int           `koanf:"max_header_bytes"`
	// Pprof exposes /debug/pprof to signed-in administrators.
	Pprof bool `koanf:"pprof"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Database selects the driver and the DSNs of the writer and reader pools.
// An empty ReaderDSN reuses WriterDSN.
type Database struct {
	Driver     string `koanf:"driver"`
	WriterDSN  string `koanf:"writer_dsn"`
	ReaderDSN  string `koanf:"reader_dsn"`
	MaxReaders int    `koanf:"max_readers"`
}

// Sessions configures session cookies and per-kind lifetimes in seconds.
// Expired sessions are pruned every SweepInterval; zero disables the sweep.
type Sessions struct {
	CookieName    string           `koanf:"cookie_name"`
	SecureCookie  bool             `koanf:"secure_cookie"`
	Lifetimes     map[string]int64 `koanf:"lifetimes"`
	SweepInterval time.Duration    `koanf:"sweep_interval"`
}

// OIDC configures the login provider. ClientSecret normally arrives from the
// secrets file.
type OIDC struct {
	Issuer       string   `koanf:"issuer"`
	ClientID     string   `koanf:"client_id"`
	ClientSecret string   `koanf:"client_secret"`
	PublicURL    string   `koanf:"public_url"`
	Admins       []string `koanf:"admins"`
}

// Enabled reports an error when the provider cannot be used.
func (o OIDC) Enabled() error {
	if o.Issuer == "" || o.ClientID == "" {
		return apperr.Disabled("oidc.not.configured")
	}
	if o.ClientSecret == "" {
		return apperr.Disabled("oidc.secret.missing")
	}
	return nil
}

// Default returns safe defaults.
func Default() Config {
	return Config{
		Server: Server{
			Address:           ":8080",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      20 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Database: Database{
			Driver:     "sqlite3",
			WriterDSN:  "file:bear.db",
			MaxReaders: 4,
		},
		Sessions: Sessions{
			CookieName:   "session",
			SecureCookie: true,
			Lifetimes: map[string]int64{
				"Oidc":   14 * 24 * 60 * 60,
				"Device": 90 * 24 * 60 * 60,
			},
			SweepInterval: 10 * time.Minute,
		},
	}
}
