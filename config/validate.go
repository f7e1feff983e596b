package config

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

// Validate validates config values.
func Validate(cfg Config) error {
	var issues []string

	if cfg.Server.ReadTimeout < 0 {
		issues = append(issues, "server.read_timeout must be >= 0")
	}
	if cfg.Server.WriteTimeout < 0 {
		issues = append(issues, "server.write_timeout must be >= 0")
	}
	if cfg.Server.IdleTimeout < 0 {
		issues = append(issues, "server.idle_timeout must be >= 0")
	}
	if cfg.Server.ReadHeaderTimeout < 0 {
		issues = append(issues, "server.read_header_timeout must be >= 0")
	}
	if cfg.Server.ShutdownTimeout < 0 {
		issues = append(issues, "server.shutdown_timeout must be >= 0")
	}
	if cfg.Server.MaxHeaderBytes < 0 {
		issues = append(issues, "server.max_header_bytes must be >= 0")
	}

	if cfg.Log.Level != "" && !validLogLevel(cfg.Log.Level) {
		issues = append(issues, "log.level must be one of debug|info|warn|error")
	}
	if cfg.Log.Format != "" && !validLogFormat(cfg.Log.Format) {
		issues = append(issues, "log.format must be one of text|json")
	}

	switch cfg.Database.Driver {
	case "sqlite3", "pgx":
	default:
		issues = append(issues, "database.driver must be one of sqlite3|pgx")
	}
	if cfg.Database.WriterDSN == "" {
		issues = append(issues, "database.writer_dsn is required")
	}
	if cfg.Database.MaxReaders < 0 {
		issues = append(issues, "database.max_readers must be >= 0")
	}

	if cfg.Sessions.CookieName == "" {
		issues = append(issues, "sessions.cookie_name is required")
	}
	if cfg.Sessions.SweepInterval < 0 {
		issues = append(issues, "sessions.sweep_interval must be >= 0")
	}
	for _, kind := range slices.Sorted(maps.Keys(cfg.Sessions.Lifetimes)) {
		if cfg.Sessions.Lifetimes[kind] <= 0 {
			issues = append(issues, "sessions.lifetimes."+kind+" must be > 0")
		}
	}

	if len(issues) > 0 {
		return errors.New(strings.Join(issues, "; "))
	}
	return nil
}

func validLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validLogFormat(format string) bool {
	switch strings.ToLower(format) {
	case "text", "json":
		return true
	default:
		return false
	}
}
