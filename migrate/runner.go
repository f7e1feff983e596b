package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/devmarvs/bear/db"
)

// Migration describes a migration pair.
type Migration struct {
	Version  int
	Name     string
	UpPath   string
	DownPath string
}

// PlanEntry describes a migration and whether it has been applied.
type PlanEntry struct {
	Migration
	Applied bool
}

// Locker handles migration locking.
type Locker interface {
	Lock(context.Context, *sql.DB) error
	Unlock(context.Context, *sql.DB) error
}

// ErrLockTimeout indicates a lock timeout.
var ErrLockTimeout = errors.New("migration lock timeout")

// AdvisoryLocker uses PostgreSQL advisory locks.
type AdvisoryLocker struct {
	ID           int64
	Timeout      time.Duration
	PollInterval time.Duration
}

// Lock acquires a PostgreSQL advisory lock.
func (a AdvisoryLocker) Lock(ctx context.Context, conn *sql.DB) error {
	if a.Timeout <= 0 {
		_, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", a.ID)
		return err
	}

	poll := a.PollInterval
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	deadline := time.Now().Add(a.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	for {
		var locked bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", a.ID).Scan(&locked); err != nil {
			return err
		}
		if locked {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLockTimeout
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Unlock releases a PostgreSQL advisory lock.
func (a AdvisoryLocker) Unlock(ctx context.Context, conn *sql.DB) error {
	_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", a.ID)
	return err
}

// Runner executes migrations read from a filesystem.
type Runner struct {
	DB      *sql.DB
	FS      fs.FS
	Dialect db.Dialect
	Table   string
	Locker  Locker
}

// New creates a Runner over the migrations in fsys.
func New(conn *sql.DB, fsys fs.FS, dialect db.Dialect) *Runner {
	return &Runner{DB: conn, FS: fsys, Dialect: dialect, Table: "schema_migrations"}
}

// ForMain creates a Runner that applies the embedded schema through the
// writer pool of m. PostgreSQL runs are serialized with an advisory lock.
func ForMain(m *db.Main) *Runner {
	runner := New(m.Writer(), Schema(), m.Dialect())
	if m.Driver() == "pgx" {
		runner.Locker = AdvisoryLocker{ID: 0x62656172, Timeout: 30 * time.Second}
	}
	return runner
}

// Apply brings m up to date with the embedded schema.
func Apply(ctx context.Context, m *db.Main) (int, error) {
	return ForMain(m).Up(ctx)
}

// Plan returns a migration plan, optionally marking applied migrations.
func (r *Runner) Plan(ctx context.Context) ([]PlanEntry, error) {
	migrations, err := r.loadMigrations()
	if err != nil {
		return nil, err
	}

	appliedSet := make(map[int]struct{})
	if r.DB != nil {
		if err := r.ensureTable(ctx); err != nil {
			return nil, err
		}
		applied, err := r.appliedVersions(ctx)
		if err != nil {
			return nil, err
		}
		for _, v := range applied {
			appliedSet[v] = struct{}{}
		}
	}

	plan := make([]PlanEntry, 0, len(migrations))
	for _, migration := range migrations {
		_, applied := appliedSet[migration.Version]
		plan = append(plan, PlanEntry{Migration: migration, Applied: applied})
	}

	return plan, nil
}

// Up applies all pending migrations.
func (r *Runner) Up(ctx context.Context) (int, error) {
	if r.DB == nil {
		return 0, errors.New("db is required")
	}
	if err := r.ensureTable(ctx); err != nil {
		return 0, err
	}
	if r.Locker != nil {
		if err := r.Locker.Lock(ctx, r.DB); err != nil {
			return 0, err
		}
		defer func() {
			_ = r.Locker.Unlock(ctx, r.DB)
		}()
	}

	migrations, err := r.loadMigrations()
	if err != nil {
		return 0, err
	}
	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return 0, err
	}

	appliedSet := make(map[int]struct{}, len(applied))
	for _, v := range applied {
		appliedSet[v] = struct{}{}
	}

	count := 0
	for _, m := range migrations {
		if _, ok := appliedSet[m.Version]; ok {
			continue
		}
		if m.UpPath == "" {
			return count, fmt.Errorf("missing up migration for version %d", m.Version)
		}
		if err := r.apply(ctx, m, true); err != nil {
			return count, fmt.Errorf("migration %d: %w", m.Version, err)
		}
		count++
	}

	return count, nil
}

// Down rolls back the latest migrations.
func (r *Runner) Down(ctx context.Context, steps int) (int, error) {
	if r.DB == nil {
		return 0, errors.New("db is required")
	}
	if steps <= 0 {
		return 0, nil
	}
	if err := r.ensureTable(ctx); err != nil {
		return 0, err
	}

	migrations, err := r.loadMigrations()
	if err != nil {
		return 0, err
	}
	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return 0, err
	}

	byVersion := make(map[int]Migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.Version] = m
	}

	count := 0
	for i := 0; i < steps && i < len(applied); i++ {
		m, ok := byVersion[applied[i]]
		if !ok {
			return count, fmt.Errorf("missing migration for version %d", applied[i])
		}
		if m.DownPath == "" {
			return count, fmt.Errorf("missing down migration for version %d", m.Version)
		}
		if err := r.apply(ctx, m, false); err != nil {
			return count, fmt.Errorf("migration %d: %w", m.Version, err)
		}
		count++
	}

	return count, nil
}

// List returns migrations found in fsys.
func List(fsys fs.FS) ([]Migration, error) {
	return New(nil, fsys, db.DialectQuestion).loadMigrations()
}

func (r *Runner) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (version BIGINT PRIMARY KEY, name TEXT NOT NULL, applied_at BIGINT NOT NULL)`, r.Table)
	_, err := r.DB.ExecContext(ctx, query)
	return err
}

func (r *Runner) appliedVersions(ctx context.Context) ([]int, error) {
	query, args, err := db.Select("version").From(r.Table).OrderBy("version DESC").Build()
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}

	return versions, rows.Err()
}

func (r *Runner) loadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(r.FS, ".")
	if err != nil {
		return nil, err
	}

	byVersion := make(map[int]Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		parts := strings.Split(name, ".")
		if len(parts) != 3 || parts[2] != "sql" {
			continue
		}

		versionParts := strings.SplitN(parts[0], "_", 2)
		version, err := strconv.Atoi(versionParts[0])
		if err != nil {
			continue
		}
		migration := byVersion[version]
		migration.Version = version
		if len(versionParts) > 1 {
			migration.Name = versionParts[1]
		}

		switch parts[1] {
		case "up":
			migration.UpPath = name
		case "down":
			migration.DownPath = name
		default:
			continue
		}

		byVersion[version] = migration
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, migration := range byVersion {
		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

func (r *Runner) apply(ctx context.Context, migration Migration, up bool) error {
	path := migration.UpPath
	if !up {
		path = migration.DownPath
	}
	contents, err := fs.ReadFile(r.FS, path)
	if err != nil {
		return err
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, statement := range Statements(string(contents)) {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return err
		}
	}

	var query string
	var args []any
	if up {
		query, args, err = db.Insert(r.Table).
			Columns("version", "name", "applied_at").
			Values(migration.Version, migration.Name, time.Now().UTC().Unix()).
			Dialect(r.Dialect).
			Build()
	} else {
		query, args, err = db.Delete(r.Table).Where("version = ?", migration.Version).Dialect(r.Dialect).Build()
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	return tx.Commit()
}

// Statements drops comment lines from a migration script and splits it on
// semicolons.
func Statements(script string) []string {
	var kept []string
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}

	var statements []string
	for _, fragment := range strings.Split(strings.Join(kept, "\n"), ";") {
		if statement := strings.TrimSpace(fragment); statement != "" {
			statements = append(statements, statement)
		}
	}
	return statements
}
