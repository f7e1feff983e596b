package migrate

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/devmarvs/bear/config"
	"github.com/devmarvs/bear/db"
)

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_init.up.sql":   {Data: []byte("-- up")},
		"0001_init.down.sql": {Data: []byte("-- down")},
		"0002_more.up.sql":   {Data: []byte("-- up")},
		"README.md":          {Data: []byte("ignored")},
	}

	migrations, err := List(fsys)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "init" || migrations[0].DownPath == "" {
		t.Fatalf("unexpected first migration %+v", migrations[0])
	}
	if migrations[1].DownPath != "" {
		t.Fatalf("expected no down path for version 2")
	}
}

func TestPlanWithoutDB(t *testing.T) {
	plan, err := New(nil, Schema(), db.DialectQuestion).Plan(context.Background())
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan) == 0 {
		t.Fatal("expected embedded migrations")
	}
	if plan[0].Applied {
		t.Fatalf("expected plan entry to be pending")
	}
}

func TestStatements(t *testing.T) {
	script := "-- header; with a semicolon\nCREATE TABLE a (x INT);\n\nCREATE INDEX a_x ON a (x);\n"
	statements := Statements(script)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if statements[1] != "CREATE INDEX a_x ON a (x)" {
		t.Fatalf("unexpected statement %q", statements[1])
	}
}

func TestApplyEmbeddedSchema(t *testing.T) {
	m, err := db.New(config.Database{Driver: "sqlite3", WriterDSN: "file:" + filepath.Join(t.TempDir(), "m.db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer m.Close()

	ctx := context.Background()
	applied, err := Apply(ctx, m)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected 1 migration applied, got %d", applied)
	}

	again, err := Apply(ctx, m)
	if err != nil {
		t.Fatalf("reapply: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected no pending migrations, got %d", again)
	}

	if _, err := m.Writer().Exec(`INSERT INTO sessions (code, kind, subject, expires) VALUES ('h', 'Oidc', 'a@b', 10)`); err != nil {
		t.Fatalf("insert into migrated table: %v", err)
	}

	plan, err := ForMain(m).Plan(ctx)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !plan[0].Applied {
		t.Fatal("expected migration to be marked applied")
	}

	rolledBack, err := ForMain(m).Down(ctx, 1)
	if err != nil {
		t.Fatalf("down: %v", err)
	}
	if rolledBack != 1 {
		t.Fatalf("expected 1 rollback, got %d", rolledBack)
	}
}
