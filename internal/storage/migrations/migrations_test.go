package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	input := `
-- leading comment
CREATE TABLE a (x String) ENGINE = Memory;

-- second
CREATE TABLE b (y String)
ENGINE = Memory;
`
	stmts := splitStatements(input)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if !strings.HasPrefix(stmts[0], "CREATE TABLE a") {
		t.Errorf("unexpected first statement: %q", stmts[0])
	}
	if strings.Contains(stmts[1], "--") {
		t.Errorf("comments should be stripped: %q", stmts[1])
	}
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	if err := validateNoSemicolonInStrings("SELECT 'it''s fine'"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validateNoSemicolonInStrings("SELECT 'a;b'"); err == nil {
		t.Error("expected error for semicolon inside string literal")
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/calendefi")
	if err != nil {
		t.Fatalf("databaseFromDSN failed: %v", err)
	}
	if db != "calendefi" {
		t.Errorf("database mismatch: got %s", db)
	}

	if _, err := databaseFromDSN("clickhouse://localhost:9000"); err == nil {
		t.Error("expected error for dsn without database")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	for name, fsys := range map[string]fs.FS{"postgres": PostgresFS, "clickhouse": ClickhouseFS} {
		data, err := fs.ReadFile(fsys, name+"/001_execution_journal.sql")
		if err != nil {
			t.Fatalf("%s: read embedded migration: %v", name, err)
		}
		if !strings.Contains(string(data), "execution_journal") {
			t.Errorf("%s: migration does not create execution_journal", name)
		}
		if err := validateNoSemicolonInStrings(string(data)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}
