package postgres

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrations_Present(t *testing.T) {
	entries, err := fs.ReadDir(embedMigrations, "migrations")
	if err != nil {
		t.Fatalf("cannot read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no embedded migrations found")
	}

	foundInit := false
	for _, e := range entries {
		if e.Name() == "0001_init.sql" {
			foundInit = true
			break
		}
	}
	if !foundInit {
		t.Fatalf("0001_init.sql not found among: %v", entries)
	}

	data, err := fs.ReadFile(embedMigrations, "migrations/0001_init.sql")
	if err != nil {
		t.Fatalf("cannot read 0001_init.sql: %v", err)
	}
	for _, table := range []string{"samples", "snapshots"} {
		if !strings.Contains(string(data), table) {
			t.Errorf("0001_init.sql does not mention table %q", table)
		}
	}
}
