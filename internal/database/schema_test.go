package database

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_DefaultPath(t *testing.T) {
	chdir(t, t.TempDir())

	if got, want := DBPath(), filepath.Join("data", "park-terminal.db"); got != want {
		t.Errorf("DBPath() = %v, want %v", got, want)
	}

	db, err := Open(DBPath())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(DBPath()); err != nil {
		t.Errorf("database file not created: %v", err)
	}

	var name string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'activity'").Scan(&name)
	if err != nil {
		t.Fatalf("activity table missing: %v", err)
	}
}

func TestEnsureSchema_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	// 1. Open creates directory and schema
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// 2. Insert a record
	_, err = db.Exec(`INSERT INTO activity (id, level, action, message) VALUES ('a1', 'info', 'create', 'Park created')`)
	if err != nil {
		db.Close()
		t.Fatalf("Failed to insert record: %v", err)
	}

	// 3. Ensure schema again (should not drop table)
	if err := EnsureSchema(db); err != nil {
		db.Close()
		t.Fatalf("Second EnsureSchema failed: %v", err)
	}
	db.Close()

	// 4. Reopen and verify record exists
	db, err = Open(dbPath)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM activity WHERE id = 'a1'").Scan(&count); err != nil {
		t.Fatalf("Failed to query record: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 record, got %d. Data was likely lost due to table drop.", count)
	}
}
