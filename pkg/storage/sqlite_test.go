// ABOUTME: Tests for the SQLite Store adapter
// ABOUTME: Verifies the Store contract and persistence across reopen

package storage

import (
	"os"
	"testing"
)

func setupTestSQLiteStore(t *testing.T) (*SQLiteStore, string) {
	path := "/tmp/test_sqlitestore_" + t.Name() + ".db"
	os.Remove(path)

	ss, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("Failed to open sqlite store: %v", err)
	}
	return ss, path
}

func TestSQLiteStoreContract(t *testing.T) {
	ss, path := setupTestSQLiteStore(t)
	defer os.Remove(path)
	defer ss.Close()

	checkStoreContract(t, ss)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ss, path := setupTestSQLiteStore(t)
	defer os.Remove(path)

	if err := ss.Set("folders", []byte(`[]`)); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if err := ss.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("Failed to reopen: %v", err)
	}
	defer reopened.Close()

	val, ok, err := reopened.Get("folders")
	if err != nil {
		t.Fatalf("Failed to get after reopen: %v", err)
	}
	if !ok {
		t.Fatal("Expected record to survive reopen")
	}
	if string(val) != `[]` {
		t.Errorf("Expected '[]', got '%s'", val)
	}
}

func TestSQLiteStoreUpsert(t *testing.T) {
	ss, path := setupTestSQLiteStore(t)
	defer os.Remove(path)
	defer ss.Close()

	for _, v := range []string{"a", "b", "c"} {
		if err := ss.Set("k", []byte(v)); err != nil {
			t.Fatalf("Failed to set '%s': %v", v, err)
		}
	}

	val, ok, err := ss.Get("k")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if !ok || string(val) != "c" {
		t.Errorf("Expected latest value 'c', got ok=%v val='%s'", ok, val)
	}
}
