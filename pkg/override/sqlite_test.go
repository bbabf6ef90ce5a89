package override

import (
	"path/filepath"
	"testing"
	"time"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "overrides.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	store := newSQLiteStore(t)
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	o := &Override{
		ID:           "ovr-1",
		ReceiptID:    "rcpt-1",
		AgentID:      "did:sonate:agent-1",
		PrincipleIDs: []string{"integrity", "minimal-harm"},
		AuthorizedBy: "operator@example.com",
		AuthorizedAt: time.Now().UTC().Truncate(time.Second),
		ExpiresAt:    &expires,
		Reason:       "approved after manual review",
		Severity:     "high",
	}
	if err := store.Save(o); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("len(loaded) = %d, want 1", len(loaded))
	}

	got := loaded[0]
	if got.ID != o.ID || got.ReceiptID != o.ReceiptID || got.AgentID != o.AgentID {
		t.Errorf("loaded override = %+v, want %+v", got, o)
	}
	if len(got.PrincipleIDs) != 2 {
		t.Errorf("PrincipleIDs = %v, want 2 entries", got.PrincipleIDs)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, expires)
	}
	if got.RevokedAt != nil {
		t.Errorf("RevokedAt = %v, want nil", got.RevokedAt)
	}
}

func TestSQLiteStore_Update(t *testing.T) {
	store := newSQLiteStore(t)
	o := &Override{
		ID:           "ovr-1",
		ReceiptID:    "rcpt-1",
		AgentID:      "agent",
		PrincipleIDs: []string{"integrity"},
		AuthorizedBy: "op",
		AuthorizedAt: time.Now().UTC(),
		Reason:       "approved after manual review",
	}
	if err := store.Save(o); err != nil {
		t.Fatal(err)
	}

	revoked := time.Now().UTC().Truncate(time.Second)
	o.RevokedAt = &revoked
	o.RevokedBy = "security"
	o.RevokeReason = "incident"
	o.UsageCount = 3
	if err := store.Update(o); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	loaded, err := store.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	got := loaded[0]
	if got.RevokedBy != "security" || got.UsageCount != 3 {
		t.Errorf("updated override = %+v", got)
	}
	if got.RevokedAt == nil {
		t.Error("RevokedAt = nil after update, want set")
	}
}

func TestSQLiteStore_UpdateUnknown(t *testing.T) {
	store := newSQLiteStore(t)

	err := store.Update(&Override{ID: "missing"})
	if err == nil {
		t.Fatal("Update(missing) error = nil, want error")
	}
	if _, ok := err.(*StoreError); !ok {
		t.Fatalf("error type = %T, want *StoreError", err)
	}
}

func TestManager_LoadsFromStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.db")

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	m1, err := NewManager(Config{MaxOverrides: 100, Store: store})
	if err != nil {
		t.Fatal(err)
	}
	o, err := m1.Create(validRequest())
	if err != nil {
		t.Fatal(err)
	}
	if err := m1.Close(); err != nil {
		t.Fatal(err)
	}

	// A fresh manager over the same database sees the override.
	store2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := NewManager(Config{MaxOverrides: 100, Store: store2})
	if err != nil {
		t.Fatal(err)
	}
	defer m2.Close()

	if !m2.IsValid(o.ID) {
		t.Error("override not valid after reload from store")
	}
}
