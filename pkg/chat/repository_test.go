// ABOUTME: Tests for the conversation repository
// ABOUTME: Verifies lifecycle, flags, title derivation, persistence, and failure handling

package chat

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nainya/chatstore/pkg/storage"
)

type fakeClock struct {
	now time.Time
}

func (fc *fakeClock) Now() time.Time {
	return fc.now
}

func (fc *fakeClock) Advance(d time.Duration) {
	fc.now = fc.now.Add(d)
}

func sequentialIDs(prefix string) IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

type failingStore struct {
	storage.Store
	failWrites bool
}

func (f *failingStore) Set(key string, value []byte) error {
	if f.failWrites {
		return errors.New("disk full")
	}
	return f.Store.Set(key, value)
}

func setupTestRepository(t *testing.T) (*Repository, *storage.MemoryStore, *fakeClock) {
	ms := storage.NewMemoryStore()
	fc := &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}

	repo, err := NewRepository(ms, WithClock(fc.Now), WithIDFunc(sequentialIDs("conv-")))
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}
	return repo, ms, fc
}

func TestCreateConversation(t *testing.T) {
	repo, _, fc := setupTestRepository(t)

	conv, err := repo.Create()
	if err != nil {
		t.Fatalf("Failed to create conversation: %v", err)
	}

	if conv.ID == "" {
		t.Error("Expected generated id")
	}
	if len(conv.Messages) != 0 {
		t.Errorf("Expected empty conversation, got %d messages", len(conv.Messages))
	}
	if !conv.DateCreated.Equal(fc.now) || !conv.DateModified.Equal(fc.now) {
		t.Errorf("Expected both dates = %v, got created=%v modified=%v", fc.now, conv.DateCreated, conv.DateModified)
	}
	if conv.Starred || conv.Archived {
		t.Error("Expected starred and archived false on creation")
	}
}

func TestCreateWithOptions(t *testing.T) {
	repo, _, _ := setupTestRepository(t)

	conv, err := repo.Create(
		WithSystemType("heat_pump"),
		WithDiagnosticID("diag-42"),
		WithTitle("  Compressor check  "),
	)
	if err != nil {
		t.Fatalf("Failed to create conversation: %v", err)
	}

	if conv.SystemType != "heat_pump" {
		t.Errorf("Expected system type heat_pump, got %s", conv.SystemType)
	}
	if conv.DiagnosticID != "diag-42" {
		t.Errorf("Expected diagnostic id diag-42, got %s", conv.DiagnosticID)
	}
	if conv.Title != "Compressor check" {
		t.Errorf("Expected trimmed title, got '%s'", conv.Title)
	}
}

func TestGetNotFound(t *testing.T) {
	repo, _, _ := setupTestRepository(t)

	_, err := repo.Get("nonexistent")
	if err == nil {
		t.Fatal("Expected error for missing conversation")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAppendMessageBumpsDateModified(t *testing.T) {
	repo, _, fc := setupTestRepository(t)

	conv, _ := repo.Create()
	created := conv.DateModified

	fc.Advance(5 * time.Minute)

	msg, err := repo.AppendMessage(conv.ID, RoleUser, "No heat from the furnace")
	if err != nil {
		t.Fatalf("Failed to append message: %v", err)
	}

	if msg.ID == "" {
		t.Error("Expected generated message id")
	}
	if !msg.Timestamp.Equal(fc.now) {
		t.Errorf("Expected timestamp %v, got %v", fc.now, msg.Timestamp)
	}

	updated, _ := repo.Get(conv.ID)
	if len(updated.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(updated.Messages))
	}
	if !updated.DateModified.After(created) {
		t.Error("Expected DateModified bumped by append")
	}
}

func TestAppendMessageInvalidRole(t *testing.T) {
	repo, _, _ := setupTestRepository(t)

	conv, _ := repo.Create()

	_, err := repo.AppendMessage(conv.ID, Role("system"), "nope")
	if err == nil {
		t.Fatal("Expected error for unknown role")
	}
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestTitleDerivedFromFirstUserMessage(t *testing.T) {
	repo, _, _ := setupTestRepository(t)

	conv, _ := repo.Create()

	// Assistant messages never derive a title
	repo.AppendMessage(conv.ID, RoleAssistant, "How can I help?")
	got, _ := repo.Get(conv.ID)
	if got.Title != "" {
		t.Errorf("Expected no title from assistant message, got '%s'", got.Title)
	}

	repo.AppendMessage(conv.ID, RoleUser, "  Blower motor hums but won't start  ")
	got, _ = repo.Get(conv.ID)
	if got.Title != "Blower motor hums but won't start" {
		t.Errorf("Expected derived title, got '%s'", got.Title)
	}

	// A later user message never replaces the derived title
	repo.AppendMessage(conv.ID, RoleUser, "Another question entirely")
	got, _ = repo.Get(conv.ID)
	if got.Title != "Blower motor hums but won't start" {
		t.Errorf("Expected title unchanged, got '%s'", got.Title)
	}
}

func TestTitleDerivationTruncates(t *testing.T) {
	repo, _, _ := setupTestRepository(t)

	conv, _ := repo.Create()
	long := strings.Repeat("x", 200)
	repo.AppendMessage(conv.ID, RoleUser, long)

	got, _ := repo.Get(conv.ID)
	if len([]rune(got.Title)) != titleLimit {
		t.Errorf("Expected title capped at %d runes, got %d", titleLimit, len([]rune(got.Title)))
	}
}

func TestExplicitTitleNotOverwritten(t *testing.T) {
	repo, _, _ := setupTestRepository(t)

	conv, _ := repo.Create(WithTitle("Manual title"))
	repo.AppendMessage(conv.ID, RoleUser, "Some question")

	got, _ := repo.Get(conv.ID)
	if got.Title != "Manual title" {
		t.Errorf("Expected explicit title kept, got '%s'", got.Title)
	}
}

func TestRename(t *testing.T) {
	repo, _, fc := setupTestRepository(t)

	conv, _ := repo.Create()
	before := conv.DateModified

	fc.Advance(time.Minute)

	if err := repo.Rename(conv.ID, "  Condenser fan diagnosis  "); err != nil {
		t.Fatalf("Failed to rename: %v", err)
	}

	got, _ := repo.Get(conv.ID)
	if got.Title != "Condenser fan diagnosis" {
		t.Errorf("Expected trimmed title, got '%s'", got.Title)
	}
	if !got.DateModified.After(before) {
		t.Error("Expected DateModified bumped by rename")
	}
}

func TestRenameRejectsEmptyTitle(t *testing.T) {
	repo, _, _ := setupTestRepository(t)

	conv, _ := repo.Create(WithTitle("Keep me"))

	err := repo.Rename(conv.ID, "   ")
	if err == nil {
		t.Fatal("Expected error for empty title")
	}
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}

	got, _ := repo.Get(conv.ID)
	if got.Title != "Keep me" {
		t.Errorf("Expected title unchanged, got '%s'", got.Title)
	}

	if err := repo.Rename("nonexistent", "title"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing conversation, got %v", err)
	}
}

func TestToggleStarDoesNotBumpDateModified(t *testing.T) {
	repo, _, fc := setupTestRepository(t)

	conv, _ := repo.Create()
	before := conv.DateModified

	fc.Advance(time.Hour)

	starred, err := repo.ToggleStar(conv.ID)
	if err != nil {
		t.Fatalf("Failed to toggle star: %v", err)
	}
	if !starred {
		t.Error("Expected starred=true after first toggle")
	}

	starred, _ = repo.ToggleStar(conv.ID)
	if starred {
		t.Error("Expected starred=false after second toggle")
	}

	got, _ := repo.Get(conv.ID)
	if !got.DateModified.Equal(before) {
		t.Error("Expected DateModified unchanged by starring")
	}
}

func TestSetArchivedDoesNotBumpDateModified(t *testing.T) {
	repo, _, fc := setupTestRepository(t)

	conv, _ := repo.Create()
	before := conv.DateModified

	fc.Advance(time.Hour)

	if err := repo.SetArchived(conv.ID, true); err != nil {
		t.Fatalf("Failed to archive: %v", err)
	}

	// Setting the same value again is a no-op
	if err := repo.SetArchived(conv.ID, true); err != nil {
		t.Fatalf("Failed on idempotent archive: %v", err)
	}

	got, _ := repo.Get(conv.ID)
	if !got.Archived {
		t.Error("Expected archived=true")
	}
	if !got.DateModified.Equal(before) {
		t.Error("Expected DateModified unchanged by archiving")
	}
}

func TestDeleteConversation(t *testing.T) {
	repo, _, _ := setupTestRepository(t)

	conv, _ := repo.Create()
	repo.AppendMessage(conv.ID, RoleUser, "hello")

	var notified []string
	repo.OnDelete(func(convID string) error {
		notified = append(notified, convID)
		return nil
	})

	if err := repo.Delete(conv.ID); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	if _, err := repo.Get(conv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	if len(notified) != 1 || notified[0] != conv.ID {
		t.Errorf("Expected delete observer called once with %s, got %v", conv.ID, notified)
	}

	if err := repo.Delete(conv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for second delete, got %v", err)
	}
}

func TestDeleteAbortsWhenObserverFails(t *testing.T) {
	repo, _, _ := setupTestRepository(t)

	conv, _ := repo.Create()
	repo.OnDelete(func(convID string) error {
		return &StorageError{Op: "purge folders", Err: errors.New("disk full")}
	})

	err := repo.Delete(conv.ID)
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("Expected ErrStorageUnavailable, got %v", err)
	}

	// The conversation survives an aborted delete
	if _, err := repo.Get(conv.ID); err != nil {
		t.Errorf("Expected conversation still present, got %v", err)
	}
}

func TestRepositoryReload(t *testing.T) {
	ms := storage.NewMemoryStore()
	fc := &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}

	repo, err := NewRepository(ms, WithClock(fc.Now))
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}

	conv, _ := repo.Create(WithSystemType("furnace"))
	repo.AppendMessage(conv.ID, RoleUser, "Pilot light is out")
	repo.AppendMessage(conv.ID, RoleAssistant, "Check the thermocouple first.")
	repo.ToggleStar(conv.ID)

	// A fresh repository over the same store replays everything
	reloaded, err := NewRepository(ms, WithClock(fc.Now))
	if err != nil {
		t.Fatalf("Failed to reload repository: %v", err)
	}

	got, err := reloaded.Get(conv.ID)
	if err != nil {
		t.Fatalf("Failed to get after reload: %v", err)
	}

	if got.Title != "Pilot light is out" {
		t.Errorf("Expected derived title preserved, got '%s'", got.Title)
	}
	if len(got.Messages) != 2 {
		t.Errorf("Expected 2 messages, got %d", len(got.Messages))
	}
	if !got.Starred {
		t.Error("Expected starred flag preserved")
	}
	if got.SystemType != "furnace" {
		t.Errorf("Expected system type preserved, got '%s'", got.SystemType)
	}
}

func TestLoadSkipsBrokenRecords(t *testing.T) {
	ms := storage.NewMemoryStore()

	repo, _ := NewRepository(ms)
	conv, _ := repo.Create(WithTitle("Survivor"))

	// Dangling id in the index and an undecodable record
	ms.Set(indexKey, []byte(fmt.Sprintf(`["%s","ghost","broken"]`, conv.ID)))
	ms.Set(recordPrefix+"broken", []byte("{not json"))

	reloaded, err := NewRepository(ms)
	if err != nil {
		t.Fatalf("Expected load to succeed despite broken records, got %v", err)
	}

	if reloaded.Len() != 1 {
		t.Errorf("Expected 1 surviving conversation, got %d", reloaded.Len())
	}
	if _, err := reloaded.Get(conv.ID); err != nil {
		t.Errorf("Expected surviving conversation readable, got %v", err)
	}
}

func TestWriteFailureLeavesStateUnchanged(t *testing.T) {
	fs := &failingStore{Store: storage.NewMemoryStore()}

	repo, err := NewRepository(fs)
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}

	conv, _ := repo.Create(WithTitle("Before failure"))

	fs.failWrites = true

	if _, err := repo.Create(); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Expected ErrStorageUnavailable from create, got %v", err)
	}

	if _, err := repo.AppendMessage(conv.ID, RoleUser, "lost"); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Expected ErrStorageUnavailable from append, got %v", err)
	}

	got, _ := repo.Get(conv.ID)
	if len(got.Messages) != 0 {
		t.Errorf("Expected no messages after failed append, got %d", len(got.Messages))
	}
	if repo.Len() != 1 {
		t.Errorf("Expected 1 conversation after failed create, got %d", repo.Len())
	}
}

func TestGetReturnsCopy(t *testing.T) {
	repo, _, _ := setupTestRepository(t)

	conv, _ := repo.Create(WithTitle("Original"))
	repo.AppendMessage(conv.ID, RoleUser, "untouched")

	got, _ := repo.Get(conv.ID)
	got.Title = "Mutated"
	got.Messages[0].Content = "tampered"

	fresh, _ := repo.Get(conv.ID)
	if fresh.Title != "Original" {
		t.Errorf("Expected repository state isolated from caller, got title '%s'", fresh.Title)
	}
	if fresh.Messages[0].Content != "untouched" {
		t.Errorf("Expected message content isolated from caller, got '%s'", fresh.Messages[0].Content)
	}
}
