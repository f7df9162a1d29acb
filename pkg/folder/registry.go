// ABOUTME: Folder registry for organizing conversations into named groups
// ABOUTME: Enforces single-folder membership over one root folders record

package folder

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nainya/chatstore/pkg/chat"
	"github.com/nainya/chatstore/pkg/storage"
)

// None is the move target that files a conversation under no folder.
const None = "none"

const foldersKey = "folders"

// Folder groups conversations under a user-defined name. A conversation id
// appears in at most one folder, at most once.
type Folder struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	ConversationIDs []string `json:"conversationIds"`
}

func (f *Folder) clone() *Folder {
	out := *f
	out.ConversationIDs = make([]string, len(f.ConversationIDs))
	copy(out.ConversationIDs, f.ConversationIDs)
	return &out
}

// ConversationSource is the slice of the repository the registry needs:
// resolving ids, enumerating for the uncategorized view, and subscribing to
// deletes.
type ConversationSource interface {
	Get(id string) (*chat.Conversation, error)
	List() []*chat.Conversation
	OnDelete(fn func(convID string) error)
}

// Registry owns every folder. Like the repository it loads its record at
// construction, holds authoritative state in memory, and writes through
// before committing a mutation. It never calls the repository while holding
// its own lock.
type Registry struct {
	mu    sync.RWMutex
	store storage.Store
	repo  ConversationSource
	log   zerolog.Logger
	newID chat.IDFunc

	folders []*Folder // creation order
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger routes registry logging to l.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithIDFunc injects the identifier generator.
func WithIDFunc(f chat.IDFunc) Option {
	return func(r *Registry) { r.newID = f }
}

// NewRegistry opens the registry over the given store and subscribes to
// repository deletes so cascades happen without callers wiring anything.
func NewRegistry(store storage.Store, repo ConversationSource, opts ...Option) (*Registry, error) {
	r := &Registry{
		store: store,
		repo:  repo,
		log:   zerolog.Nop(),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.load(); err != nil {
		return nil, err
	}

	repo.OnDelete(r.OnConversationDeleted)
	return r, nil
}

func (r *Registry) load() error {
	data, ok, err := r.store.Get(foldersKey)
	if err != nil {
		return &chat.StorageError{Op: "read folders record", Err: err}
	}
	if !ok {
		return nil
	}

	var folders []*Folder
	if err := json.Unmarshal(data, &folders); err != nil {
		r.log.Warn().Err(err).Msg("Skipping undecodable folders record")
		return nil
	}

	// Re-establish single membership in case the on-disk record drifted
	seen := make(map[string]bool)
	for _, f := range folders {
		if f == nil || f.ID == "" {
			r.log.Warn().Msg("Skipping folder record without id")
			continue
		}

		kept := f.ConversationIDs[:0]
		for _, convID := range f.ConversationIDs {
			if seen[convID] {
				r.log.Warn().Str("conversation_id", convID).Str("folder_id", f.ID).Msg("Dropping duplicate folder membership")
				continue
			}
			seen[convID] = true
			kept = append(kept, convID)
		}
		f.ConversationIDs = kept

		r.folders = append(r.folders, f)
	}

	return nil
}

// Create adds a folder. The name is trimmed; an empty result is rejected.
// Duplicate names are allowed, ids differ.
func (r *Registry) Create(name string) (*Folder, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, &chat.InvalidArgumentError{Field: "folder name", Reason: "empty after trimming"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f := &Folder{
		ID:              r.newID(),
		Name:            trimmed,
		ConversationIDs: []string{},
	}

	candidate := append(r.snapshot(), f)
	if err := r.persist(candidate); err != nil {
		return nil, err
	}

	r.folders = candidate
	return f.clone(), nil
}

// Delete removes a folder. Its conversations revert to uncategorized; no
// conversation data is touched.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidate := r.snapshot()
	idx := indexOf(candidate, id)
	if idx < 0 {
		return &chat.NotFoundError{Resource: "folder", ID: id}
	}

	candidate = append(candidate[:idx], candidate[idx+1:]...)
	if err := r.persist(candidate); err != nil {
		return err
	}

	r.folders = candidate
	return nil
}

// Move files a conversation under the target folder, removing it from any
// folder it was in first. Target None leaves it uncategorized. Moving to
// the folder it is already in re-appends it at the end of that folder.
func (r *Registry) Move(convID, targetFolderID string) error {
	// Resolve the conversation before taking the lock; the repository is
	// never called with the registry lock held.
	if _, err := r.repo.Get(convID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	candidate := r.snapshot()
	removeEverywhere(candidate, convID)

	if targetFolderID != None {
		idx := indexOf(candidate, targetFolderID)
		if idx < 0 {
			return &chat.NotFoundError{Resource: "folder", ID: targetFolderID}
		}
		candidate[idx].ConversationIDs = append(candidate[idx].ConversationIDs, convID)
	}

	if err := r.persist(candidate); err != nil {
		return err
	}

	r.folders = candidate
	return nil
}

// List returns every folder in creation order.
func (r *Registry) List() []*Folder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Folder, 0, len(r.folders))
	for _, f := range r.folders {
		out = append(out, f.clone())
	}
	return out
}

// Get retrieves one folder by id.
func (r *Registry) Get(id string) (*Folder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := indexOf(r.folders, id)
	if idx < 0 {
		return nil, &chat.NotFoundError{Resource: "folder", ID: id}
	}
	return r.folders[idx].clone(), nil
}

// ConversationsIn resolves a folder's conversations in folder order. Ids
// that no longer resolve are skipped and logged; they are never an error.
func (r *Registry) ConversationsIn(folderID string) ([]*chat.Conversation, error) {
	r.mu.RLock()
	idx := indexOf(r.folders, folderID)
	if idx < 0 {
		r.mu.RUnlock()
		return nil, &chat.NotFoundError{Resource: "folder", ID: folderID}
	}
	ids := make([]string, len(r.folders[idx].ConversationIDs))
	copy(ids, r.folders[idx].ConversationIDs)
	r.mu.RUnlock()

	out := make([]*chat.Conversation, 0, len(ids))
	for _, convID := range ids {
		conv, err := r.repo.Get(convID)
		if errors.Is(err, chat.ErrNotFound) {
			r.log.Warn().Str("conversation_id", convID).Str("folder_id", folderID).Msg("Skipping stale folder reference")
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}

	return out, nil
}

// Uncategorized returns the conversations that belong to no folder.
func (r *Registry) Uncategorized() []*chat.Conversation {
	r.mu.RLock()
	member := make(map[string]bool)
	for _, f := range r.folders {
		for _, convID := range f.ConversationIDs {
			member[convID] = true
		}
	}
	r.mu.RUnlock()

	var out []*chat.Conversation
	for _, conv := range r.repo.List() {
		if !member[conv.ID] {
			out = append(out, conv)
		}
	}
	return out
}

// FolderOf reports which folder holds a conversation, if any.
func (r *Registry) FolderOf(convID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.folders {
		for _, id := range f.ConversationIDs {
			if id == convID {
				return f.ID, true
			}
		}
	}
	return "", false
}

// OnConversationDeleted purges one conversation id from every folder. It is
// idempotent and safe to call for ids the registry never saw.
func (r *Registry) OnConversationDeleted(convID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidate := r.snapshot()
	if !removeEverywhere(candidate, convID) {
		return nil
	}

	if err := r.persist(candidate); err != nil {
		return err
	}

	r.folders = candidate
	return nil
}

// Helper functions

// snapshot deep-copies the folder list so mutations can be persisted before
// they are committed.
func (r *Registry) snapshot() []*Folder {
	out := make([]*Folder, 0, len(r.folders))
	for _, f := range r.folders {
		out = append(out, f.clone())
	}
	return out
}

func (r *Registry) persist(folders []*Folder) error {
	data, err := json.Marshal(folders)
	if err != nil {
		return fmt.Errorf("encode folders record: %w", err)
	}
	if err := r.store.Set(foldersKey, data); err != nil {
		return &chat.StorageError{Op: "write folders record", Err: err}
	}
	return nil
}

func indexOf(folders []*Folder, id string) int {
	for i, f := range folders {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func removeEverywhere(folders []*Folder, convID string) bool {
	removed := false
	for _, f := range folders {
		kept := f.ConversationIDs[:0]
		for _, id := range f.ConversationIDs {
			if id == convID {
				removed = true
				continue
			}
			kept = append(kept, id)
		}
		f.ConversationIDs = kept
	}
	return removed
}
