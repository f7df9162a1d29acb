// ABOUTME: Conversation repository with load-on-open state and write-through persistence
// ABOUTME: Handles creation, append-only messages, flags, and cascading deletes

package chat

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nainya/chatstore/pkg/storage"
)

// Storage keys
const (
	indexKey     = "conversations"
	recordPrefix = "conversation:"
)

// titleLimit caps titles derived from the first user message, in runes.
const titleLimit = 60

// Repository owns every conversation. It loads existing records at
// construction, keeps authoritative state in memory, and writes through to
// the store before committing any mutation. Mutations assume one logical
// writer; reads may run concurrently with each other and with in-flight
// searches.
type Repository struct {
	mu    sync.RWMutex
	store storage.Store
	log   zerolog.Logger
	now   Clock
	newID IDFunc

	conversations map[string]*Conversation
	onDelete      []func(convID string) error
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger routes repository logging to l.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Repository) { r.log = l }
}

// WithClock injects the timestamp source.
func WithClock(c Clock) Option {
	return func(r *Repository) { r.now = c }
}

// WithIDFunc injects the identifier generator.
func WithIDFunc(f IDFunc) Option {
	return func(r *Repository) { r.newID = f }
}

// NewRepository opens a repository over the given store and replays its
// records. Dangling index entries and undecodable records are skipped and
// logged, never fatal; adapter failures are.
func NewRepository(store storage.Store, opts ...Option) (*Repository, error) {
	r := &Repository{
		store:         store,
		log:           zerolog.Nop(),
		now:           time.Now,
		newID:         uuid.NewString,
		conversations: make(map[string]*Conversation),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) load() error {
	data, ok, err := r.store.Get(indexKey)
	if err != nil {
		return &StorageError{Op: "read conversation index", Err: err}
	}
	if !ok {
		return nil
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		r.log.Warn().Err(err).Msg("Skipping undecodable conversation index")
		return nil
	}

	for _, id := range ids {
		rec, ok, err := r.store.Get(recordPrefix + id)
		if err != nil {
			return &StorageError{Op: "read conversation record", Err: err}
		}
		if !ok {
			r.log.Warn().Str("conversation_id", id).Msg("Skipping dangling conversation id")
			continue
		}

		var conv Conversation
		if err := json.Unmarshal(rec, &conv); err != nil {
			r.log.Warn().Str("conversation_id", id).Err(err).Msg("Skipping undecodable conversation record")
			continue
		}
		if conv.ID == "" {
			r.log.Warn().Str("conversation_id", id).Msg("Skipping conversation record without id")
			continue
		}

		r.conversations[conv.ID] = &conv
	}

	return nil
}

// CreateOption sets optional fields on a new conversation.
type CreateOption func(*Conversation)

// WithSystemType tags the conversation with an equipment system type.
func WithSystemType(systemType string) CreateOption {
	return func(c *Conversation) { c.SystemType = systemType }
}

// WithDiagnosticID links the conversation to an external diagnostic session.
func WithDiagnosticID(id string) CreateOption {
	return func(c *Conversation) { c.DiagnosticID = id }
}

// WithTitle sets an explicit title instead of deriving one from the first
// user message.
func WithTitle(title string) CreateOption {
	return func(c *Conversation) { c.Title = strings.TrimSpace(title) }
}

// Create starts a new empty conversation. Both dates are set to now and
// both flags are false.
func (r *Repository) Create(opts ...CreateOption) (*Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	conv := &Conversation{
		ID:           r.newID(),
		Messages:     []Message{},
		DateCreated:  now,
		DateModified: now,
	}
	for _, opt := range opts {
		opt(conv)
	}

	if err := r.persistRecord(conv); err != nil {
		return nil, err
	}
	if err := r.persistIndex(append(r.currentIDs(), conv.ID)); err != nil {
		return nil, err
	}

	r.conversations[conv.ID] = conv
	return conv.Clone(), nil
}

// Get retrieves one conversation by id.
func (r *Repository) Get(id string) (*Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.conversations[id]
	if !ok {
		return nil, &NotFoundError{Resource: "conversation", ID: id}
	}
	return conv.Clone(), nil
}

// List returns every conversation. No ordering is guaranteed; presentation
// order is the caller's concern.
func (r *Repository) List() []*Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Conversation, 0, len(r.conversations))
	for _, conv := range r.conversations {
		out = append(out, conv.Clone())
	}
	return out
}

// Len reports the number of conversations.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conversations)
}

// AppendMessage appends one message to a conversation and bumps
// DateModified. The message id and timestamp are stamped here. When the
// conversation has no title yet, the first user message derives one.
func (r *Repository) AppendMessage(convID string, role Role, content string) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[convID]
	if !ok {
		return nil, &NotFoundError{Resource: "conversation", ID: convID}
	}
	if !role.Valid() {
		return nil, &InvalidArgumentError{Field: "role", Reason: fmt.Sprintf("unknown role %q", role)}
	}

	msg := Message{
		ID:        r.newID(),
		Role:      role,
		Content:   content,
		Timestamp: r.now(),
	}

	updated := conv.Clone()
	updated.Messages = append(updated.Messages, msg)
	updated.DateModified = msg.Timestamp
	if updated.Title == "" && role == RoleUser {
		updated.Title = deriveTitle(content)
	}

	if err := r.persistRecord(updated); err != nil {
		return nil, err
	}

	r.conversations[convID] = updated
	return &msg, nil
}

// Rename sets a new title. The title is trimmed; an empty result is
// rejected. Renaming bumps DateModified.
func (r *Repository) Rename(id, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[id]
	if !ok {
		return &NotFoundError{Resource: "conversation", ID: id}
	}

	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return &InvalidArgumentError{Field: "title", Reason: "empty after trimming"}
	}

	updated := conv.Clone()
	updated.Title = trimmed
	updated.DateModified = r.now()

	if err := r.persistRecord(updated); err != nil {
		return err
	}

	r.conversations[id] = updated
	return nil
}

// ToggleStar flips the starred flag and returns the new value. Starring is
// presentation state and does not bump DateModified.
func (r *Repository) ToggleStar(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[id]
	if !ok {
		return false, &NotFoundError{Resource: "conversation", ID: id}
	}

	updated := conv.Clone()
	updated.Starred = !updated.Starred

	if err := r.persistRecord(updated); err != nil {
		return false, err
	}

	r.conversations[id] = updated
	return updated.Starred, nil
}

// SetArchived sets the archived flag. Archival is presentation state and
// does not bump DateModified; setting the current value is a no-op.
func (r *Repository) SetArchived(id string, archived bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[id]
	if !ok {
		return &NotFoundError{Resource: "conversation", ID: id}
	}
	if conv.Archived == archived {
		return nil
	}

	updated := conv.Clone()
	updated.Archived = archived

	if err := r.persistRecord(updated); err != nil {
		return err
	}

	r.conversations[id] = updated
	return nil
}

// Delete removes a conversation. Deletion observers run first, so when
// Delete returns no folder references the id anymore; a failed delete can
// at worst leave the conversation uncategorized.
func (r *Repository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conversations[id]; !ok {
		return &NotFoundError{Resource: "conversation", ID: id}
	}

	for _, fn := range r.onDelete {
		if err := fn(id); err != nil {
			return err
		}
	}

	ids := make([]string, 0, len(r.conversations)-1)
	for cid := range r.conversations {
		if cid != id {
			ids = append(ids, cid)
		}
	}
	if err := r.persistIndex(ids); err != nil {
		return err
	}
	if err := r.store.Delete(recordPrefix + id); err != nil {
		return &StorageError{Op: "delete conversation record", Err: err}
	}

	delete(r.conversations, id)
	return nil
}

// OnDelete registers an observer invoked before a conversation is removed.
// The folder registry subscribes here so repository deletes cascade without
// the repository knowing about folders.
func (r *Repository) OnDelete(fn func(convID string) error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.onDelete = append(r.onDelete, fn)
}

// Helper functions

func (r *Repository) persistRecord(conv *Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	if err := r.store.Set(recordPrefix+conv.ID, data); err != nil {
		return &StorageError{Op: "write conversation record", Err: err}
	}
	return nil
}

func (r *Repository) persistIndex(ids []string) error {
	sort.Strings(ids)
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode conversation index: %w", err)
	}
	if err := r.store.Set(indexKey, data); err != nil {
		return &StorageError{Op: "write conversation index", Err: err}
	}
	return nil
}

func (r *Repository) currentIDs() []string {
	ids := make([]string, 0, len(r.conversations))
	for id := range r.conversations {
		ids = append(ids, id)
	}
	return ids
}

func deriveTitle(content string) string {
	title := strings.TrimSpace(content)
	runes := []rune(title)
	if len(runes) > titleLimit {
		title = string(runes[:titleLimit])
	}
	return title
}
