// ABOUTME: Most-recently-used log of submitted search queries
// ABOUTME: Case-sensitive dedupe, capped at ten entries, persisted through Store

package recent

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nainya/chatstore/pkg/chat"
	"github.com/nainya/chatstore/pkg/storage"
)

const storeKey = "recent_searches"

// maxEntries caps the log; recording an eleventh query evicts the oldest.
const maxEntries = 10

// Log remembers recently submitted search queries, most recent first.
// Recording a query already present moves it to the front; comparison is
// case-sensitive, so "Superheat" and "superheat" are distinct entries.
type Log struct {
	mu      sync.RWMutex
	store   storage.Store
	log     zerolog.Logger
	queries []string
}

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(lg *Log) {
		lg.log = l
	}
}

// NewLog opens the query log, loading any persisted entries.
func NewLog(store storage.Store, opts ...Option) (*Log, error) {
	l := &Log{
		store: store,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) load() error {
	raw, ok, err := l.store.Get(storeKey)
	if err != nil {
		return &chat.StorageError{Op: "load recent searches", Err: err}
	}
	if !ok {
		return nil
	}

	var queries []string
	if err := json.Unmarshal(raw, &queries); err != nil {
		l.log.Warn().Err(err).Msg("Discarding undecodable recent searches record")
		return nil
	}

	// Drop entries a buggy writer may have left behind.
	for _, q := range queries {
		if strings.TrimSpace(q) == "" {
			l.log.Warn().Msg("Skipping blank recent search entry")
			continue
		}
		if len(l.queries) == maxEntries {
			break
		}
		l.queries = append(l.queries, q)
	}
	return nil
}

// Record notes that a query was submitted. Blank queries are ignored.
func (l *Log) Record(query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	candidate := make([]string, 0, len(l.queries)+1)
	candidate = append(candidate, query)
	for _, q := range l.queries {
		if q == query {
			continue
		}
		candidate = append(candidate, q)
	}
	if len(candidate) > maxEntries {
		candidate = candidate[:maxEntries]
	}

	if err := l.persist(candidate); err != nil {
		return err
	}
	l.queries = candidate
	return nil
}

// List returns the logged queries, most recent first.
func (l *Log) List() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]string, len(l.queries))
	copy(out, l.queries)
	return out
}

// Clear empties the log.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Delete(storeKey); err != nil {
		return &chat.StorageError{Op: "clear recent searches", Err: err}
	}
	l.queries = nil
	return nil
}

func (l *Log) persist(queries []string) error {
	raw, err := json.Marshal(queries)
	if err != nil {
		return fmt.Errorf("encode recent searches record: %w", err)
	}
	if err := l.store.Set(storeKey, raw); err != nil {
		return &chat.StorageError{Op: "persist recent searches", Err: err}
	}
	return nil
}
