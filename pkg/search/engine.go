// ABOUTME: Search engine over conversation messages with filters and ordering
// ABOUTME: Matches are highlighted and returned newest-first with stable ties

package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"

	"github.com/nainya/chatstore/pkg/chat"
	"github.com/nainya/chatstore/pkg/folder"
)

const (
	// minQueryRunes is the shortest trimmed query that triggers a search.
	// Anything shorter returns an empty result set without scanning.
	minQueryRunes = 2

	// maxQueryRunes bounds query length at validation.
	maxQueryRunes = 256
)

// ConversationSource supplies the conversations to scan.
type ConversationSource interface {
	List() []*chat.Conversation
}

// FolderView resolves which folder a conversation belongs to, if any.
type FolderView interface {
	FolderOf(convID string) (string, bool)
}

// Filters narrows a search. Zero values mean "no constraint". FolderID
// accepts a folder id or folder.None to select uncategorized conversations.
type Filters struct {
	Query      string
	Role       chat.Role
	SystemType string
	FolderID   string
	DateFrom   time.Time
	DateTo     time.Time
	Starred    bool
}

// Validate rejects filter combinations that cannot be evaluated.
func (f Filters) Validate() error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.Query, validation.RuneLength(0, maxQueryRunes)),
		validation.Field(&f.DateTo, validation.By(func(interface{}) error {
			if !f.DateFrom.IsZero() && !f.DateTo.IsZero() && f.DateTo.Before(f.DateFrom) {
				return errors.New("must not precede DateFrom")
			}
			return nil
		})),
	)
	if err != nil {
		return &chat.InvalidArgumentError{Field: "search filters", Reason: err.Error()}
	}
	return nil
}

// Result is one matching message with its conversation context.
type Result struct {
	ConversationID     string
	ConversationTitle  string
	MessageID          string
	Role               chat.Role
	SystemType         string
	Timestamp          time.Time
	HighlightedContent string
}

// Engine scans conversations for messages matching a query and filters.
type Engine struct {
	conversations ConversationSource
	folders       FolderView
	matcher       Matcher
	log           zerolog.Logger
	highlightCap  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithFolderView enables the FolderID filter.
func WithFolderView(fv FolderView) Option {
	return func(e *Engine) {
		e.folders = fv
	}
}

// WithMatcher replaces the default case-insensitive substring matcher.
func WithMatcher(m Matcher) Option {
	return func(e *Engine) {
		e.matcher = m
	}
}

// WithLogger sets the logger used for search diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithHighlightLimit truncates highlighted content to at most n bytes plus
// an ellipsis. Zero disables truncation.
func WithHighlightLimit(n int) Option {
	return func(e *Engine) {
		e.highlightCap = n
	}
}

// NewEngine creates a search engine over the given conversation source.
func NewEngine(src ConversationSource, opts ...Option) *Engine {
	e := &Engine{
		conversations: src,
		matcher:       SubstringMatcher{},
		log:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search scans message content for the query under the given filters.
// Trimmed queries shorter than two runes yield an empty result set, as do
// filter values that name no known role, system type, or folder. Results
// order newest message first; ties break on conversation id then message id.
func (e *Engine) Search(ctx context.Context, f Filters) ([]Result, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	query := strings.TrimSpace(f.Query)
	if utf8.RuneCountInString(query) < minQueryRunes {
		return []Result{}, nil
	}
	if f.Role != "" && !f.Role.Valid() {
		return []Result{}, nil
	}
	if f.FolderID != "" && e.folders == nil {
		return []Result{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := []Result{}
	for _, conv := range e.conversations.List() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.conversationPasses(conv, f) {
			continue
		}
		for _, msg := range conv.Messages {
			if !messagePasses(msg, f) {
				continue
			}
			spans := e.matcher.Spans(msg.Content, query)
			if len(spans) == 0 {
				continue
			}
			highlighted := Highlight(msg.Content, spans)
			if e.highlightCap > 0 {
				highlighted = TruncateHighlighted(highlighted, e.highlightCap)
			}
			results = append(results, Result{
				ConversationID:     conv.ID,
				ConversationTitle:  conv.Title,
				MessageID:          msg.ID,
				Role:               msg.Role,
				SystemType:         conv.SystemType,
				Timestamp:          msg.Timestamp,
				HighlightedContent: highlighted,
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		if a.ConversationID != b.ConversationID {
			return a.ConversationID < b.ConversationID
		}
		return a.MessageID < b.MessageID
	})

	e.log.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("Search completed")

	return results, nil
}

func (e *Engine) conversationPasses(conv *chat.Conversation, f Filters) bool {
	if f.SystemType != "" && conv.SystemType != f.SystemType {
		return false
	}
	if f.Starred && !conv.Starred {
		return false
	}
	if f.FolderID != "" {
		id, ok := e.folders.FolderOf(conv.ID)
		if f.FolderID == folder.None {
			return !ok
		}
		if !ok || id != f.FolderID {
			return false
		}
	}
	return true
}

func messagePasses(msg chat.Message, f Filters) bool {
	if f.Role != "" && msg.Role != f.Role {
		return false
	}
	if !f.DateFrom.IsZero() && msg.Timestamp.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && msg.Timestamp.After(f.DateTo) {
		return false
	}
	return true
}
