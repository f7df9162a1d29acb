// ABOUTME: Retention policy that archives conversations idle past a cutoff
// ABOUTME: Sweeps are idempotent, never delete, and do not exempt starred

package lifecycle

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/nainya/chatstore/pkg/chat"
)

// DefaultRetention is how long a conversation may sit unmodified before a
// sweep archives it.
const DefaultRetention = 90 * 24 * time.Hour

// ConversationStore is the repository surface a sweep needs.
type ConversationStore interface {
	List() []*chat.Conversation
	SetArchived(id string, archived bool) error
}

// Policy archives conversations whose last activity predates the retention
// window. Archiving only flips the flag; archived conversations stay listed
// and searchable.
type Policy struct {
	repo      ConversationStore
	retention time.Duration
	log       zerolog.Logger
}

// Option configures a Policy.
type Option func(*Policy)

// WithRetention overrides the default retention window.
func WithRetention(d time.Duration) Option {
	return func(p *Policy) {
		p.retention = d
	}
}

// WithLogger sets the logger used for sweep reporting.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Policy) {
		p.log = log
	}
}

// NewPolicy creates a retention policy over the given repository.
func NewPolicy(repo ConversationStore, opts ...Option) *Policy {
	p := &Policy{
		repo:      repo,
		retention: DefaultRetention,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunArchivalSweep archives every unarchived conversation whose last
// modification is strictly older than the retention window, measured from
// now. Starred conversations are not exempt. Returns how many conversations
// this sweep archived; on a write failure it returns the count archived so
// far alongside the error.
func (p *Policy) RunArchivalSweep(now time.Time) (int, error) {
	cutoff := now.Add(-p.retention)

	count := 0
	for _, conv := range p.repo.List() {
		if conv.Archived {
			continue
		}
		if !conv.DateModified.Before(cutoff) {
			continue
		}
		if err := p.repo.SetArchived(conv.ID, true); err != nil {
			p.log.Error().
				Err(err).
				Str("conversation_id", conv.ID).
				Msg("Failed to archive conversation")
			return count, err
		}
		count++
		p.log.Debug().
			Str("conversation_id", conv.ID).
			Time("last_modified", conv.DateModified).
			Msg("Archived idle conversation")
	}

	p.log.Info().
		Int("archived", count).
		Time("cutoff", cutoff).
		Msg("Archival sweep completed")

	return count, nil
}
