package repository

import (
	"context"
	"time"

	"github.com/m-mizutani/listener/pkg/model"
)

// Repository defines the persistence surface for conversations, the tag
// vocabulary and tag assignments.
type Repository interface {
	// PutConversation upserts the full transcript for a session. The stored
	// created-at timestamp is set on first save and kept on later saves.
	PutConversation(ctx context.Context, conv *model.Conversation) error

	// GetConversation retrieves a conversation by session ID. Returns
	// model.ErrConversationNotFound if no conversation is stored.
	GetConversation(ctx context.Context, id model.SessionID) (*model.Conversation, error)

	// CountConversations returns the number of distinct stored sessions
	CountConversations(ctx context.Context) (int, error)

	// ListCreatedAt returns creation timestamps of conversations created at
	// or after since. A zero since means no lower bound.
	ListCreatedAt(ctx context.Context, since time.Time) ([]time.Time, error)

	// ListTags returns the live tag vocabulary in registration order
	ListTags(ctx context.Context) ([]string, error)

	// RegisterTag adds a tag to the vocabulary. Registering an existing tag
	// is a no-op.
	RegisterTag(ctx context.Context, name string) error

	// ListUnclassified returns every conversation without a tag assignment
	ListUnclassified(ctx context.Context) ([]*model.Conversation, error)

	// PutAssignment persists a tag assignment in a single transaction using
	// insert-if-absent semantics. It reports whether the assignment was
	// written; false means the session was already classified by a
	// concurrent writer and nothing changed.
	PutAssignment(ctx context.Context, assignment *model.TagAssignment) (bool, error)

	// ListTagged returns classified conversations created at or after since,
	// joined with their active tag flags. A zero since means no lower bound.
	ListTagged(ctx context.Context, since time.Time) ([]*model.TaggedConversation, error)

	// Close closes the underlying database
	Close() error
}
