// Persistence backends for chat sessions and messages. The sqlite backend
// is the preferred one; the file store covers environments where sqlite
// cannot open its database file.
package store

import (
	"context"
	"errors"
	"time"

	"gemchat/gemchat/sources/store/models"
)

var (
	// ErrDuplicateSession is returned when creating a session whose id
	// already exists.
	ErrDuplicateSession = errors.New("session id already exists")
	// ErrSessionNotFound is returned when an operation references a
	// session that does not exist.
	ErrSessionNotFound = errors.New("session not found")
)

// Backend is the contract every persistence backend implements. Both
// implementations must be externally indistinguishable; callers pick one
// at process start and never switch afterwards.
//
// Mutations that touch a session and its messages (append, delete) are
// atomic: a reader never observes a message without the parent session's
// UpdatedAt reflecting it, nor a half-deleted session.
type Backend interface {
	// CreateSession persists a new session. ErrDuplicateSession when the
	// id is already taken.
	CreateSession(ctx context.Context, sess *models.Session) error

	// GetSession returns ErrSessionNotFound for unknown ids.
	GetSession(ctx context.Context, id string) (*models.Session, error)

	// ListSessions returns all sessions ordered by UpdatedAt descending,
	// most recently active first.
	ListSessions(ctx context.Context) ([]*models.Session, error)

	// ListMessages returns the session's messages in canonical order,
	// (CreatedAt, ID) ascending. Unknown session yields an empty slice.
	ListMessages(ctx context.Context, sessionID string) ([]*models.Message, error)

	// AppendMessage inserts the message and bumps the parent session's
	// UpdatedAt as one atomic unit. ErrSessionNotFound when the session
	// does not exist.
	AppendMessage(ctx context.Context, msg *models.Message) error

	// SetTitle updates the session title and UpdatedAt. A missing
	// session is a no-op: title generation may race with deletion.
	SetTitle(ctx context.Context, id, title string, at time.Time) error

	// Touch advances UpdatedAt without a content change. No-op for
	// missing sessions.
	Touch(ctx context.Context, id string, at time.Time) error

	// DeleteSession removes the session and all its messages atomically.
	// Safe to call on a non-existent id.
	DeleteSession(ctx context.Context, id string) error

	// DeleteAllSessions clears the entire store.
	DeleteAllSessions(ctx context.Context) error

	// DeleteSessionsWithoutTitle removes every session whose title is
	// empty, except excludeID (the session currently open may still be
	// waiting for its generated title).
	DeleteSessionsWithoutTitle(ctx context.Context, excludeID string) error

	Close() error
}
