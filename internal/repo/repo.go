package repo

import (
	"context"
	"errors"

	"github.com/civcon/ussd-engine/internal/model"
)

// ErrNotFound is returned by lookups that matched no row.
var ErrNotFound = errors.New("not found")

type UserRepository interface {
	FindByPhone(ctx context.Context, phone string) (*model.User, error)

	// Create inserts a citizen keyed by canonical phone number. A phone
	// that already exists returns the existing row unchanged, so retries
	// after a crash can never duplicate a user.
	Create(ctx context.Context, u model.User) (*model.User, error)

	// UpdateLanguage stores a returning citizen's new preferred language.
	UpdateLanguage(ctx context.Context, phone, language string) error
}

type MessageRepository interface {
	// Create inserts the committed message. The USSD session id is a
	// unique key: a concurrent duplicate commit for the same session
	// returns the already-inserted row instead of a second one.
	Create(ctx context.Context, m model.Message) (*model.Message, error)

	// ListSent returns committed, non-flagged messages, newest first.
	ListSent(ctx context.Context, limit, offset int) ([]model.Message, error)
}

type MPRepository interface {
	ListAll(ctx context.Context) ([]model.MP, error)
}

// OutboxRepository holds SMS messages whose first delivery attempt failed.
type OutboxRepository interface {
	Enqueue(ctx context.Context, phone, content, reason string) error
	ClaimPending(ctx context.Context, limit int) ([]model.OutboxEntry, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
}
