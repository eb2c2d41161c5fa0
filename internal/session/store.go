package session

import (
	"context"
	"errors"

	"github.com/civcon/ussd-engine/internal/model"
)

var (
	// ErrNotFound covers both "never existed" and "expired"; the engine
	// cannot tell them apart and restarts the conversation either way.
	ErrNotFound = errors.New("session not found")

	// ErrCorrupted means the stored record could not be decoded or fails
	// validation; the engine restarts the conversation at consent.
	ErrCorrupted = errors.New("session record corrupted")
)

// Store persists one Session record per gateway session id. Save refreshes
// the TTL every time, so abandoned conversations expire a fixed window after
// the last keystroke.
type Store interface {
	Load(ctx context.Context, sessionID string) (*model.Session, error)
	Save(ctx context.Context, s *model.Session) error
	Delete(ctx context.Context, sessionID string) error
}
