package store

import (
	"context"
	"errors"
	"time"

	"github.com/SilentStoat/StoatBot/internal/domain"
)

// ErrNotFound is returned by Get when no profile exists for the key.
var ErrNotFound = errors.New("store: not found")

// ProfileStore reads and writes user time profiles.
type ProfileStore interface {
	// Get returns ErrNotFound when the profile does not exist.
	Get(ctx context.Context, key domain.ProfileKey) (*domain.Profile, error)
	// Upsert creates the profile on first write and applies patch in place.
	Upsert(ctx context.Context, key domain.ProfileKey, patch domain.ProfilePatch) error
	// ListScope returns every profile in a scope ordered by user id.
	ListScope(ctx context.Context, scopeID int64) ([]domain.Profile, error)
}

// DigestStore schedules daily roster posts per scope.
type DigestStore interface {
	SetDigest(ctx context.Context, scopeID int64, atMinutes int, next time.Time) error
	DisableDigest(ctx context.Context, scopeID int64) error
	ListDueDigests(ctx context.Context, now time.Time, limit int) ([]domain.Digest, error)
	MarkDigestSent(ctx context.Context, scopeID int64, next, sent time.Time) error
}

// Repo is the full storage backend.
type Repo interface {
	ProfileStore
	DigestStore
	Ping(ctx context.Context) error
	Close() error
}
