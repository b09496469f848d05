package port

import (
	"context"
	"time"

	"github.com/rl1809/marketplace/internal/core/domain"
)

type CacheRepository interface {
	// SaveSession stores an opaque bearer token with a TTL.
	SaveSession(ctx context.Context, token string, s domain.Session, ttl time.Duration) error

	// GetSession resolves a token; nil when unknown or expired.
	GetSession(ctx context.Context, token string) (*domain.Session, error)

	DeleteSession(ctx context.Context, token string) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)
}
