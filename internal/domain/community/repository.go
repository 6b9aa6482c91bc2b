// internal/domain/community/repository.go
package community

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists Community aggregates.
type Repository interface {
	Create(ctx context.Context, c *Community) error
	GetByID(ctx context.Context, id uuid.UUID) (*Community, error)
	// Save fails with errs.ErrVersionConflict when c.Version is stale and bumps it on success.
	Save(ctx context.Context, c *Community) error
	// ListDue returns ids of communities for which IsDue(now) holds.
	ListDue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ListByMember(ctx context.Context, userID string) ([]*Community, error)
}
