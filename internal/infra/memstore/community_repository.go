package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"savings_circle_bot/internal/domain/community"
)

// CommunityRepository implements community.Repository on a Store.
type CommunityRepository struct {
	s *Store
}

func (s *Store) Communities() *CommunityRepository {
	return &CommunityRepository{s: s}
}

func communityArea(tx *txState) map[uuid.UUID]staged { return tx.communities }

func (r *CommunityRepository) Create(ctx context.Context, c *community.Community) error {
	return r.write(ctx, c, true)
}

func (r *CommunityRepository) Save(ctx context.Context, c *community.Community) error {
	return r.write(ctx, c, false)
}

func (r *CommunityRepository) write(ctx context.Context, c *community.Community, create bool) error {
	expected := c.Version
	if create {
		expected = 0
	}
	c.Version = expected + 1
	data, err := encode(c)
	if err == nil {
		err = put(ctx, r.s, r.s.communities, communityArea, c.ID, expected, create, data)
	}
	if err != nil {
		c.Version = expected
		return fmt.Errorf("saving community %s: %w", c.ID, err)
	}
	return nil
}

func (r *CommunityRepository) GetByID(ctx context.Context, id uuid.UUID) (*community.Community, error) {
	data, ok := get(ctx, r.s, r.s.communities, communityArea, id)
	if !ok {
		return nil, community.ErrCommunityNotFound
	}
	var c community.Community
	if err := decode(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CommunityRepository) ListDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	all, err := r.all()
	if err != nil {
		return nil, err
	}
	var due []uuid.UUID
	for _, c := range all {
		if c.IsDue(now) {
			due = append(due, c.ID)
		}
	}
	return due, nil
}

func (r *CommunityRepository) ListByMember(ctx context.Context, userID string) ([]*community.Community, error) {
	all, err := r.all()
	if err != nil {
		return nil, err
	}
	var out []*community.Community
	for _, c := range all {
		if c.Member(userID) != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

// all decodes every committed community ordered by creation time.
func (r *CommunityRepository) all() ([]*community.Community, error) {
	r.s.mu.Lock()
	snapshots := make([][]byte, 0, len(r.s.communities))
	for _, rec := range r.s.communities {
		snapshots = append(snapshots, rec.data)
	}
	r.s.mu.Unlock()

	out := make([]*community.Community, 0, len(snapshots))
	for _, data := range snapshots {
		var c community.Community
		if err := decode(data, &c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
