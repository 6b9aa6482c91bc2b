package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"savings_circle_bot/internal/domain/community"
	"savings_circle_bot/internal/domain/errs"
)

// PostgresCommunityRepository stores each community aggregate as one JSONB document with
// a version column. The scalar columns next to it only serve the due and member queries.
type PostgresCommunityRepository struct {
	db *sql.DB
}

func NewPostgresCommunityRepository(db *sql.DB) *PostgresCommunityRepository {
	return &PostgresCommunityRepository{db: db}
}

func (r *PostgresCommunityRepository) Create(ctx context.Context, c *community.Community) error {
	c.Version = 1
	data, err := json.Marshal(c)
	if err != nil {
		c.Version = 0
		return fmt.Errorf("error encoding community: %w", err)
	}

	query := `INSERT INTO communities (id, name, admin_id, version, next_payout, has_open_mid_cycle, awaiting_next_cycle, data, created_at, updated_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = conn(ctx, r.db).ExecContext(ctx, query,
		c.ID, c.Name, c.AdminID, c.Version, nullTime(c.NextPayout), c.HasOpenMidCycle(), c.AwaitingNextCycle(), data, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		c.Version = 0
		if isUniqueViolation(err) {
			return fmt.Errorf("community %s already exists: %w", c.ID, errs.ErrVersionConflict)
		}
		return fmt.Errorf("error creating community: %w", classify(err))
	}
	if err := r.syncMembers(ctx, c); err != nil {
		c.Version = 0
		return err
	}
	return nil
}

func (r *PostgresCommunityRepository) Save(ctx context.Context, c *community.Community) error {
	expected := c.Version
	c.Version = expected + 1
	data, err := json.Marshal(c)
	if err != nil {
		c.Version = expected
		return fmt.Errorf("error encoding community: %w", err)
	}

	query := `UPDATE communities
               SET name = $1, version = $2, next_payout = $3, has_open_mid_cycle = $4, awaiting_next_cycle = $5, data = $6, updated_at = $7
               WHERE id = $8 AND version = $9`
	res, err := conn(ctx, r.db).ExecContext(ctx, query,
		c.Name, c.Version, nullTime(c.NextPayout), c.HasOpenMidCycle(), c.AwaitingNextCycle(), data, c.UpdatedAt, c.ID, expected)
	if err != nil {
		c.Version = expected
		return fmt.Errorf("error saving community %s: %w", c.ID, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		c.Version = expected
		return fmt.Errorf("error saving community %s: %w", c.ID, err)
	}
	if n == 0 {
		c.Version = expected
		return fmt.Errorf("community %s at version %d: %w", c.ID, expected, errs.ErrVersionConflict)
	}
	if err := r.syncMembers(ctx, c); err != nil {
		c.Version = expected
		return err
	}
	return nil
}

// syncMembers records membership for ListByMember. Members are never removed.
func (r *PostgresCommunityRepository) syncMembers(ctx context.Context, c *community.Community) error {
	ids := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.UserID)
	}
	query := `INSERT INTO community_members (community_id, user_id)
               SELECT $1, unnest($2::text[])
               ON CONFLICT DO NOTHING`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, c.ID, pq.Array(ids)); err != nil {
		return fmt.Errorf("error saving members of community %s: %w", c.ID, classify(err))
	}
	return nil
}

func (r *PostgresCommunityRepository) GetByID(ctx context.Context, id uuid.UUID) (*community.Community, error) {
	query := `SELECT data, version FROM communities WHERE id = $1`
	var (
		data    []byte
		version int64
	)
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&data, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, community.ErrCommunityNotFound
		}
		return nil, fmt.Errorf("error getting community by ID: %w", err)
	}
	return decodeCommunity(data, version)
}

func (r *PostgresCommunityRepository) ListDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := `SELECT id FROM communities
               WHERE awaiting_next_cycle OR (has_open_mid_cycle AND next_payout <= $1)
               ORDER BY next_payout NULLS FIRST, id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("error listing due communities: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning due community: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due communities: %w", err)
	}
	return ids, nil
}

func (r *PostgresCommunityRepository) ListByMember(ctx context.Context, userID string) ([]*community.Community, error) {
	query := `SELECT c.data, c.version FROM communities c
               JOIN community_members m ON m.community_id = c.id
               WHERE m.user_id = $1
               ORDER BY c.created_at`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing communities by member: %w", err)
	}
	defer rows.Close()

	communities := make([]*community.Community, 0)
	for rows.Next() {
		var (
			data    []byte
			version int64
		)
		if err := rows.Scan(&data, &version); err != nil {
			return nil, fmt.Errorf("error scanning community: %w", err)
		}
		c, err := decodeCommunity(data, version)
		if err != nil {
			return nil, err
		}
		communities = append(communities, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating communities: %w", err)
	}
	return communities, nil
}

func decodeCommunity(data []byte, version int64) (*community.Community, error) {
	c := &community.Community{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("error decoding community: %w", err)
	}
	c.Version = version
	return c, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
