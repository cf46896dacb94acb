package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/sports-auction-bot/internal/clock"
	"github.com/jensholdgaard/sports-auction-bot/internal/store"
)

// PlayerRepo implements store.PlayerRepository with sqlx.
type PlayerRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewPlayerRepo returns a new PlayerRepo.
func NewPlayerRepo(db *sqlx.DB, clk clock.Clock) *PlayerRepo {
	return &PlayerRepo{db: db, clock: clk}
}

func (r *PlayerRepo) Create(ctx context.Context, p *store.Player) error {
	query := `INSERT INTO players
	           (session_id, name, role_id, base_price, is_overseas, status,
	            age, nationality, bio, stats, image_url, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	           RETURNING id`
	now := r.clock.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	return r.db.QueryRowContext(ctx, query,
		p.SessionID, p.Name, p.RoleID, p.BasePrice, p.IsOverseas, p.Status,
		p.Age, p.Nationality, p.Bio, p.Stats, p.ImageURL, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
}

func (r *PlayerRepo) GetByID(ctx context.Context, id string) (*store.Player, error) {
	var p store.Player
	err := r.db.GetContext(ctx, &p, `SELECT * FROM players WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("getting player: %w", err)
	}
	return &p, nil
}

func (r *PlayerRepo) ListBySession(ctx context.Context, sessionID string) ([]store.Player, error) {
	var players []store.Player
	err := r.db.SelectContext(ctx, &players,
		`SELECT * FROM players WHERE session_id = $1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	return players, nil
}

// MarkSold records the terminal SOLD state. The status guard makes the
// write idempotent-safe: a player already sold is never resold.
func (r *PlayerRepo) MarkSold(ctx context.Context, id, teamID string, price int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE players SET status = 'SOLD', team_id = $1, sold_price = $2, updated_at = $3
		 WHERE id = $4 AND status <> 'SOLD'`,
		teamID, price, r.clock.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("marking player sold: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("player %s not found or already sold", id)
	}
	return nil
}

func (r *PlayerRepo) MarkUnsold(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE players SET status = 'UNSOLD', updated_at = $1
		 WHERE id = $2 AND status <> 'SOLD'`,
		r.clock.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("marking player unsold: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("player %s not found or already sold", id)
	}
	return nil
}
