package entstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jensholdgaard/sports-auction-bot/internal/clock"
	"github.com/jensholdgaard/sports-auction-bot/internal/store"
)

const playerColumns = `id, session_id, name, role_id, base_price, is_overseas, status,
	 team_id, sold_price, age, nationality, bio, stats, image_url, created_at, updated_at`

// PlayerRepo implements store.PlayerRepository using database/sql.
type PlayerRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewPlayerRepo returns a new PlayerRepo.
func NewPlayerRepo(db *sql.DB, clk clock.Clock) *PlayerRepo {
	return &PlayerRepo{db: db, clock: clk}
}

func (r *PlayerRepo) Create(ctx context.Context, p *store.Player) error {
	now := r.clock.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	return r.db.QueryRowContext(ctx,
		`INSERT INTO players
		 (session_id, name, role_id, base_price, is_overseas, status,
		  age, nationality, bio, stats, image_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id`,
		p.SessionID, p.Name, p.RoleID, p.BasePrice, p.IsOverseas, p.Status,
		p.Age, p.Nationality, p.Bio, p.Stats, p.ImageURL, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
}

func (r *PlayerRepo) GetByID(ctx context.Context, id string) (*store.Player, error) {
	p := &store.Player{}
	err := scanPlayer(r.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE id = $1`, id), p)
	if err != nil {
		return nil, fmt.Errorf("getting player: %w", err)
	}
	return p, nil
}

func (r *PlayerRepo) ListBySession(ctx context.Context, sessionID string) ([]store.Player, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE session_id = $1 ORDER BY created_at ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	defer rows.Close()

	var players []store.Player
	for rows.Next() {
		var p store.Player
		if err := scanPlayer(rows, &p); err != nil {
			return nil, fmt.Errorf("scanning player row: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner, p *store.Player) error {
	return row.Scan(
		&p.ID, &p.SessionID, &p.Name, &p.RoleID, &p.BasePrice, &p.IsOverseas, &p.Status,
		&p.TeamID, &p.SoldPrice, &p.Age, &p.Nationality, &p.Bio, &p.Stats, &p.ImageURL,
		&p.CreatedAt, &p.UpdatedAt,
	)
}
