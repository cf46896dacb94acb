package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/sports-auction-bot/internal/store"
)

// SaleRepo implements store.SaleRepository with sqlx. Sales are
// append-only; the table has no update path.
type SaleRepo struct {
	db *sqlx.DB
}

// NewSaleRepo returns a new SaleRepo.
func NewSaleRepo(db *sqlx.DB) *SaleRepo {
	return &SaleRepo{db: db}
}

func (r *SaleRepo) Create(ctx context.Context, s *store.Sale) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sales (id, session_id, player_id, team_id, amount, bid_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.SessionID, s.PlayerID, s.TeamID, s.Amount, s.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting sale: %w", err)
	}
	return nil
}

func (r *SaleRepo) ListBySession(ctx context.Context, sessionID string) ([]store.Sale, error) {
	var sales []store.Sale
	err := r.db.SelectContext(ctx, &sales,
		`SELECT * FROM sales WHERE session_id = $1 ORDER BY bid_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	return sales, nil
}
