package entstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jensholdgaard/sports-auction-bot/internal/store"
)

// SaleRepo implements store.SaleRepository using database/sql.
type SaleRepo struct {
	db *sql.DB
}

// NewSaleRepo returns a new SaleRepo.
func NewSaleRepo(db *sql.DB) *SaleRepo {
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
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, player_id, team_id, amount, bid_at
		 FROM sales WHERE session_id = $1 ORDER BY bid_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	defer rows.Close()

	var sales []store.Sale
	for rows.Next() {
		var s store.Sale
		if err := rows.Scan(&s.ID, &s.SessionID, &s.PlayerID, &s.TeamID, &s.Amount, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning sale row: %w", err)
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}
