package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/sports-auction-bot/internal/clock"
	"github.com/jensholdgaard/sports-auction-bot/internal/store"
)

// TeamRepo implements store.TeamRepository with sqlx.
type TeamRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewTeamRepo returns a new TeamRepo.
func NewTeamRepo(db *sqlx.DB, clk clock.Clock) *TeamRepo {
	return &TeamRepo{db: db, clock: clk}
}

func (r *TeamRepo) Create(ctx context.Context, t *store.Team) error {
	query := `INSERT INTO teams
	           (session_id, name, budget, remaining_budget, owner, home_city,
	            foundation_year, logo_url, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	           RETURNING id`
	now := r.clock.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	return r.db.QueryRowContext(ctx, query,
		t.SessionID, t.Name, t.Budget, t.RemainingBudget, t.Owner, t.HomeCity,
		t.FoundationYear, t.LogoURL, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
}

func (r *TeamRepo) GetByID(ctx context.Context, id string) (*store.Team, error) {
	var t store.Team
	err := r.db.GetContext(ctx, &t, `SELECT * FROM teams WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("getting team: %w", err)
	}
	return &t, nil
}

func (r *TeamRepo) ListBySession(ctx context.Context, sessionID string) ([]store.Team, error) {
	var teams []store.Team
	err := r.db.SelectContext(ctx, &teams,
		`SELECT * FROM teams WHERE session_id = $1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	return teams, nil
}

// DeductBudget subtracts a finalized sale amount. The balance guard in
// the WHERE clause keeps remaining_budget from going negative even if a
// stale deduction is retried.
func (r *TeamRepo) DeductBudget(ctx context.Context, id string, amount int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE teams SET remaining_budget = remaining_budget - $1, updated_at = $2
		 WHERE id = $3 AND remaining_budget >= $1`,
		amount, r.clock.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("deducting budget: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("team %s not found or budget insufficient", id)
	}
	return nil
}
