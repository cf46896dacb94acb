package entstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jensholdgaard/sports-auction-bot/internal/clock"
	"github.com/jensholdgaard/sports-auction-bot/internal/store"
)

const teamColumns = `id, session_id, name, budget, remaining_budget, owner, home_city,
	 foundation_year, logo_url, created_at, updated_at`

// TeamRepo implements store.TeamRepository using database/sql.
type TeamRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewTeamRepo returns a new TeamRepo.
func NewTeamRepo(db *sql.DB, clk clock.Clock) *TeamRepo {
	return &TeamRepo{db: db, clock: clk}
}

func (r *TeamRepo) Create(ctx context.Context, t *store.Team) error {
	now := r.clock.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	return r.db.QueryRowContext(ctx,
		`INSERT INTO teams
		 (session_id, name, budget, remaining_budget, owner, home_city,
		  foundation_year, logo_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		t.SessionID, t.Name, t.Budget, t.RemainingBudget, t.Owner, t.HomeCity,
		t.FoundationYear, t.LogoURL, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
}

func (r *TeamRepo) GetByID(ctx context.Context, id string) (*store.Team, error) {
	t := &store.Team{}
	err := scanTeam(r.db.QueryRowContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE id = $1`, id), t)
	if err != nil {
		return nil, fmt.Errorf("getting team: %w", err)
	}
	return t, nil
}

func (r *TeamRepo) ListBySession(ctx context.Context, sessionID string) ([]store.Team, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE session_id = $1 ORDER BY created_at ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	defer rows.Close()

	var teams []store.Team
	for rows.Next() {
		var t store.Team
		if err := scanTeam(rows, &t); err != nil {
			return nil, fmt.Errorf("scanning team row: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

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

func scanTeam(row rowScanner, t *store.Team) error {
	return row.Scan(
		&t.ID, &t.SessionID, &t.Name, &t.Budget, &t.RemainingBudget, &t.Owner,
		&t.HomeCity, &t.FoundationYear, &t.LogoURL, &t.CreatedAt, &t.UpdatedAt,
	)
}
