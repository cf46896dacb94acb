package store

import (
	"context"
	"time"
)

// PlayerStatus is a player's auction lifecycle state. PENDING players
// have never been put up; UNSOLD players failed to sell and are retried
// in later rounds; SOLD is terminal.
type PlayerStatus string

const (
	StatusPending PlayerStatus = "PENDING"
	StatusSold    PlayerStatus = "SOLD"
	StatusUnsold  PlayerStatus = "UNSOLD"
)

// Player represents a registered player in one session's roster.
type Player struct {
	ID          string       `db:"id" json:"id"`
	SessionID   string       `db:"session_id" json:"-"`
	Name        string       `db:"name" json:"name"`
	RoleID      string       `db:"role_id" json:"roleId"`
	BasePrice   int64        `db:"base_price" json:"basePrice"`
	IsOverseas  bool         `db:"is_overseas" json:"isOverseas"`
	Status      PlayerStatus `db:"status" json:"status"`
	TeamID      *string      `db:"team_id" json:"teamId,omitempty"`
	SoldPrice   *int64       `db:"sold_price" json:"soldPrice,omitempty"`
	Age         int          `db:"age" json:"age,omitempty"`
	Nationality string       `db:"nationality" json:"nationality,omitempty"`
	Bio         string       `db:"bio" json:"bio,omitempty"`
	Stats       string       `db:"stats" json:"stats,omitempty"`
	ImageURL    string       `db:"image_url" json:"imageUrl,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"-"`
	UpdatedAt   time.Time    `db:"updated_at" json:"-"`
}

// Team represents a franchise bidding in one session.
type Team struct {
	ID              string    `db:"id" json:"id"`
	SessionID       string    `db:"session_id" json:"-"`
	Name            string    `db:"name" json:"name"`
	Budget          int64     `db:"budget" json:"budget"`
	RemainingBudget int64     `db:"remaining_budget" json:"remainingBudget"`
	Owner           string    `db:"owner" json:"owner,omitempty"`
	HomeCity        string    `db:"home_city" json:"homeCity,omitempty"`
	FoundationYear  int       `db:"foundation_year" json:"foundationYear,omitempty"`
	LogoURL         string    `db:"logo_url" json:"logoUrl,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"-"`
	UpdatedAt       time.Time `db:"updated_at" json:"-"`

	// Players is the owned roster, derived from sold players. Not a
	// database column; rebuilt from the sale history on load.
	Players []string `db:"-" json:"players"`
}

// Sale is one settled purchase. Immutable once created; the ordered
// sequence of sales for a session is the bid history, the canonical
// audit trail for spend and ownership.
type Sale struct {
	ID        string `db:"id" json:"id"`
	SessionID string `db:"session_id" json:"-"`
	PlayerID  string `db:"player_id" json:"playerId"`
	TeamID    string `db:"team_id" json:"teamId"`
	Amount    int64  `db:"amount" json:"amount"`
	// Timestamp is epoch milliseconds, matching the history export format.
	Timestamp int64 `db:"bid_at" json:"timestamp"`
}

// PlayerRepository defines player persistence operations.
type PlayerRepository interface {
	Create(ctx context.Context, p *Player) error
	GetByID(ctx context.Context, id string) (*Player, error)
	ListBySession(ctx context.Context, sessionID string) ([]Player, error)
	// MarkSold sets the terminal SOLD state together with the buyer and
	// price. It must refuse to overwrite an existing sale.
	MarkSold(ctx context.Context, id, teamID string, price int64) error
	MarkUnsold(ctx context.Context, id string) error
}

// TeamRepository defines team persistence operations.
type TeamRepository interface {
	Create(ctx context.Context, t *Team) error
	GetByID(ctx context.Context, id string) (*Team, error)
	ListBySession(ctx context.Context, sessionID string) ([]Team, error)
	// DeductBudget subtracts a finalized sale amount. The remaining
	// budget must never go below zero.
	DeductBudget(ctx context.Context, id string, amount int64) error
}

// SaleRepository defines settlement log persistence. Sales are
// append-only; there is no update or delete.
type SaleRepository interface {
	Create(ctx context.Context, s *Sale) error
	ListBySession(ctx context.Context, sessionID string) ([]Sale, error)
}
