package event

import (
	"encoding/json"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	SessionStarted Type = "session.started"
	SessionEnded   Type = "session.ended"

	LotOpened     Type = "lot.opened"
	BidPlaced     Type = "lot.bid_placed"
	LotSold       Type = "lot.sold"
	LotUnsold     Type = "lot.unsold"
	RoundAdvanced Type = "session.round_advanced"
)

// Event represents a single domain event. The aggregate is one auction
// session; events are versioned per session and never rewritten.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int             `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// SessionStartedData is the payload for SessionStarted events.
type SessionStartedData struct {
	Sport            string `json:"sport"`
	TotalBudget      int64  `json:"total_budget"`
	BidIncrement     int64  `json:"bid_increment"`
	CountdownSeconds int    `json:"countdown_seconds"`
	PlayerCount      int    `json:"player_count"`
	TeamCount        int    `json:"team_count"`
}

// SessionEndedData is the payload for SessionEnded events.
type SessionEndedData struct {
	Reason string `json:"reason"`
}

// LotOpenedData is the payload for LotOpened events.
type LotOpenedData struct {
	PlayerID         string `json:"player_id"`
	Round            int    `json:"round"`
	CountdownSeconds int    `json:"countdown_seconds"`
}

// BidPlacedData is the payload for BidPlaced events.
type BidPlacedData struct {
	PlayerID string `json:"player_id"`
	TeamID   string `json:"team_id"`
	Amount   int64  `json:"amount"`
}

// LotSoldData is the payload for LotSold events.
type LotSoldData struct {
	SaleID   string `json:"sale_id"`
	PlayerID string `json:"player_id"`
	TeamID   string `json:"team_id"`
	Amount   int64  `json:"amount"`
}

// LotUnsoldData is the payload for LotUnsold events.
type LotUnsoldData struct {
	PlayerID string `json:"player_id"`
	Round    int    `json:"round"`
}

// RoundAdvancedData is the payload for RoundAdvanced events.
type RoundAdvancedData struct {
	Round int `json:"round"`
}
