// Package session implements the live auction state machine: one player
// on the block at a time, bids validated against team budgets, a
// countdown that closes each lot, and an append-only settlement trail.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/sports-auction-bot/internal/clock"
	"github.com/jensholdgaard/sports-auction-bot/internal/config"
	"github.com/jensholdgaard/sports-auction-bot/internal/event"
	"github.com/jensholdgaard/sports-auction-bot/internal/ledger"
	"github.com/jensholdgaard/sports-auction-bot/internal/queue"
	"github.com/jensholdgaard/sports-auction-bot/internal/store"
)

// Errors returned by session operations. All are recoverable rejections:
// the session state is unchanged when they occur.
var (
	ErrQueueEmpty    = queue.ErrQueueEmpty
	ErrNoBidder      = errors.New("no standing bidder to sell to")
	ErrNoOpenLot     = errors.New("no player is currently up for bidding")
	ErrLotInProgress = errors.New("a player is already up for bidding")
	ErrSessionEnded  = errors.New("session has ended")
	ErrUnknownTeam   = errors.New("unknown team")
)

// Phase is the engine state. Illegal operations for a phase are rejected
// without mutating anything.
type Phase string

const (
	PhaseIdle      Phase = "IDLE"
	PhaseBidding   Phase = "BIDDING"
	PhaseResolving Phase = "RESOLVING"
)

// Outcome describes a finalized lot: the post-transition player, and the
// sale plus buying team when the player sold.
type Outcome struct {
	Sold   bool
	Sale   *store.Sale
	Player store.Player
	Team   *store.Team
}

// Session is the aggregate root for one live auction. All mutating
// operations serialize on an internal mutex so a single logical writer
// drives the state machine even when calls arrive from multiple
// goroutines.
type Session struct {
	mu sync.Mutex

	id      string
	cfg     config.AuctionConfig
	players []store.Player
	teams   []store.Team
	history []store.Sale
	seq     *queue.Sequencer

	phase      Phase
	currentIdx int // index into players, -1 when idle
	currentBid int64
	bidderID   string
	timer      int
	ended      bool

	events  []event.Event
	version int

	tracer trace.Tracer
	clock  clock.Clock
}

// New creates a session over the given roster and records a started
// event. Roster problems that registration should have caught (unknown
// roles, non-positive budgets) are rejected here as a last line of
// defense.
func New(id string, cfg config.AuctionConfig, players []store.Player, teams []store.Team, tp trace.TracerProvider, clk clock.Clock) (*Session, error) {
	s, err := resume(id, cfg, players, teams, 1, tp, clk)
	if err != nil {
		return nil, err
	}

	data, _ := json.Marshal(event.SessionStartedData{
		Sport:            cfg.Sport,
		TotalBudget:      cfg.TotalBudget,
		BidIncrement:     cfg.BidIncrement,
		CountdownSeconds: cfg.CountdownSeconds,
		PlayerCount:      len(players),
		TeamCount:        len(teams),
	})
	s.recordEvent(event.SessionStarted, data)
	return s, nil
}

// Resume rebuilds a session at a given round without recording a started
// event, used when recovering after a restart or leader failover. Team
// budgets are reconciled from the sale history rather than trusted.
// Event numbering continues from version so appends extend the existing
// stream instead of colliding with it.
func Resume(id string, cfg config.AuctionConfig, players []store.Player, teams []store.Team, sales []store.Sale, round, version int, tp trace.TracerProvider, clk clock.Clock) (*Session, error) {
	ledger.Reconcile(teams, sales)
	s, err := resume(id, cfg, players, teams, round, tp, clk)
	if err != nil {
		return nil, err
	}
	s.history = append(s.history, sales...)
	s.version = version
	return s, nil
}

func resume(id string, cfg config.AuctionConfig, players []store.Player, teams []store.Team, round int, tp trace.TracerProvider, clk clock.Clock) (*Session, error) {
	for _, p := range players {
		if !cfg.HasRole(p.RoleID) {
			return nil, fmt.Errorf("player %s references unknown role %q", p.ID, p.RoleID)
		}
	}
	for _, t := range teams {
		if t.Budget <= 0 {
			return nil, fmt.Errorf("team %s has non-positive budget %d", t.ID, t.Budget)
		}
	}

	s := &Session{
		id:         id,
		cfg:        cfg,
		players:    append([]store.Player(nil), players...),
		teams:      append([]store.Team(nil), teams...),
		phase:      PhaseIdle,
		currentIdx: -1,
		tracer:     tp.Tracer("github.com/jensholdgaard/sports-auction-bot/internal/session"),
		clock:      clk,
	}
	s.seq = queue.Resume(s.players, round)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// NextPlayer pulls the next eligible player onto the block and opens the
// bidding window with a fresh countdown. Returns ErrQueueEmpty when no
// players remain; the session is then ended.
func (s *Session) NextPlayer(ctx context.Context) (*store.Player, error) {
	_, span := s.tracer.Start(ctx, "Session.NextPlayer",
		trace.WithAttributes(attribute.String("session.id", s.id)),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return nil, ErrSessionEnded
	}
	if s.phase != PhaseIdle {
		return nil, ErrLotInProgress
	}

	prevRound := s.seq.Round()
	id, err := s.seq.Next(s.players)
	if err != nil {
		if errors.Is(err, queue.ErrQueueEmpty) {
			s.endLocked("queue exhausted")
		}
		return nil, err
	}
	if round := s.seq.Round(); round > prevRound {
		data, _ := json.Marshal(event.RoundAdvancedData{Round: round})
		s.recordEvent(event.RoundAdvanced, data)
	}

	idx := s.indexOfPlayer(id)
	s.currentIdx = idx
	s.currentBid = 0
	s.bidderID = ""
	s.timer = s.cfg.CountdownSeconds
	s.phase = PhaseBidding

	data, _ := json.Marshal(event.LotOpenedData{
		PlayerID:         id,
		Round:            s.seq.Round(),
		CountdownSeconds: s.timer,
	})
	s.recordEvent(event.LotOpened, data)

	p := s.players[idx]
	return &p, nil
}

// PlaceBid validates and applies a bid from a team on the open lot. On
// success the current bid and bidder change together and the countdown
// resets to its full window, so a late bid always leaves competitors
// time to respond. Rejections leave the session untouched.
func (s *Session) PlaceBid(ctx context.Context, teamID string, amount int64) error {
	ctx, span := s.tracer.Start(ctx, "Session.PlaceBid",
		trace.WithAttributes(
			attribute.String("session.id", s.id),
			attribute.String("team.id", teamID),
			attribute.Int64("bid.amount", amount),
		),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return ErrSessionEnded
	}
	if s.phase != PhaseBidding {
		return ErrNoOpenLot
	}

	tIdx := s.indexOfTeam(teamID)
	if tIdx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTeam, teamID)
	}
	player := s.players[s.currentIdx]

	min := ledger.MinimumNextBid(s.currentBid, s.bidderID, player.BasePrice, s.cfg.BidIncrement)
	if amount < min {
		return fmt.Errorf("%w: minimum is %d", ledger.ErrBidBelowMinimum, min)
	}
	if err := ledger.CanBid(s.teams[tIdx], s.bidderID, amount); err != nil {
		return err
	}

	s.currentBid = amount
	s.bidderID = teamID
	s.timer = s.cfg.CountdownSeconds

	data, _ := json.Marshal(event.BidPlacedData{
		PlayerID: player.ID,
		TeamID:   teamID,
		Amount:   amount,
	})
	s.recordEvent(event.BidPlaced, data)

	slog.InfoContext(ctx, "bid placed",
		slog.String("session_id", s.id),
		slog.String("player_id", player.ID),
		slog.String("team_id", teamID),
		slog.Int64("amount", amount),
	)
	return nil
}

// Finalize resolves the open lot. When sold, the sale is appended to the
// history, the player is marked SOLD and the buyer's budget and roster
// are updated in the same step; otherwise the player is marked UNSOLD
// and re-enters the queue for a later round. Either way the session
// returns to idle.
func (s *Session) Finalize(ctx context.Context, sold bool) (*Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "Session.Finalize",
		trace.WithAttributes(
			attribute.String("session.id", s.id),
			attribute.Bool("lot.sold", sold),
		),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalizeLocked(ctx, sold)
}

// Skip marks the open lot unsold immediately, before the countdown runs
// out. The player stays eligible for recycling in later rounds.
func (s *Session) Skip(ctx context.Context) (*Outcome, error) {
	return s.Finalize(ctx, false)
}

// Tick advances the countdown by delta seconds. When the countdown
// reaches zero the lot auto-finalizes: sold to the standing high bidder
// if there is one, unsold otherwise. The returned outcome is nil when
// nothing finalized. The caller drives ticks, so the engine has no
// real-time dependency of its own.
func (s *Session) Tick(ctx context.Context, delta int) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended || s.phase != PhaseBidding || delta <= 0 {
		return nil, nil
	}

	s.timer -= delta
	if s.timer > 0 {
		return nil, nil
	}
	s.timer = 0
	return s.finalizeLocked(ctx, s.bidderID != "")
}

func (s *Session) finalizeLocked(ctx context.Context, sold bool) (*Outcome, error) {
	if s.ended {
		return nil, ErrSessionEnded
	}
	if s.phase != PhaseBidding {
		return nil, ErrNoOpenLot
	}
	if sold && s.bidderID == "" {
		return nil, ErrNoBidder
	}

	s.phase = PhaseResolving
	idx := s.currentIdx
	player := &s.players[idx]
	out := &Outcome{Sold: sold}

	if sold {
		sale := store.Sale{
			ID:        uuid.NewString(),
			SessionID: s.id,
			PlayerID:  player.ID,
			TeamID:    s.bidderID,
			Amount:    s.currentBid,
			Timestamp: s.clock.Now().UTC().UnixMilli(),
		}
		s.history = append(s.history, sale)

		tIdx := s.indexOfTeam(s.bidderID)
		team := &s.teams[tIdx]
		teamID := team.ID
		price := sale.Amount

		player.Status = store.StatusSold
		player.TeamID = &teamID
		player.SoldPrice = &price
		team.RemainingBudget -= price
		team.Players = append(team.Players, player.ID)

		data, _ := json.Marshal(event.LotSoldData{
			SaleID:   sale.ID,
			PlayerID: player.ID,
			TeamID:   team.ID,
			Amount:   price,
		})
		s.recordEvent(event.LotSold, data)

		out.Sale = &sale
		teamCopy := *team
		out.Team = &teamCopy

		slog.InfoContext(ctx, "player sold",
			slog.String("session_id", s.id),
			slog.String("player_id", player.ID),
			slog.String("team_id", team.ID),
			slog.Int64("amount", price),
		)
	} else {
		player.Status = store.StatusUnsold
		data, _ := json.Marshal(event.LotUnsoldData{
			PlayerID: player.ID,
			Round:    s.seq.Round(),
		})
		s.recordEvent(event.LotUnsold, data)

		slog.InfoContext(ctx, "player unsold",
			slog.String("session_id", s.id),
			slog.String("player_id", player.ID),
			slog.Int("round", s.seq.Round()),
		)
	}

	out.Player = *player
	s.currentIdx = -1
	s.currentBid = 0
	s.bidderID = ""
	s.timer = 0
	s.phase = PhaseIdle
	return out, nil
}

// End closes the session. Ending mid-bidding abandons the current lot
// without resolving it; committed sales are never reverted.
func (s *Session) End(ctx context.Context, reason string) error {
	_, span := s.tracer.Start(ctx, "Session.End",
		trace.WithAttributes(attribute.String("session.id", s.id)),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return ErrSessionEnded
	}
	s.currentIdx = -1
	s.currentBid = 0
	s.bidderID = ""
	s.timer = 0
	s.phase = PhaseIdle
	s.endLocked(reason)
	return nil
}

func (s *Session) endLocked(reason string) {
	s.ended = true
	data, _ := json.Marshal(event.SessionEndedData{Reason: reason})
	s.recordEvent(event.SessionEnded, data)
}

// Ended reports whether the session has finished.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// History returns a copy of the settlement log in sale order.
func (s *Session) History() []store.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Sale(nil), s.history...)
}

// PendingEvents returns uncommitted events and clears the buffer.
func (s *Session) PendingEvents() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events
	s.events = nil
	return events
}

func (s *Session) recordEvent(t event.Type, data json.RawMessage) {
	s.version++
	s.events = append(s.events, event.Event{
		AggregateID: s.id,
		Type:        t,
		Data:        data,
		Version:     s.version,
	})
}

func (s *Session) indexOfPlayer(id string) int {
	for i := range s.players {
		if s.players[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) indexOfTeam(id string) int {
	for i := range s.teams {
		if s.teams[i].ID == id {
			return i
		}
	}
	return -1
}
