package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/sports-auction-bot/internal/clock"
	"github.com/jensholdgaard/sports-auction-bot/internal/config"
	"github.com/jensholdgaard/sports-auction-bot/internal/event"
	"github.com/jensholdgaard/sports-auction-bot/internal/ledger"
	"github.com/jensholdgaard/sports-auction-bot/internal/store"
)

// Manager errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionLive     = errors.New("session is already running")
	ErrRosterTooSmall  = errors.New("session needs at least one player and two teams")
)

// Manager coordinates session lifecycle, persistence and concurrency.
// It owns the map of live sessions and is the only writer to the
// repositories and the event store.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg     config.AuctionConfig
	events  event.Store
	players store.PlayerRepository
	teams   store.TeamRepository
	sales   store.SaleRepository
	logger  *slog.Logger
	tracer  trace.Tracer
	tp      trace.TracerProvider
	clock   clock.Clock
	metrics *metrics
}

// NewManager creates a session Manager over the given repositories.
func NewManager(cfg config.AuctionConfig, repos *store.Repositories, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		events:   repos.Events,
		players:  repos.Players,
		teams:    repos.Teams,
		sales:    repos.Sales,
		logger:   logger,
		tracer:   tp.Tracer("github.com/jensholdgaard/sports-auction-bot/internal/session"),
		tp:       tp,
		clock:    clk,
		metrics:  newMetrics(),
	}
}

// NewSessionID mints an identifier for a session being set up. Players
// and teams register against this id before the session starts.
func (m *Manager) NewSessionID() string {
	return fmt.Sprintf("session-%d", m.clock.Now().UnixNano())
}

// RegisterPlayer adds a player to a session's roster. Registration is
// only allowed before the session starts; the role must exist in the
// configured taxonomy and the base price must be positive.
func (m *Manager) RegisterPlayer(ctx context.Context, p *store.Player) error {
	ctx, span := m.tracer.Start(ctx, "Manager.RegisterPlayer",
		trace.WithAttributes(
			attribute.String("session.id", p.SessionID),
			attribute.String("player.name", p.Name),
		),
	)
	defer span.End()

	if m.isLive(p.SessionID) {
		return ErrSessionLive
	}
	if !m.cfg.HasRole(p.RoleID) {
		return fmt.Errorf("unknown role %q", p.RoleID)
	}
	if p.BasePrice <= 0 {
		return fmt.Errorf("base price must be positive, got %d", p.BasePrice)
	}

	p.Status = store.StatusPending
	if err := m.players.Create(ctx, p); err != nil {
		return fmt.Errorf("creating player: %w", err)
	}

	m.logger.InfoContext(ctx, "player registered",
		slog.String("session_id", p.SessionID),
		slog.String("player_id", p.ID),
		slog.String("role", p.RoleID),
	)
	return nil
}

// RegisterTeam adds a team to a session. A zero budget takes the
// configured session budget; the remaining budget always starts full.
func (m *Manager) RegisterTeam(ctx context.Context, t *store.Team) error {
	ctx, span := m.tracer.Start(ctx, "Manager.RegisterTeam",
		trace.WithAttributes(
			attribute.String("session.id", t.SessionID),
			attribute.String("team.name", t.Name),
		),
	)
	defer span.End()

	if m.isLive(t.SessionID) {
		return ErrSessionLive
	}
	if t.Budget == 0 {
		t.Budget = m.cfg.TotalBudget
	}
	if t.Budget <= 0 {
		return fmt.Errorf("team budget must be positive, got %d", t.Budget)
	}
	t.RemainingBudget = t.Budget

	if err := m.teams.Create(ctx, t); err != nil {
		return fmt.Errorf("creating team: %w", err)
	}

	m.logger.InfoContext(ctx, "team registered",
		slog.String("session_id", t.SessionID),
		slog.String("team_id", t.ID),
	)
	return nil
}

// StartSession loads the registered roster and brings a session live.
func (m *Manager) StartSession(ctx context.Context, sessionID string) (*Session, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.StartSession",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	if m.isLive(sessionID) {
		return nil, ErrSessionLive
	}

	players, teams, err := m.loadRoster(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(players) == 0 || len(teams) < 2 {
		return nil, ErrRosterTooSmall
	}

	s, err := New(sessionID, m.cfg, players, teams, m.tp, m.clock)
	if err != nil {
		return nil, err
	}

	if err := m.events.Append(ctx, s.PendingEvents()...); err != nil {
		return nil, fmt.Errorf("persisting session started event: %w", err)
	}

	m.mu.Lock()
	m.sessions[sessionID] = s
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "session started",
		slog.String("session_id", sessionID),
		slog.Int("players", len(players)),
		slog.Int("teams", len(teams)),
	)
	return s, nil
}

// Get returns a live session by id.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return s, nil
}

// NextPlayer puts the next eligible player up for bidding. When the
// queue is exhausted the session ends and is retired from the live map.
func (m *Manager) NextPlayer(ctx context.Context, sessionID string) (*store.Player, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.NextPlayer",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	s, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}

	p, err := s.NextPlayer(ctx)
	if err != nil {
		if errors.Is(err, ErrQueueEmpty) {
			m.retire(ctx, s)
		}
		return nil, err
	}

	m.appendEvents(ctx, s)
	return p, nil
}

// PlaceBid places a bid from a team on the session's open lot.
func (m *Manager) PlaceBid(ctx context.Context, sessionID, teamID string, amount int64) error {
	ctx, span := m.tracer.Start(ctx, "Manager.PlaceBid",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("team.id", teamID),
			attribute.Int64("bid.amount", amount),
		),
	)
	defer span.End()

	s, err := m.Get(sessionID)
	if err != nil {
		return err
	}

	if err := s.PlaceBid(ctx, teamID, amount); err != nil {
		m.metrics.bidsRejected.Add(ctx, 1, metricReason(err))
		return err
	}

	m.metrics.bidsPlaced.Add(ctx, 1)
	m.appendEvents(ctx, s)
	return nil
}

// Sell finalizes the open lot to the standing high bidder.
func (m *Manager) Sell(ctx context.Context, sessionID string) (*Outcome, error) {
	return m.finalize(ctx, sessionID, true)
}

// Skip finalizes the open lot as unsold before the countdown runs out.
func (m *Manager) Skip(ctx context.Context, sessionID string) (*Outcome, error) {
	return m.finalize(ctx, sessionID, false)
}

func (m *Manager) finalize(ctx context.Context, sessionID string, sold bool) (*Outcome, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Finalize",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Bool("lot.sold", sold),
		),
	)
	defer span.End()

	s, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}

	out, err := s.Finalize(ctx, sold)
	if err != nil {
		return nil, err
	}
	if err := m.persistOutcome(ctx, s, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Tick advances every live session's countdown by delta seconds and
// persists any auto-finalized lots. Called from the leader's ticker.
func (m *Manager) Tick(ctx context.Context, delta int) {
	m.mu.RLock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.RUnlock()

	for _, s := range live {
		out, err := s.Tick(ctx, delta)
		if err != nil {
			m.logger.ErrorContext(ctx, "tick finalization failed",
				slog.String("session_id", s.ID()),
				slog.Any("error", err),
			)
			continue
		}
		if out == nil {
			continue
		}
		if err := m.persistOutcome(ctx, s, out); err != nil {
			m.logger.ErrorContext(ctx, "persisting tick outcome failed",
				slog.String("session_id", s.ID()),
				slog.Any("error", err),
			)
		}
	}
}

// EndSession closes a live session and retires it from the map.
// Committed sales stay committed; a lot open mid-bidding is abandoned.
func (m *Manager) EndSession(ctx context.Context, sessionID, reason string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.EndSession",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	s, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	if err := s.End(ctx, reason); err != nil {
		return err
	}
	m.retire(ctx, s)

	m.logger.InfoContext(ctx, "session ended",
		slog.String("session_id", sessionID),
		slog.String("reason", reason),
	)
	return nil
}

// Snapshot returns a point-in-time view of a live session.
func (m *Manager) Snapshot(sessionID string) (*Snapshot, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.Snapshot(), nil
}

// ExportHistory renders a session's sale history as JSON. It serves
// both live and finished sessions: once a session is retired the
// history comes from the settlement table.
func (m *Manager) ExportHistory(ctx context.Context, sessionID string) ([]byte, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.ExportHistory",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	if s, err := m.Get(sessionID); err == nil {
		return ledger.Export(s.History())
	}

	sales, err := m.sales.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading sale history: %w", err)
	}
	return ledger.Export(sales)
}

// RecoverOpenSessions replays session event streams and brings every
// session that started but never ended back into the live map, with
// budgets reconciled from the settlement table. Used on leader startup
// to restore state after a failover.
func (m *Manager) RecoverOpenSessions(ctx context.Context) (int, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.RecoverOpenSessions")
	defer span.End()

	started, err := m.events.LoadByType(ctx, event.SessionStarted)
	if err != nil {
		return 0, fmt.Errorf("loading session started events: %w", err)
	}

	seen := make(map[string]struct{}, len(started))
	var ids []string
	for _, e := range started {
		if _, ok := seen[e.AggregateID]; !ok {
			seen[e.AggregateID] = struct{}{}
			ids = append(ids, e.AggregateID)
		}
	}

	recovered := 0
	for _, id := range ids {
		events, loadErr := m.events.Load(ctx, id)
		if loadErr != nil {
			m.logger.WarnContext(ctx, "failed to load events during recovery",
				slog.String("session_id", id),
				slog.Any("error", loadErr),
			)
			continue
		}
		sum, sumErr := Summarize(events)
		if sumErr != nil {
			m.logger.WarnContext(ctx, "failed to summarize events during recovery",
				slog.String("session_id", id),
				slog.Any("error", sumErr),
			)
			continue
		}
		if sum.Ended {
			continue
		}

		players, teams, rosterErr := m.loadRoster(ctx, id)
		if rosterErr != nil {
			m.logger.WarnContext(ctx, "failed to load roster during recovery",
				slog.String("session_id", id),
				slog.Any("error", rosterErr),
			)
			continue
		}
		sales, salesErr := m.sales.ListBySession(ctx, id)
		if salesErr != nil {
			m.logger.WarnContext(ctx, "failed to load sales during recovery",
				slog.String("session_id", id),
				slog.Any("error", salesErr),
			)
			continue
		}

		s, resumeErr := Resume(id, m.cfg, players, teams, sales, sum.Round, sum.LastVersion, m.tp, m.clock)
		if resumeErr != nil {
			m.logger.WarnContext(ctx, "failed to resume session during recovery",
				slog.String("session_id", id),
				slog.Any("error", resumeErr),
			)
			continue
		}

		m.mu.Lock()
		m.sessions[id] = s
		m.mu.Unlock()
		recovered++

		m.logger.InfoContext(ctx, "recovered open session",
			slog.String("session_id", id),
			slog.Int("round", sum.Round),
			slog.Int("sales", len(sales)),
		)
	}

	m.logger.InfoContext(ctx, "session recovery complete",
		slog.Int("total_started", len(ids)),
		slog.Int("recovered_open", recovered),
	)
	return recovered, nil
}

// persistOutcome writes a finalized lot to the repositories and the
// event store. The sale row is the canonical record, so its insert must
// succeed; the derived status and budget writes are logged on failure
// and caught up by the next reconcile.
func (m *Manager) persistOutcome(ctx context.Context, s *Session, out *Outcome) error {
	if out.Sold {
		if err := m.sales.Create(ctx, out.Sale); err != nil {
			return fmt.Errorf("persisting sale: %w", err)
		}
		if err := m.players.MarkSold(ctx, out.Player.ID, out.Sale.TeamID, out.Sale.Amount); err != nil {
			m.logger.ErrorContext(ctx, "failed to mark player sold", slog.Any("error", err))
		}
		if err := m.teams.DeductBudget(ctx, out.Sale.TeamID, out.Sale.Amount); err != nil {
			m.logger.ErrorContext(ctx, "failed to deduct team budget", slog.Any("error", err))
		}
		m.metrics.lotsSold.Add(ctx, 1)
		m.metrics.saleAmount.Record(ctx, out.Sale.Amount)
	} else {
		if err := m.players.MarkUnsold(ctx, out.Player.ID); err != nil {
			m.logger.ErrorContext(ctx, "failed to mark player unsold", slog.Any("error", err))
		}
		m.metrics.lotsUnsold.Add(ctx, 1)
	}

	m.appendEvents(ctx, s)
	return nil
}

func (m *Manager) appendEvents(ctx context.Context, s *Session) {
	if err := m.events.Append(ctx, s.PendingEvents()...); err != nil {
		m.logger.ErrorContext(ctx, "failed to persist session events",
			slog.String("session_id", s.ID()),
			slog.Any("error", err),
		)
	}
}

func (m *Manager) retire(ctx context.Context, s *Session) {
	m.appendEvents(ctx, s)
	m.mu.Lock()
	delete(m.sessions, s.ID())
	m.mu.Unlock()
}

func (m *Manager) loadRoster(ctx context.Context, sessionID string) ([]store.Player, []store.Team, error) {
	players, err := m.players.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading players: %w", err)
	}
	teams, err := m.teams.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading teams: %w", err)
	}
	return players, teams, nil
}

func (m *Manager) isLive(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[sessionID]
	return ok
}
