package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jensholdgaard/sports-auction-bot/internal/event"
	"github.com/jensholdgaard/sports-auction-bot/internal/session"
	"github.com/jensholdgaard/sports-auction-bot/internal/store"
)

// --- mock helpers ---

type mockEventStore struct {
	events   []event.Event
	appendFn func(events ...event.Event) error
}

func (m *mockEventStore) Append(_ context.Context, events ...event.Event) error {
	if m.appendFn != nil {
		return m.appendFn(events...)
	}
	m.events = append(m.events, events...)
	return nil
}

func (m *mockEventStore) Load(_ context.Context, aggregateID string) ([]event.Event, error) {
	var result []event.Event
	for _, e := range m.events {
		if e.AggregateID == aggregateID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEventStore) LoadByType(_ context.Context, eventType event.Type) ([]event.Event, error) {
	var result []event.Event
	for _, e := range m.events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result, nil
}

type mockPlayerRepo struct {
	players map[string]*store.Player
	nextID  int
	err     error
}

func newMockPlayerRepo() *mockPlayerRepo {
	return &mockPlayerRepo{players: make(map[string]*store.Player)}
}

func (m *mockPlayerRepo) Create(_ context.Context, p *store.Player) error {
	if m.err != nil {
		return m.err
	}
	if p.ID == "" {
		m.nextID++
		p.ID = fmt.Sprintf("player-%d", m.nextID)
	}
	cp := *p
	m.players[p.ID] = &cp
	return nil
}

func (m *mockPlayerRepo) GetByID(_ context.Context, id string) (*store.Player, error) {
	p, ok := m.players[id]
	if !ok {
		return nil, fmt.Errorf("player %s not found", id)
	}
	return p, nil
}

func (m *mockPlayerRepo) ListBySession(_ context.Context, sessionID string) ([]store.Player, error) {
	if m.err != nil {
		return nil, m.err
	}
	var result []store.Player
	for i := 1; i <= m.nextID; i++ {
		p, ok := m.players[fmt.Sprintf("player-%d", i)]
		if ok && p.SessionID == sessionID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockPlayerRepo) MarkSold(_ context.Context, id, teamID string, price int64) error {
	p, ok := m.players[id]
	if !ok {
		return fmt.Errorf("player %s not found", id)
	}
	if p.Status == store.StatusSold {
		return fmt.Errorf("player %s already sold", id)
	}
	p.Status = store.StatusSold
	p.TeamID = &teamID
	p.SoldPrice = &price
	return nil
}

func (m *mockPlayerRepo) MarkUnsold(_ context.Context, id string) error {
	p, ok := m.players[id]
	if !ok {
		return fmt.Errorf("player %s not found", id)
	}
	p.Status = store.StatusUnsold
	return nil
}

type mockTeamRepo struct {
	teams  map[string]*store.Team
	nextID int
	err    error
}

func newMockTeamRepo() *mockTeamRepo {
	return &mockTeamRepo{teams: make(map[string]*store.Team)}
}

func (m *mockTeamRepo) Create(_ context.Context, t *store.Team) error {
	if m.err != nil {
		return m.err
	}
	if t.ID == "" {
		m.nextID++
		t.ID = fmt.Sprintf("team-%d", m.nextID)
	}
	cp := *t
	m.teams[t.ID] = &cp
	return nil
}

func (m *mockTeamRepo) GetByID(_ context.Context, id string) (*store.Team, error) {
	t, ok := m.teams[id]
	if !ok {
		return nil, fmt.Errorf("team %s not found", id)
	}
	return t, nil
}

func (m *mockTeamRepo) ListBySession(_ context.Context, sessionID string) ([]store.Team, error) {
	var result []store.Team
	for i := 1; i <= m.nextID; i++ {
		t, ok := m.teams[fmt.Sprintf("team-%d", i)]
		if ok && t.SessionID == sessionID {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (m *mockTeamRepo) DeductBudget(_ context.Context, id string, amount int64) error {
	t, ok := m.teams[id]
	if !ok {
		return fmt.Errorf("team %s not found", id)
	}
	if t.RemainingBudget < amount {
		return fmt.Errorf("team %s budget insufficient", id)
	}
	t.RemainingBudget -= amount
	return nil
}

type mockSaleRepo struct {
	sales []store.Sale
	err   error
}

func (m *mockSaleRepo) Create(_ context.Context, s *store.Sale) error {
	if m.err != nil {
		return m.err
	}
	m.sales = append(m.sales, *s)
	return nil
}

func (m *mockSaleRepo) ListBySession(_ context.Context, sessionID string) ([]store.Sale, error) {
	var result []store.Sale
	for _, s := range m.sales {
		if s.SessionID == sessionID {
			result = append(result, s)
		}
	}
	return result, nil
}

type testEnv struct {
	mgr     *session.Manager
	events  *mockEventStore
	players *mockPlayerRepo
	teams   *mockTeamRepo
	sales   *mockSaleRepo
}

func newTestEnv() *testEnv {
	es := &mockEventStore{}
	players := newMockPlayerRepo()
	teams := newMockTeamRepo()
	sales := &mockSaleRepo{}
	repos := &store.Repositories{
		Players: players,
		Teams:   teams,
		Sales:   sales,
		Events:  es,
	}
	mgr := session.NewManager(testConfig(), repos, slog.Default(), noop.NewTracerProvider(), testClk)
	return &testEnv{mgr: mgr, events: es, players: players, teams: teams, sales: sales}
}

func (env *testEnv) seedRoster(t *testing.T, sessionID string) {
	t.Helper()
	ctx := context.Background()
	for _, p := range []*store.Player{
		{SessionID: sessionID, Name: "Alpha", RoleID: "bat", BasePrice: 1_000_000},
		{SessionID: sessionID, Name: "Bravo", RoleID: "bowl", BasePrice: 2_000_000},
	} {
		if err := env.mgr.RegisterPlayer(ctx, p); err != nil {
			t.Fatalf("RegisterPlayer(%s): %v", p.Name, err)
		}
	}
	for _, tm := range []*store.Team{
		{SessionID: sessionID, Name: "Strikers"},
		{SessionID: sessionID, Name: "Royals"},
	} {
		if err := env.mgr.RegisterTeam(ctx, tm); err != nil {
			t.Fatalf("RegisterTeam(%s): %v", tm.Name, err)
		}
	}
}

// --- tests ---

func TestManager_RegisterPlayer_UnknownRole(t *testing.T) {
	env := newTestEnv()
	err := env.mgr.RegisterPlayer(context.Background(), &store.Player{
		SessionID: "s1", Name: "Ghost", RoleID: "gk", BasePrice: 1_000_000,
	})
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestManager_RegisterTeam_DefaultBudget(t *testing.T) {
	env := newTestEnv()
	tm := &store.Team{SessionID: "s1", Name: "Defaulters"}
	if err := env.mgr.RegisterTeam(context.Background(), tm); err != nil {
		t.Fatalf("RegisterTeam() error = %v", err)
	}
	if tm.Budget != testConfig().TotalBudget {
		t.Errorf("budget = %d, want %d", tm.Budget, testConfig().TotalBudget)
	}
	if tm.RemainingBudget != tm.Budget {
		t.Errorf("remaining budget = %d, want %d", tm.RemainingBudget, tm.Budget)
	}
}

func TestManager_StartSession_RosterTooSmall(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// One player, one team is not enough for a competitive auction.
	_ = env.mgr.RegisterPlayer(ctx, &store.Player{SessionID: "s1", Name: "P", RoleID: "bat", BasePrice: 1_000_000})
	_ = env.mgr.RegisterTeam(ctx, &store.Team{SessionID: "s1", Name: "T"})

	if _, err := env.mgr.StartSession(ctx, "s1"); !errors.Is(err, session.ErrRosterTooSmall) {
		t.Fatalf("StartSession() error = %v, want ErrRosterTooSmall", err)
	}
}

func TestManager_StartSession_PersistError(t *testing.T) {
	env := newTestEnv()
	env.seedRoster(t, "s1")
	env.events.appendFn = func(events ...event.Event) error {
		return fmt.Errorf("db write error")
	}

	if _, err := env.mgr.StartSession(context.Background(), "s1"); err == nil {
		t.Fatal("expected error when event store fails")
	}
}

func TestManager_FullSessionFlow(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedRoster(t, "s1")

	if _, err := env.mgr.StartSession(ctx, "s1"); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}

	// Registration is closed once the session is live.
	err := env.mgr.RegisterPlayer(ctx, &store.Player{SessionID: "s1", Name: "Late", RoleID: "bat", BasePrice: 1_000_000})
	if !errors.Is(err, session.ErrSessionLive) {
		t.Fatalf("late RegisterPlayer() error = %v, want ErrSessionLive", err)
	}

	p, err := env.mgr.NextPlayer(ctx, "s1")
	if err != nil {
		t.Fatalf("NextPlayer() error = %v", err)
	}

	if err := env.mgr.PlaceBid(ctx, "s1", "team-1", 1_000_000); err != nil {
		t.Fatalf("PlaceBid() error = %v", err)
	}
	if err := env.mgr.PlaceBid(ctx, "s1", "team-2", 1_500_000); err != nil {
		t.Fatalf("PlaceBid() error = %v", err)
	}

	out, err := env.mgr.Sell(ctx, "s1")
	if err != nil {
		t.Fatalf("Sell() error = %v", err)
	}
	if out.Sale.TeamID != "team-2" || out.Sale.Amount != 1_500_000 {
		t.Errorf("sale = %+v, want team-2 @ 1500000", out.Sale)
	}

	// Persistence side effects.
	if len(env.sales.sales) != 1 {
		t.Fatalf("persisted sales = %d, want 1", len(env.sales.sales))
	}
	stored, _ := env.players.GetByID(ctx, p.ID)
	if stored.Status != store.StatusSold {
		t.Errorf("stored player status = %q, want SOLD", stored.Status)
	}
	buyer, _ := env.teams.GetByID(ctx, "team-2")
	if buyer.RemainingBudget != 8_500_000 {
		t.Errorf("stored remaining budget = %d, want 8500000", buyer.RemainingBudget)
	}
	if len(env.events.events) == 0 {
		t.Error("expected events to be persisted")
	}
}

func TestManager_SkipPersistsUnsold(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedRoster(t, "s1")

	if _, err := env.mgr.StartSession(ctx, "s1"); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	p, err := env.mgr.NextPlayer(ctx, "s1")
	if err != nil {
		t.Fatalf("NextPlayer() error = %v", err)
	}

	out, err := env.mgr.Skip(ctx, "s1")
	if err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	if out.Sold {
		t.Fatal("expected unsold outcome")
	}

	stored, _ := env.players.GetByID(ctx, p.ID)
	if stored.Status != store.StatusUnsold {
		t.Errorf("stored player status = %q, want UNSOLD", stored.Status)
	}
	if len(env.sales.sales) != 0 {
		t.Errorf("persisted sales = %d, want 0", len(env.sales.sales))
	}
}

func TestManager_TickAutoFinalizes(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedRoster(t, "s1")

	if _, err := env.mgr.StartSession(ctx, "s1"); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if _, err := env.mgr.NextPlayer(ctx, "s1"); err != nil {
		t.Fatalf("NextPlayer() error = %v", err)
	}
	if err := env.mgr.PlaceBid(ctx, "s1", "team-1", 1_000_000); err != nil {
		t.Fatalf("PlaceBid() error = %v", err)
	}

	for i := 0; i < 30; i++ {
		env.mgr.Tick(ctx, 1)
	}

	if len(env.sales.sales) != 1 {
		t.Fatalf("persisted sales after tick close = %d, want 1", len(env.sales.sales))
	}
	snap, err := env.mgr.Snapshot("s1")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Phase != session.PhaseIdle {
		t.Errorf("phase = %q, want IDLE", snap.Phase)
	}
}

func TestManager_ExportHistory(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedRoster(t, "s1")

	if _, err := env.mgr.StartSession(ctx, "s1"); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if _, err := env.mgr.NextPlayer(ctx, "s1"); err != nil {
		t.Fatalf("NextPlayer() error = %v", err)
	}
	if err := env.mgr.PlaceBid(ctx, "s1", "team-1", 1_000_000); err != nil {
		t.Fatalf("PlaceBid() error = %v", err)
	}
	if _, err := env.mgr.Sell(ctx, "s1"); err != nil {
		t.Fatalf("Sell() error = %v", err)
	}

	data, err := env.mgr.ExportHistory(ctx, "s1")
	if err != nil {
		t.Fatalf("ExportHistory() error = %v", err)
	}

	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("export rows = %d, want 1", len(rows))
	}
	for _, key := range []string{"id", "playerId", "teamId", "amount", "timestamp"} {
		if _, ok := rows[0][key]; !ok {
			t.Errorf("export row missing %q: %v", key, rows[0])
		}
	}
}

func TestManager_ExportHistory_AfterEnd(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedRoster(t, "s1")

	if _, err := env.mgr.StartSession(ctx, "s1"); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if _, err := env.mgr.NextPlayer(ctx, "s1"); err != nil {
		t.Fatalf("NextPlayer() error = %v", err)
	}
	if err := env.mgr.PlaceBid(ctx, "s1", "team-1", 1_000_000); err != nil {
		t.Fatalf("PlaceBid() error = %v", err)
	}
	if _, err := env.mgr.Sell(ctx, "s1"); err != nil {
		t.Fatalf("Sell() error = %v", err)
	}
	if err := env.mgr.EndSession(ctx, "s1", "operator"); err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}

	// Retired sessions export from the settlement table.
	data, err := env.mgr.ExportHistory(ctx, "s1")
	if err != nil {
		t.Fatalf("ExportHistory() error = %v", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("export rows = %d, want 1", len(rows))
	}
}

func TestManager_EndSession(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedRoster(t, "s1")

	if _, err := env.mgr.StartSession(ctx, "s1"); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if err := env.mgr.EndSession(ctx, "s1", "operator"); err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}

	if _, err := env.mgr.Get("s1"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("Get() after end error = %v, want ErrSessionNotFound", err)
	}

	// The ended event reached the store.
	ended, _ := env.events.LoadByType(ctx, event.SessionEnded)
	if len(ended) != 1 {
		t.Errorf("session.ended events = %d, want 1", len(ended))
	}
}

func TestManager_OperationsOnUnknownSession(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.mgr.NextPlayer(ctx, "nope"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("NextPlayer() error = %v, want ErrSessionNotFound", err)
	}
	if err := env.mgr.PlaceBid(ctx, "nope", "t1", 100); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("PlaceBid() error = %v, want ErrSessionNotFound", err)
	}
	if _, err := env.mgr.Sell(ctx, "nope"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Sell() error = %v, want ErrSessionNotFound", err)
	}
}

func TestManager_RecoverOpenSessions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedRoster(t, "s1")

	if _, err := env.mgr.StartSession(ctx, "s1"); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if _, err := env.mgr.NextPlayer(ctx, "s1"); err != nil {
		t.Fatalf("NextPlayer() error = %v", err)
	}
	if err := env.mgr.PlaceBid(ctx, "s1", "team-1", 1_000_000); err != nil {
		t.Fatalf("PlaceBid() error = %v", err)
	}
	if _, err := env.mgr.Sell(ctx, "s1"); err != nil {
		t.Fatalf("Sell() error = %v", err)
	}

	// A new manager over the same stores simulates a failover.
	repos := &store.Repositories{
		Players: env.players,
		Teams:   env.teams,
		Sales:   env.sales,
		Events:  env.events,
	}
	mgr2 := session.NewManager(testConfig(), repos, slog.Default(), noop.NewTracerProvider(), testClk)

	recovered, err := mgr2.RecoverOpenSessions(ctx)
	if err != nil {
		t.Fatalf("RecoverOpenSessions() error = %v", err)
	}
	if recovered != 1 {
		t.Fatalf("recovered = %d, want 1", recovered)
	}

	snap, err := mgr2.Snapshot("s1")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.SalesCount != 1 {
		t.Errorf("recovered sales count = %d, want 1", snap.SalesCount)
	}
	for _, tv := range snap.Teams {
		if tv.ID == "team-1" && tv.RemainingBudget != 9_000_000 {
			t.Errorf("reconciled budget = %d, want 9000000", tv.RemainingBudget)
		}
	}

	// The sold player is out of the queue.
	if snap.RemainingPlayers != 1 {
		t.Errorf("remaining players = %d, want 1", snap.RemainingPlayers)
	}
}

func TestManager_RecoverSkipsEndedSessions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.seedRoster(t, "s1")

	if _, err := env.mgr.StartSession(ctx, "s1"); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if err := env.mgr.EndSession(ctx, "s1", "done"); err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}

	repos := &store.Repositories{
		Players: env.players,
		Teams:   env.teams,
		Sales:   env.sales,
		Events:  env.events,
	}
	mgr2 := session.NewManager(testConfig(), repos, slog.Default(), noop.NewTracerProvider(), testClk)

	recovered, err := mgr2.RecoverOpenSessions(ctx)
	if err != nil {
		t.Fatalf("RecoverOpenSessions() error = %v", err)
	}
	if recovered != 0 {
		t.Errorf("recovered = %d, want 0", recovered)
	}
}

func TestSummarize(t *testing.T) {
	roundData, _ := json.Marshal(event.RoundAdvancedData{Round: 3})
	events := []event.Event{
		{AggregateID: "s1", Type: event.SessionStarted, Data: json.RawMessage(`{}`), Version: 1},
		{AggregateID: "s1", Type: event.RoundAdvanced, Data: roundData, Version: 2},
		{AggregateID: "s1", Type: event.SessionEnded, Data: json.RawMessage(`{}`), Version: 3},
	}

	sum, err := session.Summarize(events)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if !sum.Started || !sum.Ended || sum.Round != 3 {
		t.Errorf("summary = %+v, want started+ended round 3", sum)
	}
	if sum.LastVersion != 3 {
		t.Errorf("last version = %d, want 3", sum.LastVersion)
	}
}

func TestSummarize_InvalidRoundData(t *testing.T) {
	events := []event.Event{
		{AggregateID: "s1", Type: event.RoundAdvanced, Data: json.RawMessage(`{invalid`), Version: 1},
	}
	if _, err := session.Summarize(events); err == nil {
		t.Fatal("expected error for invalid round advanced data")
	}
}
