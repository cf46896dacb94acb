package postgres_test

import (
	"context"
	"testing"

	"github.com/jensholdgaard/sports-auction-bot/internal/clock"
	"github.com/jensholdgaard/sports-auction-bot/internal/store"
	"github.com/jensholdgaard/sports-auction-bot/internal/store/postgres"
)

func TestPlayerRepo_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := postgres.NewPlayerRepo(db, clock.Real{})
	ctx := context.Background()

	p := &store.Player{
		SessionID: "session-1",
		Name:      "Test Player",
		RoleID:    "bat",
		BasePrice: 2_000_000,
		Status:    store.StatusPending,
	}

	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if p.ID == "" {
		t.Fatal("expected ID to be set after Create")
	}

	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "Test Player" {
		t.Errorf("Name = %q, want %q", got.Name, "Test Player")
	}
	if got.BasePrice != 2_000_000 {
		t.Errorf("BasePrice = %d, want %d", got.BasePrice, 2_000_000)
	}
	if got.Status != store.StatusPending {
		t.Errorf("Status = %q, want %q", got.Status, store.StatusPending)
	}
}

func TestPlayerRepo_ListBySession(t *testing.T) {
	db := newTestDB(t)
	repo := postgres.NewPlayerRepo(db, clock.Real{})
	ctx := context.Background()

	for _, p := range []*store.Player{
		{SessionID: "session-1", Name: "Alpha", RoleID: "bat", BasePrice: 1_000_000, Status: store.StatusPending},
		{SessionID: "session-1", Name: "Bravo", RoleID: "bowl", BasePrice: 1_500_000, Status: store.StatusPending},
		{SessionID: "session-2", Name: "Other", RoleID: "bat", BasePrice: 1_000_000, Status: store.StatusPending},
	} {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create(%s): %v", p.Name, err)
		}
	}

	players, err := repo.ListBySession(ctx, "session-1")
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(players) != 2 {
		t.Fatalf("ListBySession returned %d players, want 2", len(players))
	}

	// Ordered by creation, so Alpha comes first.
	if players[0].Name != "Alpha" {
		t.Errorf("first player = %q, want %q", players[0].Name, "Alpha")
	}
}

func TestPlayerRepo_MarkSold(t *testing.T) {
	db := newTestDB(t)
	players := postgres.NewPlayerRepo(db, clock.Real{})
	teams := postgres.NewTeamRepo(db, clock.Real{})
	ctx := context.Background()

	p := &store.Player{SessionID: "s1", Name: "SoldTest", RoleID: "bat", BasePrice: 1_000_000, Status: store.StatusPending}
	if err := players.Create(ctx, p); err != nil {
		t.Fatalf("Create player: %v", err)
	}
	tm := &store.Team{SessionID: "s1", Name: "Buyers", Budget: 10_000_000, RemainingBudget: 10_000_000}
	if err := teams.Create(ctx, tm); err != nil {
		t.Fatalf("Create team: %v", err)
	}

	if err := players.MarkSold(ctx, p.ID, tm.ID, 3_000_000); err != nil {
		t.Fatalf("MarkSold: %v", err)
	}

	got, _ := players.GetByID(ctx, p.ID)
	if got.Status != store.StatusSold {
		t.Errorf("Status = %q, want %q", got.Status, store.StatusSold)
	}
	if got.SoldPrice == nil || *got.SoldPrice != 3_000_000 {
		t.Errorf("SoldPrice = %v, want 3000000", got.SoldPrice)
	}
	if got.TeamID == nil || *got.TeamID != tm.ID {
		t.Errorf("TeamID = %v, want %q", got.TeamID, tm.ID)
	}

	// A second sale attempt must be refused.
	if err := players.MarkSold(ctx, p.ID, tm.ID, 4_000_000); err == nil {
		t.Fatal("expected error reselling a sold player")
	}

	// As must marking a sold player unsold.
	if err := players.MarkUnsold(ctx, p.ID); err == nil {
		t.Fatal("expected error marking sold player unsold")
	}
}

func TestPlayerRepo_MarkUnsold(t *testing.T) {
	db := newTestDB(t)
	repo := postgres.NewPlayerRepo(db, clock.Real{})
	ctx := context.Background()

	p := &store.Player{SessionID: "s1", Name: "UnsoldTest", RoleID: "bat", BasePrice: 1_000_000, Status: store.StatusPending}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.MarkUnsold(ctx, p.ID); err != nil {
		t.Fatalf("MarkUnsold: %v", err)
	}

	got, _ := repo.GetByID(ctx, p.ID)
	if got.Status != store.StatusUnsold {
		t.Errorf("Status = %q, want %q", got.Status, store.StatusUnsold)
	}
}

func TestPlayerRepo_MarkSold_NotFound(t *testing.T) {
	db := newTestDB(t)
	repo := postgres.NewPlayerRepo(db, clock.Real{})
	ctx := context.Background()

	err := repo.MarkSold(ctx, "00000000-0000-0000-0000-000000000000", "00000000-0000-0000-0000-000000000001", 10)
	if err == nil {
		t.Fatal("expected error for nonexistent player")
	}
}
