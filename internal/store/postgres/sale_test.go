package postgres_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/jensholdgaard/sports-auction-bot/internal/clock"
	"github.com/jensholdgaard/sports-auction-bot/internal/store"
	"github.com/jensholdgaard/sports-auction-bot/internal/store/postgres"
)

func TestSaleRepo_CreateAndList(t *testing.T) {
	db := newTestDB(t)
	players := postgres.NewPlayerRepo(db, clock.Real{})
	teams := postgres.NewTeamRepo(db, clock.Real{})
	sales := postgres.NewSaleRepo(db)
	ctx := context.Background()

	p1 := &store.Player{SessionID: "s1", Name: "P1", RoleID: "bat", BasePrice: 1_000_000, Status: store.StatusPending}
	p2 := &store.Player{SessionID: "s1", Name: "P2", RoleID: "bowl", BasePrice: 1_000_000, Status: store.StatusPending}
	tm := &store.Team{SessionID: "s1", Name: "Buyers", Budget: 10_000_000, RemainingBudget: 10_000_000}
	for _, err := range []error{
		players.Create(ctx, p1),
		players.Create(ctx, p2),
		teams.Create(ctx, tm),
	} {
		if err != nil {
			t.Fatalf("seeding roster: %v", err)
		}
	}

	first := &store.Sale{
		ID:        uuid.NewString(),
		SessionID: "s1",
		PlayerID:  p1.ID,
		TeamID:    tm.ID,
		Amount:    2_000_000,
		Timestamp: 1000,
	}
	second := &store.Sale{
		ID:        uuid.NewString(),
		SessionID: "s1",
		PlayerID:  p2.ID,
		TeamID:    tm.ID,
		Amount:    3_000_000,
		Timestamp: 2000,
	}
	if err := sales.Create(ctx, second); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := sales.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := sales.ListBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListBySession returned %d sales, want 2", len(got))
	}

	// Ordered by sale time regardless of insert order.
	if got[0].ID != first.ID {
		t.Errorf("first sale = %s, want %s", got[0].ID, first.ID)
	}
	if got[1].Amount != 3_000_000 {
		t.Errorf("second sale amount = %d, want %d", got[1].Amount, 3_000_000)
	}
}

func TestSaleRepo_DuplicateID(t *testing.T) {
	db := newTestDB(t)
	players := postgres.NewPlayerRepo(db, clock.Real{})
	teams := postgres.NewTeamRepo(db, clock.Real{})
	sales := postgres.NewSaleRepo(db)
	ctx := context.Background()

	p := &store.Player{SessionID: "s1", Name: "P", RoleID: "bat", BasePrice: 1_000_000, Status: store.StatusPending}
	tm := &store.Team{SessionID: "s1", Name: "T", Budget: 10_000_000, RemainingBudget: 10_000_000}
	if err := players.Create(ctx, p); err != nil {
		t.Fatalf("Create player: %v", err)
	}
	if err := teams.Create(ctx, tm); err != nil {
		t.Fatalf("Create team: %v", err)
	}

	sale := &store.Sale{ID: uuid.NewString(), SessionID: "s1", PlayerID: p.ID, TeamID: tm.ID, Amount: 100, Timestamp: 1}
	if err := sales.Create(ctx, sale); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := sales.Create(ctx, sale); err == nil {
		t.Fatal("expected error inserting duplicate sale id")
	}
}
