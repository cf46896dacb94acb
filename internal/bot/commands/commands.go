package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/sports-auction-bot/internal/session"
	"github.com/jensholdgaard/sports-auction-bot/internal/store"
)

// Handlers process Discord interactions. One auction session is active
// per bot at a time; session-new switches which one commands act on.
type Handlers struct {
	mgr    *session.Manager
	logger *slog.Logger
	tracer trace.Tracer

	mu        sync.Mutex
	currentID string
}

// NewHandlers creates new command handlers.
func NewHandlers(mgr *session.Manager, logger *slog.Logger, tp trace.TracerProvider) *Handlers {
	return &Handlers{
		mgr:    mgr,
		logger: logger,
		tracer: tp.Tracer("github.com/jensholdgaard/sports-auction-bot/internal/bot/commands"),
	}
}

// SlashCommands returns the slash command definitions.
func SlashCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "session-new",
			Description: "Create a new auction session for player and team registration",
		},
		{
			Name:        "player-add",
			Description: "Register a player in the current session",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Player name",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "role",
					Description: "Role id from the session's role set",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "base-price",
					Description: "Starting price for this player",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "overseas",
					Description: "Whether the player counts against the overseas limit",
					Required:    false,
				},
			},
		},
		{
			Name:        "team-add",
			Description: "Register a team in the current session",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Team name",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "owner",
					Description: "Team owner",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "budget",
					Description: "Team budget (defaults to the session budget)",
					Required:    false,
				},
			},
		},
		{
			Name:        "auction-start",
			Description: "Start the auction with the registered roster",
		},
		{
			Name:        "next-player",
			Description: "Put the next player up for bidding",
		},
		{
			Name:        "bid",
			Description: "Place a bid for a team on the current player",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "team",
					Description: "Team id placing the bid",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "Bid amount",
					Required:    true,
				},
			},
		},
		{
			Name:        "sell",
			Description: "Sell the current player to the highest bidder",
		},
		{
			Name:        "skip",
			Description: "Mark the current player unsold and move on",
		},
		{
			Name:        "auction-state",
			Description: "Show the current auction state",
		},
		{
			Name:        "history",
			Description: "Download the session's bid history as JSON",
		},
		{
			Name:        "auction-end",
			Description: "End the current auction session",
		},
	}
}

// InteractionCreate handles incoming slash command interactions.
func (h *Handlers) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, span := h.tracer.Start(context.Background(), "InteractionCreate",
		trace.WithAttributes(attribute.String("command", i.ApplicationCommandData().Name)),
	)
	defer span.End()

	switch i.ApplicationCommandData().Name {
	case "session-new":
		h.handleSessionNew(ctx, s, i)
	case "player-add":
		h.handlePlayerAdd(ctx, s, i)
	case "team-add":
		h.handleTeamAdd(ctx, s, i)
	case "auction-start":
		h.handleAuctionStart(ctx, s, i)
	case "next-player":
		h.handleNextPlayer(ctx, s, i)
	case "bid":
		h.handleBid(ctx, s, i)
	case "sell":
		h.handleSell(ctx, s, i)
	case "skip":
		h.handleSkip(ctx, s, i)
	case "auction-state":
		h.handleState(ctx, s, i)
	case "history":
		h.handleHistory(ctx, s, i)
	case "auction-end":
		h.handleEnd(ctx, s, i)
	default:
		respond(s, i, "Unknown command")
	}
}

func (h *Handlers) current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentID
}

func (h *Handlers) handleSessionNew(_ context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	id := h.mgr.NewSessionID()
	h.mu.Lock()
	h.currentID = id
	h.mu.Unlock()
	respond(s, i, fmt.Sprintf("Session `%s` created. Add players with `/player-add` and teams with `/team-add`, then `/auction-start`.", id))
}

func (h *Handlers) handlePlayerAdd(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	sessionID := h.current()
	if sessionID == "" {
		respond(s, i, "No session yet. Use `/session-new` first.")
		return
	}

	p := &store.Player{SessionID: sessionID}
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "name":
			p.Name = opt.StringValue()
		case "role":
			p.RoleID = opt.StringValue()
		case "base-price":
			p.BasePrice = opt.IntValue()
		case "overseas":
			p.IsOverseas = opt.BoolValue()
		}
	}

	if err := h.mgr.RegisterPlayer(ctx, p); err != nil {
		respond(s, i, fmt.Sprintf("Failed to add player: %s", err))
		return
	}
	respond(s, i, fmt.Sprintf("Added **%s** (%s, base %d) as `%s`", p.Name, p.RoleID, p.BasePrice, p.ID))
}

func (h *Handlers) handleTeamAdd(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	sessionID := h.current()
	if sessionID == "" {
		respond(s, i, "No session yet. Use `/session-new` first.")
		return
	}

	t := &store.Team{SessionID: sessionID}
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "name":
			t.Name = opt.StringValue()
		case "owner":
			t.Owner = opt.StringValue()
		case "budget":
			t.Budget = opt.IntValue()
		}
	}

	if err := h.mgr.RegisterTeam(ctx, t); err != nil {
		respond(s, i, fmt.Sprintf("Failed to add team: %s", err))
		return
	}
	respond(s, i, fmt.Sprintf("Added team **%s** (budget %d) as `%s`", t.Name, t.Budget, t.ID))
}

func (h *Handlers) handleAuctionStart(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	sessionID := h.current()
	if sessionID == "" {
		respond(s, i, "No session yet. Use `/session-new` first.")
		return
	}

	if _, err := h.mgr.StartSession(ctx, sessionID); err != nil {
		respond(s, i, fmt.Sprintf("Failed to start auction: %s", err))
		return
	}
	respond(s, i, fmt.Sprintf("Auction `%s` is live. Use `/next-player` to open bidding.", sessionID))
}

func (h *Handlers) handleNextPlayer(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	p, err := h.mgr.NextPlayer(ctx, h.current())
	if err != nil {
		if errors.Is(err, session.ErrQueueEmpty) {
			respond(s, i, "No players left. The auction is over.")
			return
		}
		respond(s, i, fmt.Sprintf("Failed to open the next lot: %s", err))
		return
	}
	respond(s, i, fmt.Sprintf("Up next: **%s** (%s) — base price **%d**. Bidding is open!", p.Name, p.RoleID, p.BasePrice))
}

func (h *Handlers) handleBid(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	var teamID string
	var amount int64
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "team":
			teamID = opt.StringValue()
		case "amount":
			amount = opt.IntValue()
		}
	}

	if err := h.mgr.PlaceBid(ctx, h.current(), teamID, amount); err != nil {
		respond(s, i, fmt.Sprintf("Bid rejected: %s", err))
		return
	}
	respond(s, i, fmt.Sprintf("**%d** bid by `%s` — countdown reset.", amount, teamID))
}

func (h *Handlers) handleSell(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	out, err := h.mgr.Sell(ctx, h.current())
	if err != nil {
		respond(s, i, fmt.Sprintf("Sell failed: %s", err))
		return
	}
	respond(s, i, fmt.Sprintf("**SOLD!** %s goes to `%s` for **%d**.", out.Player.Name, out.Sale.TeamID, out.Sale.Amount))
}

func (h *Handlers) handleSkip(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	out, err := h.mgr.Skip(ctx, h.current())
	if err != nil {
		respond(s, i, fmt.Sprintf("Skip failed: %s", err))
		return
	}
	respond(s, i, fmt.Sprintf("**%s** goes unsold and returns in a later round.", out.Player.Name))
}

func (h *Handlers) handleState(_ context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	snap, err := h.mgr.Snapshot(h.current())
	if err != nil {
		respond(s, i, fmt.Sprintf("No live auction: %s", err))
		return
	}
	respond(s, i, formatSnapshot(snap))
}

func (h *Handlers) handleHistory(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	sessionID := h.current()
	data, err := h.mgr.ExportHistory(ctx, sessionID)
	if err != nil {
		respond(s, i, fmt.Sprintf("Failed to export history: %s", err))
		return
	}

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("Bid history for `%s`:", sessionID),
			Files: []*discordgo.File{
				{
					Name:        fmt.Sprintf("%s-history.json", sessionID),
					ContentType: "application/json",
					Reader:      strings.NewReader(string(data)),
				},
			},
		},
	})
}

func (h *Handlers) handleEnd(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	sessionID := h.current()
	if err := h.mgr.EndSession(ctx, sessionID, "operator"); err != nil {
		respond(s, i, fmt.Sprintf("Failed to end session: %s", err))
		return
	}
	respond(s, i, fmt.Sprintf("Session `%s` ended. Use `/history` to download the results.", sessionID))
}

func formatSnapshot(snap *session.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Session** `%s` — %s, round %d, %d players left\n",
		snap.SessionID, snap.Phase, snap.Round, snap.RemainingPlayers)

	if snap.CurrentPlayer != nil {
		fmt.Fprintf(&b, "On the block: **%s** (%s)", snap.CurrentPlayer.Name, snap.CurrentPlayer.RoleID)
		if snap.CurrentBidderID != "" {
			fmt.Fprintf(&b, " — leading bid **%d** by `%s`", snap.CurrentBid, snap.CurrentBidderID)
		} else {
			fmt.Fprintf(&b, " — no bids yet, base price %d", snap.CurrentPlayer.BasePrice)
		}
		fmt.Fprintf(&b, ", %ds on the clock\n", snap.TimerSeconds)
	}

	b.WriteString("**Teams:**\n")
	for _, tv := range snap.Teams {
		marker := ""
		if tv.Leading {
			marker = " (leading)"
		}
		fmt.Fprintf(&b, "- %s `%s`: %d left, %d players%s\n",
			tv.Name, tv.ID, tv.RemainingBudget, tv.SquadSize, marker)
	}
	return b.String()
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
		},
	})
}
