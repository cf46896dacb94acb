package session

import (
	"github.com/jensholdgaard/sports-auction-bot/internal/ledger"
	"github.com/jensholdgaard/sports-auction-bot/internal/store"
)

// TeamView is one team's line in a snapshot, including the bid
// affordances the UI needs: the minimum amount this team could bid next
// and whether such a bid would be admitted right now.
type TeamView struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Budget          int64  `json:"budget"`
	RemainingBudget int64  `json:"remainingBudget"`
	Spent           int64  `json:"spent"`
	SquadSize       int    `json:"squadSize"`
	NextBid         int64  `json:"nextBid"`
	CanBid          bool   `json:"canBid"`
	Leading         bool   `json:"leading"`
}

// Snapshot is a consistent read of the whole session, taken under the
// session lock so no bid or finalization interleaves with it.
type Snapshot struct {
	SessionID        string        `json:"sessionId"`
	Phase            Phase         `json:"phase"`
	Round            int           `json:"round"`
	Ended            bool          `json:"ended"`
	CurrentPlayer    *store.Player `json:"currentPlayer,omitempty"`
	CurrentBid       int64         `json:"currentBid"`
	CurrentBidderID  string        `json:"currentBidderId,omitempty"`
	TimerSeconds     int           `json:"timerSeconds"`
	RemainingPlayers int           `json:"remainingPlayers"`
	SalesCount       int           `json:"salesCount"`
	Teams            []TeamView    `json:"teams"`
}

// Snapshot returns a point-in-time view of the session state.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		SessionID:        s.id,
		Phase:            s.phase,
		Round:            s.seq.Round(),
		Ended:            s.ended,
		CurrentBid:       s.currentBid,
		CurrentBidderID:  s.bidderID,
		TimerSeconds:     s.timer,
		RemainingPlayers: s.seq.Remaining(s.players),
		SalesCount:       len(s.history),
		Teams:            make([]TeamView, 0, len(s.teams)),
	}

	var basePrice int64
	if s.currentIdx >= 0 {
		p := s.players[s.currentIdx]
		snap.CurrentPlayer = &p
		basePrice = p.BasePrice
	}

	for _, t := range s.teams {
		next := ledger.MinimumNextBid(s.currentBid, s.bidderID, basePrice, s.cfg.BidIncrement)
		view := TeamView{
			ID:              t.ID,
			Name:            t.Name,
			Budget:          t.Budget,
			RemainingBudget: t.RemainingBudget,
			Spent:           t.Budget - t.RemainingBudget,
			SquadSize:       len(t.Players),
			NextBid:         next,
			Leading:         s.bidderID == t.ID,
		}
		if s.phase == PhaseBidding {
			view.CanBid = ledger.CanBid(t, s.bidderID, next) == nil
		}
		snap.Teams = append(snap.Teams, view)
	}
	return snap
}
