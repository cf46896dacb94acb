// Package ledger holds the bid admission rules and the derivations over
// the settlement log.
//
// The sale history is the canonical audit trail: team spend, player sale
// price and squad ownership are all derivable from it. Team budgets held
// elsewhere are cached projections and can be rebuilt with Reconcile.
package ledger

import (
	"encoding/json"
	"errors"

	"github.com/jensholdgaard/sports-auction-bot/internal/store"
)

// Validation errors returned by bid admission checks.
var (
	ErrInsufficientBudget = errors.New("bid exceeds remaining budget")
	ErrAlreadyHighBidder  = errors.New("team is already the highest bidder")
	ErrBidBelowMinimum    = errors.New("bid is below the minimum next bid")
)

// MinimumNextBid returns the lowest amount the next bid must reach: the
// player's base price while no bid stands, otherwise the current bid plus
// the session increment.
func MinimumNextBid(currentBid int64, currentBidderID string, basePrice, increment int64) int64 {
	if currentBidderID == "" {
		return basePrice
	}
	return currentBid + increment
}

// CanBid checks whether team may place a bid of amount against the
// standing high bidder. It is pure: callers use it both for admission
// control and to drive UI affordances without duplicating the rules.
func CanBid(team store.Team, currentBidderID string, amount int64) error {
	if team.ID == currentBidderID {
		return ErrAlreadyHighBidder
	}
	if amount > team.RemainingBudget {
		return ErrInsufficientBudget
	}
	return nil
}

// TeamSpend sums the sale amounts committed by one team.
func TeamSpend(sales []store.Sale, teamID string) int64 {
	var total int64
	for _, s := range sales {
		if s.TeamID == teamID {
			total += s.Amount
		}
	}
	return total
}

// Reconcile recomputes each team's remaining budget and roster from the
// sale history, overwriting whatever cached values the teams carried.
// Used on load and after leader failover.
func Reconcile(teams []store.Team, sales []store.Sale) {
	for i := range teams {
		teams[i].RemainingBudget = teams[i].Budget - TeamSpend(sales, teams[i].ID)
		teams[i].Players = nil
		for _, s := range sales {
			if s.TeamID == teams[i].ID {
				teams[i].Players = append(teams[i].Players, s.PlayerID)
			}
		}
	}
}

// Export renders the sale history as the downloadable JSON document with
// fields {id, playerId, teamId, amount, timestamp}.
func Export(sales []store.Sale) ([]byte, error) {
	if sales == nil {
		sales = []store.Sale{}
	}
	return json.MarshalIndent(sales, "", "  ")
}
