// Package queue orders which player comes up next in an auction session.
//
// The sequencer walks the roster in its stored order, offering every
// PENDING or UNSOLD player exactly once per round. When a round is
// exhausted and unsold players remain, they are recycled into a new
// round; an unsold player is retried in every subsequent round until
// sold or the operator ends the session.
package queue

import (
	"errors"

	"github.com/jensholdgaard/sports-auction-bot/internal/store"
)

// ErrQueueEmpty signals that no eligible players remain in any round.
var ErrQueueEmpty = errors.New("no eligible players remain")

// Sequencer tracks the turn order for one session.
type Sequencer struct {
	order []string
	pos   int
	round int
}

// New builds a sequencer over the roster, starting at round 1.
func New(players []store.Player) *Sequencer {
	return &Sequencer{order: eligibleIDs(players), round: 1}
}

// Resume rebuilds a sequencer at a given round, used when a session is
// recovered from the event log.
func Resume(players []store.Player, round int) *Sequencer {
	if round < 1 {
		round = 1
	}
	return &Sequencer{order: eligibleIDs(players), round: round}
}

// Round returns the current auction round, starting at 1.
func (s *Sequencer) Round() int { return s.round }

// Remaining counts the players still eligible for this or a later round.
func (s *Sequencer) Remaining(players []store.Player) int {
	return len(eligibleIDs(players))
}

// Next returns the id of the next eligible player. Statuses are
// re-checked against the live roster, so players sold or skipped since
// the queue was built are passed over. When the current round is
// exhausted, unsold players are recycled into a fresh round; if none
// remain, Next returns ErrQueueEmpty.
func (s *Sequencer) Next(players []store.Player) (string, error) {
	statuses := statusByID(players)

	for s.pos < len(s.order) {
		id := s.order[s.pos]
		s.pos++
		if eligible(statuses[id]) {
			return id, nil
		}
	}

	// Round exhausted: recycle unsold players in roster order.
	var unsold []string
	for _, p := range players {
		if p.Status == store.StatusUnsold {
			unsold = append(unsold, p.ID)
		}
	}
	if len(unsold) == 0 {
		return "", ErrQueueEmpty
	}

	s.order = unsold
	s.pos = 1
	s.round++
	return unsold[0], nil
}

func eligible(status store.PlayerStatus) bool {
	return status == store.StatusPending || status == store.StatusUnsold
}

func eligibleIDs(players []store.Player) []string {
	var ids []string
	for _, p := range players {
		if eligible(p.Status) {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func statusByID(players []store.Player) map[string]store.PlayerStatus {
	m := make(map[string]store.PlayerStatus, len(players))
	for _, p := range players {
		m[p.ID] = p.Status
	}
	return m
}
