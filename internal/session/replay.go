package session

import (
	"encoding/json"
	"fmt"

	"github.com/jensholdgaard/sports-auction-bot/internal/event"
)

// Summary is the durable state recovered by folding a session's event
// stream: which round it reached and whether it already ended. Roster
// statuses and sales live in their own tables, so the fold only needs
// the facts that exist nowhere else.
type Summary struct {
	Started bool
	Ended   bool
	Round   int

	// LastVersion is the highest persisted event version. A resumed
	// session continues numbering from here so appends never collide
	// with the existing stream.
	LastVersion int
}

// Summarize folds a session's ordered event stream into a Summary.
func Summarize(events []event.Event) (Summary, error) {
	sum := Summary{Round: 1}
	for _, e := range events {
		if e.Version > sum.LastVersion {
			sum.LastVersion = e.Version
		}
		switch e.Type {
		case event.SessionStarted:
			sum.Started = true
		case event.SessionEnded:
			sum.Ended = true
		case event.RoundAdvanced:
			var data event.RoundAdvancedData
			if err := json.Unmarshal(e.Data, &data); err != nil {
				return Summary{}, fmt.Errorf("unmarshaling round advanced event: %w", err)
			}
			if data.Round > sum.Round {
				sum.Round = data.Round
			}
		}
	}
	return sum, nil
}
