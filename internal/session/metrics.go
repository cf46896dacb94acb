package session

import (
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jensholdgaard/sports-auction-bot/internal/ledger"
)

// metrics holds the session-level instruments. Counters are recorded by
// the manager so rejected bids are counted even when the aggregate never
// mutates.
type metrics struct {
	bidsPlaced   metric.Int64Counter
	bidsRejected metric.Int64Counter
	lotsSold     metric.Int64Counter
	lotsUnsold   metric.Int64Counter
	saleAmount   metric.Int64Histogram
}

func newMetrics() *metrics {
	meter := otel.Meter("github.com/jensholdgaard/sports-auction-bot/internal/session")

	bidsPlaced, _ := meter.Int64Counter("auction.bids.placed",
		metric.WithDescription("Bids accepted onto a lot"))
	bidsRejected, _ := meter.Int64Counter("auction.bids.rejected",
		metric.WithDescription("Bids rejected by validation"))
	lotsSold, _ := meter.Int64Counter("auction.lots.sold",
		metric.WithDescription("Lots finalized as sold"))
	lotsUnsold, _ := meter.Int64Counter("auction.lots.unsold",
		metric.WithDescription("Lots finalized as unsold"))
	saleAmount, _ := meter.Int64Histogram("auction.sale.amount",
		metric.WithDescription("Final sale amounts"))

	return &metrics{
		bidsPlaced:   bidsPlaced,
		bidsRejected: bidsRejected,
		lotsSold:     lotsSold,
		lotsUnsold:   lotsUnsold,
		saleAmount:   saleAmount,
	}
}

// metricReason labels a rejected bid with its validation failure.
func metricReason(err error) metric.AddOption {
	reason := "other"
	switch {
	case errors.Is(err, ledger.ErrBidBelowMinimum):
		reason = "below_minimum"
	case errors.Is(err, ledger.ErrInsufficientBudget):
		reason = "insufficient_budget"
	case errors.Is(err, ledger.ErrAlreadyHighBidder):
		reason = "already_high_bidder"
	case errors.Is(err, ErrNoOpenLot):
		reason = "no_open_lot"
	case errors.Is(err, ErrSessionEnded):
		reason = "session_ended"
	case errors.Is(err, ErrUnknownTeam):
		reason = "unknown_team"
	}
	return metric.WithAttributes(attribute.String("reason", reason))
}
