package swaps

import (
	"context"

	"chainvault/internal/metrics"
	"chainvault/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	// spread is deducted from the USD notional before converting to destination units.
	spread = decimal.RequireFromString("0.02")
	// degradedMultiplier prices a swap when either USD price is unavailable.
	degradedMultiplier = decimal.RequireFromString("0.98")
)

// Quote is the price snapshot an order is created with.
type Quote struct {
	Rate       decimal.Decimal
	FromPrice  decimal.Decimal
	ToPrice    decimal.Decimal
	DestAmount decimal.Decimal
	Degraded   bool
}

// QuoteFor prices amount of the source token in destination units:
// amount*fromPrice*(1-spread)/toPrice truncated to destDecimals places.
// A non-positive price on either side yields the degraded quote.
func QuoteFor(amount, fromPrice, toPrice decimal.Decimal, destDecimals int) Quote {
	if !fromPrice.IsPositive() || !toPrice.IsPositive() {
		return DegradedQuote(amount, destDecimals)
	}
	dest := amount.Mul(fromPrice).Mul(decimal.NewFromInt(1).Sub(spread)).Div(toPrice)
	return Quote{
		Rate:       fromPrice.Div(toPrice),
		FromPrice:  fromPrice,
		ToPrice:    toPrice,
		DestAmount: dest.Truncate(int32(destDecimals)),
	}
}

func DegradedQuote(amount decimal.Decimal, destDecimals int) Quote {
	return Quote{
		Rate:       degradedMultiplier,
		DestAmount: amount.Mul(degradedMultiplier).Truncate(int32(destDecimals)),
		Degraded:   true,
	}
}

// quote never fails: a price error only degrades the snapshot.
func (s *Service) quote(ctx context.Context, from, to string, amount decimal.Decimal, destDecimals int) Quote {
	fromPrice, err := s.lookupPrice(ctx, from)
	if err == nil {
		var toPrice decimal.Decimal
		if toPrice, err = s.lookupPrice(ctx, to); err == nil {
			return QuoteFor(amount, fromPrice, toPrice, destDecimals)
		}
	}

	metrics.SwapDegradedQuotes.Inc()
	utils.Logger.WithFields(logrus.Fields{
		"from":  from,
		"to":    to,
		"error": err.Error(),
	}).Warn("price unavailable, using degraded swap rate")
	return DegradedQuote(amount, destDecimals)
}

func (s *Service) lookupPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	p, err := s.prices.Price(ctx, symbol)
	metrics.PriceLookups.WithLabelValues(s.prices.Name(), metrics.Result(err)).Inc()
	return p, err
}
