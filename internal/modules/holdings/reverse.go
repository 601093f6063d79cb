package holdings

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/lookback/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PositionSource provides the known present-day state the reverse strategy
// starts from: the latest persisted quantity per security.
type PositionSource interface {
	LatestPositions(accountID string) (map[string]decimal.Decimal, error)
}

// ReverseSimulator reconstructs history by starting from the known
// present-day state and walking backward in time, un-applying each day's
// trades. It produces the same output shape as the forward simulator; only
// the starting state and the trade-sign convention differ.
type ReverseSimulator struct {
	trades    TradeSource
	prices    PriceSource
	rates     RateSource
	positions PositionSource
	now       func() time.Time
	log       zerolog.Logger
}

// NewReverseSimulator creates a reverse-mode simulator
func NewReverseSimulator(trades TradeSource, prices PriceSource, rates RateSource, positions PositionSource, log zerolog.Logger) *ReverseSimulator {
	return &ReverseSimulator{
		trades:    trades,
		prices:    prices,
		rates:     rates,
		positions: positions,
		now:       time.Now,
		log:       log.With().Str("simulator", "reverse").Logger(),
	}
}

// Run walks from today back to the account's first trade. On each day it
// emits snapshots for the current state, then un-applies that day's trades
// to derive the previous day's state. The emitted list is returned in
// ascending date order, matching the forward simulator's output.
func (s *ReverseSimulator) Run(ctx context.Context, account domain.Account) ([]Snapshot, error) {
	start, err := s.trades.EarliestTradeDate(account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to determine account start date: %w", err)
	}
	if start == nil {
		return nil, nil
	}

	current, err := s.positions.LatestPositions(account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current positions: %w", err)
	}

	allTrades, err := s.trades.ListByAccount(account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trade history: %w", err)
	}

	// Bucket trades by execution date for the backward walk, and build the
	// full-history buy accumulator. Walking backward we subtract buys as we
	// pass them, so each day sees the same average as the forward replay.
	tradesByDate := make(map[string][]domain.Trade)
	accumulators := make(map[string]*costAccumulator)
	converted := make(map[string]decimal.Decimal, len(allTrades))

	positions := make(map[string]decimal.Decimal)
	for sec, qty := range current {
		positions[sec] = qty
	}

	for _, trade := range allTrades {
		key := domain.DateKey(trade.ExecutedOn)
		tradesByDate[key] = append(tradesByDate[key], trade)

		if _, ok := positions[trade.SecurityID]; !ok {
			positions[trade.SecurityID] = decimal.Zero
		}
		if _, ok := accumulators[trade.SecurityID]; !ok {
			accumulators[trade.SecurityID] = &costAccumulator{totalCost: decimal.Zero, totalQty: decimal.Zero}
		}

		if trade.IsBuy() {
			rate, fellBack := s.rates.RateOrFallback(string(trade.Currency), string(account.Currency))
			if fellBack {
				s.log.Warn().
					Str("trade_id", trade.ID).
					Str("from", string(trade.Currency)).
					Str("to", string(account.Currency)).
					Msg("Using 1:1 exchange rate fallback for buy cost")
			}
			price := trade.Price.Mul(rate)
			converted[trade.ID] = price
			accumulators[trade.SecurityID].addBuy(trade.Quantity, price)
		}
	}

	securities := make([]string, 0, len(positions))
	for sec := range positions {
		securities = append(securities, sec)
	}
	sort.Strings(securities)

	today := domain.Day(s.now())
	firstDay := domain.Day(*start)
	var snapshots []Snapshot

	for date := today; !date.Before(firstDay); date = date.AddDate(0, 0, -1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, sec := range securities {
			point, err := s.prices.GetOnDate(sec, date)
			if err != nil {
				return nil, fmt.Errorf("failed to load price for %s on %s: %w", sec, domain.DateKey(date), err)
			}
			if point == nil {
				continue
			}

			acc := accumulators[sec]
			var avg *decimal.Decimal
			if acc != nil {
				avg = acc.average()
			}
			snapshots = append(snapshots, buildSnapshot(account.ID, sec, date, *point, positions[sec], avg))
		}

		// Un-apply this day's trades to derive the previous day's state.
		for _, trade := range tradesByDate[domain.DateKey(date)] {
			positions[trade.SecurityID] = positions[trade.SecurityID].Sub(trade.Quantity)
			if trade.IsBuy() {
				acc := accumulators[trade.SecurityID]
				acc.totalCost = acc.totalCost.Sub(converted[trade.ID].Mul(trade.Quantity))
				acc.totalQty = acc.totalQty.Sub(trade.Quantity)
			}
		}
	}

	// Emitted newest-first; reorder to (date, security) ascending to match
	// the forward simulator's output exactly.
	sort.Slice(snapshots, func(i, j int) bool {
		if !snapshots[i].Date.Equal(snapshots[j].Date) {
			return snapshots[i].Date.Before(snapshots[j].Date)
		}
		return snapshots[i].SecurityID < snapshots[j].SecurityID
	})

	s.log.Debug().
		Str("account_id", account.ID).
		Int("candidates", len(snapshots)).
		Msg("Reverse simulation complete")

	return snapshots, nil
}
