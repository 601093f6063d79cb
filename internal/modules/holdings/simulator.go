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

// TradeSource provides read access to the account's trade ledger
type TradeSource interface {
	ListByDate(accountID string, date time.Time) ([]domain.Trade, error)
	ListByAccount(accountID string) ([]domain.Trade, error)
	Securities(accountID string) ([]string, error)
	EarliestTradeDate(accountID string) (*time.Time, error)
}

// PriceSource provides read access to historical daily prices
type PriceSource interface {
	GetOnDate(securityID string, date time.Time) (*domain.PricePoint, error)
}

// RateSource converts between currencies. The boolean reports whether the
// 1:1 fallback was used in place of a real rate.
type RateSource interface {
	RateOrFallback(fromCurrency, toCurrency string) (decimal.Decimal, bool)
}

// Simulator reconstructs candidate snapshots for an account's full history
type Simulator interface {
	Run(ctx context.Context, account domain.Account) ([]Snapshot, error)
}

// costAccumulator tracks the running weighted-average cost of a security.
// Only buys feed it: selling does not change the average cost of the
// remaining position under the weighted-average-of-buys model.
type costAccumulator struct {
	totalCost decimal.Decimal
	totalQty  decimal.Decimal
}

// addBuy records a buy at the given per-unit price in the account currency
func (a *costAccumulator) addBuy(qty, convertedPrice decimal.Decimal) {
	a.totalCost = a.totalCost.Add(convertedPrice.Mul(qty))
	a.totalQty = a.totalQty.Add(qty)
}

// average returns the per-unit weighted-average cost, or nil when no buys
// have been recorded. Division happens here, once per emission - the
// accumulator itself stores un-rounded running totals.
func (a *costAccumulator) average() *decimal.Decimal {
	if a.totalQty.IsZero() {
		return nil
	}
	avg := a.totalCost.Div(a.totalQty)
	return &avg
}

// ForwardSimulator replays the trade ledger day by day from the account's
// first trade to today. Each day's state is a pure function of the previous
// day's state plus that day's trades, so the walk is strictly sequential.
type ForwardSimulator struct {
	trades TradeSource
	prices PriceSource
	rates  RateSource
	now    func() time.Time
	log    zerolog.Logger
}

// NewForwardSimulator creates a forward-replay simulator
func NewForwardSimulator(trades TradeSource, prices PriceSource, rates RateSource, log zerolog.Logger) *ForwardSimulator {
	return &ForwardSimulator{
		trades: trades,
		prices: prices,
		rates:  rates,
		now:    time.Now,
		log:    log.With().Str("simulator", "forward").Logger(),
	}
}

// Run walks the calendar from the account's first trade to today and emits
// one candidate snapshot per tracked security per day that has a known price.
// Days without a price emit nothing - no snapshot is better than a
// fabricated one. A position that reaches exactly zero keeps emitting qty=0
// snapshots so downstream reporting can show "no longer held".
func (s *ForwardSimulator) Run(ctx context.Context, account domain.Account) ([]Snapshot, error) {
	start, err := s.trades.EarliestTradeDate(account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to determine account start date: %w", err)
	}
	if start == nil {
		// No trades: nothing to simulate
		return nil, nil
	}

	securities, err := s.trades.Securities(account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list traded securities: %w", err)
	}
	sort.Strings(securities)

	// Pre-enumerate every security ever traded so positions reach exact zero
	// instead of disappearing when they close.
	positions := make(map[string]decimal.Decimal, len(securities))
	accumulators := make(map[string]*costAccumulator, len(securities))
	for _, sec := range securities {
		positions[sec] = decimal.Zero
		accumulators[sec] = &costAccumulator{totalCost: decimal.Zero, totalQty: decimal.Zero}
	}

	today := domain.Day(s.now())
	var snapshots []Snapshot

	for date := domain.Day(*start); !date.After(today); date = date.AddDate(0, 0, 1) {
		// The caller may abort between iterations without corrupting state:
		// nothing is persisted until the full candidate list is assembled.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dayTrades, err := s.trades.ListByDate(account.ID, date)
		if err != nil {
			return nil, fmt.Errorf("failed to load trades for %s: %w", domain.DateKey(date), err)
		}

		for _, trade := range dayTrades {
			if trade.IsBuy() {
				rate, fellBack := s.rates.RateOrFallback(string(trade.Currency), string(account.Currency))
				if fellBack {
					s.log.Warn().
						Str("trade_id", trade.ID).
						Str("from", string(trade.Currency)).
						Str("to", string(account.Currency)).
						Msg("Using 1:1 exchange rate fallback for buy cost")
				}
				accumulators[trade.SecurityID].addBuy(trade.Quantity, trade.Price.Mul(rate))
			}
			positions[trade.SecurityID] = positions[trade.SecurityID].Add(trade.Quantity)
		}

		for _, sec := range securities {
			point, err := s.prices.GetOnDate(sec, date)
			if err != nil {
				return nil, fmt.Errorf("failed to load price for %s on %s: %w", sec, domain.DateKey(date), err)
			}
			if point == nil {
				continue // No price for this date
			}

			snapshots = append(snapshots, buildSnapshot(account.ID, sec, date, *point, positions[sec], accumulators[sec].average()))
		}
	}

	s.log.Debug().
		Str("account_id", account.ID).
		Int("candidates", len(snapshots)).
		Int("securities", len(securities)).
		Msg("Forward simulation complete")

	return snapshots, nil
}

// buildSnapshot assembles a candidate snapshot for one security on one date
func buildSnapshot(accountID, securityID string, date time.Time, point domain.PricePoint, qty decimal.Decimal, costBasis *decimal.Decimal) Snapshot {
	source := SourceUnknown
	if costBasis != nil {
		source = SourceCalculated
	}
	return Snapshot{
		AccountID:       accountID,
		SecurityID:      securityID,
		Date:            date,
		Currency:        point.Currency,
		Quantity:        qty,
		Price:           point.Price,
		Amount:          qty.Mul(point.Price),
		CostBasis:       costBasis,
		CostBasisSource: source,
	}
}
