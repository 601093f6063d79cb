package holdings

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/lookback/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Strategy selects the direction of the history reconstruction
type Strategy string

const (
	// StrategyForward replays trades from the first trade to today.
	// The default, and the only strategy that purges stale rows.
	StrategyForward Strategy = "forward"
	// StrategyReverse walks backward from the latest persisted state.
	// Useful when recent state is trusted and early history is suspect.
	StrategyReverse Strategy = "reverse"
)

// SnapshotStore is the persistence surface the materializer writes through
type SnapshotStore interface {
	BulkUpsertWithCostBasis(snapshots []Snapshot) error
	BulkUpsertQuantityPrice(snapshots []Snapshot) error
	Get(key Key) (*Snapshot, error)
	DeleteBefore(accountID string, date time.Time) (int64, error)
	DeleteSecuritiesNotIn(accountID string, securityIDs []string) (int64, error)
}

// Result summarizes a materialization run
type Result struct {
	RunID           string `json:"run_id"`
	AccountID       string `json:"account_id"`
	Strategy        string `json:"strategy"`
	Candidates      int    `json:"candidates"`
	WithCostBasis   int    `json:"with_cost_basis"`
	QuantityOnly    int    `json:"quantity_only"`
	PurgedSnapshots int64  `json:"purged_snapshots"`
	DurationMS      int64  `json:"duration_ms"`
}

// Materializer runs the full reconstruction pipeline for one account:
// simulate, fill gaps, reconcile cost basis against stored state, persist
// in two passes, then purge rows the ledger no longer supports.
type Materializer struct {
	simulators map[Strategy]Simulator
	filler     GapFiller
	store      SnapshotStore
	trades     TradeSource
	log        zerolog.Logger
}

// NewMaterializer creates a materializer wired with both strategies
func NewMaterializer(forward, reverse Simulator, filler GapFiller, store SnapshotStore, trades TradeSource, log zerolog.Logger) *Materializer {
	return &Materializer{
		simulators: map[Strategy]Simulator{
			StrategyForward: forward,
			StrategyReverse: reverse,
		},
		filler: filler,
		store:  store,
		trades: trades,
		log:    log.With().Str("component", "materializer").Logger(),
	}
}

// Materialize rebuilds and persists the holdings history for an account.
// Re-running with unchanged inputs converges to the same stored rows.
// Persistence failures abort the run; there is no partial retry.
func (m *Materializer) Materialize(ctx context.Context, account domain.Account, strategy Strategy) (*Result, error) {
	sim, ok := m.simulators[strategy]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}

	runID := uuid.New().String()
	started := time.Now()
	runLog := m.log.With().
		Str("run_id", runID).
		Str("account_id", account.ID).
		Str("strategy", string(strategy)).
		Logger()

	runLog.Info().Msg("Materialization started")

	candidates, err := sim.Run(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to simulate holdings: %w", err)
	}

	candidates = m.filler.Fill(candidates)

	withCB, withoutCB, err := m.partition(candidates)
	if err != nil {
		return nil, err
	}

	if err := m.store.BulkUpsertWithCostBasis(withCB); err != nil {
		return nil, fmt.Errorf("failed to persist snapshots with cost basis: %w", err)
	}
	if err := m.store.BulkUpsertQuantityPrice(withoutCB); err != nil {
		return nil, fmt.Errorf("failed to persist snapshots: %w", err)
	}

	var purged int64
	if strategy == StrategyForward {
		purged, err = m.purge(account)
		if err != nil {
			return nil, err
		}
	}

	result := &Result{
		RunID:           runID,
		AccountID:       account.ID,
		Strategy:        string(strategy),
		Candidates:      len(candidates),
		WithCostBasis:   len(withCB),
		QuantityOnly:    len(withoutCB),
		PurgedSnapshots: purged,
		DurationMS:      time.Since(started).Milliseconds(),
	}

	runLog.Info().
		Int("candidates", result.Candidates).
		Int("with_cost_basis", result.WithCostBasis).
		Int("quantity_only", result.QuantityOnly).
		Int64("purged", result.PurgedSnapshots).
		Int64("duration_ms", result.DurationMS).
		Msg("Materialization finished")

	return result, nil
}

// partition reconciles each candidate's cost basis against the stored row
// and splits the batch in two: rows whose cost basis may be written, and
// rows whose cost basis columns must not be touched at all.
func (m *Materializer) partition(candidates []Snapshot) (withCB, withoutCB []Snapshot, err error) {
	for _, cand := range candidates {
		existing, err := m.store.Get(cand.Key())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load stored snapshot: %w", err)
		}

		decision := Reconcile(existing, cand.CostBasis, cand.CostBasisSource)
		if decision.ShouldWrite && decision.Value != nil {
			cand.CostBasis = decision.Value
			cand.CostBasisSource = decision.Source
			withCB = append(withCB, cand)
			continue
		}

		withoutCB = append(withoutCB, cand)
	}
	return withCB, withoutCB, nil
}

// purge removes stored rows the current ledger no longer supports: rows
// dated before the first trade and rows for securities with no trades left.
// An empty ledger clears the account's history entirely.
func (m *Materializer) purge(account domain.Account) (int64, error) {
	securityIDs, err := m.trades.Securities(account.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list traded securities: %w", err)
	}

	orphaned, err := m.store.DeleteSecuritiesNotIn(account.ID, securityIDs)
	if err != nil {
		return 0, err
	}

	var early int64
	start, err := m.trades.EarliestTradeDate(account.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve account start: %w", err)
	}
	if start != nil {
		early, err = m.store.DeleteBefore(account.ID, *start)
		if err != nil {
			return 0, err
		}
	}

	return orphaned + early, nil
}
