package holdings

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/lookback/internal/domain"
)

// fakePositionSource serves latest positions from a map
type fakePositionSource struct {
	positions map[string]decimal.Decimal
}

func (f *fakePositionSource) LatestPositions(accountID string) (map[string]decimal.Decimal, error) {
	return f.positions, nil
}

func TestReverseSimulator_MatchesForwardReplay(t *testing.T) {
	trades := &fakeTradeSource{trades: []domain.Trade{
		trade("AAPL", "2024-01-01", "10", "100"),
		trade("AAPL", "2024-01-02", "10", "120"),
		trade("AAPL", "2024-01-03", "-5", "130"),
		trade("MSFT", "2024-01-02", "3", "200"),
	}}
	prices := &fakePriceSource{prices: map[string]map[string]decimal.Decimal{
		"AAPL": {
			"2024-01-01": dec("100"),
			"2024-01-02": dec("121"),
			"2024-01-03": dec("130"),
			"2024-01-04": dec("128"),
		},
		"MSFT": {
			"2024-01-02": dec("200"),
			"2024-01-03": dec("205"),
			"2024-01-04": dec("210"),
		},
	}}
	rates := &fakeRateSource{}

	forward := NewForwardSimulator(trades, prices, rates, testLogger())
	forward.now = fixedNow("2024-01-04")

	want, err := forward.Run(context.Background(), testAccount())
	require.NoError(t, err)
	require.NotEmpty(t, want)

	// Reverse starts from the forward replay's final positions.
	positions := &fakePositionSource{positions: map[string]decimal.Decimal{
		"AAPL": dec("15"),
		"MSFT": dec("3"),
	}}

	reverse := NewReverseSimulator(trades, prices, rates, positions, testLogger())
	reverse.now = fixedNow("2024-01-04")

	got, err := reverse.Run(context.Background(), testAccount())
	require.NoError(t, err)
	require.Len(t, got, len(want))

	for i := range want {
		assert.Equal(t, want[i].SecurityID, got[i].SecurityID, "snapshot %d", i)
		assert.Equal(t, domain.DateKey(want[i].Date), domain.DateKey(got[i].Date), "snapshot %d", i)
		assert.True(t, want[i].Quantity.Equal(got[i].Quantity),
			"snapshot %d quantity: want %s got %s", i, want[i].Quantity, got[i].Quantity)
		if want[i].CostBasis == nil {
			assert.Nil(t, got[i].CostBasis, "snapshot %d", i)
			continue
		}
		require.NotNil(t, got[i].CostBasis, "snapshot %d", i)
		assert.True(t, want[i].CostBasis.Equal(*got[i].CostBasis),
			"snapshot %d cost basis: want %s got %s", i, want[i].CostBasis, got[i].CostBasis)
	}
}

func TestReverseSimulator_EmptyLedger(t *testing.T) {
	sim := NewReverseSimulator(&fakeTradeSource{}, &fakePriceSource{}, &fakeRateSource{}, &fakePositionSource{}, testLogger())

	snapshots, err := sim.Run(context.Background(), testAccount())
	require.NoError(t, err)
	assert.Nil(t, snapshots)
}
