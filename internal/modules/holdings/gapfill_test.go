package holdings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/lookback/internal/domain"
)

func candidate(securityID, dateKey, qty string) Snapshot {
	d, err := domain.ParseDateKey(dateKey)
	if err != nil {
		panic(err)
	}
	return Snapshot{
		AccountID:       "acc-1",
		SecurityID:      securityID,
		Date:            d,
		Currency:        domain.CurrencyEUR,
		Quantity:        dec(qty),
		Price:           dec("100"),
		Amount:          dec(qty).Mul(dec("100")),
		CostBasis:       decPtr("100"),
		CostBasisSource: SourceCalculated,
	}
}

func TestForwardFiller_FillsCalendarHoles(t *testing.T) {
	filler := NewForwardFiller()

	filled := filler.Fill([]Snapshot{
		candidate("AAPL", "2024-01-01", "10"),
		candidate("AAPL", "2024-01-04", "15"),
	})

	require.Len(t, filled, 4)
	assert.Equal(t, "2024-01-01", domain.DateKey(filled[0].Date))
	assert.Equal(t, "2024-01-02", domain.DateKey(filled[1].Date))
	assert.Equal(t, "2024-01-03", domain.DateKey(filled[2].Date))
	assert.Equal(t, "2024-01-04", domain.DateKey(filled[3].Date))

	// Carried days repeat the last observation, they do not anticipate the next.
	assert.True(t, filled[1].Quantity.Equal(dec("10")))
	assert.True(t, filled[2].Quantity.Equal(dec("10")))
	assert.True(t, filled[3].Quantity.Equal(dec("15")))
}

func TestForwardFiller_NothingBeforeFirstOrAfterLast(t *testing.T) {
	filler := NewForwardFiller()

	filled := filler.Fill([]Snapshot{
		candidate("AAPL", "2024-01-05", "10"),
		candidate("AAPL", "2024-01-06", "10"),
	})

	require.Len(t, filled, 2)
	assert.Equal(t, "2024-01-05", domain.DateKey(filled[0].Date))
	assert.Equal(t, "2024-01-06", domain.DateKey(filled[1].Date))
}

func TestForwardFiller_SeriesAreIndependent(t *testing.T) {
	filler := NewForwardFiller()

	filled := filler.Fill([]Snapshot{
		candidate("AAPL", "2024-01-01", "10"),
		candidate("AAPL", "2024-01-03", "10"),
		candidate("MSFT", "2024-01-02", "5"),
		candidate("MSFT", "2024-01-03", "5"),
	})

	// AAPL gets Jan 2 filled; MSFT starts on Jan 2 and gets nothing extra.
	require.Len(t, filled, 5)

	var aapl, msft int
	for _, snap := range filled {
		switch snap.SecurityID {
		case "AAPL":
			aapl++
		case "MSFT":
			msft++
		}
	}
	assert.Equal(t, 3, aapl)
	assert.Equal(t, 2, msft)

	// Ordered by date then security.
	assert.Equal(t, "2024-01-01", domain.DateKey(filled[0].Date))
	assert.Equal(t, "AAPL", filled[1].SecurityID)
	assert.Equal(t, "MSFT", filled[2].SecurityID)
}

func TestForwardFiller_EmptyInput(t *testing.T) {
	filler := NewForwardFiller()
	assert.Empty(t, filler.Fill(nil))
}
