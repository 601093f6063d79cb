// Package holdings reconstructs the day-by-day history of an account's
// security holdings from its trade ledger and price history, reconciles
// computed cost basis against previously stored values, and persists the
// result as queryable snapshots.
package holdings

import "fmt"

// CostBasisSource records which kind of process last set a cost basis value.
// It arbitrates overwrite permission: a value may only be replaced by a source
// of equal or higher rank.
type CostBasisSource string

const (
	// SourceManual is a user-entered value. Highest rank; nothing automated
	// may replace it.
	SourceManual CostBasisSource = "manual"
	// SourceCalculated is a value derived from replaying the trade ledger.
	SourceCalculated CostBasisSource = "calculated"
	// SourceProvider is a value reported by an external data provider.
	SourceProvider CostBasisSource = "provider"
	// SourceUnknown means no trustworthy value exists. Equivalent to a nil
	// cost basis.
	SourceUnknown CostBasisSource = "unknown"
)

// Rank returns the source's position in the overwrite priority order.
// Higher rank wins: manual > calculated > provider > unknown.
func (s CostBasisSource) Rank() int {
	switch s {
	case SourceManual:
		return 3
	case SourceCalculated:
		return 2
	case SourceProvider:
		return 1
	default:
		return 0
	}
}

// ParseCostBasisSource converts a stored string back into a source tag.
// Empty strings map to SourceUnknown (nullable column).
func ParseCostBasisSource(s string) (CostBasisSource, error) {
	switch CostBasisSource(s) {
	case SourceManual, SourceCalculated, SourceProvider, SourceUnknown:
		return CostBasisSource(s), nil
	case "":
		return SourceUnknown, nil
	default:
		return SourceUnknown, fmt.Errorf("unknown cost basis source %q", s)
	}
}
