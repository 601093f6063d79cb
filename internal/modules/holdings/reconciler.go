package holdings

import "github.com/shopspring/decimal"

// Decision is the outcome of reconciling an incoming cost basis value against
// a stored snapshot. Value and Source are what should be persisted;
// ShouldWrite reports whether persisting them changes anything.
type Decision struct {
	Value       *decimal.Decimal
	Source      CostBasisSource
	ShouldWrite bool
}

// Reconcile decides which cost basis to keep when a new value arrives for a
// snapshot. It is pure and total: it never fails, performs no I/O, and is
// usable standalone by any code path that needs to merge a newly observed
// cost basis, not only the simulator's own output.
//
// Rules, in order:
//  1. A provider-reported zero is normalized to absence - zero is not a
//     trustworthy provider signal (it is, however, a legitimate manual value
//     for gifted or inherited shares).
//  2. No existing snapshot: adopt the incoming value verbatim. The source tag
//     is only set when a value is present.
//  3. A locked snapshot is an absolute veto, independent of priority.
//  4. Otherwise the incoming source must rank at or above the existing source
//     and carry a value. Re-submitting the identical source and value is a
//     no-op so recomputations don't churn writes.
func Reconcile(existing *Snapshot, incoming *decimal.Decimal, source CostBasisSource) Decision {
	// Provider zero means "we don't know", not "it cost nothing".
	if source == SourceProvider && incoming != nil && incoming.IsZero() {
		incoming = nil
	}

	if existing == nil {
		if incoming == nil {
			return Decision{Value: nil, Source: SourceUnknown, ShouldWrite: true}
		}
		return Decision{Value: incoming, Source: source, ShouldWrite: true}
	}

	if existing.CostBasisLocked {
		return Decision{Value: existing.CostBasis, Source: existing.CostBasisSource, ShouldWrite: false}
	}

	keep := Decision{Value: existing.CostBasis, Source: existing.CostBasisSource, ShouldWrite: false}

	if incoming == nil || source.Rank() < existing.CostBasisSource.Rank() {
		return keep
	}

	// Identical source and value: skip the redundant write.
	if source == existing.CostBasisSource &&
		existing.CostBasis != nil && incoming.Equal(*existing.CostBasis) {
		return keep
	}

	return Decision{Value: incoming, Source: source, ShouldWrite: true}
}
