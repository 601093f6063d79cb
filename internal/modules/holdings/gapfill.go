package holdings

import (
	"sort"

	"github.com/aristath/lookback/internal/domain"
)

// GapFiller normalizes a raw candidate list into a contiguous per-security
// date series. Implementations must not fabricate prices before a security's
// first observation.
type GapFiller interface {
	Fill(candidates []Snapshot) []Snapshot
}

// ForwardFiller fills calendar holes by carrying the last known snapshot
// forward. A missing date between two observations gets the previous
// observation's quantity, price and cost basis. Nothing is generated before
// a security's first observed price or after its last.
type ForwardFiller struct{}

// NewForwardFiller creates the default gap filler
func NewForwardFiller() *ForwardFiller {
	return &ForwardFiller{}
}

// Fill returns the candidates plus carried-forward snapshots for any missing
// calendar days, ordered by (date, security).
func (f *ForwardFiller) Fill(candidates []Snapshot) []Snapshot {
	if len(candidates) == 0 {
		return candidates
	}

	// Group per security, preserving candidate order within each series.
	bySeries := make(map[string][]Snapshot)
	var order []string
	for _, snap := range candidates {
		key := snap.SecurityID + "\x00" + string(snap.Currency)
		if _, seen := bySeries[key]; !seen {
			order = append(order, key)
		}
		bySeries[key] = append(bySeries[key], snap)
	}

	var filled []Snapshot
	for _, key := range order {
		series := bySeries[key]
		sort.Slice(series, func(i, j int) bool {
			return series[i].Date.Before(series[j].Date)
		})

		filled = append(filled, series[0])
		for i := 1; i < len(series); i++ {
			prev := series[i-1]
			// Carry the previous snapshot across any calendar hole.
			for date := domain.Day(prev.Date).AddDate(0, 0, 1); date.Before(domain.Day(series[i].Date)); date = date.AddDate(0, 0, 1) {
				carried := prev
				carried.Date = date
				filled = append(filled, carried)
			}
			filled = append(filled, series[i])
		}
	}

	sort.Slice(filled, func(i, j int) bool {
		if !filled[i].Date.Equal(filled[j].Date) {
			return filled[i].Date.Before(filled[j].Date)
		}
		return filled[i].SecurityID < filled[j].SecurityID
	})

	return filled
}
