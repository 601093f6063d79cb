// Package cleanup provides data cleanup and maintenance functionality.
package cleanup

import (
	"fmt"

	"github.com/rs/zerolog"
)

// SecuritySource lists every security still referenced by a trade ledger
type SecuritySource interface {
	AllSecurities() ([]string, error)
}

// PriceStore deletes recorded prices for securities absent from a keep-list
type PriceStore interface {
	DeleteSecuritiesNotIn(securityIDs []string) (int64, error)
}

// HistoryCleanupJob removes daily prices for securities no trade ledger
// references anymore. Price history only exists to value held positions, so
// rows for securities nobody ever traded are dead weight.
type HistoryCleanupJob struct {
	securities SecuritySource
	prices     PriceStore
	log        zerolog.Logger
}

// NewHistoryCleanupJob creates a new history cleanup job
func NewHistoryCleanupJob(securities SecuritySource, prices PriceStore, log zerolog.Logger) *HistoryCleanupJob {
	return &HistoryCleanupJob{
		securities: securities,
		prices:     prices,
		log:        log.With().Str("job", "history_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *HistoryCleanupJob) Name() string {
	return "history_cleanup"
}

// Run deletes price history for securities absent from every trade ledger
func (j *HistoryCleanupJob) Run() error {
	keep, err := j.securities.AllSecurities()
	if err != nil {
		return fmt.Errorf("failed to list traded securities: %w", err)
	}

	// An empty ledger means no securities to keep; prices for an untraded
	// universe serve nothing.
	deleted, err := j.prices.DeleteSecuritiesNotIn(keep)
	if err != nil {
		return fmt.Errorf("failed to delete orphaned price history: %w", err)
	}

	if deleted > 0 {
		j.log.Info().
			Int64("deleted", deleted).
			Int("kept_securities", len(keep)).
			Msg("Removed orphaned price history")
	}

	return nil
}
