package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lookback/internal/modules/holdings"
	"github.com/aristath/lookback/internal/utils"
)

// MaterializeJob rebuilds every account's holdings history on schedule.
// The nightly run uses the forward strategy so stale rows get purged.
type MaterializeJob struct {
	service *holdings.Service
	timeout time.Duration
	log     zerolog.Logger
}

// NewMaterializeJob creates the nightly materialization job
func NewMaterializeJob(service *holdings.Service, log zerolog.Logger) *MaterializeJob {
	return &MaterializeJob{
		service: service,
		timeout: 30 * time.Minute,
		log:     log.With().Str("job", "materialize").Logger(),
	}
}

// Name returns the job name
func (j *MaterializeJob) Name() string {
	return "holdings_materialize"
}

// Run materializes all accounts with the forward strategy
func (j *MaterializeJob) Run() error {
	timer := utils.NewTimer("materialize_sweep", j.log)
	defer timer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	j.service.MaterializeAll(ctx, holdings.StrategyForward)
	return nil
}
