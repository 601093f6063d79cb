package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/lookback/internal/database"
)

// CheckpointJob truncates each database's WAL file on a schedule so it does
// not grow unbounded between restarts.
type CheckpointJob struct {
	dbs map[string]*database.DB
	log zerolog.Logger
}

// NewCheckpointJob creates a WAL checkpoint job over the given databases
func NewCheckpointJob(dbs map[string]*database.DB, log zerolog.Logger) *CheckpointJob {
	return &CheckpointJob{
		dbs: dbs,
		log: log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name
func (j *CheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run checkpoints every database
func (j *CheckpointJob) Run() error {
	for name, db := range j.dbs {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			return fmt.Errorf("failed to checkpoint %s: %w", name, err)
		}
		j.log.Debug().Str("database", name).Msg("WAL checkpoint complete")
	}

	return nil
}
