package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// slowOperation is the elapsed time past which a finished operation is
// logged at warn level instead of debug.
const slowOperation = 30 * time.Second

// slowQuery is the same threshold for individual database statements.
const slowQuery = 5 * time.Second

// Timer measures the wall time of a named operation
type Timer struct {
	name  string
	start time.Time
	log   zerolog.Logger
}

// NewTimer starts a timer for the named operation
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
		log:   log,
	}
}

// Stop logs the elapsed time and returns it
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)

	evt := t.log.Debug()
	if elapsed > slowOperation {
		evt = t.log.Warn()
	}
	evt.Str("operation", t.name).
		Dur("duration_ms", elapsed).
		Msg("Operation finished")

	return elapsed
}

// TrackQuery returns a completion func for a database statement. Call it
// with the affected row count once the statement finishes; the elapsed time
// and row count are logged, slow statements at warn level.
//
//	done := utils.TrackQuery("bulk_upsert", log)
//	...
//	done(int64(len(rows)))
func TrackQuery(name string, log zerolog.Logger) func(rowsAffected int64) {
	start := time.Now()

	return func(rowsAffected int64) {
		elapsed := time.Since(start)

		evt := log.Debug()
		if elapsed > slowQuery {
			evt = log.Warn()
		}
		evt.Str("query", name).
			Dur("duration_ms", elapsed).
			Int64("rows_affected", rowsAffected).
			Msg("Query finished")
	}
}
