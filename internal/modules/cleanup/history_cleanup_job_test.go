package cleanup

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSecuritySource struct {
	securities []string
	err        error
}

func (s *stubSecuritySource) AllSecurities() ([]string, error) {
	return s.securities, s.err
}

type stubPriceStore struct {
	gotKeep []string
	deleted int64
	err     error
}

func (s *stubPriceStore) DeleteSecuritiesNotIn(securityIDs []string) (int64, error) {
	s.gotKeep = securityIDs
	return s.deleted, s.err
}

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestHistoryCleanupJob_PassesKeepList(t *testing.T) {
	securities := &stubSecuritySource{securities: []string{"AAPL", "MSFT"}}
	prices := &stubPriceStore{deleted: 3}

	job := NewHistoryCleanupJob(securities, prices, testLogger())

	require.NoError(t, job.Run())
	assert.Equal(t, []string{"AAPL", "MSFT"}, prices.gotKeep)
}

func TestHistoryCleanupJob_PropagatesErrors(t *testing.T) {
	t.Run("security listing fails", func(t *testing.T) {
		securities := &stubSecuritySource{err: errors.New("db gone")}
		job := NewHistoryCleanupJob(securities, &stubPriceStore{}, testLogger())

		assert.Error(t, job.Run())
	})

	t.Run("delete fails", func(t *testing.T) {
		prices := &stubPriceStore{err: errors.New("db gone")}
		job := NewHistoryCleanupJob(&stubSecuritySource{}, prices, testLogger())

		assert.Error(t, job.Run())
	})
}
