package holdings

import (
	"context"
	"fmt"
	"sync"

	"github.com/aristath/lookback/internal/domain"
	"github.com/rs/zerolog"
)

// AccountSource resolves accounts for materialization requests
type AccountSource interface {
	Get(id string) (*domain.Account, error)
	GetAll() ([]domain.Account, error)
}

// Service coordinates materialization requests from the HTTP API and the
// scheduler. Runs for the same account are serialized; different accounts
// run concurrently.
type Service struct {
	materializer *Materializer
	accounts     AccountSource
	snapshots    *SnapshotRepository
	log          zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a holdings service
func NewService(materializer *Materializer, accounts AccountSource, snapshots *SnapshotRepository, log zerolog.Logger) *Service {
	return &Service{
		materializer: materializer,
		accounts:     accounts,
		snapshots:    snapshots,
		log:          log.With().Str("service", "holdings").Logger(),
		locks:        make(map[string]*sync.Mutex),
	}
}

// accountLock returns the mutex guarding one account's materialization
func (s *Service) accountLock(accountID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[accountID] = lock
	}
	return lock
}

// Materialize rebuilds the holdings history for one account
func (s *Service) Materialize(ctx context.Context, accountID string, strategy Strategy) (*Result, error) {
	account, err := s.accounts.Get(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %s not found", accountID)
	}

	lock := s.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	return s.materializer.Materialize(ctx, *account, strategy)
}

// MaterializeAll rebuilds every account's history. Errors are logged per
// account and do not stop the remaining accounts.
func (s *Service) MaterializeAll(ctx context.Context, strategy Strategy) {
	accounts, err := s.accounts.GetAll()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list accounts for materialization")
		return
	}

	for _, account := range accounts {
		if ctx.Err() != nil {
			s.log.Warn().Msg("Materialization sweep cancelled")
			return
		}

		if _, err := s.Materialize(ctx, account.ID, strategy); err != nil {
			s.log.Error().Err(err).Str("account_id", account.ID).Msg("Materialization failed")
		}
	}
}

// History returns all stored snapshots for an account
func (s *Service) History(accountID string) ([]Snapshot, error) {
	return s.snapshots.ListByAccount(accountID)
}

// SecurityHistory returns an account's stored series for one security
func (s *Service) SecurityHistory(accountID, securityID string) ([]Snapshot, error) {
	return s.snapshots.ListBySecurity(accountID, securityID)
}

// SetCostBasisLock sets or clears the cost basis lock on a snapshot
func (s *Service) SetCostBasisLock(key Key, locked bool) error {
	lock := s.accountLock(key.AccountID)
	lock.Lock()
	defer lock.Unlock()

	return s.snapshots.SetLock(key, locked)
}
