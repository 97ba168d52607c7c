package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"telegram-karma-bot/internal/pkg/lock"
	"telegram-karma-bot/internal/repository"
)

// AdminService implements the operator commands.
type AdminService struct {
	ledger *repository.Ledger
	locks  *lock.UserLock
}

// NewAdminService creates a new AdminService instance.
func NewAdminService(ledger *repository.Ledger, locks *lock.UserLock) *AdminService {
	return &AdminService{
		ledger: ledger,
		locks:  locks,
	}
}

// ResetUser forgets the last grant of userID so their next grant starts a
// fresh quota window. It reports whether a timestamp was stored.
func (s *AdminService) ResetUser(ctx context.Context, userID int64) (bool, error) {
	var removed bool
	err := s.locks.WithLock(userID, func() error {
		var err error
		removed, err = s.ledger.RemoveLastGrant(ctx, userID)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to reset user %d: %w", userID, err)
	}

	log.Info().Int64("user_id", userID).Bool("removed", removed).Msg("Quota reset")
	return removed, nil
}

// ResetAll forgets the last grant of every user.
func (s *AdminService) ResetAll(ctx context.Context) error {
	if err := s.ledger.ClearLastGrants(ctx); err != nil {
		return fmt.Errorf("failed to reset all users: %w", err)
	}

	log.Info().Msg("Quota reset for all users")
	return nil
}
