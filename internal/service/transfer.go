// Package service provides the karma transfer engine and the aggregate views
// built on the ledger.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-karma-bot/internal/model"
	"telegram-karma-bot/internal/pkg/lock"
	"telegram-karma-bot/internal/repository"
)

// ErrInvalidPolarity is returned for grant requests without a valid polarity.
var ErrInvalidPolarity = errors.New("invalid grant polarity")

// TransferService executes karma grants between users.
//
// A grant is paid with one of the giver's daily quota points. When the quota
// of the requested polarity is exhausted the engine offers a fallback instead:
// once the giver confirms, one point of the giver's own karma pays for it.
// Every operation holds the giver's and the receiver's locks for its whole
// read-modify-write sequence.
type TransferService struct {
	ledger *repository.Ledger
	locks  *lock.UserLock
	now    func() time.Time
}

// NewTransferService creates a new TransferService instance.
func NewTransferService(ledger *repository.Ledger, locks *lock.UserLock) *TransferService {
	return &TransferService{
		ledger: ledger,
		locks:  locks,
		now:    time.Now,
	}
}

// acceptable checks the grant preconditions. Self grants and grants involving
// bots are dropped without an error.
func acceptable(req model.GrantRequest) (bool, error) {
	if !req.Polarity.Valid() {
		return false, ErrInvalidPolarity
	}
	return req.GiverID != req.ReceiverID && !req.GiverBot && !req.ReceiverBot, nil
}

func rejected(req model.GrantRequest) model.GrantResult {
	return model.GrantResult{
		Outcome:    model.GrantRejected,
		Polarity:   req.Polarity,
		GiverID:    req.GiverID,
		ReceiverID: req.ReceiverID,
	}
}

// Grant executes a reply-style grant. It applies the grant directly when the
// giver has a quota point left, otherwise it returns GrantFallbackOffered
// without touching any balance.
func (s *TransferService) Grant(ctx context.Context, req model.GrantRequest) (model.GrantResult, error) {
	if ok, err := acceptable(req); !ok {
		return rejected(req), err
	}

	unlock := s.locks.LockAll(req.GiverID, req.ReceiverID)
	defer unlock()

	now := s.now()
	available, err := s.availableQuota(ctx, req.GiverID, req.Polarity, now)
	if err != nil {
		return model.GrantResult{}, err
	}

	if available < 1 {
		return model.GrantResult{
			Outcome:    model.GrantFallbackOffered,
			Polarity:   req.Polarity,
			GiverID:    req.GiverID,
			ReceiverID: req.ReceiverID,
		}, nil
	}

	receiverBalance, err := s.applyDirect(ctx, req, available, now)
	if err != nil {
		return model.GrantResult{}, err
	}

	return model.GrantResult{
		Outcome:         model.GrantApplied,
		Polarity:        req.Polarity,
		GiverID:         req.GiverID,
		ReceiverID:      req.ReceiverID,
		ReceiverBalance: receiverBalance,
		Source:          model.SourcePoints,
	}, nil
}

// ConfirmFallback executes a fallback the giver accepted. The quota is
// re-evaluated first: if a point became available since the offer, the grant
// is paid with it. Otherwise one point of the giver's karma pays, provided the
// giver has at least one.
func (s *TransferService) ConfirmFallback(ctx context.Context, req model.GrantRequest) (model.GrantResult, error) {
	if ok, err := acceptable(req); !ok {
		return rejected(req), err
	}

	unlock := s.locks.LockAll(req.GiverID, req.ReceiverID)
	defer unlock()

	now := s.now()
	available, err := s.availableQuota(ctx, req.GiverID, req.Polarity, now)
	if err != nil {
		return model.GrantResult{}, err
	}

	result := model.GrantResult{
		Outcome:    model.GrantFallbackApplied,
		Polarity:   req.Polarity,
		GiverID:    req.GiverID,
		ReceiverID: req.ReceiverID,
	}

	if available >= 1 {
		result.ReceiverBalance, err = s.applyDirect(ctx, req, available, now)
		if err != nil {
			return model.GrantResult{}, err
		}
		result.GiverBalance, err = s.ledger.Balance(ctx, req.GiverID)
		if err != nil {
			return model.GrantResult{}, fmt.Errorf("failed to get giver karma: %w", err)
		}
		result.Source = model.SourcePoints
		return result, nil
	}

	giverBalance, err := s.ledger.Balance(ctx, req.GiverID)
	if err != nil {
		return model.GrantResult{}, fmt.Errorf("failed to get giver karma: %w", err)
	}
	if giverBalance < 1 {
		result.Outcome = model.GrantInsufficientKarma
		result.GiverBalance = giverBalance
		return result, nil
	}

	giverBalance--
	if err := s.ledger.SetBalance(ctx, req.GiverID, giverBalance); err != nil {
		return model.GrantResult{}, fmt.Errorf("failed to debit giver karma: %w", err)
	}

	receiverBalance, err := s.credit(ctx, req, now)
	if err != nil {
		return model.GrantResult{}, err
	}

	result.ReceiverBalance = receiverBalance
	result.GiverBalance = giverBalance
	result.Source = model.SourceKarma
	return result, nil
}

// availableQuota resets the giver's counters when the quota window expired
// and returns the remaining points of polarity p.
func (s *TransferService) availableQuota(ctx context.Context, giverID int64, p model.Polarity, now time.Time) (int64, error) {
	last, err := s.ledger.LastGrant(ctx, giverID)
	if err != nil {
		return 0, fmt.Errorf("failed to get last grant: %w", err)
	}

	if IsQuotaExpired(last, now) {
		if err := s.ledger.ResetQuota(ctx, giverID); err != nil {
			return 0, fmt.Errorf("failed to reset quota: %w", err)
		}
	}

	available, err := s.ledger.Quota(ctx, giverID, p)
	if err != nil {
		return 0, fmt.Errorf("failed to get quota: %w", err)
	}
	return available, nil
}

// applyDirect spends one quota point, refreshes the giver's quota window and
// credits the receiver.
func (s *TransferService) applyDirect(ctx context.Context, req model.GrantRequest, available int64, now time.Time) (int64, error) {
	if err := s.ledger.SetQuota(ctx, req.GiverID, req.Polarity, available-1); err != nil {
		return 0, fmt.Errorf("failed to consume quota: %w", err)
	}
	if err := s.ledger.SetLastGrant(ctx, req.GiverID, now.Unix()); err != nil {
		return 0, fmt.Errorf("failed to set last grant: %w", err)
	}
	return s.credit(ctx, req, now)
}

// credit applies the polarity delta to the receiver, records the new balance
// in the receiver's history and registers both users as chat members.
func (s *TransferService) credit(ctx context.Context, req model.GrantRequest, now time.Time) (int64, error) {
	balance, err := s.ledger.Balance(ctx, req.ReceiverID)
	if err != nil {
		return 0, fmt.Errorf("failed to get receiver karma: %w", err)
	}

	balance += req.Polarity.Delta()
	if err := s.ledger.SetBalance(ctx, req.ReceiverID, balance); err != nil {
		return 0, fmt.Errorf("failed to update receiver karma: %w", err)
	}

	sample := model.Sample{Timestamp: now.Unix(), Karma: balance}
	if err := s.ledger.AppendHistory(ctx, req.ReceiverID, sample); err != nil {
		return 0, fmt.Errorf("failed to append history: %w", err)
	}

	if req.ChatID != 0 {
		if err := s.ledger.AddMembers(ctx, req.ChatID, req.GiverID, req.ReceiverID); err != nil {
			return 0, fmt.Errorf("failed to add members: %w", err)
		}
	}

	return balance, nil
}
