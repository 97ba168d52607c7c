package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"telegram-karma-bot/internal/model"
	"telegram-karma-bot/internal/repository"
)

// RankingService builds the read-only views over the ledger.
type RankingService struct {
	ledger *repository.Ledger
	now    func() time.Time
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(ledger *repository.Ledger) *RankingService {
	return &RankingService{
		ledger: ledger,
		now:    time.Now,
	}
}

// Leaderboard returns the members of chatID ordered by karma, highest first.
// The second return value is false when the chat has no members yet.
// Members with equal karma keep their membership order.
func (s *RankingService) Leaderboard(ctx context.Context, chatID int64) ([]model.LeaderboardEntry, bool, error) {
	members, err := s.ledger.Members(ctx, chatID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get members: %w", err)
	}
	if len(members) == 0 {
		return nil, false, nil
	}

	entries := make([]model.LeaderboardEntry, 0, len(members))
	for _, id := range members {
		karma, err := s.ledger.Balance(ctx, id)
		if err != nil {
			return nil, false, fmt.Errorf("failed to get karma of %d: %w", id, err)
		}
		entries = append(entries, model.LeaderboardEntry{UserID: id, Karma: karma})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Karma > entries[j].Karma
	})
	return entries, true, nil
}

// Stats returns a user's karma and the quota they would have for a grant made
// now. An expired quota window is reported as the defaults without being
// written back.
func (s *RankingService) Stats(ctx context.Context, userID int64) (model.Stats, error) {
	karma, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return model.Stats{}, fmt.Errorf("failed to get karma: %w", err)
	}

	last, err := s.ledger.LastGrant(ctx, userID)
	if err != nil {
		return model.Stats{}, fmt.Errorf("failed to get last grant: %w", err)
	}

	stats := model.Stats{Karma: karma}
	if IsQuotaExpired(last, s.now()) {
		stats.Up = s.ledger.DefaultQuota(model.PolarityUp)
		stats.Down = s.ledger.DefaultQuota(model.PolarityDown)
		return stats, nil
	}

	if stats.Up, err = s.ledger.Quota(ctx, userID, model.PolarityUp); err != nil {
		return model.Stats{}, fmt.Errorf("failed to get up quota: %w", err)
	}
	if stats.Down, err = s.ledger.Quota(ctx, userID, model.PolarityDown); err != nil {
		return model.Stats{}, fmt.Errorf("failed to get down quota: %w", err)
	}
	return stats, nil
}

// History returns the karma samples recorded for a user, oldest first.
func (s *RankingService) History(ctx context.Context, userID int64) ([]model.Sample, error) {
	samples, err := s.ledger.History(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return samples, nil
}
