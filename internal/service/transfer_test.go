package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-karma-bot/internal/model"
)

func up(giver, receiver int64) model.GrantRequest {
	return model.GrantRequest{ChatID: testChat, GiverID: giver, ReceiverID: receiver, Polarity: model.PolarityUp}
}

func down(giver, receiver int64) model.GrantRequest {
	return model.GrantRequest{ChatID: testChat, GiverID: giver, ReceiverID: receiver, Polarity: model.PolarityDown}
}

func TestGrant_DirectUp(t *testing.T) {
	f := newFixture()

	// Giver has already used five up points today.
	require.NoError(t, f.ledger.SetLastGrant(f.ctx, 1, f.clock.t.Add(-time.Hour).Unix()))
	require.NoError(t, f.ledger.SetQuota(f.ctx, 1, model.PolarityUp, 1))
	require.NoError(t, f.ledger.SetQuota(f.ctx, 1, model.PolarityDown, 2))
	require.NoError(t, f.ledger.SetBalance(f.ctx, 1, 5))

	result, err := f.transfer.Grant(f.ctx, up(1, 2))
	require.NoError(t, err)
	assert.Equal(t, model.GrantApplied, result.Outcome)
	assert.Equal(t, model.SourcePoints, result.Source)
	assert.Equal(t, int64(1), result.ReceiverBalance)

	upQuota, err := f.ledger.Quota(f.ctx, 1, model.PolarityUp)
	require.NoError(t, err)
	assert.Equal(t, int64(0), upQuota)

	downQuota, err := f.ledger.Quota(f.ctx, 1, model.PolarityDown)
	require.NoError(t, err)
	assert.Equal(t, int64(2), downQuota)

	giverBalance, err := f.ledger.Balance(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), giverBalance)

	receiverBalance, err := f.ledger.Balance(f.ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), receiverBalance)

	last, err := f.ledger.LastGrant(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, f.clock.t.Unix(), last)

	history, err := f.ledger.History(f.ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []model.Sample{{Timestamp: f.clock.t.Unix(), Karma: 1}}, history)

	giverHistory, err := f.ledger.History(f.ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, giverHistory)

	members, err := f.ledger.Members(f.ctx, testChat)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, members)
}

func TestGrant_Preconditions(t *testing.T) {
	tests := []struct {
		name string
		req  model.GrantRequest
	}{
		{"self grant", up(1, 1)},
		{"bot giver", model.GrantRequest{ChatID: testChat, GiverID: 1, ReceiverID: 2, Polarity: model.PolarityUp, GiverBot: true}},
		{"bot receiver", model.GrantRequest{ChatID: testChat, GiverID: 1, ReceiverID: 2, Polarity: model.PolarityDown, ReceiverBot: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()

			result, err := f.transfer.Grant(f.ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, model.GrantRejected, result.Outcome)

			result, err = f.transfer.ConfirmFallback(f.ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, model.GrantRejected, result.Outcome)

			for _, id := range []int64{1, 2} {
				balance, err := f.ledger.Balance(f.ctx, id)
				require.NoError(t, err)
				assert.Equal(t, int64(0), balance)

				last, err := f.ledger.LastGrant(f.ctx, id)
				require.NoError(t, err)
				assert.Equal(t, int64(0), last)
			}

			members, err := f.ledger.Members(f.ctx, testChat)
			require.NoError(t, err)
			assert.Empty(t, members)
		})
	}
}

func TestGrant_InvalidPolarity(t *testing.T) {
	f := newFixture()
	req := model.GrantRequest{ChatID: testChat, GiverID: 1, ReceiverID: 2}

	result, err := f.transfer.Grant(f.ctx, req)
	assert.ErrorIs(t, err, ErrInvalidPolarity)
	assert.Equal(t, model.GrantRejected, result.Outcome)

	_, err = f.transfer.ConfirmFallback(f.ctx, req)
	assert.ErrorIs(t, err, ErrInvalidPolarity)

	last, err := f.ledger.LastGrant(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)
}

func TestGrant_ExhaustedQuotaOffersFallback(t *testing.T) {
	f := newFixture()

	for i := 0; i < 2; i++ {
		result, err := f.transfer.Grant(f.ctx, down(1, 2))
		require.NoError(t, err)
		require.Equal(t, model.GrantApplied, result.Outcome)
	}

	result, err := f.transfer.Grant(f.ctx, down(1, 2))
	require.NoError(t, err)
	assert.Equal(t, model.GrantFallbackOffered, result.Outcome)
	assert.Equal(t, model.FallbackOffer{Polarity: model.PolarityDown, ReceiverID: 2}, result.Offer())

	balance, err := f.ledger.Balance(f.ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), balance, "down grants may take a balance below zero")

	// Up points are counted separately.
	result, err = f.transfer.Grant(f.ctx, up(1, 2))
	require.NoError(t, err)
	assert.Equal(t, model.GrantApplied, result.Outcome)
	assert.Equal(t, int64(-1), result.ReceiverBalance)
}

func TestGrant_QuotaResetsAfterMidnight(t *testing.T) {
	f := newFixture()

	for i := 0; i < 6; i++ {
		result, err := f.transfer.Grant(f.ctx, up(1, 2))
		require.NoError(t, err)
		require.Equal(t, model.GrantApplied, result.Outcome)
	}

	result, err := f.transfer.Grant(f.ctx, up(1, 2))
	require.NoError(t, err)
	require.Equal(t, model.GrantFallbackOffered, result.Outcome)

	// Exactly midnight still belongs to the old window.
	f.clock.t = time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	result, err = f.transfer.Grant(f.ctx, up(1, 2))
	require.NoError(t, err)
	require.Equal(t, model.GrantFallbackOffered, result.Outcome)

	f.clock.Advance(time.Second)
	result, err = f.transfer.Grant(f.ctx, up(1, 2))
	require.NoError(t, err)
	assert.Equal(t, model.GrantApplied, result.Outcome)
	assert.Equal(t, int64(7), result.ReceiverBalance)

	remaining, err := f.ledger.Quota(f.ctx, 1, model.PolarityUp)
	require.NoError(t, err)
	assert.Equal(t, int64(5), remaining)
}

func exhaustUp(t *testing.T, f *fixture, giver, receiver int64) {
	t.Helper()
	require.NoError(t, f.ledger.SetLastGrant(f.ctx, giver, f.clock.t.Unix()))
	require.NoError(t, f.ledger.SetQuota(f.ctx, giver, model.PolarityUp, 0))
	result, err := f.transfer.Grant(f.ctx, up(giver, receiver))
	require.NoError(t, err)
	require.Equal(t, model.GrantFallbackOffered, result.Outcome)
}

func TestConfirmFallback_PaidWithKarma(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.ledger.SetBalance(f.ctx, 1, 3))
	exhaustUp(t, f, 1, 2)
	lastBefore, err := f.ledger.LastGrant(f.ctx, 1)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	result, err := f.transfer.ConfirmFallback(f.ctx, up(1, 2))
	require.NoError(t, err)
	assert.Equal(t, model.GrantFallbackApplied, result.Outcome)
	assert.Equal(t, model.SourceKarma, result.Source)
	assert.Equal(t, int64(2), result.GiverBalance)
	assert.Equal(t, int64(1), result.ReceiverBalance)

	lastAfter, err := f.ledger.LastGrant(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, lastBefore, lastAfter)

	history, err := f.ledger.History(f.ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []model.Sample{{Timestamp: f.clock.t.Unix(), Karma: 1}}, history)

	members, err := f.ledger.Members(f.ctx, testChat)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, members)
}

func TestConfirmFallback_InsufficientKarma(t *testing.T) {
	f := newFixture()
	exhaustUp(t, f, 1, 2)

	result, err := f.transfer.ConfirmFallback(f.ctx, up(1, 2))
	require.NoError(t, err)
	assert.Equal(t, model.GrantInsufficientKarma, result.Outcome)
	assert.Equal(t, int64(0), result.GiverBalance)

	for _, id := range []int64{1, 2} {
		balance, err := f.ledger.Balance(f.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(0), balance)
	}

	history, err := f.ledger.History(f.ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestConfirmFallback_UsesQuotaWhenRenewed(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.ledger.SetBalance(f.ctx, 1, 4))
	exhaustUp(t, f, 1, 2)

	f.clock.Advance(24 * time.Hour)
	result, err := f.transfer.ConfirmFallback(f.ctx, up(1, 2))
	require.NoError(t, err)
	assert.Equal(t, model.GrantFallbackApplied, result.Outcome)
	assert.Equal(t, model.SourcePoints, result.Source)
	assert.Equal(t, int64(4), result.GiverBalance)
	assert.Equal(t, int64(1), result.ReceiverBalance)

	remaining, err := f.ledger.Quota(f.ctx, 1, model.PolarityUp)
	require.NoError(t, err)
	assert.Equal(t, int64(5), remaining)

	last, err := f.ledger.LastGrant(f.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, f.clock.t.Unix(), last)
}

func TestGrant_HistoryKeepsMostRecent(t *testing.T) {
	f := newFixture()

	for i := 0; i < 105; i++ {
		giver := int64(100 + i)
		result, err := f.transfer.Grant(f.ctx, up(giver, 2))
		require.NoError(t, err)
		require.Equal(t, model.GrantApplied, result.Outcome)
		f.clock.Advance(time.Second)
	}

	history, err := f.ledger.History(f.ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 100)
	assert.Equal(t, int64(6), history[0].Karma)
	assert.Equal(t, int64(105), history[99].Karma)
}

func TestGrant_ConcurrentGiverNeverOverspends(t *testing.T) {
	f := newFixture()

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan model.GrantOutcome, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(receiver int64) {
			defer wg.Done()
			result, err := f.transfer.Grant(f.ctx, up(1, receiver))
			if err != nil {
				t.Errorf("grant failed: %v", err)
				return
			}
			results <- result.Outcome
		}(int64(10 + i%3))
	}
	wg.Wait()
	close(results)

	applied := 0
	for outcome := range results {
		if outcome == model.GrantApplied {
			applied++
		}
	}
	assert.Equal(t, 6, applied)

	var total int64
	for _, id := range []int64{10, 11, 12} {
		balance, err := f.ledger.Balance(f.ctx, id)
		require.NoError(t, err)
		total += balance
	}
	assert.Equal(t, int64(6), total)
}
