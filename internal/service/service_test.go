package service

import (
	"context"
	"time"

	"telegram-karma-bot/internal/pkg/lock"
	"telegram-karma-bot/internal/repository"
	"telegram-karma-bot/internal/store"
)

const testChat int64 = -1001

// testClock is a settable time source shared by the services under test.
type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	ctx      context.Context
	clock    *testClock
	ledger   *repository.Ledger
	transfer *TransferService
	ranking  *RankingService
	admin    *AdminService
	locks    *lock.UserLock
}

func newFixture() *fixture {
	clock := &testClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	ledger := repository.NewLedger(store.NewMemoryBackend(), repository.DefaultLimits())
	locks := lock.NewUserLock()

	transfer := NewTransferService(ledger, locks)
	transfer.now = clock.Now
	ranking := NewRankingService(ledger)
	ranking.now = clock.Now

	return &fixture{
		ctx:      context.Background(),
		clock:    clock,
		ledger:   ledger,
		transfer: transfer,
		ranking:  ranking,
		admin:    NewAdminService(ledger, locks),
		locks:    locks,
	}
}
