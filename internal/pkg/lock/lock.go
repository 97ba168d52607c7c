// Package lock provides per-user mutexes that serialize karma grants.
package lock

import (
	"slices"
	"sync"
)

// UserLock is a registry of one mutex per user ID. Mutexes are created on
// first use and kept for the lifetime of the process.
type UserLock struct {
	locks sync.Map // map[int64]*sync.Mutex
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{}
}

func (ul *UserLock) get(userID int64) *sync.Mutex {
	if v, ok := ul.locks.Load(userID); ok {
		return v.(*sync.Mutex)
	}
	actual, _ := ul.locks.LoadOrStore(userID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// Lock acquires the lock for a user.
func (ul *UserLock) Lock(userID int64) {
	ul.get(userID).Lock()
}

// Unlock releases the lock for a user.
func (ul *UserLock) Unlock(userID int64) {
	if v, ok := ul.locks.Load(userID); ok {
		v.(*sync.Mutex).Unlock()
	}
}

// LockAll acquires the locks of every distinct ID in ascending order, so two
// callers locking overlapping sets cannot deadlock. The returned function
// releases them.
func (ul *UserLock) LockAll(userIDs ...int64) (unlock func()) {
	ids := slices.Clone(userIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	for _, id := range ids {
		ul.Lock(id)
	}
	return func() {
		for i := len(ids) - 1; i >= 0; i-- {
			ul.Unlock(ids[i])
		}
	}
}

// WithLock executes a function while holding the user's lock.
func (ul *UserLock) WithLock(userID int64, fn func() error) error {
	ul.Lock(userID)
	defer ul.Unlock(userID)
	return fn()
}
