// Package repository provides the karma ledger: one typed tree of the keyed
// record store per entity.
package repository

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"telegram-karma-bot/internal/model"
	"telegram-karma-bot/internal/store"
)

// Tree names. They are part of the persisted layout and must not change.
const (
	TreeKarma       = "karma"
	TreeUp          = "up"
	TreeDown        = "down"
	TreeLast        = "last"
	TreeHistory     = "history"
	TreeMembers     = "members"
	TreeLastMessage = "last_message"
)

// Defaults for entities with no stored value.
const (
	DefaultKarma       int64 = 0
	DefaultUp          int64 = 6
	DefaultDown        int64 = 2
	DefaultLast        int64 = 0
	DefaultHistorySize       = 100
)

// Limits configures quota defaults and history retention.
type Limits struct {
	DefaultUp   int64
	DefaultDown int64
	HistorySize int
}

// DefaultLimits returns the stock quota of 6 up, 2 down and 100 history samples.
func DefaultLimits() Limits {
	return Limits{DefaultUp: DefaultUp, DefaultDown: DefaultDown, HistorySize: DefaultHistorySize}
}

// Ledger exposes the per-user and per-group karma state.
type Ledger struct {
	limits Limits

	// membersMu serializes membership updates; grants in one chat may hold
	// disjoint user locks.
	membersMu sync.Mutex

	karma       *store.Tree[int64]
	up          *store.Tree[int64]
	down        *store.Tree[int64]
	last        *store.Tree[int64]
	history     *store.Tree[[]model.Sample]
	members     *store.Tree[[]int64]
	lastMessage *store.Tree[int]
}

// NewLedger creates a Ledger over backend.
func NewLedger(backend store.Backend, limits Limits) *Ledger {
	return &Ledger{
		limits:      limits,
		karma:       store.NewTree[int64](backend, TreeKarma),
		up:          store.NewTree[int64](backend, TreeUp),
		down:        store.NewTree[int64](backend, TreeDown),
		last:        store.NewTree[int64](backend, TreeLast),
		history:     store.NewTree[[]model.Sample](backend, TreeHistory),
		members:     store.NewTree[[]int64](backend, TreeMembers),
		lastMessage: store.NewTree[int](backend, TreeLastMessage),
	}
}

// Limits returns the configured limits.
func (l *Ledger) Limits() Limits {
	return l.limits
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Balance returns a user's karma.
func (l *Ledger) Balance(ctx context.Context, userID int64) (int64, error) {
	return l.karma.GetOr(ctx, key(userID), DefaultKarma)
}

// SetBalance stores a user's karma.
func (l *Ledger) SetBalance(ctx context.Context, userID, karma int64) error {
	return l.karma.Put(ctx, key(userID), karma)
}

// DefaultQuota returns the daily allowance for a polarity.
func (l *Ledger) DefaultQuota(p model.Polarity) int64 {
	if p == model.PolarityDown {
		return l.limits.DefaultDown
	}
	return l.limits.DefaultUp
}

func (l *Ledger) quotaTree(p model.Polarity) *store.Tree[int64] {
	if p == model.PolarityDown {
		return l.down
	}
	return l.up
}

// Quota returns the remaining grants of polarity p for a user.
func (l *Ledger) Quota(ctx context.Context, userID int64, p model.Polarity) (int64, error) {
	return l.quotaTree(p).GetOr(ctx, key(userID), l.DefaultQuota(p))
}

// SetQuota stores the remaining grants of polarity p for a user.
func (l *Ledger) SetQuota(ctx context.Context, userID int64, p model.Polarity, remaining int64) error {
	return l.quotaTree(p).Put(ctx, key(userID), remaining)
}

// StoredQuota returns the raw stored counter without applying the default.
func (l *Ledger) StoredQuota(ctx context.Context, userID int64, p model.Polarity) (int64, bool, error) {
	return l.quotaTree(p).Get(ctx, key(userID))
}

// ResetQuota removes both counters so the next read yields the defaults.
func (l *Ledger) ResetQuota(ctx context.Context, userID int64) error {
	if _, _, err := l.up.Remove(ctx, key(userID)); err != nil {
		return err
	}
	_, _, err := l.down.Remove(ctx, key(userID))
	return err
}

// LastGrant returns the unix time of the user's last direct grant, 0 if none.
func (l *Ledger) LastGrant(ctx context.Context, userID int64) (int64, error) {
	return l.last.GetOr(ctx, key(userID), DefaultLast)
}

// SetLastGrant stores the unix time of the user's last direct grant.
func (l *Ledger) SetLastGrant(ctx context.Context, userID, timestamp int64) error {
	return l.last.Put(ctx, key(userID), timestamp)
}

// RemoveLastGrant forgets a user's last grant, expiring the quota window.
func (l *Ledger) RemoveLastGrant(ctx context.Context, userID int64) (bool, error) {
	_, ok, err := l.last.Remove(ctx, key(userID))
	return ok, err
}

// ClearLastGrants forgets every user's last grant.
func (l *Ledger) ClearLastGrants(ctx context.Context) error {
	return l.last.Clear(ctx)
}

// History returns a user's karma samples in chronological order.
func (l *Ledger) History(ctx context.Context, userID int64) ([]model.Sample, error) {
	return l.history.GetOr(ctx, key(userID), nil)
}

// AppendHistory appends a sample and drops the oldest entries beyond the
// history size.
func (l *Ledger) AppendHistory(ctx context.Context, userID int64, sample model.Sample) error {
	samples, err := l.History(ctx, userID)
	if err != nil {
		return err
	}
	samples = TrimHistory(append(samples, sample), l.limits.HistorySize)
	return l.history.Put(ctx, key(userID), samples)
}

// TrimHistory keeps the last size samples.
func TrimHistory(samples []model.Sample, size int) []model.Sample {
	if len(samples) <= size {
		return samples
	}
	return samples[len(samples)-size:]
}

// Members returns the users known to have exchanged karma in a chat, in the
// order they first appeared.
func (l *Ledger) Members(ctx context.Context, chatID int64) ([]int64, error) {
	return l.members.GetOr(ctx, key(chatID), nil)
}

// AddMembers adds users to a chat's membership set.
func (l *Ledger) AddMembers(ctx context.Context, chatID int64, userIDs ...int64) error {
	l.membersMu.Lock()
	defer l.membersMu.Unlock()

	members, err := l.Members(ctx, chatID)
	if err != nil {
		return err
	}
	changed := false
	for _, id := range userIDs {
		if !slices.Contains(members, id) {
			members = append(members, id)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return l.members.Put(ctx, key(chatID), members)
}

func messageKey(chatID int64, slot string) string {
	return fmt.Sprintf("%d-%s", chatID, slot)
}

// LastMessage returns the message last posted in a chat's notification slot.
func (l *Ledger) LastMessage(ctx context.Context, chatID int64, slot string) (int, bool, error) {
	return l.lastMessage.Get(ctx, messageKey(chatID, slot))
}

// SetLastMessage records the message now occupying a chat's notification slot.
func (l *Ledger) SetLastMessage(ctx context.Context, chatID int64, slot string, messageID int) error {
	return l.lastMessage.Put(ctx, messageKey(chatID, slot), messageID)
}
