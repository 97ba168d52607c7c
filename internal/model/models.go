// Package model defines the data models for the Telegram karma bot.
package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Polarity is the direction of a karma grant.
type Polarity int

const (
	PolarityUp Polarity = iota + 1
	PolarityDown
)

// ParsePolarity reads the polarity from the leading character of a message.
// Anything not starting with '+' or '-' is not a grant.
func ParsePolarity(text string) (Polarity, bool) {
	switch {
	case strings.HasPrefix(text, "+"):
		return PolarityUp, true
	case strings.HasPrefix(text, "-"):
		return PolarityDown, true
	default:
		return 0, false
	}
}

// Valid reports whether p is Up or Down.
func (p Polarity) Valid() bool {
	return p == PolarityUp || p == PolarityDown
}

// Delta returns the balance change applied to a receiver.
func (p Polarity) Delta() int64 {
	if p == PolarityDown {
		return -1
	}
	return 1
}

func (p Polarity) String() string {
	switch p {
	case PolarityUp:
		return "+"
	case PolarityDown:
		return "-"
	default:
		return "?"
	}
}

// Sample is one entry of a user's karma history.
type Sample struct {
	Timestamp int64 `cbor:"t"`
	Karma     int64 `cbor:"k"`
}

// Time returns the sample timestamp as UTC time.
func (s Sample) Time() time.Time {
	return time.Unix(s.Timestamp, 0).UTC()
}

// GrantRequest is a resolved karma grant, either a fresh reply-style grant or
// the confirmation of a previously offered fallback.
type GrantRequest struct {
	ChatID      int64
	GiverID     int64
	ReceiverID  int64
	Polarity    Polarity
	GiverBot    bool
	ReceiverBot bool
}

// GrantOutcome enumerates the results of the transfer engine.
type GrantOutcome int

const (
	// GrantRejected means a precondition was not met; nothing happened.
	GrantRejected GrantOutcome = iota
	// GrantApplied is a direct grant paid with a quota point.
	GrantApplied
	// GrantFallbackOffered means the quota is exhausted and the giver may pay with own karma.
	GrantFallbackOffered
	// GrantFallbackApplied is a confirmed fallback; see FundingSource.
	GrantFallbackApplied
	// GrantInsufficientKarma means the fallback was confirmed but the giver has no karma to spend.
	GrantInsufficientKarma
)

func (o GrantOutcome) String() string {
	switch o {
	case GrantRejected:
		return "rejected"
	case GrantApplied:
		return "applied"
	case GrantFallbackOffered:
		return "fallback_offered"
	case GrantFallbackApplied:
		return "fallback_applied"
	case GrantInsufficientKarma:
		return "insufficient_karma"
	default:
		return "unknown"
	}
}

// FundingSource tells what paid for a confirmed fallback grant.
type FundingSource string

const (
	SourcePoints FundingSource = "points"
	SourceKarma  FundingSource = "karma"
)

// GrantResult is the outcome of a grant or fallback confirmation.
type GrantResult struct {
	Outcome         GrantOutcome
	Polarity        Polarity
	GiverID         int64
	ReceiverID      int64
	ReceiverBalance int64
	GiverBalance    int64
	Source          FundingSource
}

// Offer returns the fallback offer carried by a GrantFallbackOffered result.
func (r GrantResult) Offer() FallbackOffer {
	return FallbackOffer{Polarity: r.Polarity, ReceiverID: r.ReceiverID}
}

// LeaderboardEntry is one ranked member of a group.
type LeaderboardEntry struct {
	UserID int64
	Karma  int64
}

// Stats is a user's balance and projected remaining quota.
type Stats struct {
	Karma int64
	Up    int64
	Down  int64
}

// Notification slots for the last posted message in a chat.
const (
	SlotLeaderboard = "leaderboard"
	SlotChart       = "chart"
	SlotStatus      = "status"
)

// ReceiverSlot returns the slot for the per-receiver update message.
func ReceiverSlot(receiverID int64) string {
	return strconv.FormatInt(receiverID, 10)
}

// ErrInvalidOffer is returned when callback data cannot be decoded into an offer.
var ErrInvalidOffer = errors.New("invalid fallback offer")

// FallbackOfferPrefix marks callback data produced by FallbackOffer.Encode.
const FallbackOfferPrefix = "kf:"

// FallbackOffer is the deferred continuation handed to the giver when the
// daily quota is exhausted. It travels as inline button callback data.
type FallbackOffer struct {
	Polarity   Polarity
	ReceiverID int64
}

// Encode renders the offer as callback data, e.g. "kf:+:12345".
func (o FallbackOffer) Encode() string {
	return fmt.Sprintf("%s%s:%d", FallbackOfferPrefix, o.Polarity, o.ReceiverID)
}

// ParseFallbackOffer decodes callback data produced by Encode.
func ParseFallbackOffer(data string) (FallbackOffer, error) {
	rest, ok := strings.CutPrefix(data, FallbackOfferPrefix)
	if !ok {
		return FallbackOffer{}, ErrInvalidOffer
	}
	sign, id, ok := strings.Cut(rest, ":")
	if !ok || len(sign) != 1 {
		return FallbackOffer{}, ErrInvalidOffer
	}
	polarity, ok := ParsePolarity(sign)
	if !ok {
		return FallbackOffer{}, ErrInvalidOffer
	}
	receiverID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return FallbackOffer{}, fmt.Errorf("%w: %v", ErrInvalidOffer, err)
	}
	return FallbackOffer{Polarity: polarity, ReceiverID: receiverID}, nil
}
