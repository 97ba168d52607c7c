package service

import "time"

// IsQuotaExpired reports whether a user's daily allowance has reset since
// their last direct grant. The allowance resets at the first UTC midnight
// after the day of lastGrant; the midnight instant itself is not yet expired.
// A lastGrant of 0 means no grant was ever made and is always expired.
func IsQuotaExpired(lastGrant int64, now time.Time) bool {
	if lastGrant == 0 {
		return true
	}
	return now.After(NextReset(lastGrant))
}

// NextReset returns the UTC midnight that follows the day of lastGrant.
func NextReset(lastGrant int64) time.Time {
	y, m, d := time.Unix(lastGrant, 0).UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}
