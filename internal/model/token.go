package model

import "time"

// Token is a bearer credential for one remote account.
type Token struct {
	Value  string
	Expiry time.Time
}

// ValidAt reports whether the token is usable at now and stays usable for
// at least buffer.
func (t Token) ValidAt(now time.Time, buffer time.Duration) bool {
	return t.Value != "" && t.Expiry.After(now.Add(buffer))
}
