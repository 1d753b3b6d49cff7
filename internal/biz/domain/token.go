package domain

import "time"

// AuthToken is the converter session token
type AuthToken struct {
	Value    string
	IssuedAt time.Time
}

// Valid reports whether the token exists and is younger than ttl
func (t AuthToken) Valid(now time.Time, ttl time.Duration) bool {
	return t.Value != "" && now.Sub(t.IssuedAt) < ttl
}
