package cache

import "time"

// Kind tells how a payload was captured from the upstream.
type Kind string

const (
	KindJSON   Kind = "json"
	KindBinary Kind = "binary"
)

// Entry is a captured upstream response.
type Entry struct {
	Key         string
	Kind        Kind
	ContentType string
	Payload     []byte
	CreatedAt   time.Time
	TTL         time.Duration
}

// ExpiresAt is the first instant at which the entry is no longer servable.
func (e *Entry) ExpiresAt() time.Time {
	return e.CreatedAt.Add(e.TTL)
}

// Live reports whether the entry may be served at now.
func (e *Entry) Live(now time.Time) bool {
	return now.Before(e.ExpiresAt())
}

// Remaining is the time left before expiry, zero once expired.
func (e *Entry) Remaining(now time.Time) time.Duration {
	if d := e.ExpiresAt().Sub(now); d > 0 {
		return d
	}
	return 0
}
