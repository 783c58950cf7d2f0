package cryptox

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/clockx"
)

// DefaultMaxAge is the default envelope freshness window.
const DefaultMaxAge = 24 * time.Hour

type options struct {
	clock  clockx.Clock
	random io.Reader
	maxAge time.Duration
}

func defaultOptions() options {
	return options{
		clock:  clockx.System{},
		random: rand.Reader,
		maxAge: DefaultMaxAge,
	}
}

// Option customizes a Hasher or an EnvelopeCipher.
type Option func(*options)

// WithClock replaces the wall clock.
func WithClock(c clockx.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithRandom replaces the random source (crypto/rand.Reader by default).
func WithRandom(r io.Reader) Option {
	return func(o *options) { o.random = r }
}

// WithMaxAge sets the envelope freshness window. Zero disables the check.
// Ignored by Hasher.
func WithMaxAge(d time.Duration) Option {
	return func(o *options) { o.maxAge = d }
}
