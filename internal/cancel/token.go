// Package cancel provides cooperative cancellation for long-running work.
// Consumers poll a Token at safe checkpoints; there is no preemption.
package cancel

import (
	"context"
	"sync/atomic"
)

// Token answers "is this work cancelled?" via a polled predicate.
// The zero value is a never-cancelled token.
type Token struct {
	fn func() bool
}

// Never returns a token that is never cancelled.
func Never() Token {
	return Token{}
}

// New wraps a caller-supplied predicate into a token.
func New(fn func() bool) Token {
	return Token{fn: fn}
}

// FromContext ties a token to a context's cancellation state.
func FromContext(ctx context.Context) Token {
	return Token{fn: func() bool {
		return ctx.Err() != nil
	}}
}

// Cancelled reports whether the token has been cancelled.
func (t Token) Cancelled() bool {
	return t.fn != nil && t.fn()
}

// Flag is a settable cancellation source. Safe for concurrent use.
type Flag struct {
	cancelled atomic.Bool
}

// NewFlag creates an uncancelled flag.
func NewFlag() *Flag {
	return &Flag{}
}

// Cancel marks the flag cancelled. Idempotent.
func (f *Flag) Cancel() {
	f.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (f *Flag) Cancelled() bool {
	return f.cancelled.Load()
}

// Token returns a token polling this flag.
func (f *Flag) Token() Token {
	return Token{fn: f.Cancelled}
}
