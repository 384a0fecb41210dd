package service

import (
	"time"

	"github.com/layer-3/verigate/core"
	"github.com/layer-3/verigate/ports"
)

const (
	// DefaultTokenMaxAge is how long an issued token is accepted
	DefaultTokenMaxAge = 5 * time.Minute

	// DefaultFutureSkew is how far in the future a token timestamp may lie
	DefaultFutureSkew = 30 * time.Second
)

// Verifier validates tokens. It keeps no state between calls and is safe for concurrent use.
type Verifier struct {
	codec      ports.Codec
	now        func() time.Time
	maxAge     time.Duration
	futureSkew time.Duration
}

// VerifierOption customises a Verifier
type VerifierOption func(*Verifier)

// WithVerifierClock replaces the time source
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// WithMaxAge sets the token lifetime
func WithMaxAge(d time.Duration) VerifierOption {
	return func(v *Verifier) { v.maxAge = d }
}

// WithFutureSkew sets the tolerated clock skew for timestamps in the future
func WithFutureSkew(d time.Duration) VerifierOption {
	return func(v *Verifier) { v.futureSkew = d }
}

// NewVerifier creates a token verifier
func NewVerifier(codec ports.Codec, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		codec:      codec,
		now:        time.Now,
		maxAge:     DefaultTokenMaxAge,
		futureSkew: DefaultFutureSkew,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks token against expectedSiteKey, stopping at the first failed check
func (v *Verifier) Verify(token, expectedSiteKey string) core.Verdict {
	payload, err := v.codec.Decode(token)
	if err != nil {
		return core.Reject(core.ReasonMalformed)
	}

	if payload.SessionID == "" || payload.SiteKey == "" || payload.Timestamp == 0 {
		return core.Reject(core.ReasonMalformed)
	}

	if payload.SiteKey != expectedSiteKey {
		return core.Reject(core.ReasonSiteMismatch)
	}

	age := v.now().UnixMilli() - payload.Timestamp
	if age > v.maxAge.Milliseconds() {
		return core.Reject(core.ReasonExpired)
	}
	if -age > v.futureSkew.Milliseconds() {
		return core.Reject(core.ReasonMalformed)
	}

	if payload.Challenge != core.ChallengeCompleted {
		return core.Reject(core.ReasonNotCompleted)
	}

	return core.Accept(payload)
}
