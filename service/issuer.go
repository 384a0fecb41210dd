package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/verigate/core"
	"github.com/layer-3/verigate/ports"
)

// Issuer mints tokens for solved sessions
type Issuer struct {
	codec ports.Codec
	now   func() time.Time
}

// NewIssuer creates a token issuer. A nil clock defaults to time.Now.
func NewIssuer(codec ports.Codec, now func() time.Time) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		codec: codec,
		now:   now,
	}
}

// Issue builds and encodes the payload of a solved session.
// Invalid UTF-8 in the user agent is replaced so the payload survives the JSON encoding unchanged.
func (i *Issuer) Issue(session core.Session, userAgent string) (string, error) {
	if !session.Solved {
		return "", fmt.Errorf("issue token for %s: %w", session.ID, core.ErrSessionNotSolved)
	}

	payload := core.Payload{
		SessionID: session.ID,
		SiteKey:   session.SiteKey,
		Timestamp: i.now().UnixMilli(),
		UserAgent: strings.ToValidUTF8(userAgent, "\uFFFD"),
		Challenge: core.ChallengeCompleted,
	}

	token, err := i.codec.Encode(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode token: %w", err)
	}

	return token, nil
}
