package ports

import (
	"context"

	"github.com/layer-3/verigate/core"
)

// EventPublisher publishes audit events about sessions and verifications
type EventPublisher interface {
	PublishSolved(ctx context.Context, session core.Session, userAgent string) error
	PublishVerification(ctx context.Context, siteKey string, verdict core.Verdict) error
}
