package ports

import (
	"context"
	"time"

	"github.com/layer-3/verigate/core"
)

// Selector picks challenge variants
type Selector interface {
	Kind(kinds []core.ChallengeKind) core.ChallengeKind
	ClickBank(banks []core.ClickBank) core.ClickBank
}

// Scheduler runs callbacks after a delay. The returned function cancels the callback if it has not fired yet.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (cancel func())
}

// RemoteVerifier verifies tokens against a verification endpoint.
// Errors wrap core.ErrTransport; policy rejections are reported through the verdict.
type RemoteVerifier interface {
	Verify(ctx context.Context, token, siteKey string) (core.Verdict, error)
}
