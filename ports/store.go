package ports

import (
	"context"

	"github.com/layer-3/verigate/core"
)

// SessionStore maps session ids to session state.
// Unknown ids are never an error: lookups report absence and mutations do nothing.
type SessionStore interface {
	Create(ctx context.Context, siteKey string, cfg core.SiteConfig) (core.Session, error)
	Get(ctx context.Context, sessionID string) (core.Session, bool)
	// MarkSolved returns true only when the session flipped from unsolved to solved
	MarkSolved(ctx context.Context, sessionID string) bool
	SetKind(ctx context.Context, sessionID string, kind core.ChallengeKind)
	Reset(ctx context.Context, sessionID string)
	Delete(ctx context.Context, sessionID string)
}
