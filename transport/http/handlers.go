package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/verigate/core"
	"github.com/layer-3/verigate/internal/logx"
	"github.com/layer-3/verigate/ports"
	"github.com/layer-3/verigate/service"
)

const (
	msgVerified       = "verification succeeded"
	msgMissingToken   = "missing token"
	msgMissingSiteKey = "missing siteKey"
	msgMethod         = "method not allowed"
	msgNotFound       = "not found"
)

// Handlers serves the verification and site configuration endpoints
type Handlers struct {
	verifier *service.Verifier
	sites    ports.SiteRegistry
	events   ports.EventPublisher
}

// NewHandlers creates the API handlers. events may be nil.
func NewHandlers(verifier *service.Verifier, sites ports.SiteRegistry, events ports.EventPublisher) *Handlers {
	return &Handlers{
		verifier: verifier,
		sites:    sites,
		events:   events,
	}
}

// Verify checks a token against the site key it was issued for
func (h *Handlers) Verify(c *gin.Context) {
	var req struct {
		Token   string `json:"token"`
		SiteKey string `json:"siteKey"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			slog.Info("token rejected", "reason", core.ReasonMalformed, "field", typeErr.Field)
			rejected(c, core.ReasonMalformed)
			return
		}
		slog.Warn("unreadable verify request", "error", err)
		c.JSON(http.StatusInternalServerError, errorBody(InternalErrorMessage))
		return
	}
	if req.Token == "" {
		c.JSON(http.StatusBadRequest, errorBody(msgMissingToken))
		return
	}
	if req.SiteKey == "" {
		c.JSON(http.StatusBadRequest, errorBody(msgMissingSiteKey))
		return
	}

	verdict := h.verifier.Verify(req.Token, req.SiteKey)
	h.publishVerification(c.Request.Context(), req.SiteKey, verdict)

	if !verdict.Accepted {
		slog.Info("token rejected",
			"site_key", req.SiteKey,
			"reason", verdict.Reason,
			"token", logx.Secret(req.Token),
		)
		rejected(c, verdict.Reason)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": msgVerified,
		"data":    verdict.Claims,
	})
}

// Config returns the configuration of a site
func (h *Handlers) Config(c *gin.Context) {
	siteKey := c.Query("siteKey")
	if siteKey == "" {
		c.JSON(http.StatusBadRequest, errorBody(msgMissingSiteKey))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"config":  h.sites.Lookup(siteKey),
	})
}

// Preflight answers OPTIONS requests that are not CORS preflights
func (h *Handlers) Preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}

// Health reports that the process is serving
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) publishVerification(ctx context.Context, siteKey string, verdict core.Verdict) {
	if h.events == nil {
		return
	}
	if err := h.events.PublishVerification(ctx, siteKey, verdict); err != nil {
		slog.Warn("failed to publish verification event", "site_key", siteKey, "error", err)
	}
}

func rejected(c *gin.Context, reason core.Reason) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   reason.Message(),
		"reason":  reason,
	})
}

func methodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, errorBody(msgMethod))
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, errorBody(msgNotFound))
}
