package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/verigate/core"
	"github.com/layer-3/verigate/widget"
)

const (
	sliderGrab    = "grab"
	sliderMove    = "move"
	sliderRelease = "release"
)

// WidgetHandlers expose the widget controller to browser renderers
type WidgetHandlers struct {
	widgets *widget.Controller
}

// NewWidgetHandlers creates the widget API handlers
func NewWidgetHandlers(widgets *widget.Controller) *WidgetHandlers {
	return &WidgetHandlers{widgets: widgets}
}

// Create mounts a new widget session
func (h *WidgetHandlers) Create(c *gin.Context) {
	var req struct {
		Target       string `json:"target" binding:"required"`
		SiteKey      string `json:"siteKey"`
		Theme        string `json:"theme"`
		Size         string `json:"size"`
		AutoRedirect string `json:"autoRedirect"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request"))
		return
	}

	id, err := h.widgets.Render(c.Request.Context(), req.Target, widget.Options{
		SiteKey:      req.SiteKey,
		Theme:        req.Theme,
		Size:         req.Size,
		UserAgent:    c.Request.UserAgent(),
		AutoRedirect: req.AutoRedirect,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	view, ok := h.widgets.View(id)
	if !ok {
		h.fail(c, core.ErrSessionNotFound)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "view": view})
}

// Get returns the current view of a widget
func (h *WidgetHandlers) Get(c *gin.Context) {
	view, ok := h.widgets.View(c.Param("id"))
	if !ok {
		h.fail(c, core.ErrSessionNotFound)
		return
	}
	h.respond(c, view, nil)
}

// Check handles the checkbox click
func (h *WidgetHandlers) Check(c *gin.Context) {
	view, err := h.widgets.Check(c.Request.Context(), c.Param("id"))
	h.respond(c, view, err)
}

// Slider forwards a slider gesture
func (h *WidgetHandlers) Slider(c *gin.Context) {
	var req struct {
		Phase string  `json:"phase" binding:"required"`
		X     float64 `json:"x"`
		Max   float64 `json:"max"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request"))
		return
	}

	ctx, id := c.Request.Context(), c.Param("id")
	var (
		view widget.View
		err  error
	)
	switch req.Phase {
	case sliderGrab:
		view, err = h.widgets.SliderGrab(ctx, id)
	case sliderMove:
		view, err = h.widgets.SliderMove(ctx, id, req.X, req.Max)
	case sliderRelease:
		view, err = h.widgets.SliderRelease(ctx, id)
	default:
		c.JSON(http.StatusBadRequest, errorBody("unknown slider phase"))
		return
	}
	h.respond(c, view, err)
}

// Toggle selects or deselects a click challenge item
func (h *WidgetHandlers) Toggle(c *gin.Context) {
	var req struct {
		Item string `json:"item" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request"))
		return
	}

	view, err := h.widgets.Toggle(c.Request.Context(), c.Param("id"), req.Item)
	h.respond(c, view, err)
}

// Submit checks the click selection
func (h *WidgetHandlers) Submit(c *gin.Context) {
	view, err := h.widgets.Submit(c.Request.Context(), c.Param("id"))
	h.respond(c, view, err)
}

// Drop places the puzzle piece
func (h *WidgetHandlers) Drop(c *gin.Context) {
	var req struct {
		X *float64 `json:"x" binding:"required"`
		Y *float64 `json:"y" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request"))
		return
	}

	view, err := h.widgets.Drop(c.Request.Context(), c.Param("id"), core.Point{X: *req.X, Y: *req.Y})
	h.respond(c, view, err)
}

// Reset returns the widget to its unsolved state
func (h *WidgetHandlers) Reset(c *gin.Context) {
	view, err := h.widgets.Reset(c.Request.Context(), c.Param("id"))
	h.respond(c, view, err)
}

// Delete unmounts the widget
func (h *WidgetHandlers) Delete(c *gin.Context) {
	if err := h.widgets.Remove(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *WidgetHandlers) respond(c *gin.Context, view widget.View, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "view": view})
}

func (h *WidgetHandlers) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, errorBody("session not found"))
	case errors.Is(err, core.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error("widget request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, errorBody(InternalErrorMessage))
	}
}
