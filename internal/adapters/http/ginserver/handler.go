// Package ginserver exposes the engine's produced state and commands over
// a JSON HTTP surface.
package ginserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vshulcz/heapwatch/internal/engine"
	"github.com/vshulcz/heapwatch/internal/ports"
)

// Handler exposes HTTP endpoints over one engine instance.
type Handler struct {
	eng     *engine.Engine
	archive ports.SampleArchive
}

// NewHandler wires an engine (and an optional archive) into a
// gin-compatible HTTP handler.
func NewHandler(eng *engine.Engine, archive ports.SampleArchive) *Handler {
	return &Handler{eng: eng, archive: archive}
}

// Ping reports liveness; with an archive wired it also checks the backing store.
func (h *Handler) Ping(c *gin.Context) {
	if h.archive != nil {
		if err := h.archive.Ping(c.Request.Context()); err != nil {
			c.String(http.StatusInternalServerError, "archive unreachable")
			return
		}
	}
	c.String(http.StatusOK, "pong")
}

// State handles `GET /state`.
func (h *Handler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.eng.State())
}

// History handles `GET /history`.
func (h *Handler) History(c *gin.Context) {
	c.JSON(http.StatusOK, h.eng.State().History)
}

// Support handles `GET /support`.
func (h *Handler) Support(c *gin.Context) {
	c.JSON(http.StatusOK, h.eng.Support())
}

// ListSnapshots handles `GET /snapshots`.
func (h *Handler) ListSnapshots(c *gin.Context) {
	c.JSON(http.StatusOK, h.eng.Snapshots())
}

// TakeSnapshot handles `POST /snapshots/:id`.
func (h *Handler) TakeSnapshot(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.String(http.StatusBadRequest, "snapshot id required")
		return
	}
	snap, err := h.eng.TakeSnapshot(id)
	if err != nil {
		c.String(http.StatusServiceUnavailable, "snapshot failed: %v", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// DiffSnapshots handles `GET /snapshots/diff/:a/:b`.
func (h *Handler) DiffSnapshots(c *gin.Context) {
	diff, ok := h.eng.CompareSnapshots(c.Param("a"), c.Param("b"))
	if !ok {
		c.String(http.StatusNotFound, "snapshot not found")
		return
	}
	c.JSON(http.StatusOK, diff)
}

// ClearSnapshots handles `DELETE /snapshots`.
func (h *Handler) ClearSnapshots(c *gin.Context) {
	h.eng.ClearSnapshots()
	c.Status(http.StatusNoContent)
}

// ClearHistory handles `DELETE /history`.
func (h *Handler) ClearHistory(c *gin.Context) {
	h.eng.ClearHistory()
	c.Status(http.StatusNoContent)
}

// Start handles `POST /start`.
func (h *Handler) Start(c *gin.Context) {
	if err := h.eng.Start(); err != nil {
		c.String(http.StatusConflict, "start failed: %v", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stop handles `POST /stop`.
func (h *Handler) Stop(c *gin.Context) {
	h.eng.Stop()
	c.Status(http.StatusNoContent)
}

// GCHint handles `POST /gc`. The hint is best-effort; a host without the
// facility still returns success.
func (h *Handler) GCHint(c *gin.Context) {
	if err := h.eng.RequestGCHint(c.Request.Context()); err != nil {
		c.String(http.StatusBadGateway, "gc hint failed: %v", err)
		return
	}
	c.Status(http.StatusAccepted)
}
