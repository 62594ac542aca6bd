package ginserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds the JSON surface for one engine.
func NewRouter(h *Handler, _ *zap.Logger, middlewares ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.RedirectTrailingSlash = false
	r.RemoveExtraSlash = true

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.String(http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	r.GET("/state", h.State)
	r.GET("/support", h.Support)
	r.GET("/history", h.History)
	r.DELETE("/history", h.ClearHistory)

	r.GET("/snapshots", h.ListSnapshots)
	r.POST("/snapshots/:id", h.TakeSnapshot)
	r.GET("/snapshots/diff/:a/:b", h.DiffSnapshots)
	r.DELETE("/snapshots", h.ClearSnapshots)

	r.POST("/start", h.Start)
	r.POST("/stop", h.Stop)
	r.POST("/gc", h.GCHint)

	return r
}
