// Package api exposes read-only JSON views of the pipeline state. This is
// the observer leg of the feed fan-out; it renders nothing itself.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/solpulse/pulse/internal/model"
	"github.com/solpulse/pulse/internal/stream"
)

// Source supplies the derived market views.
type Source interface {
	Stats() model.Stats
	Candles() []model.Candle
	Pair() string
}

// Feed supplies the connection status.
type Feed interface {
	IsConnected() bool
	State() stream.State
}

type Handler struct {
	source Source
	feed   Feed
}

func NewHandler(source Source, feed Feed) *Handler {
	return &Handler{source: source, feed: feed}
}

func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.source.Stats())
}

func (h *Handler) GetCandles(c *gin.Context) {
	c.JSON(http.StatusOK, h.source.Candles())
}

func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected": h.feed.IsConnected(),
		"state":     h.feed.State().String(),
		"pair":      h.source.Pair(),
	})
}
