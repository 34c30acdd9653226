package api

import "github.com/gin-gonic/gin"

func NewRouter(h *Handler) *gin.Engine {
	router := gin.Default()

	v1 := router.Group("/v1/")
	v1.GET("/stats", h.GetStats)
	v1.GET("/candles", h.GetCandles)
	v1.GET("/status", h.GetStatus)

	return router
}
