package relay

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Local development relay; any origin may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewEngine mounts the relay on a gin engine:
//
//	GET /ws        realtime channel
//	GET /healthz   liveness
//	GET /v1/online connected user ids
func NewEngine(h *Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), accessLog(h.logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/v1/online", func(c *gin.Context) {
		ids := h.Online()
		sort.Strings(ids)
		c.JSON(http.StatusOK, gin.H{"ids": ids})
	})
	r.GET("/ws", func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.Debug("websocket upgrade failed", zap.Error(err))
			return
		}
		h.Serve(ws)
	})
	return r
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
