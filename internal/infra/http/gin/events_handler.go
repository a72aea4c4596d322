package ginserver

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	gin "github.com/gin-gonic/gin"

	"courtbook/internal/infra/broadcast"
)

// DefaultKeepAlive is the PING cadence on idle streams.
const DefaultKeepAlive = 20 * time.Second

// EventsHandler streams broadcast messages as server-sent events, one JSON
// object per data line.
type EventsHandler struct {
	Hub       *broadcast.Hub
	KeepAlive time.Duration
	Logger    *slog.Logger
}

func (h EventsHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	sub, err := h.Hub.Subscribe(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream unavailable"})
		return
	}
	defer h.Hub.Unsubscribe(sub)

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	header := c.Writer.Header()
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Render(-1, sse.Event{Data: broadcast.Ping(time.Now())})
	c.Writer.Flush()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-sub.C():
			if !ok {
				return false
			}
			c.Render(-1, sse.Event{Data: msg})
			return true
		case now := <-ticker.C:
			c.Render(-1, sse.Event{Data: broadcast.Ping(now)})
			return true
		}
	})
	if h.Logger != nil {
		h.Logger.Debug("event stream closed", "subscriber", sub.ID, "dropped", sub.Dropped())
	}
}

var _ EventsHTTP = EventsHandler{}
