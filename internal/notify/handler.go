package notify

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"localmart/internal/middleware"
	"localmart/internal/transport/httpdto"
	apperrors "localmart/pkg/errors"
	"localmart/pkg/logger"
)

// Handler serves GET /api/events as a text/event-stream of invalidation
// messages for the authenticated user.
type Handler struct {
	registry  *Registry
	heartbeat time.Duration
	log       *logger.Logger
}

func NewHandler(registry *Registry, heartbeat time.Duration, log *logger.Logger) *Handler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Handler{registry: registry, heartbeat: heartbeat, log: log}
}

func (h *Handler) Events(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conn, err := h.registry.Add(userID.String())
	if err != nil {
		if errors.Is(err, apperrors.ErrConnectionLimit) {
			// Refused outright; the client falls back to polling.
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("too many open streams", "CONNECTION_LIMIT"))
			return
		}
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "INTERNAL_ERROR"))
		return
	}
	defer h.registry.Remove(conn)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("streaming unsupported", "INTERNAL_ERROR"))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	fmt.Fprint(c.Writer, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case <-conn.Done():
			return
		case payload, ok := <-conn.Messages():
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(c.Writer, ": ping\n\n")
			flusher.Flush()
		}
	}
}
