package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/dto"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/notify"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/service"
)

const heartbeatInterval = 25 * time.Second

// Subscriber streams the real-time events of a set of rooms.
type Subscriber interface {
	Subscribe(ctx context.Context, rooms ...string) (<-chan notify.Envelope, error)
}

type EventsHandler struct {
	subscriber Subscriber
	log        *slog.Logger
	heartbeat  time.Duration
}

func NewEventsHandler(subscriber Subscriber, log *slog.Logger) *EventsHandler {
	return &EventsHandler{subscriber: subscriber, log: log, heartbeat: heartbeatInterval}
}

// Stream sends the caller's order events as Server-Sent Events. Admins also
// receive the admin room.
func (h *EventsHandler) Stream(c *gin.Context) {
	actor := actorOf(c)
	rooms := []string{service.UserRoom(actor.UserID)}
	if actor.IsAdmin() {
		rooms = append(rooms, service.RoomAdmin)
	}

	ctx := c.Request.Context()
	events, err := h.subscriber.Subscribe(ctx, rooms...)
	if err != nil {
		h.log.Error("subscribe to realtime events", "user_id", actor.UserID, "error", err)
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "DependencyUnavailable", Message: "real-time events unavailable"})
		return
	}

	// Streams outlive the server write timeout.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"rooms": rooms})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case env, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(env.Event, env)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"time": time.Now().UTC()})
			return true
		case <-ctx.Done():
			return false
		}
	})
}
