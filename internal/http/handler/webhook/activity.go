package webhook

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cadence.app/server/common/logger"
	"cadence.app/server/internal/botframework"
	"cadence.app/server/internal/dedupe"
	"cadence.app/server/internal/service"
)

// TokenHeader carries the shared webhook secret on inbound activity posts.
const TokenHeader = "X-Cadence-Token"

type ActivityHandler struct {
	standup service.StandupService
	deduper dedupe.Deduper
	secret  string
}

func NewActivityHandler(standup service.StandupService, deduper dedupe.Deduper, secret string) *ActivityHandler {
	return &ActivityHandler{
		standup: standup,
		deduper: deduper,
		secret:  secret,
	}
}

// HandleActivity ingests one channel activity. The endpoint always answers
// quickly: replies go out through the connector, not the HTTP response.
func (h *ActivityHandler) HandleActivity(c *gin.Context) {
	ctx := c.Request.Context()

	if h.secret != "" && c.GetHeader(TokenHeader) != h.secret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
		return
	}

	var activity botframework.Activity
	if err := c.ShouldBindJSON(&activity); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid activity payload"})
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ConversationID: logger.Ptr(activity.Conversation.ID),
		ActivityID:     logger.Ptr(activity.ID),
		Component:      "activity_handler",
	})

	if activity.Type != botframework.ActivityTypeMessage {
		slog.DebugContext(ctx, "ignoring non-message activity", "type", activity.Type)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if activity.ID != "" {
		seen, err := h.deduper.Seen(ctx, activity.ID)
		if err != nil {
			// Dedupe is a replay guard, not a gate; keep serving if Redis
			// is down.
			slog.WarnContext(ctx, "activity dedupe unavailable", "error", err)
		} else if seen {
			slog.InfoContext(ctx, "duplicate activity dropped")
			c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
			return
		}
	}

	if err := h.standup.HandleActivity(ctx, &activity); err != nil {
		slog.ErrorContext(ctx, "activity processing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process activity"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
