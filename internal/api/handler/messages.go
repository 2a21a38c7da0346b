package handler

import (
	"net/http"
	"strconv"
	"time"

	"travelmate/backend/internal/api/middleware"
	"travelmate/backend/internal/apperr"
	"travelmate/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type sendMessageBody struct {
	Content string `json:"content"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	var body sendMessageBody
	if !bindJSON(c, &body) {
		return
	}

	msg, err := h.Messages.Append(c.Request.Context(), c.Param("id"), middleware.UserID(c), body.Content)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// ListMessages pages backwards. ?before takes the nextCursor of the previous
// page (RFC 3339 with sub-second precision).
func (h *Handler) ListMessages(c *gin.Context) {
	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			_ = c.Error(apperr.InvalidInput("before must be an RFC 3339 timestamp"))
			return
		}
		t = t.UTC()
		before = &t
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			_ = c.Error(apperr.InvalidInput("limit must be an integer"))
			return
		}
		limit = n
	}

	page, err := h.Messages.Page(c.Request.Context(), c.Param("id"), middleware.UserID(c), before, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// MarkRead marks the room read and pushes the refreshed counters to the
// caller's other connections.
func (h *Handler) MarkRead(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	marked, err := h.Messages.MarkRead(ctx, c.Param("id"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if marked > 0 && h.Hub != nil {
		if counters, err := h.Counters.Snapshot(ctx, userID); err == nil {
			if err := h.Hub.Publish(ctx, userID, models.RealtimeEvent{Type: models.EventCounters, Counters: &counters}); err != nil {
				h.log.WithError(err).WithField("user_id", userID).Warn("publish counters failed")
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

// GetCounters recomputes the caller's badges from storage and reseeds the cache.
func (h *Handler) GetCounters(c *gin.Context) {
	counters, err := h.Counters.Reconcile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, counters)
}

func (h *Handler) TelegramLinkURL(c *gin.Context) {
	if h.TelegramLink == nil {
		_ = c.Error(apperr.NotFound("telegram notifications are not configured"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": h.TelegramLink(middleware.UserID(c))})
}
