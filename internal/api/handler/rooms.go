package handler

import (
	"net/http"

	"travelmate/backend/internal/api/middleware"
	"travelmate/backend/internal/apperr"
	"travelmate/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type createGatheringBody struct {
	RoomName  string `json:"roomName"`
	RoomImage string `json:"roomImage"`
	Capacity  int    `json:"capacity"`
}

func (h *Handler) ListRooms(c *gin.Context) {
	roomType := models.RoomType(c.Query("type"))
	if roomType != "" && !roomType.Valid() {
		_ = c.Error(apperr.InvalidInput("type must be direct or gathering"))
		return
	}

	summaries, err := h.Rooms.ListRoomsForUser(c.Request.Context(), middleware.UserID(c), roomType)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if summaries == nil {
		summaries = []models.RoomSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"rooms": summaries})
}

func (h *Handler) CreateGathering(c *gin.Context) {
	var body createGatheringBody
	if !bindJSON(c, &body) {
		return
	}

	summary, err := h.Rooms.CreateGathering(c.Request.Context(), middleware.UserID(c), body.RoomName, body.RoomImage, body.Capacity)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

func (h *Handler) GetRoom(c *gin.Context) {
	detail, err := h.Rooms.GetRoom(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) DeleteGathering(c *gin.Context) {
	if err := h.Rooms.DeleteGathering(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// JoinGathering adds the caller and returns the room as they now see it.
func (h *Handler) JoinGathering(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	if err := h.Rooms.JoinGathering(ctx, c.Param("id"), userID); err != nil {
		_ = c.Error(err)
		return
	}
	detail, err := h.Rooms.GetRoom(ctx, c.Param("id"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) LeaveRoom(c *gin.Context) {
	if err := h.Rooms.Leave(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
