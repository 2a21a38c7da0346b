package handler

import (
	"net/http"

	"travelmate/backend/internal/api/middleware"
	"travelmate/backend/internal/apperr"
	"travelmate/backend/internal/models"
	"travelmate/backend/internal/requests"

	"github.com/gin-gonic/gin"
)

type createRequestBody struct {
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
}

type respondBody struct {
	Action requests.Action `json:"action"`
}

func (h *Handler) CreateRequest(c *gin.Context) {
	var body createRequestBody
	if !bindJSON(c, &body) {
		return
	}

	req, err := h.Ledger.CreateRequest(c.Request.Context(), middleware.UserID(c), body.ReceiverID, body.Message)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (h *Handler) RespondToRequest(c *gin.Context) {
	var body respondBody
	if !bindJSON(c, &body) {
		return
	}

	roomID, err := h.Ledger.Respond(c.Request.Context(), c.Param("id"), middleware.UserID(c), body.Action)
	if err != nil {
		_ = c.Error(err)
		return
	}

	status := models.RequestDeclined
	if body.Action == requests.ActionAccept {
		status = models.RequestAccepted
	}
	resp := gin.H{"status": status}
	if roomID != "" {
		resp["roomId"] = roomID
	}
	c.JSON(http.StatusOK, resp)
}

// ListRequests serves ?box=received (default, pending only) or ?box=sent.
func (h *Handler) ListRequests(c *gin.Context) {
	var (
		views []models.RequestView
		err   error
	)
	switch c.DefaultQuery("box", "received") {
	case "received":
		views, err = h.Ledger.ListReceived(c.Request.Context(), middleware.UserID(c))
	case "sent":
		views, err = h.Ledger.ListSent(c.Request.Context(), middleware.UserID(c))
	default:
		err = apperr.InvalidInput("box must be received or sent")
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	if views == nil {
		views = []models.RequestView{}
	}
	c.JSON(http.StatusOK, gin.H{"requests": views})
}

func (h *Handler) FindNearby(c *gin.Context) {
	users, err := h.Finder.FindNearby(c.Request.Context(), middleware.UserID(c), c.Query("city"), c.Query("region"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if users == nil {
		users = []models.UserSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
