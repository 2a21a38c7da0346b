// Package handler exposes the services over HTTP and WebSocket.
package handler

import (
	"net/http"
	"time"

	"travelmate/backend/internal/api/middleware"
	"travelmate/backend/internal/apperr"
	"travelmate/backend/internal/chathub"
	"travelmate/backend/internal/messages"
	"travelmate/backend/internal/proximity"
	"travelmate/backend/internal/requests"
	"travelmate/backend/internal/rooms"
	"travelmate/backend/internal/unread"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Handler holds the services behind the API.
type Handler struct {
	Ledger   *requests.LedgerService
	Rooms    *rooms.DirectoryService
	Messages *messages.StoreService
	Finder   *proximity.FinderService
	Counters *unread.AggregatorService
	Hub      *chathub.ManagerService

	// TelegramLink builds the deep link that connects a chat to a user.
	// Nil when Telegram is not configured.
	TelegramLink func(userID string) string

	log *logrus.Logger
}

// RouterConfig carries the HTTP settings of the router.
type RouterConfig struct {
	JWTSecret      []byte
	CORSOrigins    []string
	RequestTimeout time.Duration
	WriteRate      float64
	WriteBurst     int
}

func NewHandler(
	ledger *requests.LedgerService,
	directory *rooms.DirectoryService,
	store *messages.StoreService,
	finder *proximity.FinderService,
	counters *unread.AggregatorService,
	hub *chathub.ManagerService,
	log *logrus.Logger,
) *Handler {
	return &Handler{
		Ledger:   ledger,
		Rooms:    directory,
		Messages: store,
		Finder:   finder,
		Counters: counters,
		Hub:      hub,
		log:      log,
	}
}

// Router mounts every route under /api/v1.
func (h *Handler) Router(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Errors(h.log), middleware.AccessLog(h.log), middleware.CORS(cfg.CORSOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.GET("/ws", middleware.QueryAuth(cfg.JWTSecret), h.websocketHandler(cfg.CORSOrigins))

	api := v1.Group("", middleware.Auth(cfg.JWTSecret), middleware.Timeout(cfg.RequestTimeout))
	limited := middleware.RateLimit(middleware.NewUserRateLimiter(rate.Limit(cfg.WriteRate), cfg.WriteBurst), h.log)

	api.POST("/requests", limited, h.CreateRequest)
	api.POST("/requests/:id/respond", limited, h.RespondToRequest)
	api.GET("/requests", h.ListRequests)

	api.GET("/nearby", h.FindNearby)

	api.GET("/rooms", h.ListRooms)
	api.POST("/rooms/gatherings", limited, h.CreateGathering)
	api.GET("/rooms/:id", h.GetRoom)
	api.DELETE("/rooms/:id", limited, h.DeleteGathering)
	api.POST("/rooms/:id/join", limited, h.JoinGathering)
	api.POST("/rooms/:id/leave", limited, h.LeaveRoom)

	api.POST("/rooms/:id/messages", limited, h.SendMessage)
	api.GET("/rooms/:id/messages", h.ListMessages)
	api.POST("/rooms/:id/read", h.MarkRead)

	api.GET("/counters", h.GetCounters)
	api.GET("/telegram/link", h.TelegramLinkURL)

	return r
}

func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		_ = c.Error(apperr.InvalidInput("invalid request body"))
		return false
	}
	return true
}
