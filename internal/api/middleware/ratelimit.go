package middleware

import (
	"sync"
	"time"

	"travelmate/backend/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const limiterIdle = 3 * time.Minute

// UserRateLimiter keeps one token bucket per authenticated user.
type UserRateLimiter struct {
	mu        sync.Mutex
	users     map[string]*limiterEntry
	r         rate.Limit
	burst     int
	lastSweep time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUserRateLimiter allows r requests per second with the given burst.
func NewUserRateLimiter(r rate.Limit, burst int) *UserRateLimiter {
	return &UserRateLimiter{
		users:     make(map[string]*limiterEntry),
		r:         r,
		burst:     burst,
		lastSweep: time.Now(),
	}
}

// GetLimiter returns the limiter of userID, evicting idle entries at most
// once a minute.
func (rl *UserRateLimiter) GetLimiter(userID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) > time.Minute {
		for id, entry := range rl.users {
			if now.Sub(entry.lastSeen) > limiterIdle {
				delete(rl.users, id)
			}
		}
		rl.lastSweep = now
	}

	entry, ok := rl.users[userID]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.r, rl.burst)}
		rl.users[userID] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// RateLimit must run after Auth.
func RateLimit(rl *UserRateLimiter, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if !rl.GetLimiter(userID).Allow() {
			log.WithFields(logrus.Fields{"user_id": userID, "path": c.FullPath()}).Warn("rate limit exceeded")
			WriteError(c, apperr.RateLimited("too many requests, slow down"))
			return
		}
		c.Next()
	}
}
