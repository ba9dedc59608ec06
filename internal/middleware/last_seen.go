package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/microblog/microblog/pkg/logger"
)

// LastSeenToucher is implemented by services.UserService.
type LastSeenToucher interface {
	TouchLastSeen(ctx context.Context, userID string) error
}

// LastSeen refreshes the caller's last-seen time before the handler runs.
// It must be installed after NewJWTAuth. Failures are logged and the request
// proceeds.
func LastSeen(users LastSeenToucher, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := GetUserID(c); userID != "" {
			if err := users.TouchLastSeen(c.Request.Context(), userID); err != nil {
				log.WithError(err).WithField("user_id", userID).Warn("Failed to update last seen")
			}
		}
		c.Next()
	}
}
