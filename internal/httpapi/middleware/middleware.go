package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chat-bankrot/community-chat/internal/auth"
	"github.com/chat-bankrot/community-chat/internal/common"
)

const (
	// UserTokenKey holds the opaque subscriber token, if any.
	UserTokenKey = "user_token"
	// IsAdminKey is set when a valid admin JWT was presented.
	IsAdminKey = "is_admin"
	// AdminJTIKey holds the admin token id for logout denylisting.
	AdminJTIKey = "admin_jti"
	// UserEmailKey holds the support identity from X-User-Email, if any.
	UserEmailKey = "user_email"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("panic recovered: %v", r)
				common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

// CORS allows any origin with the header set the browser clients send.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "X-User-Token", "X-User-Email", "Authorization"},
		MaxAge:          24 * time.Hour,
	})
}

// DenyChecker reports whether an admin token id has been logged out.
type DenyChecker interface {
	IsJWTDenied(ctx context.Context, jti string) (bool, error)
}

// Identify resolves the caller's identity without enforcing anything.
// Subscriber tokens arrive in X-User-Token (or ?token= for magic links);
// admin JWTs arrive as a bearer Authorization header.
func Identify(jwtSecret string, deny DenyChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if t := c.GetHeader("X-User-Token"); t != "" {
			c.Set(UserTokenKey, t)
		} else if t := c.Query("token"); t != "" {
			c.Set(UserTokenKey, t)
		}

		if e := strings.TrimSpace(c.GetHeader("X-User-Email")); e != "" {
			c.Set(UserEmailKey, e)
		}

		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			raw := strings.TrimPrefix(authHeader, "Bearer ")
			if claims, err := auth.ParseAdminJWT(jwtSecret, raw); err == nil {
				denied := false
				if deny != nil {
					denied, _ = deny.IsJWTDenied(c.Request.Context(), claims.ID)
				}
				if !denied {
					c.Set(IsAdminKey, true)
					c.Set(AdminJTIKey, claims.ID)
				}
			}
		}

		c.Next()
	}
}

// AdminRequired aborts unless Identify established admin identity.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(IsAdminKey) {
			common.Fail(c, http.StatusForbidden, 40300, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}
