package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chat-bankrot/community-chat/internal/chat"
	"github.com/chat-bankrot/community-chat/internal/config"
	"github.com/chat-bankrot/community-chat/internal/httpapi/middleware"
	"github.com/chat-bankrot/community-chat/internal/payment"
	"github.com/chat-bankrot/community-chat/internal/subscription"
	"github.com/chat-bankrot/community-chat/internal/support"
)

// TokenDenylist invalidates admin tokens on logout.
type TokenDenylist interface {
	DenyJWT(ctx context.Context, jti string, ttl time.Duration) error
}

type Handler struct {
	Cfg        config.Config
	Denylist   TokenDenylist
	ChatSvc    *chat.Service
	SubSvc     *subscription.Service
	PaySvc     *payment.Service
	SupportSvc *support.Service
	EmailQueue payment.EmailPublisher

	adminHash string
}

func NewHandler(cfg config.Config, denylist TokenDenylist, chatSvc *chat.Service, subSvc *subscription.Service, paySvc *payment.Service, supportSvc *support.Service, emailQueue payment.EmailPublisher, adminHash string) *Handler {
	return &Handler{
		Cfg:        cfg,
		Denylist:   denylist,
		ChatSvc:    chatSvc,
		SubSvc:     subSvc,
		PaySvc:     paySvc,
		SupportSvc: supportSvc,
		EmailQueue: emailQueue,
		adminHash:  adminHash,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(200, gin.H{"message": "pong"})
}

func viewer(c *gin.Context) (token string, isAdmin bool) {
	return c.GetString(middleware.UserTokenKey), c.GetBool(middleware.IsAdminKey)
}
