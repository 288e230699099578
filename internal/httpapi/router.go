package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chat-bankrot/community-chat/internal/common"
	"github.com/chat-bankrot/community-chat/internal/config"
	"github.com/chat-bankrot/community-chat/internal/httpapi/handlers"
	"github.com/chat-bankrot/community-chat/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, deny middleware.DenyChecker, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())
	r.Use(middleware.CORS())
	r.Use(middleware.Identify(cfg.JWTSecret, deny))

	r.GET("/ping", h.Ping)

	// chat
	r.GET("/chat", h.GetChat)
	r.POST("/chat", h.PostMessage)
	r.PUT("/chat", h.EditMessage)
	r.PATCH("/chat", h.PinMessage)
	r.DELETE("/chat", h.DeleteMessage)
	r.POST("/chat/reactions", h.AddReaction)
	r.DELETE("/chat/reactions", h.RemoveReaction)
	r.POST("/chat/typing", h.Typing)

	// support
	r.GET("/support", h.GetSupportThread)
	r.POST("/support", h.PostSupportMessage)
	r.POST("/support/reactions", h.ToggleSupportReaction)

	// subscriptions
	r.GET("/subscription", h.GetSubscription)
	r.POST("/subscription", h.CreateSubscription)

	// payments
	r.POST("/payment", h.CreatePayment)
	r.POST("/payment/webhook", h.PaymentWebhook)
	r.GET("/payment/success", h.PaymentSuccess)

	// admin
	r.POST("/admin/login", h.AdminLogin)
	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.AdminRequired())
	adminGroup.POST("/logout", h.AdminLogout)
	adminGroup.GET("/users", h.AdminListUsers)
	adminGroup.PUT("/users", h.AdminBlockUser)
	adminGroup.POST("/send-token", h.AdminSendToken)
	adminGroup.GET("/support/tickets", h.ListSupportTickets)
	adminGroup.PUT("/support/tickets", h.UpdateSupportStatus)

	return r
}
