package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chat-bankrot/community-chat/internal/auth"
	"github.com/chat-bankrot/community-chat/internal/common"
	"github.com/chat-bankrot/community-chat/internal/httpapi/middleware"
	"github.com/chat-bankrot/community-chat/internal/store/rabbitmq"
	"github.com/chat-bankrot/community-chat/internal/subscription"
)

const adminTokenTTL = 12 * time.Hour

type adminLoginReq struct {
	Password string `json:"password" binding:"required"`
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var req adminLoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if h.adminHash == "" || !auth.CheckPassword(h.adminHash, req.Password) {
		common.Fail(c, http.StatusUnauthorized, 40101, "invalid password")
		return
	}

	token, err := auth.SignAdminJWT(h.Cfg.JWTSecret, adminTokenTTL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to sign token")
		return
	}
	common.OK(c, gin.H{"token": token, "is_admin": true})
}

// AdminLogout denylists the presented JWT until its natural expiry.
func (h *Handler) AdminLogout(c *gin.Context) {
	jti := c.GetString(middleware.AdminJTIKey)
	if jti != "" && h.Denylist != nil {
		_ = h.Denylist.DenyJWT(c.Request.Context(), jti, adminTokenTTL)
	}
	common.OK(c, nil)
}

func (h *Handler) AdminListUsers(c *gin.Context) {
	users, err := h.SubSvc.ListUsers(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list users")
		return
	}
	common.OK(c, gin.H{"users": users})
}

type blockUserReq struct {
	UserToken string `json:"user_token" binding:"required"`
	IsBlocked *bool  `json:"is_blocked" binding:"required"`
}

func (h *Handler) AdminBlockUser(c *gin.Context) {
	var req blockUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "user_token and is_blocked required")
		return
	}

	sub, err := h.SubSvc.SetBlocked(c.Request.Context(), req.UserToken, *req.IsBlocked)
	if err != nil {
		if errors.Is(err, subscription.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "User not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to update user")
		return
	}
	common.OK(c, gin.H{"user_token": sub.UserToken, "is_blocked": sub.IsBlocked})
}

type sendTokenReq struct {
	Email       string `json:"email" binding:"required"`
	Token       string `json:"token" binding:"required"`
	Plan        string `json:"plan"`
	ExpiresDate string `json:"expires_date"`
}

// AdminSendToken queues a manual access-token mail, the admin-panel path
// for resending lost tokens.
func (h *Handler) AdminSendToken(c *gin.Context) {
	var req sendTokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10003, "Email and token are required")
		return
	}
	if req.Plan == "" {
		req.Plan = subscription.PlanWeek
	}

	if h.EmailQueue == nil {
		common.Fail(c, http.StatusInternalServerError, 50004, "email delivery not configured")
		return
	}

	job := rabbitmq.EmailJob{
		Email:       req.Email,
		Token:       req.Token,
		Plan:        req.Plan,
		ExpiresDate: req.ExpiresDate,
	}
	if err := h.EmailQueue.PublishEmailJob(c.Request.Context(), job); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50005, "failed to queue email")
		return
	}
	common.OK(c, gin.H{"status": "queued", "email": req.Email})
}
