package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chat-bankrot/community-chat/internal/common"
	"github.com/chat-bankrot/community-chat/internal/subscription"
)

func (h *Handler) GetSubscription(c *gin.Context) {
	token, _ := viewer(c)
	if token == "" {
		common.Fail(c, http.StatusUnauthorized, 40100, "Token required")
		return
	}

	status, err := h.SubSvc.Status(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, subscription.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "Subscription not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to load subscription")
		return
	}
	common.OK(c, status)
}

type createSubscriptionReq struct {
	Plan string `json:"plan"`
}

func (h *Handler) CreateSubscription(c *gin.Context) {
	var req createSubscriptionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Plan == "" {
		req.Plan = subscription.PlanMonth
	}

	sub, err := h.SubSvc.Mint(c.Request.Context(), req.Plan, nil)
	if err != nil {
		if errors.Is(err, subscription.ErrInvalidPlan) {
			common.Fail(c, http.StatusBadRequest, 10003, "Invalid plan. Use week or month")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to create subscription")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":    0,
		"message": "ok",
		"data": gin.H{
			"token":      sub.UserToken,
			"plan":       sub.Plan,
			"expires_at": sub.ExpiresAt,
			"created_at": sub.CreatedAt,
		},
	})
}
