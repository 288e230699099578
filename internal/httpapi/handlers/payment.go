package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chat-bankrot/community-chat/internal/common"
	"github.com/chat-bankrot/community-chat/internal/payment"
	"github.com/chat-bankrot/community-chat/internal/subscription"
)

type createPaymentReq struct {
	Plan string `json:"plan" binding:"required"`
}

func (h *Handler) CreatePayment(c *gin.Context) {
	var req createPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	paymentURL, invoiceID, err := h.PaySvc.CreateOrder(c.Request.Context(), req.Plan)
	if err != nil {
		if errors.Is(err, subscription.ErrInvalidPlan) {
			common.Fail(c, http.StatusBadRequest, 10004, "Invalid plan")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50010, "Payment creation failed")
		return
	}
	common.OK(c, gin.H{"payment_url": paymentURL, "invoice_id": invoiceID})
}

// PaymentWebhook accepts provider notifications. Unrecognized events are
// acknowledged so the provider stops retrying them.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	var ev payment.WebhookEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if ev.Event == "payment.succeeded" {
		if err := h.PaySvc.HandleSucceeded(c.Request.Context(), &ev); err != nil {
			common.Fail(c, http.StatusInternalServerError, 50011, "failed to process payment")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// PaymentSuccess is the buyer's return URL; it bounces to the app with the
// minted token as a magic-link query parameter.
func (h *Handler) PaymentSuccess(c *gin.Context) {
	invoiceID := c.Query("InvId")
	if invoiceID == "" {
		common.Fail(c, http.StatusBadRequest, 10005, "missing invoice id")
		return
	}

	target, err := h.PaySvc.SuccessRedirect(c.Request.Context(), invoiceID)
	if err != nil {
		if errors.Is(err, payment.ErrOrderNotFound) {
			c.Redirect(http.StatusFound, h.Cfg.PublicBaseURL+"/?payment=pending")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50012, "failed to resolve payment")
		return
	}
	c.Redirect(http.StatusFound, target)
}
