package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/chat-bankrot/community-chat/internal/common"
	"github.com/chat-bankrot/community-chat/internal/httpapi/middleware"
	"github.com/chat-bankrot/community-chat/internal/support"
)

// supportEmail resolves the support identity from the X-User-Email header.
func supportEmail(c *gin.Context) (string, bool) {
	email := c.GetString(middleware.UserEmailKey)
	if email == "" {
		common.Fail(c, http.StatusBadRequest, 10003, "User email required")
		return "", false
	}
	return email, true
}

// GetSupportThread returns the caller's ticket and its message history,
// creating the ticket on first contact. ?ticket_id= selects a specific
// ticket (the admin drill-down).
func (h *Handler) GetSupportThread(c *gin.Context) {
	email, ok := supportEmail(c)
	if !ok {
		return
	}

	var ticketID *uint64
	if raw := c.Query("ticket_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10001, "invalid ticket_id")
			return
		}
		ticketID = &id
	}

	thread, err := h.SupportSvc.Thread(c.Request.Context(), email, ticketID)
	if err != nil {
		switch {
		case errors.Is(err, support.ErrNotFound):
			common.Fail(c, http.StatusNotFound, 40401, "Ticket not found")
		default:
			common.Fail(c, http.StatusInternalServerError, 50010, "failed to load ticket")
		}
		return
	}
	common.OK(c, thread)
}

type supportSendReq struct {
	TicketID      *uint64 `json:"ticket_id"`
	Message       string  `json:"message"`
	AttachmentURL string  `json:"attachment_url"`
}

func (h *Handler) PostSupportMessage(c *gin.Context) {
	email, ok := supportEmail(c)
	if !ok {
		return
	}
	_, isAdmin := viewer(c)

	var req supportSendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	msg, err := h.SupportSvc.Send(c.Request.Context(), email, isAdmin, req.TicketID, req.Message, req.AttachmentURL)
	if err != nil {
		switch {
		case errors.Is(err, support.ErrEmptyMessage):
			common.Fail(c, http.StatusBadRequest, 10002, "Message required")
		case errors.Is(err, support.ErrNotFound):
			common.Fail(c, http.StatusNotFound, 40401, "Ticket not found")
		default:
			common.Fail(c, http.StatusInternalServerError, 50011, "failed to send message")
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"code":    0,
		"message": "ok",
		"data": gin.H{
			"message_id": msg.ID,
			"ticket_id":  msg.TicketID,
			"created_at": msg.CreatedAt,
		},
	})
}

type supportReactionReq struct {
	MessageID uint64 `json:"message_id"`
	Reaction  string `json:"reaction"`
}

func (h *Handler) ToggleSupportReaction(c *gin.Context) {
	email, ok := supportEmail(c)
	if !ok {
		return
	}

	var req supportReactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	present, err := h.SupportSvc.ToggleReaction(c.Request.Context(), email, req.MessageID, req.Reaction)
	if err != nil {
		if errors.Is(err, support.ErrEmptyMessage) {
			common.Fail(c, http.StatusBadRequest, 10002, "Reaction required")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50012, "failed to toggle reaction")
		return
	}
	common.OK(c, gin.H{"reacted": present})
}

func (h *Handler) ListSupportTickets(c *gin.Context) {
	tickets, err := h.SupportSvc.ListTickets(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50013, "failed to list tickets")
		return
	}
	common.OK(c, gin.H{"tickets": tickets})
}

type supportStatusReq struct {
	TicketID uint64 `json:"ticket_id"`
	Status   string `json:"status"`
}

func (h *Handler) UpdateSupportStatus(c *gin.Context) {
	var req supportStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if err := h.SupportSvc.SetStatus(c.Request.Context(), req.TicketID, req.Status); err != nil {
		switch {
		case errors.Is(err, support.ErrEmptyMessage):
			common.Fail(c, http.StatusBadRequest, 10002, "Status required")
		case errors.Is(err, support.ErrNotFound):
			common.Fail(c, http.StatusNotFound, 40401, "Ticket not found")
		default:
			common.Fail(c, http.StatusInternalServerError, 50014, "failed to update ticket")
		}
		return
	}
	common.OK(c, gin.H{"ticket_id": req.TicketID, "status": req.Status})
}
