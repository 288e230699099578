package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chat-bankrot/community-chat/internal/chat"
	"github.com/chat-bankrot/community-chat/internal/common"
)

// requireChatAccess enforces the subscription gate: admins always pass,
// everyone else needs a known, active, non-blocked token.
func (h *Handler) requireChatAccess(c *gin.Context) (token string, isAdmin bool, ok bool) {
	token, isAdmin = viewer(c)
	if isAdmin {
		return token, true, true
	}
	if token == "" {
		common.Fail(c, http.StatusUnauthorized, 40100, "Token required")
		return "", false, false
	}
	active, err := h.SubSvc.HasChatAccess(c.Request.Context(), token)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to check subscription")
		return "", false, false
	}
	if !active {
		common.Fail(c, http.StatusForbidden, 40301, "Subscription expired or invalid")
		return "", false, false
	}
	return token, false, true
}

func (h *Handler) GetChat(c *gin.Context) {
	token, isAdmin, ok := h.requireChatAccess(c)
	if !ok {
		return
	}

	window, err := h.ChatSvc.ListWindow(c.Request.Context(), token, isAdmin)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to load messages")
		return
	}
	common.OK(c, window)
}

type postMessageReq struct {
	Content    string   `json:"content"`
	AuthorName string   `json:"author_name"`
	ReplyTo    *uint64  `json:"reply_to"`
	ImageURLs  []string `json:"image_urls"`
}

func (h *Handler) PostMessage(c *gin.Context) {
	token, _, ok := h.requireChatAccess(c)
	if !ok {
		return
	}

	var req postMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	msg, err := h.ChatSvc.Post(c.Request.Context(), token, req.Content, req.AuthorName, req.ReplyTo, req.ImageURLs)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyContent) {
			common.Fail(c, http.StatusBadRequest, 10002, "Content required")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to post message")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"code":    0,
		"message": "ok",
		"data":    msg,
	})
}

type deleteMessageReq struct {
	MessageID uint64 `json:"message_id" binding:"required"`
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	_, isAdmin := viewer(c)
	if !isAdmin {
		common.Fail(c, http.StatusForbidden, 40300, "admin access required")
		return
	}

	var req deleteMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	replies, err := h.ChatSvc.Delete(c.Request.Context(), req.MessageID)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40400, "message not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to delete message")
		return
	}
	common.OK(c, gin.H{"deleted_replies": replies})
}

type editMessageReq struct {
	MessageID uint64 `json:"message_id" binding:"required"`
	Content   string `json:"content" binding:"required"`
}

func (h *Handler) EditMessage(c *gin.Context) {
	token, isAdmin, ok := h.requireChatAccess(c)
	if !ok {
		return
	}

	var req editMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	err := h.ChatSvc.Edit(c.Request.Context(), token, isAdmin, req.MessageID, req.Content)
	switch {
	case errors.Is(err, chat.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40400, "message not found")
	case errors.Is(err, chat.ErrNotOwner):
		common.Fail(c, http.StatusForbidden, 40302, "not your message")
	case errors.Is(err, chat.ErrEditWindowClosed):
		common.Fail(c, http.StatusForbidden, 40303, "edit window closed")
	case errors.Is(err, chat.ErrEmptyContent):
		common.Fail(c, http.StatusBadRequest, 10002, "Content required")
	case err != nil:
		common.Fail(c, http.StatusInternalServerError, 50005, "failed to edit message")
	default:
		common.OK(c, gin.H{"message_id": req.MessageID})
	}
}

type pinMessageReq struct {
	MessageID uint64 `json:"message_id" binding:"required"`
	IsPinned  *bool  `json:"is_pinned" binding:"required"`
}

func (h *Handler) PinMessage(c *gin.Context) {
	_, isAdmin := viewer(c)
	if !isAdmin {
		common.Fail(c, http.StatusForbidden, 40300, "admin access required")
		return
	}

	var req pinMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if err := h.ChatSvc.SetPinned(c.Request.Context(), req.MessageID, *req.IsPinned); err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40400, "message not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50006, "failed to pin message")
		return
	}
	common.OK(c, gin.H{"message_id": req.MessageID, "is_pinned": *req.IsPinned})
}

type reactionReq struct {
	MessageID uint64 `json:"message_id" binding:"required"`
	Emoji     string `json:"emoji" binding:"required"`
}

func (h *Handler) AddReaction(c *gin.Context) {
	token, _, ok := h.requireChatAccess(c)
	if !ok {
		return
	}

	var req reactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if err := h.ChatSvc.React(c.Request.Context(), token, req.MessageID, req.Emoji); err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40400, "message not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50007, "failed to add reaction")
		return
	}
	common.OK(c, gin.H{"message_id": req.MessageID, "emoji": req.Emoji})
}

func (h *Handler) RemoveReaction(c *gin.Context) {
	token, _, ok := h.requireChatAccess(c)
	if !ok {
		return
	}

	var req reactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if err := h.ChatSvc.Unreact(c.Request.Context(), token, req.MessageID, req.Emoji); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50008, "failed to remove reaction")
		return
	}
	common.OK(c, gin.H{"message_id": req.MessageID, "emoji": req.Emoji})
}

type typingReq struct {
	AuthorName string `json:"author_name"`
}

func (h *Handler) Typing(c *gin.Context) {
	token, _, ok := h.requireChatAccess(c)
	if !ok {
		return
	}

	var req typingReq
	_ = c.ShouldBindJSON(&req) // name is optional

	if err := h.ChatSvc.Typing(c.Request.Context(), token, req.AuthorName); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50009, "failed to record typing")
		return
	}
	common.OK(c, nil)
}
