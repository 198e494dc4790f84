package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/telecare-health/telecare/internal/service"
)

type MessageHandler struct {
	messageSvc *service.MessageService
}

func NewMessageHandler(messageSvc *service.MessageService) *MessageHandler {
	return &MessageHandler{messageSvc: messageSvc}
}

type sendMessageRequest struct {
	RecipientID uuid.UUID `json:"recipient_id" binding:"required"`
	Content     string    `json:"content" binding:"required"`
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	m, err := h.messageSvc.SendMessage(c.Request.Context(), req.RecipientID, req.Content, currentClaims(c), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, m)
}

func (h *MessageHandler) Conversation(c *gin.Context) {
	otherID, ok := parseUUID(c, "userId")
	if !ok {
		return
	}

	msgs, err := h.messageSvc.ReadConversation(c.Request.Context(), otherID, currentClaims(c), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, msgs)
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.messageSvc.MarkRead(c.Request.Context(), id, currentClaims(c)); err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{"read": true})
}

func (h *MessageHandler) UnreadCount(c *gin.Context) {
	count, err := h.messageSvc.CountUnread(c.Request.Context(), currentClaims(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{"unread": count})
}
