package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/ats-backend/internal/dtos"
)

type ChatHandler struct {
	Chat ChatService
}

func NewChatHandler(cs ChatService) *ChatHandler {
	return &ChatHandler{Chat: cs}
}

// Ask is POST /ai/chat
func (h *ChatHandler) Ask(c *gin.Context) {
	var req dtos.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	resp, err := h.Chat.Ask(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
