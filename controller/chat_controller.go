package controller

import (
	"net/http"

	"github.com/dyk-im/Break-Bias/models"
	"github.com/dyk-im/Break-Bias/services"
	"github.com/gin-gonic/gin"
)

// ChatController handles chat turns and conversation history.
type ChatController struct {
	chat *services.ChatService
}

func NewChatController(chat *services.ChatService) *ChatController {
	return &ChatController{chat: chat}
}

// SendMessage is the handler for POST /api/v1/chat. Retrieval is used
// unless use_rag is explicitly false.
func (c *ChatController) SendMessage(ctx *gin.Context) {
	var req models.ChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	useRAG := true
	if req.UseRAG != nil {
		useRAG = *req.UseRAG
	}

	response, err := c.chat.ProcessMessage(ctx.Request.Context(), req.ConversationID, req.Message, useRAG)
	if err != nil {
		respondError(ctx, err, "Failed to process message")
		return
	}
	ctx.JSON(http.StatusOK, response)
}

// History is the handler for GET /api/v1/chat/:id.
func (c *ChatController) History(ctx *gin.Context) {
	id := ctx.Param("id")
	ctx.JSON(http.StatusOK, models.ConversationResponse{
		ConversationID: id,
		Messages:       c.chat.History(id),
	})
}

// Clear is the handler for DELETE /api/v1/chat/:id.
func (c *ChatController) Clear(ctx *gin.Context) {
	id := ctx.Param("id")
	cleared := c.chat.Clear(id)
	ctx.JSON(http.StatusOK, gin.H{"conversation_id": id, "cleared": cleared})
}
