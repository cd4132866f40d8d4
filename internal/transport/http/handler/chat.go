package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"research-chatbot/internal/app"
	"research-chatbot/internal/model"
	"research-chatbot/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type CreateSessionRequest struct {
	UserID string `json:"user_id" binding:"max=64"`
}

type ChatMessageRequest struct {
	SessionID string `json:"session_id" binding:"required,uuid"`
	Query     string `json:"query" binding:"required"`
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	session, err := h.chatService.CreateSession(c.Request.Context(), req.UserID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create session failed")
		return
	}

	response.OK(c, session)
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.chatService.Chat(c.Request.Context(), app.ChatRequest{
		SessionID: req.SessionID,
		Query:     req.Query,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "chat failed")
		}
		return
	}

	response.OK(c, result)
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "session id is required")
		return
	}

	if err := h.chatService.DeleteSession(c.Request.Context(), sessionID); err != nil {
		switch {
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete session failed")
		}
		return
	}

	response.OK(c, gin.H{"session_id": sessionID, "deleted": true})
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "session_id is required")
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	history, err := h.chatService.History(c.Request.Context(), sessionID, limit)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get history failed")
		}
		return
	}

	type turnView struct {
		Query     string           `json:"query"`
		Response  string           `json:"response"`
		ToolUsed  string           `json:"tool_used"`
		Citations []model.Citation `json:"citations"`
		CreatedAt time.Time        `json:"created_at"`
	}
	views := make([]turnView, 0, len(history))
	for i := range history {
		t := &history[i]
		citations := t.CitationList()
		if citations == nil {
			citations = []model.Citation{}
		}
		views = append(views, turnView{
			Query:     t.Query,
			Response:  t.Response,
			ToolUsed:  t.ToolUsed,
			Citations: citations,
			CreatedAt: t.CreatedAt,
		})
	}

	response.OK(c, gin.H{"session_id": sessionID, "turns": views})
}

func (h *ChatHandler) GetStats(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "session id is required")
		return
	}

	stats, err := h.chatService.Stats(c.Request.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get session stats failed")
		}
		return
	}

	response.OK(c, stats)
}
