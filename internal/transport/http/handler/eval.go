package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"research-chatbot/internal/app"
	"research-chatbot/internal/model"
	"research-chatbot/internal/transport/http/response"
)

type EvalHandler struct {
	evalService *app.EvalService
}

func NewEvalHandler(evalService *app.EvalService) *EvalHandler {
	return &EvalHandler{evalService: evalService}
}

type RunEvalRequest struct {
	Cases []model.EvalCase `json:"cases"`
}

// Run executes an evaluation batch synchronously and returns the summary with
// per-case results. Cases come from the request body when given, otherwise
// from the configured dataset file.
func (h *EvalHandler) Run(c *gin.Context) {
	var req RunEvalRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
			return
		}
	}

	results, summary, err := h.evalService.Run(c.Request.Context(), req.Cases)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeEvalFailed, "evaluation run failed: "+err.Error())
		return
	}

	response.OK(c, gin.H{
		"summary": summary,
		"results": results,
	})
}

func (h *EvalHandler) ListResults(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	results, err := h.evalService.RecentResults(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list eval results failed")
		return
	}
	response.OK(c, results)
}
