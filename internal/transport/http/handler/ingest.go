package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"research-chatbot/internal/app"
	"research-chatbot/internal/pkg/pdfextract"
	"research-chatbot/internal/transport/http/response"
)

type IngestHandler struct {
	ingestService *app.IngestService
}

func NewIngestHandler(ingestService *app.IngestService) *IngestHandler {
	return &IngestHandler{ingestService: ingestService}
}

type IngestTextRequest struct {
	DocumentID string `json:"document_id" binding:"max=36"`
	Title      string `json:"title" binding:"required,max=255"`
	Text       string `json:"text" binding:"required"`
}

type IngestChunksRequest struct {
	DocumentID string                 `json:"document_id" binding:"max=36"`
	Title      string                 `json:"title" binding:"required,max=255"`
	Chunks     []app.PreEmbeddedChunk `json:"chunks" binding:"required"`
}

func (h *IngestHandler) IngestText(c *gin.Context) {
	var req IngestTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	summary, err := h.ingestService.IngestText(c.Request.Context(), req.DocumentID, req.Title, "text", req.Text)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ingest failed")
		}
		return
	}

	response.OK(c, summary)
}

func (h *IngestHandler) IngestPDF(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "pdf file is required")
		return
	}

	title := c.PostForm("title")
	if title == "" {
		title = strings.TrimSuffix(fileHeader.Filename, ".pdf")
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "open uploaded file failed")
		return
	}
	defer file.Close()

	text, err := pdfextract.ExtractText(file)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "extract pdf text failed: "+err.Error())
		return
	}
	if strings.TrimSpace(text) == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "pdf contains no extractable text")
		return
	}

	summary, err := h.ingestService.IngestText(c.Request.Context(), c.PostForm("document_id"), title, "pdf", text)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ingest failed")
		}
		return
	}

	response.OK(c, summary)
}

func (h *IngestHandler) IngestChunks(c *gin.Context) {
	var req IngestChunksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	summary, err := h.ingestService.IngestChunks(c.Request.Context(), req.DocumentID, req.Title, "chunks", req.Chunks)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ingest failed")
		}
		return
	}

	response.OK(c, summary)
}

func (h *IngestHandler) ListDocuments(c *gin.Context) {
	docs, err := h.ingestService.ListDocuments(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *IngestHandler) DeleteDocument(c *gin.Context) {
	documentID := c.Param("id")
	if documentID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "document id is required")
		return
	}

	if err := h.ingestService.DeleteDocument(c.Request.Context(), documentID); err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		}
		return
	}

	response.OK(c, gin.H{"deleted_document_id": documentID})
}
