package controller

import (
	"fmt"
	"io"
	"net/http"

	"github.com/dyk-im/Break-Bias/models"
	"github.com/dyk-im/Break-Bias/services"
	"github.com/gin-gonic/gin"
)

// OpinionController handles the HTTP requests for documents, comment
// collection and opinion analysis. It depends on the OpinionService to
// perform the actual business logic.
type OpinionController struct {
	service services.OpinionService
}

// NewOpinionController is called from main to inject the service dependency.
func NewOpinionController(service services.OpinionService) *OpinionController {
	return &OpinionController{service: service}
}

// UploadDocument is the handler for POST /api/v1/documents. The document is
// sent as the multipart field "file".
func (c *OpinionController) UploadDocument(ctx *gin.Context) {
	header, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "missing file: " + err.Error()})
		return
	}
	if !services.IsSupportedDocument(header.Filename) {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("unsupported file type: %s", header.Filename)})
		return
	}
	file, err := header.Open()
	if err != nil {
		respondError(ctx, err, "Failed to read upload")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respondError(ctx, err, "Failed to read upload")
		return
	}

	id, err := c.service.IngestDocument(ctx.Request.Context(), data, header.Filename)
	if err != nil {
		status := statusFor(err)
		ctx.JSON(status, models.IngestDocumentResponse{
			SourceID: id,
			Filename: header.Filename,
			Message:  "Failed to ingest document",
			Error:    err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusCreated, models.IngestDocumentResponse{
		SourceID: id,
		Filename: header.Filename,
		Message:  "Document ingested successfully",
	})
}

// ListDocuments is the handler for GET /api/v1/documents.
func (c *OpinionController) ListDocuments(ctx *gin.Context) {
	docs := c.service.ListSources(ctx.Request.Context(), models.OriginDocument)
	ctx.JSON(http.StatusOK, gin.H{"count": len(docs), "documents": docs})
}

// ListTopics is the handler for GET /api/v1/topics.
func (c *OpinionController) ListTopics(ctx *gin.Context) {
	topics := c.service.ListSources(ctx.Request.Context(), models.OriginComment)
	ctx.JSON(http.StatusOK, gin.H{"count": len(topics), "topics": topics})
}

// ListSources is the handler for GET /api/v1/sources.
func (c *OpinionController) ListSources(ctx *gin.Context) {
	kind := models.OriginType(ctx.Query("kind"))
	sources := c.service.ListSources(ctx.Request.Context(), kind)
	ctx.JSON(http.StatusOK, gin.H{"count": len(sources), "sources": sources})
}

// GetSource is the handler for GET /api/v1/sources/:id.
func (c *OpinionController) GetSource(ctx *gin.Context) {
	src, err := c.service.GetSource(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err, "Failed to get source")
		return
	}
	ctx.JSON(http.StatusOK, src)
}

// DeleteSource is the handler for DELETE /api/v1/sources/:id.
func (c *OpinionController) DeleteSource(ctx *gin.Context) {
	id := ctx.Param("id")
	deleted, err := c.service.DeleteSource(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err, "Failed to delete source")
		return
	}
	if !deleted {
		ctx.JSON(http.StatusNotFound, models.ErrorResponse{Error: fmt.Sprintf("source %s not found", id)})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Source deleted", "source_id": id})
}

// Reindex is the handler for POST /api/v1/reindex.
func (c *OpinionController) Reindex(ctx *gin.Context) {
	report, err := c.service.ReindexAll(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err, "Failed to reindex")
		return
	}
	ctx.JSON(http.StatusOK, report)
}

// CollectTopic is the handler for POST /api/v1/comments/topic.
func (c *OpinionController) CollectTopic(ctx *gin.Context) {
	var req models.CollectTopicRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	result, err := c.service.IngestTopic(ctx.Request.Context(), req.Topic, req.MaxSources, req.MaxItemsPerSource)
	if err != nil {
		respondError(ctx, err, "Failed to collect comments")
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// CollectVideo is the handler for POST /api/v1/comments/video.
func (c *OpinionController) CollectVideo(ctx *gin.Context) {
	var req models.CollectVideoRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	result, err := c.service.IngestSingleSource(ctx.Request.Context(), models.SourceRef{ID: req.VideoID, Title: req.Title}, req.MaxItems)
	if err != nil {
		respondError(ctx, err, "Failed to collect comments")
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// AnalyzeOpinion is the handler for POST /api/v1/opinions/analyze.
func (c *OpinionController) AnalyzeOpinion(ctx *gin.Context) {
	var req models.OpinionQuery
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	response, err := c.service.QueryOpinion(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err, "Failed to analyse opinion")
		return
	}
	ctx.JSON(http.StatusOK, response)
}

// Stats is the handler for GET /api/v1/stats.
func (c *OpinionController) Stats(ctx *gin.Context) {
	stats, err := c.service.Stats(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err, "Failed to read stats")
		return
	}
	ctx.JSON(http.StatusOK, stats)
}
