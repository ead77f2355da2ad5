package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/logger"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/service"
)

// RecordHandler is the operator API over proposals and contracts.
type RecordHandler struct {
	workflow *service.Workflow
}

func NewRecordHandler(workflow *service.Workflow) *RecordHandler {
	return &RecordHandler{workflow: workflow}
}

// recordResponse adds the client-facing link to a record.
type recordResponse struct {
	*model.BusinessRecord
	PublicLink string `json:"public_link"`
}

func (h *RecordHandler) withLink(rec *model.BusinessRecord) recordResponse {
	return recordResponse{BusinessRecord: rec, PublicLink: h.workflow.PublicLink(rec)}
}

func (h *RecordHandler) result(c *gin.Context, status int, res *service.Result) {
	c.JSON(status, gin.H{
		"record":   h.withLink(res.Record),
		"warnings": res.Warnings,
	})
}

// Create handles POST /api/records
func (h *RecordHandler) Create(c *gin.Context) {
	var req service.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.workflow.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.result(c, http.StatusCreated, res)
}

// List handles GET /api/records?kind=&status=
func (h *RecordHandler) List(c *gin.Context) {
	filter := service.RecordFilter{
		Kind:   model.Kind(c.Query("kind")),
		Status: model.Status(c.Query("status")),
	}

	records, err := h.workflow.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, h.withLink(rec))
	}
	c.JSON(http.StatusOK, gin.H{"records": items, "total": len(items)})
}

// Get handles GET /api/records/:id
func (h *RecordHandler) Get(c *gin.Context) {
	rec, err := h.workflow.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.withLink(rec))
}

// Update handles PATCH /api/records/:id
func (h *RecordHandler) Update(c *gin.Context) {
	var patch model.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}

	ctx := logger.WithRecord(c.Request.Context(), c.Param("id"))
	res, err := h.workflow.Edit(ctx, c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	h.result(c, http.StatusOK, res)
}

// Send handles POST /api/records/:id/send
func (h *RecordHandler) Send(c *gin.Context) {
	ctx := logger.WithRecord(c.Request.Context(), c.Param("id"))
	res, err := h.workflow.Send(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.result(c, http.StatusOK, res)
}

// Cancel handles POST /api/records/:id/cancel
func (h *RecordHandler) Cancel(c *gin.Context) {
	ctx := logger.WithRecord(c.Request.Context(), c.Param("id"))
	res, err := h.workflow.Cancel(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.result(c, http.StatusOK, res)
}

// Delete handles DELETE /api/records/:id. Only drafts can be deleted.
func (h *RecordHandler) Delete(c *gin.Context) {
	ctx := logger.WithRecord(c.Request.Context(), c.Param("id"))
	if err := h.workflow.Delete(ctx, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Record deleted successfully"})
}

// Render handles GET /api/records/:id/render
func (h *RecordHandler) Render(c *gin.Context) {
	ctx := c.Request.Context()
	rec, err := h.workflow.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	doc, err := h.workflow.Render(ctx, rec)
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") == "html" {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(service.PrintPage(doc, false)))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"html":      doc.HTML,
		"css":       doc.CSS,
		"unknown":   doc.Unknown,
		"malformed": doc.Malformed,
		"warnings":  doc.Warnings,
	})
}

// Export handles GET /api/records/:id/export and streams a preview PDF.
func (h *RecordHandler) Export(c *gin.Context) {
	ctx := c.Request.Context()
	rec, err := h.workflow.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	art, err := h.workflow.Export(ctx, rec, service.ExportPreview)
	if err != nil {
		respondError(c, err)
		return
	}
	writeArtifact(c, rec, art)
}

// Audit handles GET /api/records/:id/audit
func (h *RecordHandler) Audit(c *gin.Context) {
	audit, intact, err := h.workflow.Audit(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit": audit, "intact": intact})
}

func writeArtifact(c *gin.Context, rec *model.BusinessRecord, art *service.Artifact) {
	name := rec.Slug
	if name == "" {
		name = rec.ID
	}
	c.Header("Content-Disposition", `inline; filename="`+string(rec.Kind)+"-"+name+`.pdf"`)
	if len(art.MissingImages) > 0 {
		c.Header("X-Missing-Images", strconv.Itoa(len(art.MissingImages)))
		logger.Warn(logger.WithRecord(c.Request.Context(), rec.ID), "document exported without some images",
			"missing", strings.Join(art.MissingImages, ","))
	}
	c.Data(http.StatusOK, art.ContentType, art.Data)
}
