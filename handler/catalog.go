package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/service"
)

// CatalogHandler serves templates and the auxiliary site content.
type CatalogHandler struct {
	catalog *service.Catalog
}

func NewCatalogHandler(catalog *service.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListTemplates handles GET /api/templates?kind=
func (h *CatalogHandler) ListTemplates(c *gin.Context) {
	templates, err := h.catalog.ListTemplates(c.Request.Context(), model.Kind(c.Query("kind")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates, "total": len(templates)})
}

// GetTemplate handles GET /api/templates/:id
func (h *CatalogHandler) GetTemplate(c *gin.Context) {
	tmpl, err := h.catalog.GetTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

// SaveTemplate handles POST /api/templates. A body with a known id replaces
// that template.
func (h *CatalogHandler) SaveTemplate(c *gin.Context) {
	var tmpl model.Template
	if err := c.ShouldBindJSON(&tmpl); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.catalog.SaveTemplate(c.Request.Context(), &tmpl); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

func (h *CatalogHandler) ListGallery(c *gin.Context) {
	items, err := h.catalog.ListGallery(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": items, "total": len(items)})
}

func (h *CatalogHandler) AddGalleryImage(c *gin.Context) {
	var img model.GalleryImage
	if err := c.ShouldBindJSON(&img); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.catalog.AddGalleryImage(c.Request.Context(), &img); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, img)
}

// ListTestimonials handles GET /api/testimonials?approved=true
func (h *CatalogHandler) ListTestimonials(c *gin.Context) {
	h.testimonials(c, c.Query("approved") == "true")
}

// PublicTestimonials lists approved testimonials only.
func (h *CatalogHandler) PublicTestimonials(c *gin.Context) {
	h.testimonials(c, true)
}

func (h *CatalogHandler) testimonials(c *gin.Context, approvedOnly bool) {
	items, err := h.catalog.ListTestimonials(c.Request.Context(), approvedOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"testimonials": items, "total": len(items)})
}

func (h *CatalogHandler) AddTestimonial(c *gin.Context) {
	var t model.Testimonial
	if err := c.ShouldBindJSON(&t); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.catalog.AddTestimonial(c.Request.Context(), &t); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// ApproveTestimonial handles POST /api/testimonials/:id/approve
func (h *CatalogHandler) ApproveTestimonial(c *gin.Context) {
	if err := h.catalog.ApproveTestimonial(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Testimonial approved"})
}

// ReportHandler exports operator spreadsheets.
type ReportHandler struct {
	store service.RecordStore
	now   func() time.Time
}

func NewReportHandler(store service.RecordStore) *ReportHandler {
	return &ReportHandler{store: store, now: time.Now}
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Records handles GET /api/reports/records.xlsx?kind=&status=
func (h *ReportHandler) Records(c *gin.Context) {
	filter := service.RecordFilter{
		Kind:   model.Kind(c.Query("kind")),
		Status: model.Status(c.Query("status")),
	}
	data, err := service.RecordsReport(c.Request.Context(), h.store, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	name := "registros-" + h.now().Format("2006-01-02") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}
