package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/middleware"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/logger"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/service"
)

// PublicHandler serves the client-facing document pages and the signing flow.
// Records are addressed by slug or public token, never by id.
type PublicHandler struct {
	workflow *service.Workflow
	access   *service.AccessResolver
}

func NewPublicHandler(workflow *service.Workflow, access *service.AccessResolver) *PublicHandler {
	return &PublicHandler{workflow: workflow, access: access}
}

// publicView is what a client may see of a record. Internal notes and the
// operator metadata stay out.
type publicView struct {
	Kind       model.Kind   `json:"kind"`
	Slug       string       `json:"slug"`
	Status     model.Status `json:"status"`
	Version    int          `json:"version"`
	ClientName string       `json:"client_name"`
	EventType  string       `json:"event_type"`
	EventDate  *time.Time   `json:"event_date,omitempty"`

	TotalPrice      decimal.Decimal `json:"total_price"`
	DownPayment     decimal.Decimal `json:"down_payment"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`

	HTML string `json:"html"`
	CSS  string `json:"css"`

	Signable            bool       `json:"signable"`
	AwaitingConfirm     bool       `json:"awaiting_confirmation"`
	PreviewSignatureURL string     `json:"preview_signature_url,omitempty"`
	SignedAt            *time.Time `json:"signed_at,omitempty"`
	SignedDocumentURL   string     `json:"signed_document_url,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

func (h *PublicHandler) resolve(c *gin.Context, kind model.Kind) (*model.BusinessRecord, bool) {
	rec, err := h.access.Resolve(c.Request.Context(), kind, c.Param("key"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	c.Request = c.Request.WithContext(logger.WithRecord(c.Request.Context(), rec.ID))
	return rec, true
}

func (h *PublicHandler) view(c *gin.Context, rec *model.BusinessRecord, warnings []string) {
	doc, err := h.workflow.Render(c.Request.Context(), rec)
	if err != nil {
		respondError(c, err)
		return
	}

	_, signErr := model.Next(rec, model.ActionPreviewSign)
	_, confirmErr := model.Next(rec, model.ActionConfirmSign)

	c.JSON(http.StatusOK, publicView{
		Kind:                rec.Kind,
		Slug:                rec.Slug,
		Status:              rec.Status,
		Version:             rec.Version,
		ClientName:          rec.ClientName,
		EventType:           rec.EventType,
		EventDate:           rec.EventDate,
		TotalPrice:          rec.TotalPrice,
		DownPayment:         rec.DownPayment,
		RemainingAmount:     rec.RemainingAmount,
		HTML:                doc.HTML,
		CSS:                 doc.CSS,
		Signable:            signErr == nil,
		AwaitingConfirm:     confirmErr == nil,
		PreviewSignatureURL: rec.PreviewSignatureURL,
		SignedAt:            rec.SignedAt,
		SignedDocumentURL:   rec.SignedDocumentURL,
		Warnings:            warnings,
	})
}

// View handles GET /<kind>/:key
func (h *PublicHandler) View(kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, ok := h.resolve(c, kind)
		if !ok {
			return
		}
		h.view(c, rec, nil)
	}
}

// Print handles GET /<kind>/:key/print. The page opens the print dialog once
// loaded.
func (h *PublicHandler) Print(kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, ok := h.resolve(c, kind)
		if !ok {
			return
		}
		doc, err := h.workflow.Render(c.Request.Context(), rec)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(service.PrintPage(doc, true)))
	}
}

// PDF handles GET /<kind>/:key/pdf. A signed contract redirects to its stored
// final document when there is one.
func (h *PublicHandler) PDF(kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, ok := h.resolve(c, kind)
		if !ok {
			return
		}
		if rec.Status == model.StatusSigned && rec.SignedDocumentURL != "" {
			c.Redirect(http.StatusFound, rec.SignedDocumentURL)
			return
		}

		art, err := h.workflow.Export(c.Request.Context(), rec, service.ExportPreview)
		if err != nil {
			respondError(c, err)
			return
		}
		writeArtifact(c, rec, art)
	}
}

type signatureRequest struct {
	Image       string `json:"image"`
	SignerName  string `json:"signer_name"`
	SignerEmail string `json:"signer_email"`
	Method      string `json:"method"`
}

func (r signatureRequest) data() model.SignatureData {
	return model.SignatureData{
		Image:       r.Image,
		SignerName:  r.SignerName,
		SignerEmail: r.SignerEmail,
		Method:      r.Method,
	}
}

// PreviewSignature handles POST /contract/:key/signature/preview
func (h *PublicHandler) PreviewSignature(c *gin.Context) {
	var req signatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rec, ok := h.resolve(c, model.KindContract)
	if !ok {
		return
	}

	res, err := h.workflow.PreviewSignature(c.Request.Context(), rec.ID, req.data(), middleware.ClientMetaFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	h.view(c, res.Record, res.Warnings)
}

// ConfirmSignature handles POST /contract/:key/signature/confirm. An empty
// body confirms the previewed signature.
func (h *PublicHandler) ConfirmSignature(c *gin.Context) {
	var req signatureRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}
	rec, ok := h.resolve(c, model.KindContract)
	if !ok {
		return
	}

	res, err := h.workflow.ConfirmSignature(c.Request.Context(), rec.ID, req.data(), middleware.ClientMetaFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	h.view(c, res.Record, res.Warnings)
}

// DiscardPreview handles POST /contract/:key/signature/discard
func (h *PublicHandler) DiscardPreview(c *gin.Context) {
	rec, ok := h.resolve(c, model.KindContract)
	if !ok {
		return
	}

	res, err := h.workflow.DiscardPreview(c.Request.Context(), rec.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.view(c, res.Record, res.Warnings)
}

// Register mounts the public routes for proposals and contracts on r.
func (h *PublicHandler) Register(r gin.IRouter, limit gin.HandlerFunc) {
	for _, kind := range []model.Kind{model.KindProposal, model.KindContract} {
		base := "/" + string(kind) + "/:key"
		r.GET(base, h.View(kind))
		r.GET(base+"/print", h.Print(kind))
		r.GET(base+"/pdf", limit, h.PDF(kind))
	}

	sign := r.Group("/contract/:key/signature", limit)
	sign.POST("/preview", h.PreviewSignature)
	sign.POST("/confirm", h.ConfirmSignature)
	sign.POST("/discard", h.DiscardPreview)
}
