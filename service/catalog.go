package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/apperr"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/logger"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/render"
)

// Catalog manages templates and the auxiliary content collections.
type Catalog struct {
	templates TemplateStore
	content   ContentStore
}

func NewCatalog(templates TemplateStore, content ContentStore) *Catalog {
	return &Catalog{templates: templates, content: content}
}

// SeedTemplates stores the built-in templates that are missing and returns
// how many were added. Existing templates, edited or not, are kept.
func (c *Catalog) SeedTemplates(ctx context.Context) (int, error) {
	defaults, err := render.DefaultTemplates()
	if err != nil {
		return 0, err
	}
	added := 0
	for i := range defaults {
		t := defaults[i]
		if _, err := c.templates.GetTemplate(ctx, t.ID); err == nil {
			continue
		} else if !apperr.IsKind(err, apperr.KindNotFound) {
			return added, err
		}
		if err := c.templates.SaveTemplate(ctx, &t); err != nil {
			return added, fmt.Errorf("seed template %s: %w", t.ID, err)
		}
		added++
	}
	if added > 0 {
		logger.Info(ctx, "default templates seeded", "count", added)
	}
	return added, nil
}

func (c *Catalog) ListTemplates(ctx context.Context, kind model.Kind) ([]model.Template, error) {
	return c.templates.ListTemplates(ctx, kind)
}

func (c *Catalog) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	return c.templates.GetTemplate(ctx, id)
}

// SaveTemplate validates and stores t. Placeholders that do not parse are
// rejected here so they never reach a record.
func (c *Catalog) SaveTemplate(ctx context.Context, t *model.Template) error {
	if t.Kind != model.KindProposal && t.Kind != model.KindContract && t.Kind != model.KindEmail {
		return apperr.WithMetadata(apperr.KindValidation, apperr.CodeInvalidKind,
			fmt.Sprintf("unsupported template kind %q", t.Kind), map[string]string{"field": "kind"})
	}
	if strings.TrimSpace(t.Name) == "" {
		return apperr.WithMetadata(apperr.KindValidation, apperr.CodeRequiredField,
			"name is required", map[string]string{"field": "name"})
	}
	if strings.TrimSpace(t.HTML) == "" {
		return apperr.WithMetadata(apperr.KindValidation, apperr.CodeRequiredField,
			"html is required", map[string]string{"field": "html"})
	}
	for _, seg := range render.Parse(t.HTML + t.Subject) {
		if seg.Kind == render.SegmentMalformed {
			return apperr.WithMetadata(apperr.KindValidation, apperr.CodeInvalidTemplate,
				"template has a malformed placeholder", map[string]string{"token": seg.Raw, "reason": seg.Reason})
		}
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return c.templates.SaveTemplate(ctx, t)
}

func (c *Catalog) ListGallery(ctx context.Context) ([]model.GalleryImage, error) {
	return c.content.ListGallery(ctx)
}

func (c *Catalog) AddGalleryImage(ctx context.Context, img *model.GalleryImage) error {
	if strings.TrimSpace(img.URL) == "" {
		return apperr.WithMetadata(apperr.KindValidation, apperr.CodeRequiredField,
			"url is required", map[string]string{"field": "url"})
	}
	if img.ID == "" {
		img.ID = uuid.New().String()
	}
	return c.content.AddGalleryImage(ctx, img)
}

func (c *Catalog) ListTestimonials(ctx context.Context, approvedOnly bool) ([]model.Testimonial, error) {
	return c.content.ListTestimonials(ctx, approvedOnly)
}

// AddTestimonial stores a new testimonial. It stays hidden until approved.
func (c *Catalog) AddTestimonial(ctx context.Context, t *model.Testimonial) error {
	if strings.TrimSpace(t.Author) == "" {
		return apperr.WithMetadata(apperr.KindValidation, apperr.CodeRequiredField,
			"author is required", map[string]string{"field": "author"})
	}
	if strings.TrimSpace(t.Quote) == "" {
		return apperr.WithMetadata(apperr.KindValidation, apperr.CodeRequiredField,
			"quote is required", map[string]string{"field": "quote"})
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.Approved = false
	return c.content.AddTestimonial(ctx, t)
}

func (c *Catalog) ApproveTestimonial(ctx context.Context, id string) error {
	return c.content.ApproveTestimonial(ctx, id)
}
