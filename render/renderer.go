package render

import (
	"context"
	"html"
	"strings"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/apperr"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/logger"
)

// Document is a rendered template.
type Document struct {
	HTML      string
	CSS       string
	Unknown   []string
	Malformed []string
	Warnings  []string
}

// Renderer composes the Resolver and the BlockFetcher.
type Renderer struct {
	Resolver Resolver
	Blocks   *BlockFetcher
}

// NewRenderer returns a Renderer.
func NewRenderer(f Formatter, blocks *BlockFetcher) *Renderer {
	return &Renderer{Resolver: NewResolver(f), Blocks: blocks}
}

// Render produces the final body for tmpl (an HTML string with placeholders)
// and its stylesheet. Block fetch failures degrade to placeholder fragments
// and are reported in Warnings; they never fail the render.
func (r *Renderer) Render(ctx context.Context, tmpl, css string, src Source) (*Document, error) {
	if strings.TrimSpace(tmpl) == "" {
		return nil, apperr.New(apperr.KindRender, apperr.CodeUnresolvable, "template has no content")
	}

	rc := r.Resolver.Resolve(tmpl, src)
	doc := &Document{CSS: css}

	var collections Collections
	for _, e := range rc.Tokens() {
		switch e.Status {
		case StatusUnknown:
			doc.Unknown = append(doc.Unknown, e.Segment.Raw)
		case StatusMalformed:
			doc.Malformed = append(doc.Malformed, e.Segment.Raw)
		case StatusDynamic:
			fragment, err := r.fetch(ctx, &collections, e.Segment)
			e.Value = fragment
			if err != nil {
				doc.Warnings = appendOnce(doc.Warnings, err.Error())
			}
		}
	}

	if len(doc.Unknown) > 0 {
		logger.Warn(ctx, "template has unknown placeholders", "kind", src.Kind(), "tokens", doc.Unknown)
	}
	if len(doc.Malformed) > 0 {
		logger.Warn(ctx, "template has malformed placeholders", "kind", src.Kind(), "tokens", doc.Malformed)
	}
	for _, w := range doc.Warnings {
		logger.Warn(ctx, "dynamic block degraded to placeholder", "kind", src.Kind(), "error", w)
	}

	body := rc.Assemble()
	if footer, ok := src.(Footer); ok {
		body += footer.Footer(r.Resolver.Format)
	}
	doc.HTML = body
	return doc, nil
}

// RenderText resolves a plain string such as an email subject. The result is
// unescaped text and dynamic blocks are dropped.
func (r *Renderer) RenderText(tmpl string, src Source) string {
	rc := r.Resolver.Resolve(tmpl, src)
	for _, e := range rc.Entries {
		if e.Status == StatusDynamic {
			e.Value = ""
		}
	}
	return html.UnescapeString(rc.Assemble())
}

func (r *Renderer) fetch(ctx context.Context, c *Collections, seg Segment) (string, error) {
	if r.Blocks == nil {
		b := NewBlockFetcher(nil, 0)
		return b.Fetch(ctx, c, seg)
	}
	return r.Blocks.Fetch(ctx, c, seg)
}

func appendOnce(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
