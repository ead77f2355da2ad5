package render

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
)

const (
	BlockGallery      = "gallery"
	BlockTestimonials = "testimonials"
)

// IsBlock reports whether name is resolved from an auxiliary collection.
func IsBlock(name string) bool {
	return name == BlockGallery || name == BlockTestimonials
}

// Layout is how a block arranges its items.
type Layout string

const (
	LayoutGrid     Layout = "grid"
	LayoutCarousel Layout = "carousel"
	LayoutList     Layout = "list"
)

// BlockOptions are parsed from {{block:limit:layout:columns:text}}.
type BlockOptions struct {
	Limit    int
	Layout   Layout
	Columns  int
	ShowText bool
}

// ParseBlockOptions reads options positionally: the first number is the item
// limit, the second the column count. Layout names and the text flags
// (text, show_text, notext, hide_text) may appear anywhere.
func ParseBlockOptions(name string, opts []string) BlockOptions {
	o := BlockOptions{Limit: 6, Layout: LayoutGrid, Columns: 3, ShowText: true}
	if name == BlockTestimonials {
		o = BlockOptions{Limit: 3, Layout: LayoutList, Columns: 1, ShowText: true}
	}

	numbers := 0
	for _, opt := range opts {
		opt = strings.ToLower(strings.TrimSpace(opt))
		if n, err := strconv.Atoi(opt); err == nil {
			if numbers == 0 && n > 0 {
				o.Limit = n
			} else if numbers == 1 && n > 0 {
				o.Columns = n
			}
			numbers++
			continue
		}
		switch opt {
		case string(LayoutGrid), string(LayoutCarousel), string(LayoutList):
			o.Layout = Layout(opt)
		case "text", "show_text":
			o.ShowText = true
		case "notext", "hide_text":
			o.ShowText = false
		}
	}

	if o.Columns < 1 {
		o.Columns = 1
	}
	if o.Columns > 6 {
		o.Columns = 6
	}
	return o
}

// ContentSource lists the auxiliary collections.
type ContentSource interface {
	ListGallery(ctx context.Context) ([]model.GalleryImage, error)
	ListTestimonials(ctx context.Context, approvedOnly bool) ([]model.Testimonial, error)
}

// BlockFetcher resolves dynamic placeholders to markup fragments.
type BlockFetcher struct {
	Source    ContentSource
	Timeout   time.Duration
	EmptyText string
}

// NewBlockFetcher returns a fetcher with a bounded per-collection timeout.
func NewBlockFetcher(src ContentSource, timeout time.Duration) *BlockFetcher {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &BlockFetcher{Source: src, Timeout: timeout, EmptyText: "Nenhum conteúdo disponível no momento."}
}

// Collections caches the listings used during one render so every block of
// the same kind sees the same data.
type Collections struct {
	Gallery         []model.GalleryImage
	Testimonials    []model.Testimonial
	galleryErr      error
	testimonialsErr error
	loaded          map[string]bool
}

// Load fetches the named collection once per render. A failed or timed out
// fetch leaves the collection empty and returns the error.
func (f *BlockFetcher) Load(ctx context.Context, c *Collections, name string) error {
	if c.loaded == nil {
		c.loaded = map[string]bool{}
	}
	if c.loaded[name] {
		return c.errFor(name)
	}
	c.loaded[name] = true

	if f.Source == nil {
		err := fmt.Errorf("no content source configured for %s", name)
		c.setErr(name, err)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	switch name {
	case BlockGallery:
		items, err := f.Source.ListGallery(ctx)
		if err != nil {
			c.galleryErr = fmt.Errorf("list gallery: %w", err)
			return c.galleryErr
		}
		c.Gallery = orderGallery(items)
	case BlockTestimonials:
		items, err := f.Source.ListTestimonials(ctx, true)
		if err != nil {
			c.testimonialsErr = fmt.Errorf("list testimonials: %w", err)
			return c.testimonialsErr
		}
		c.Testimonials = approvedTestimonials(items)
	default:
		return fmt.Errorf("unknown block %q", name)
	}
	return nil
}

func (c *Collections) errFor(name string) error {
	if name == BlockGallery {
		return c.galleryErr
	}
	return c.testimonialsErr
}

func (c *Collections) setErr(name string, err error) {
	if name == BlockGallery {
		c.galleryErr = err
	} else {
		c.testimonialsErr = err
	}
}

// Fetch resolves one dynamic placeholder. It always returns a fragment: when
// the collection is empty or unavailable the placeholder fragment is used and
// the fetch error, if any, is returned alongside it.
func (f *BlockFetcher) Fetch(ctx context.Context, c *Collections, seg Segment) (string, error) {
	err := f.Load(ctx, c, seg.Name)
	opts := ParseBlockOptions(seg.Name, seg.Options)

	switch seg.Name {
	case BlockGallery:
		if len(c.Gallery) == 0 {
			return f.Empty(seg.Name), err
		}
		return renderGallery(limit(c.Gallery, opts.Limit), opts), err
	case BlockTestimonials:
		if len(c.Testimonials) == 0 {
			return f.Empty(seg.Name), err
		}
		return renderTestimonials(limit(c.Testimonials, opts.Limit), opts), err
	default:
		return f.Empty(seg.Name), fmt.Errorf("unknown block %q", seg.Name)
	}
}

// Empty is the fragment rendered when a block has nothing to show.
func (f *BlockFetcher) Empty(name string) string {
	text := f.EmptyText
	if text == "" {
		text = "Nenhum conteúdo disponível no momento."
	}
	return fmt.Sprintf(`<div class="dynamic-block dynamic-empty" data-block="%s">%s</div>`,
		html.EscapeString(name), html.EscapeString(text))
}

func orderGallery(items []model.GalleryImage) []model.GalleryImage {
	out := append([]model.GalleryImage(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func approvedTestimonials(items []model.Testimonial) []model.Testimonial {
	out := make([]model.Testimonial, 0, len(items))
	for _, t := range items {
		if t.Approved {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func containerOpen(b *strings.Builder, name string, o BlockOptions) {
	fmt.Fprintf(b, `<div class="dynamic-block dynamic-%s layout-%s" data-block="%s"`, name, o.Layout, name)
	if o.Layout == LayoutGrid {
		fmt.Fprintf(b, ` style="display:grid;grid-template-columns:repeat(%d,1fr);gap:12px"`, o.Columns)
	}
	b.WriteString(">")
}

func renderGallery(items []model.GalleryImage, o BlockOptions) string {
	var b strings.Builder
	containerOpen(&b, BlockGallery, o)
	if o.Layout == LayoutList {
		b.WriteString("<ul>")
	}
	for _, img := range items {
		if o.Layout == LayoutList {
			b.WriteString("<li>")
		}
		fmt.Fprintf(&b, `<figure class="gallery-item"><img src="%s" alt="%s">`,
			html.EscapeString(img.URL), html.EscapeString(img.Title))
		if o.ShowText && (img.Title != "" || img.Caption != "") {
			b.WriteString("<figcaption>")
			b.WriteString(html.EscapeString(img.Title))
			if img.Caption != "" {
				if img.Title != "" {
					b.WriteString(" – ")
				}
				b.WriteString(html.EscapeString(img.Caption))
			}
			b.WriteString("</figcaption>")
		}
		b.WriteString("</figure>")
		if o.Layout == LayoutList {
			b.WriteString("</li>")
		}
	}
	if o.Layout == LayoutList {
		b.WriteString("</ul>")
	}
	b.WriteString("</div>")
	return b.String()
}

func renderTestimonials(items []model.Testimonial, o BlockOptions) string {
	var b strings.Builder
	containerOpen(&b, BlockTestimonials, o)
	for _, t := range items {
		b.WriteString(`<blockquote class="testimonial">`)
		if t.PhotoURL != "" && o.Layout != LayoutList {
			fmt.Fprintf(&b, `<img class="testimonial-photo" src="%s" alt="%s">`,
				html.EscapeString(t.PhotoURL), html.EscapeString(t.Author))
		}
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(t.Quote))
		b.WriteString("<footer>")
		b.WriteString(html.EscapeString(t.Author))
		if o.ShowText && t.EventLabel != "" {
			b.WriteString(", ")
			b.WriteString(html.EscapeString(t.EventLabel))
		}
		b.WriteString("</footer></blockquote>")
	}
	b.WriteString("</div>")
	return b.String()
}
