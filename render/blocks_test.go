package render

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
)

type fakeContent struct {
	gallery      []model.GalleryImage
	testimonials []model.Testimonial
	err          error
	delay        time.Duration
	calls        int
}

func (f *fakeContent) ListGallery(ctx context.Context) ([]model.GalleryImage, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.gallery, f.err
}

func (f *fakeContent) ListTestimonials(ctx context.Context, approvedOnly bool) ([]model.Testimonial, error) {
	f.calls++
	return f.testimonials, f.err
}

func TestParseBlockOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []string
		want BlockOptions
	}{
		{"gallery", nil, BlockOptions{Limit: 6, Layout: LayoutGrid, Columns: 3, ShowText: true}},
		{"testimonials", nil, BlockOptions{Limit: 3, Layout: LayoutList, Columns: 1, ShowText: true}},
		{"gallery", []string{"4", "carousel"}, BlockOptions{Limit: 4, Layout: LayoutCarousel, Columns: 3, ShowText: true}},
		{"gallery", []string{"8", "grid", "12", "notext"}, BlockOptions{Limit: 8, Layout: LayoutGrid, Columns: 6, ShowText: false}},
		{"testimonials", []string{"list", "hide_text"}, BlockOptions{Limit: 3, Layout: LayoutList, Columns: 1, ShowText: false}},
		{"gallery", []string{"abc", "0"}, BlockOptions{Limit: 6, Layout: LayoutGrid, Columns: 3, ShowText: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name+strings.Join(tt.opts, ":"), func(t *testing.T) {
			if got := ParseBlockOptions(tt.name, tt.opts); got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestFetchEmptyCollection(t *testing.T) {
	f := NewBlockFetcher(&fakeContent{}, time.Second)
	var c Collections

	out, err := f.Fetch(context.Background(), &c, Parse("{{gallery}}")[0])
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := `<div class="dynamic-block dynamic-empty" data-block="gallery">Nenhum conteúdo disponível no momento.</div>`
	if out != want {
		t.Errorf("Expected placeholder fragment, got %q", out)
	}
}

func TestFetchFailureDegrades(t *testing.T) {
	f := NewBlockFetcher(&fakeContent{err: errors.New("connection refused")}, time.Second)
	var c Collections

	out, err := f.Fetch(context.Background(), &c, Parse("{{testimonials}}")[0])
	if err == nil {
		t.Error("Expected fetch error to be reported")
	}
	if !strings.Contains(out, "dynamic-empty") {
		t.Errorf("Expected placeholder fragment, got %q", out)
	}
}

func TestFetchTimeout(t *testing.T) {
	f := NewBlockFetcher(&fakeContent{delay: time.Second, gallery: []model.GalleryImage{{ID: "1", URL: "a.jpg"}}}, 20*time.Millisecond)
	var c Collections

	start := time.Now()
	out, err := f.Fetch(context.Background(), &c, Parse("{{gallery}}")[0])
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("Fetch did not respect its timeout")
	}
	if !strings.Contains(out, "dynamic-empty") {
		t.Errorf("Expected placeholder fragment, got %q", out)
	}
}

func TestFetchTestimonialsApprovedOnly(t *testing.T) {
	src := &fakeContent{testimonials: []model.Testimonial{
		{ID: "b", Author: "Bruna", Quote: "Perfeito", Approved: true, Position: 2},
		{ID: "x", Author: "Spam", Quote: "Compre já", Approved: false, Position: 0},
		{ID: "a", Author: "Ana", Quote: "Emocionante", Approved: true, Position: 1},
	}}
	f := NewBlockFetcher(src, time.Second)
	var c Collections

	out, err := f.Fetch(context.Background(), &c, Parse("{{testimonials:5}}")[0])
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if strings.Contains(out, "Spam") {
		t.Errorf("Non-approved testimonial rendered: %q", out)
	}
	if strings.Index(out, "Ana") > strings.Index(out, "Bruna") {
		t.Errorf("Expected testimonials ordered by position, got %q", out)
	}
}

func TestFetchGalleryLimitAndCache(t *testing.T) {
	src := &fakeContent{gallery: []model.GalleryImage{
		{ID: "1", URL: "one.jpg", Title: "Um", Position: 3},
		{ID: "2", URL: "two.jpg", Title: "Dois", Position: 1},
		{ID: "3", URL: "three.jpg", Title: "Três", Position: 2},
	}}
	f := NewBlockFetcher(src, time.Second)
	var c Collections

	out, _ := f.Fetch(context.Background(), &c, Parse("{{gallery:2:grid:2}}")[0])
	if strings.Contains(out, "one.jpg") {
		t.Errorf("Expected limit of 2 to drop the last image, got %q", out)
	}
	if !strings.Contains(out, "repeat(2,1fr)") {
		t.Errorf("Expected two columns, got %q", out)
	}

	if _, err := f.Fetch(context.Background(), &c, Parse("{{gallery:list}}")[0]); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("Expected one listing per render, got %d", src.calls)
	}
}
