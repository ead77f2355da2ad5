package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/config"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/apperr"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/logger"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/render"
)

// ExportMode distinguishes a repeatable preview from the one-shot final
// artifact that gets stored.
type ExportMode string

const (
	ExportPreview ExportMode = "preview"
	ExportFinal   ExportMode = "final"
)

// Artifact is an exported document.
type Artifact struct {
	Data          []byte
	ContentType   string
	Mode          ExportMode
	MissingImages []string
}

// Exporter turns a rendered document into a paginated PDF.
type Exporter interface {
	Export(ctx context.Context, doc *render.Document, mode ExportMode) (*Artifact, error)
}

// printCSS paginates on A4 and keeps atomic components on one page.
const printCSS = `@page { size: A4; margin: 18mm 16mm; }
html, body { -webkit-print-color-adjust: exact; print-color-adjust: exact; }
[data-atomic], .signature-block, .clause, .audit-footer { break-inside: avoid; page-break-inside: avoid; }
img { max-width: 100%; }
.dynamic-block img { break-inside: avoid; }`

const autoPrintScript = `<script>window.addEventListener("load",function(){window.print();});</script>`

// missingImage replaces images that did not load in time.
const missingImage = "data:image/gif;base64,R0lGODlhAQABAAAAACH5BAEKAAEALAAAAAABAAEAAAICTAEAOw=="

const maxImageBytes = 8 << 20

// PrintPage wraps a rendered document in a standalone HTML page carrying the
// print stylesheet. With autoPrint the browser opens its print dialog once
// the page, images included, has loaded.
func PrintPage(doc *render.Document, autoPrint bool) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html lang="pt-BR"><head><meta charset="utf-8">`)
	b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	if doc.CSS != "" {
		b.WriteString("<style>")
		b.WriteString(doc.CSS)
		b.WriteString("</style>")
	}
	b.WriteString(`<style media="print">`)
	b.WriteString(printCSS)
	b.WriteString("</style>")
	if autoPrint {
		b.WriteString(autoPrintScript)
	}
	b.WriteString("</head><body>")
	b.WriteString(doc.HTML)
	b.WriteString("</body></html>")
	return b.String()
}

// GotenbergExporter rasterizes through Gotenberg's Chromium HTML route.
type GotenbergExporter struct {
	baseURL      string
	httpClient   *http.Client
	imageClient  *http.Client
	imageTimeout time.Duration
	imageBase    *url.URL
	paperWidth   float64
	paperHeight  float64
}

// NewGotenbergExporter builds an exporter. Relative image URLs are resolved
// against publicBaseURL.
func NewGotenbergExporter(cfg *config.ExporterConfig, publicBaseURL string) *GotenbergExporter {
	imageTimeout := time.Duration(cfg.ImageTimeoutSeconds) * time.Second
	if imageTimeout <= 0 {
		imageTimeout = 5 * time.Second
	}
	renderTimeout := time.Duration(cfg.RenderTimeoutSeconds) * time.Second
	if renderTimeout <= 0 {
		renderTimeout = 60 * time.Second
	}
	base, _ := url.Parse(publicBaseURL)

	return &GotenbergExporter{
		baseURL:      strings.TrimRight(cfg.GotenbergURL, "/"),
		httpClient:   &http.Client{Timeout: renderTimeout},
		imageClient:  &http.Client{},
		imageTimeout: imageTimeout,
		imageBase:    base,
		paperWidth:   cfg.PaperWidth,
		paperHeight:  cfg.PaperHeight,
	}
}

// Export inlines every image (waiting at most the image timeout), then asks
// Gotenberg for the PDF. A response that is not a PDF is a rasterization
// failure; it is never returned as an artifact.
func (e *GotenbergExporter) Export(ctx context.Context, doc *render.Document, mode ExportMode) (*Artifact, error) {
	if e.baseURL == "" {
		return nil, apperr.New(apperr.KindCollaborator, apperr.CodeExporterFail, "document exporter is not configured")
	}

	page, missing, err := e.inlineImages(ctx, PrintPage(doc, false))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRender, apperr.CodeRasterizationFail, "failed to prepare document for export", err)
	}
	if len(missing) > 0 {
		logger.Warn(ctx, "images not loaded before export", "count", len(missing), "urls", missing)
	}

	body, contentType, err := e.form(page)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRender, apperr.CodeRasterizationFail, "failed to build export request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/forms/chromium/convert/html", body)
	if err != nil {
		return nil, apperr.Collaborator(apperr.CodeExporterFail, "failed to create export request", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Collaborator(apperr.CodeExporterFail, "document exporter unavailable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRender, apperr.CodeRasterizationFail, "incomplete export response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.WithMetadata(apperr.KindRender, apperr.CodeRasterizationFail,
			fmt.Sprintf("rasterization failed with status %d", resp.StatusCode),
			map[string]string{"detail": truncate(string(data), 300)})
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, apperr.New(apperr.KindRender, apperr.CodeRasterizationFail, "exporter returned something that is not a PDF")
	}

	return &Artifact{Data: data, ContentType: "application/pdf", Mode: mode, MissingImages: missing}, nil
}

func (e *GotenbergExporter) form(page string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, "", err
	}
	if _, err := io.WriteString(part, page); err != nil {
		return nil, "", err
	}

	fields := [][2]string{
		{"paperWidth", strconv.FormatFloat(e.paperWidth, 'f', -1, 64)},
		{"paperHeight", strconv.FormatFloat(e.paperHeight, 'f', -1, 64)},
		{"printBackground", "true"},
		{"preferCssPageSize", "true"},
		{"emulatedMediaType", "print"},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// inlineImages fetches every remote <img> concurrently and embeds it as a
// data URI. Images still loading when the timeout expires are replaced with
// an empty pixel so rasterization never waits on them.
func (e *GotenbergExporter) inlineImages(ctx context.Context, page string) (string, []string, error) {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", nil, fmt.Errorf("parse document: %w", err)
	}

	var imgs []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Img {
			imgs = append(imgs, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	ctx, cancel := context.WithTimeout(ctx, e.imageTimeout)
	defer cancel()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		missing []string
	)
	for _, n := range imgs {
		src := attr(n, "src")
		target, ok := e.resolveImage(src)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(n *html.Node, src, target string) {
			defer wg.Done()
			dataURI, err := e.fetchImage(ctx, target)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				missing = append(missing, src)
				setAttr(n, "src", missingImage)
				setAttr(n, "data-missing", "true")
				return
			}
			setAttr(n, "src", dataURI)
		}(n, src, target)
	}
	wg.Wait()

	var out bytes.Buffer
	if err := html.Render(&out, root); err != nil {
		return "", nil, fmt.Errorf("render document: %w", err)
	}
	return out.String(), missing, nil
}

func (e *GotenbergExporter) resolveImage(src string) (string, bool) {
	src = strings.TrimSpace(src)
	if src == "" || strings.HasPrefix(src, "data:") {
		return "", false
	}
	u, err := url.Parse(src)
	if err != nil {
		return "", false
	}
	if !u.IsAbs() {
		if e.imageBase == nil || e.imageBase.Host == "" {
			return "", false
		}
		u = e.imageBase.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

func (e *GotenbergExporter) fetchImage(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	resp, err := e.imageClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image %s: status %d", target, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxImageBytes {
		return "", fmt.Errorf("image %s exceeds %d bytes", target, maxImageBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("image %s has content type %s", target, contentType)
	}
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
