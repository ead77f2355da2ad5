package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/render"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/service"
)

const testSignature = "data:image/png;base64,iVBORw0KGgo="

type stubExporter struct {
	missing []string
}

func (e *stubExporter) Export(ctx context.Context, doc *render.Document, mode service.ExportMode) (*service.Artifact, error) {
	return &service.Artifact{
		Data:          []byte("%PDF-1.7 " + string(mode)),
		ContentType:   "application/pdf",
		Mode:          mode,
		MissingImages: e.missing,
	}, nil
}

type testServer struct {
	router   *gin.Engine
	store    *service.MemoryStore
	workflow *service.Workflow
}

// newTestServer wires the handlers over an in-memory store. A nil exporter
// leaves PDF export unconfigured.
func newTestServer(t *testing.T, exporter service.Exporter) *testServer {
	t.Helper()
	store := service.NewMemoryStore()
	catalog := service.NewCatalog(store, store)
	if _, err := catalog.SeedTemplates(context.Background()); err != nil {
		t.Fatalf("seed templates: %v", err)
	}

	access := service.NewAccessResolver(store, "https://cerimonias.example.com")
	renderer := render.NewRenderer(render.NewFormatter(render.FormatOptions{}), render.NewBlockFetcher(store, time.Second))
	workflow := service.NewWorkflow(service.WorkflowDeps{
		Store:       store,
		Renderer:    renderer,
		Exporter:    exporter,
		Access:      access,
		Company:     model.Company{Name: "Anrielly Cerimonial"},
		EditRetries: 3,
	})

	router := gin.New()
	records := NewRecordHandler(workflow)
	api := router.Group("/api")
	api.POST("/records", records.Create)
	api.GET("/records", records.List)
	api.GET("/records/:id", records.Get)
	api.PATCH("/records/:id", records.Update)
	api.POST("/records/:id/send", records.Send)
	api.POST("/records/:id/cancel", records.Cancel)
	api.GET("/records/:id/render", records.Render)
	api.GET("/records/:id/export", records.Export)
	api.GET("/records/:id/audit", records.Audit)
	api.DELETE("/records/:id", records.Delete)

	content := NewCatalogHandler(catalog)
	api.GET("/templates", content.ListTemplates)
	api.GET("/templates/:id", content.GetTemplate)
	api.POST("/templates", content.SaveTemplate)
	api.GET("/gallery", content.ListGallery)
	api.POST("/gallery", content.AddGalleryImage)
	api.GET("/testimonials", content.ListTestimonials)
	api.POST("/testimonials", content.AddTestimonial)
	api.POST("/testimonials/:id/approve", content.ApproveTestimonial)
	api.GET("/public/testimonials", content.PublicTestimonials)
	api.GET("/reports/records.xlsx", NewReportHandler(store).Records)

	NewPublicHandler(workflow, access).Register(router, func(c *gin.Context) { c.Next() })

	return &testServer{router: router, store: store, workflow: workflow}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "TestBrowser/1.0")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func contractBody() map[string]any {
	return map[string]any{
		"kind":         "contract",
		"template_id":  render.TemplateContract,
		"client_name":  "Maria Silva",
		"client_email": "maria@example.com",
		"event_type":   "Casamento",
		"event_date":   "2025-11-22T00:00:00Z",
		"total_price":  "1000",
		"down_payment": "300",
		"html_content": "<p>Contratante: {{client_name}}</p>",
	}
}

// createRecord posts body and returns the created record.
func (s *testServer) createRecord(t *testing.T, body map[string]any) *model.BusinessRecord {
	t.Helper()
	w := s.do("POST", "/api/records", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Record model.BusinessRecord `json:"record"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	return &resp.Record
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
	return body
}
