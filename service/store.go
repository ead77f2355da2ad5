package service

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/apperr"
)

// RecordFilter narrows List. Zero fields match everything.
type RecordFilter struct {
	Kind   model.Kind
	Status model.Status
}

// RecordStore persists business records and their signature audits.
type RecordStore interface {
	CreateRecord(ctx context.Context, rec *model.BusinessRecord) error
	GetRecord(ctx context.Context, id string) (*model.BusinessRecord, error)
	GetRecordByToken(ctx context.Context, token string) (*model.BusinessRecord, error)
	GetRecordBySlug(ctx context.Context, slug string) (*model.BusinessRecord, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]*model.BusinessRecord, error)
	SlugInUse(ctx context.Context, slug, exceptID string) (bool, error)

	// UpdateIf replaces the record only if the stored version and status still
	// match the expected ones.
	UpdateIf(ctx context.Context, rec *model.BusinessRecord, expectedVersion int, expectedStatus model.Status) error
	// UpdateStatus is the narrow write used when the richer update path
	// fails. It carries the same version and status guard as UpdateIf. A
	// non-nil audit is written alongside the status.
	UpdateStatus(ctx context.Context, id string, status model.Status, expectedVersion int, expectedStatus model.Status, audit *model.Audit) error
	SetSignedDocumentURL(ctx context.Context, id, url string) error
	DeleteRecord(ctx context.Context, id string) error

	// InsertAudit stores the signature audit of one record version. A second
	// insert for the same record and version fails with CodeAuditExists.
	// GetAudit returns the audit of the highest version.
	InsertAudit(ctx context.Context, a *model.AuditRecord) error
	GetAudit(ctx context.Context, recordID string) (*model.AuditRecord, error)
}

// TemplateStore holds the template catalogue.
type TemplateStore interface {
	ListTemplates(ctx context.Context, kind model.Kind) ([]model.Template, error)
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	SaveTemplate(ctx context.Context, t *model.Template) error
}

// ContentStore holds the auxiliary gallery and testimonial collections.
type ContentStore interface {
	ListGallery(ctx context.Context) ([]model.GalleryImage, error)
	AddGalleryImage(ctx context.Context, img *model.GalleryImage) error
	ListTestimonials(ctx context.Context, approvedOnly bool) ([]model.Testimonial, error)
	AddTestimonial(ctx context.Context, t *model.Testimonial) error
	ApproveTestimonial(ctx context.Context, id string) error
}

// Store is everything the workflow persists.
type Store interface {
	RecordStore
	TemplateStore
	ContentStore
}

func recordNotFound(key string) error {
	return apperr.WithMetadata(apperr.KindNotFound, apperr.CodeRecordNotFound,
		"record not found", map[string]string{"key": key})
}

func versionConflict(id string, version int, status model.Status) error {
	return apperr.WithMetadata(apperr.KindConflict, apperr.CodeVersionConflict,
		"record was changed concurrently", map[string]string{
			"id": id, "expected_version": strconv.Itoa(version), "expected_status": string(status),
		})
}

func slugTaken(slug string) error {
	return apperr.WithMetadata(apperr.KindConflict, apperr.CodeSlugTaken,
		"slug already used by an active record", map[string]string{"slug": slug})
}

// ErrAuditExists is returned when a signature audit was already recorded.
var ErrAuditExists = apperr.New(apperr.KindConflict, apperr.CodeAuditExists, "signature audit already recorded")

// MemoryStore keeps everything in process memory. It is used when no database
// is configured and in tests.
type MemoryStore struct {
	mu           sync.RWMutex
	records      map[string]*model.BusinessRecord
	audits       map[string][]*model.AuditRecord
	templates    map[string]*model.Template
	gallery      map[string]*model.GalleryImage
	testimonials map[string]*model.Testimonial
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		records:      make(map[string]*model.BusinessRecord),
		audits:       make(map[string][]*model.AuditRecord),
		templates:    make(map[string]*model.Template),
		gallery:      make(map[string]*model.GalleryImage),
		testimonials: make(map[string]*model.Testimonial),
	}
	slog.Info("memory store initialized")
	return s
}

func (s *MemoryStore) CreateRecord(ctx context.Context, rec *model.BusinessRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; ok {
		return apperr.New(apperr.KindConflict, apperr.CodeVersionConflict, "record id already exists")
	}
	if s.activeSlugLocked(rec.Slug, rec.ID) {
		return slugTaken(rec.Slug)
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *MemoryStore) GetRecord(ctx context.Context, id string) (*model.BusinessRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[id]; ok {
		return rec.Clone(), nil
	}
	return nil, recordNotFound(id)
}

func (s *MemoryStore) GetRecordByToken(ctx context.Context, token string) (*model.BusinessRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.PublicToken == token {
			return rec.Clone(), nil
		}
	}
	return nil, recordNotFound(token)
}

// GetRecordBySlug prefers the active record holding slug, then the most
// recently updated retired one.
func (s *MemoryStore) GetRecordBySlug(ctx context.Context, slug string) (*model.BusinessRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *model.BusinessRecord
	for _, rec := range s.records {
		if rec.Slug != slug {
			continue
		}
		if !rec.IsRetired() {
			return rec.Clone(), nil
		}
		if best == nil || rec.UpdatedAt.After(best.UpdatedAt) {
			best = rec
		}
	}
	if best == nil {
		return nil, recordNotFound(slug)
	}
	return best.Clone(), nil
}

func (s *MemoryStore) ListRecords(ctx context.Context, filter RecordFilter) ([]*model.BusinessRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.BusinessRecord, 0, len(s.records))
	for _, rec := range s.records {
		if filter.Kind != "" && rec.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		result = append(result, rec.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *MemoryStore) SlugInUse(ctx context.Context, slug, exceptID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, rec := range s.records {
		if id != exceptID && rec.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

// activeSlugLocked must be called with the lock held.
func (s *MemoryStore) activeSlugLocked(slug, exceptID string) bool {
	if slug == "" {
		return false
	}
	for id, rec := range s.records {
		if id != exceptID && rec.Slug == slug && !rec.IsRetired() {
			return true
		}
	}
	return false
}

func (s *MemoryStore) UpdateIf(ctx context.Context, rec *model.BusinessRecord, expectedVersion int, expectedStatus model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[rec.ID]
	if !ok {
		return recordNotFound(rec.ID)
	}
	if cur.Version != expectedVersion || cur.Status != expectedStatus {
		return versionConflict(rec.ID, expectedVersion, expectedStatus)
	}
	if !rec.IsRetired() && s.activeSlugLocked(rec.Slug, rec.ID) {
		return slugTaken(rec.Slug)
	}

	next := rec.Clone()
	next.PublicToken = cur.PublicToken
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = time.Now()
	s.records[rec.ID] = next
	rec.UpdatedAt = next.UpdatedAt
	return nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status model.Status, expectedVersion int, expectedStatus model.Status, audit *model.Audit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[id]
	if !ok {
		return recordNotFound(id)
	}
	if c.Version != expectedVersion || c.Status != expectedStatus {
		return versionConflict(id, expectedVersion, expectedStatus)
	}
	c.Status = status
	if audit != nil {
		c.Audit = audit.Clone()
	}
	c.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetSignedDocumentURL(ctx context.Context, id, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.records[id]
	if !ok {
		return recordNotFound(id)
	}
	c.SignedDocumentURL = url
	c.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) DeleteRecord(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return recordNotFound(id)
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) InsertAudit(ctx context.Context, a *model.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.audits[a.RecordID] {
		if existing.Version == a.Version {
			return ErrAuditExists
		}
	}
	cp := *a
	s.audits[a.RecordID] = append(s.audits[a.RecordID], &cp)
	return nil
}

func (s *MemoryStore) GetAudit(ctx context.Context, recordID string) (*model.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *model.AuditRecord
	for _, a := range s.audits[recordID] {
		if latest == nil || a.Version > latest.Version {
			latest = a
		}
	}
	if latest == nil {
		return nil, apperr.New(apperr.KindNotFound, apperr.CodeRecordNotFound, "no signature audit for record")
	}
	cp := *latest
	return &cp, nil
}

func (s *MemoryStore) ListTemplates(ctx context.Context, kind model.Kind) ([]model.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Template, 0, len(s.templates))
	for _, t := range s.templates {
		if kind == "" || t.Kind == kind {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, apperr.WithMetadata(apperr.KindNotFound, apperr.CodeTemplateNotFound,
			"template not found", map[string]string{"template_id": id})
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) SaveTemplate(ctx context.Context, t *model.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	cp := *t
	s.templates[t.ID] = &cp
	return nil
}

func (s *MemoryStore) ListGallery(ctx context.Context) ([]model.GalleryImage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.GalleryImage, 0, len(s.gallery))
	for _, img := range s.gallery {
		out = append(out, *img)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) AddGalleryImage(ctx context.Context, img *model.GalleryImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now()
	}
	cp := *img
	s.gallery[img.ID] = &cp
	return nil
}

func (s *MemoryStore) ListTestimonials(ctx context.Context, approvedOnly bool) ([]model.Testimonial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Testimonial, 0, len(s.testimonials))
	for _, t := range s.testimonials {
		if approvedOnly && !t.Approved {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) AddTestimonial(ctx context.Context, t *model.Testimonial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	cp := *t
	s.testimonials[t.ID] = &cp
	return nil
}

func (s *MemoryStore) ApproveTestimonial(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.testimonials[id]
	if !ok {
		return apperr.WithMetadata(apperr.KindNotFound, apperr.CodeContentNotFound,
			"testimonial not found", map[string]string{"id": id})
	}
	t.Approved = true
	return nil
}

// Count returns the number of records in the store
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
