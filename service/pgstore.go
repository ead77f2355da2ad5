package service

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/config"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/apperr"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const uniqueViolation = "23505"

// PostgresStore persists everything in PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// OpenPostgres connects with lib/pq and, when asked, runs the embedded
// migrations.
func OpenPostgres(ctx context.Context, cfg *config.DatabaseConfig) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if cfg.Migrate {
		if err := Migrate(db.DB); err != nil {
			db.Close()
			return nil, err
		}
	}
	return NewPostgresStore(db), nil
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the embedded goose migrations.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const recordColumns = `id, kind, slug, public_token, template_id,
	client_name, client_email, client_phone, client_address, client_profession, client_civil_status,
	event_type, event_date, event_time, event_location,
	total_price, down_payment, down_payment_date, remaining_amount, remaining_due_date,
	services, html_content, css_content, notes,
	status, preview_from, version, version_timestamp,
	signed_at, signer_ip, user_agent, content_hash, signature_data, preview_signature,
	preview_signature_url, signed_document_url, created_at, updated_at`

const recordMutableSet = `slug = :slug, template_id = :template_id,
	client_name = :client_name, client_email = :client_email, client_phone = :client_phone,
	client_address = :client_address, client_profession = :client_profession, client_civil_status = :client_civil_status,
	event_type = :event_type, event_date = :event_date, event_time = :event_time, event_location = :event_location,
	total_price = :total_price, down_payment = :down_payment, down_payment_date = :down_payment_date,
	remaining_amount = :remaining_amount, remaining_due_date = :remaining_due_date,
	services = :services, html_content = :html_content, css_content = :css_content, notes = :notes,
	status = :status, preview_from = :preview_from, version = :version, version_timestamp = :version_timestamp,
	signed_at = :signed_at, signer_ip = :signer_ip, user_agent = :user_agent, content_hash = :content_hash,
	signature_data = :signature_data, preview_signature = :preview_signature,
	preview_signature_url = :preview_signature_url, signed_document_url = :signed_document_url,
	updated_at = NOW()`

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

func (s *PostgresStore) CreateRecord(ctx context.Context, rec *model.BusinessRecord) error {
	query := `INSERT INTO records (` + recordColumns + `) VALUES (` + namedParams(recordColumns) + `)`
	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		if isUniqueViolation(err, "records_active_slug_key") {
			return slugTaken(rec.Slug)
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *PostgresStore) getRecord(ctx context.Context, key, query string, args ...any) (*model.BusinessRecord, error) {
	rec := &model.BusinessRecord{}
	if err := s.db.GetContext(ctx, rec, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, recordNotFound(key)
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.BusinessRecord, error) {
	return s.getRecord(ctx, id, `SELECT `+recordColumns+` FROM records WHERE id = $1`, id)
}

func (s *PostgresStore) GetRecordByToken(ctx context.Context, token string) (*model.BusinessRecord, error) {
	return s.getRecord(ctx, token, `SELECT `+recordColumns+` FROM records WHERE public_token = $1`, token)
}

func (s *PostgresStore) GetRecordBySlug(ctx context.Context, slug string) (*model.BusinessRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE slug = $1
		ORDER BY (status IN ('signed', 'cancelled')), updated_at DESC LIMIT 1`
	return s.getRecord(ctx, slug, query, slug)
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]*model.BusinessRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + recordColumns + ` FROM records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"

	records := []*model.BusinessRecord{}
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) SlugInUse(ctx context.Context, slug, exceptID string) (bool, error) {
	var used bool
	err := s.db.GetContext(ctx, &used, `SELECT EXISTS(SELECT 1 FROM records WHERE slug = $1 AND id <> $2)`, slug, exceptID)
	return used, err
}

// conditionalUpdate carries the compare-and-swap expectations next to the
// record fields.
type conditionalUpdate struct {
	model.BusinessRecord
	ExpectedVersion int          `db:"expected_version"`
	ExpectedStatus  model.Status `db:"expected_status"`
}

func (s *PostgresStore) UpdateIf(ctx context.Context, rec *model.BusinessRecord, expectedVersion int, expectedStatus model.Status) error {
	query := `UPDATE records SET ` + recordMutableSet + `
		WHERE id = :id AND version = :expected_version AND status = :expected_status`
	res, err := s.db.NamedExecContext(ctx, query, conditionalUpdate{
		BusinessRecord:  *rec,
		ExpectedVersion: expectedVersion,
		ExpectedStatus:  expectedStatus,
	})
	if err != nil {
		if isUniqueViolation(err, "records_active_slug_key") {
			return slugTaken(rec.Slug)
		}
		return fmt.Errorf("update record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if n == 0 {
		if _, err := s.GetRecord(ctx, rec.ID); err != nil {
			return err
		}
		return versionConflict(rec.ID, expectedVersion, expectedStatus)
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status model.Status, expectedVersion int, expectedStatus model.Status, audit *model.Audit) error {
	var (
		res sql.Result
		err error
	)
	if audit == nil {
		res, err = s.db.ExecContext(ctx, `UPDATE records SET status = $1, updated_at = NOW()
			WHERE id = $2 AND version = $3 AND status = $4`, status, id, expectedVersion, expectedStatus)
	} else {
		res, err = s.db.ExecContext(ctx, `UPDATE records SET status = $1, signed_at = $2, signer_ip = $3,
			user_agent = $4, content_hash = $5, signature_data = $6, preview_signature = $7,
			preview_signature_url = $8, updated_at = NOW() WHERE id = $9 AND version = $10 AND status = $11`,
			status, audit.SignedAt, audit.SignerIP, audit.UserAgent, audit.ContentHash,
			audit.Signature, audit.PreviewSignature, audit.PreviewSignatureURL, id, expectedVersion, expectedStatus)
	}
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetRecord(ctx, id); err != nil {
			return err
		}
		return versionConflict(id, expectedVersion, expectedStatus)
	}
	return nil
}

func (s *PostgresStore) SetSignedDocumentURL(ctx context.Context, id, url string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE records SET signed_document_url = $1, updated_at = NOW() WHERE id = $2`, url, id)
	if err != nil {
		return fmt.Errorf("set signed document url: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return recordNotFound(id)
	}
	return nil
}

func (s *PostgresStore) DeleteRecord(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return recordNotFound(id)
	}
	return nil
}

func (s *PostgresStore) InsertAudit(ctx context.Context, a *model.AuditRecord) error {
	query := `INSERT INTO signature_audits
		(id, record_id, signer_name, signer_email, signer_ip, user_agent, signed_at, version, content_hash, created_at)
		VALUES (:id, :record_id, :signer_name, :signer_email, :signer_ip, :user_agent, :signed_at, :version, :content_hash, :created_at)`
	if _, err := s.db.NamedExecContext(ctx, query, a); err != nil {
		if isUniqueViolation(err, "") {
			return ErrAuditExists
		}
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAudit(ctx context.Context, recordID string) (*model.AuditRecord, error) {
	a := &model.AuditRecord{}
	err := s.db.GetContext(ctx, a, `SELECT id, record_id, signer_name, signer_email, signer_ip, user_agent,
		signed_at, version, content_hash, created_at FROM signature_audits WHERE record_id = $1
		ORDER BY version DESC LIMIT 1`, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, apperr.CodeRecordNotFound, "no signature audit for record")
		}
		return nil, fmt.Errorf("get audit: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListTemplates(ctx context.Context, kind model.Kind) ([]model.Template, error) {
	templates := []model.Template{}
	var err error
	if kind == "" {
		err = s.db.SelectContext(ctx, &templates, `SELECT id, kind, name, subject, html, css, created_at FROM templates ORDER BY id`)
	} else {
		err = s.db.SelectContext(ctx, &templates, `SELECT id, kind, name, subject, html, css, created_at FROM templates WHERE kind = $1 ORDER BY id`, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

func (s *PostgresStore) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	t := &model.Template{}
	err := s.db.GetContext(ctx, t, `SELECT id, kind, name, subject, html, css, created_at FROM templates WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.WithMetadata(apperr.KindNotFound, apperr.CodeTemplateNotFound,
				"template not found", map[string]string{"template_id": id})
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) SaveTemplate(ctx context.Context, t *model.Template) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	query := `INSERT INTO templates (id, kind, name, subject, html, css, created_at)
		VALUES (:id, :kind, :name, :subject, :html, :css, :created_at)
		ON CONFLICT (id) DO UPDATE SET kind = EXCLUDED.kind, name = EXCLUDED.name,
			subject = EXCLUDED.subject, html = EXCLUDED.html, css = EXCLUDED.css`
	if _, err := s.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListGallery(ctx context.Context) ([]model.GalleryImage, error) {
	items := []model.GalleryImage{}
	err := s.db.SelectContext(ctx, &items, `SELECT id, url, title, caption, position, created_at
		FROM gallery_images ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("list gallery: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) AddGalleryImage(ctx context.Context, img *model.GalleryImage) error {
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now()
	}
	query := `INSERT INTO gallery_images (id, url, title, caption, position, created_at)
		VALUES (:id, :url, :title, :caption, :position, :created_at)`
	if _, err := s.db.NamedExecContext(ctx, query, img); err != nil {
		return fmt.Errorf("add gallery image: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTestimonials(ctx context.Context, approvedOnly bool) ([]model.Testimonial, error) {
	items := []model.Testimonial{}
	query := `SELECT id, author, event_label, quote, photo_url, approved, position, created_at FROM testimonials`
	if approvedOnly {
		query += ` WHERE approved`
	}
	query += ` ORDER BY position, id`
	if err := s.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list testimonials: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) AddTestimonial(ctx context.Context, t *model.Testimonial) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	query := `INSERT INTO testimonials (id, author, event_label, quote, photo_url, approved, position, created_at)
		VALUES (:id, :author, :event_label, :quote, :photo_url, :approved, :position, :created_at)`
	if _, err := s.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("add testimonial: %w", err)
	}
	return nil
}

func (s *PostgresStore) ApproveTestimonial(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE testimonials SET approved = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("approve testimonial: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.WithMetadata(apperr.KindNotFound, apperr.CodeContentNotFound,
			"testimonial not found", map[string]string{"id": id})
	}
	return nil
}

// namedParams turns a column list into the matching :name placeholders.
func namedParams(columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = ":" + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
