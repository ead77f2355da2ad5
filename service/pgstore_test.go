package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/apperr"
)

// openTestPostgres connects to ACE_TEST_DATABASE_URL and migrates it. The
// tests are skipped when the variable is not set.
func openTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("ACE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ACE_TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, Migrate(db.DB))
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db)
}

func pgRecord() *model.BusinessRecord {
	id := uuid.New().String()
	date := time.Date(2025, 11, 22, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := &model.BusinessRecord{
		ID:          id,
		Kind:        model.KindContract,
		Slug:        "pg-" + id,
		PublicToken: newPublicToken(),
		Party:       model.Party{ClientName: "Maria Silva", ClientEmail: "maria@example.com"},
		Event:       model.Event{EventType: "Casamento", EventDate: &date},
		Services:    model.ServiceItems{{Name: "Cerimônia", Price: decimal.NewFromInt(700), Included: true}},
		HTMLContent: "<p>{{client_name}}</p>",
		Status:      model.StatusDraft,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rec.VersionTimestamp = now
	rec.TotalPrice = decimal.NewFromInt(1000)
	rec.DownPayment = decimal.NewFromInt(300)
	rec.Recompute()
	return rec
}

func TestPostgresStoreRecords(t *testing.T) {
	ctx := context.Background()
	store := openTestPostgres(t)

	rec := pgRecord()
	require.NoError(t, store.CreateRecord(ctx, rec))

	got, err := store.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.Slug, got.Slug)
	require.True(t, got.RemainingAmount.Equal(decimal.NewFromInt(700)))
	require.Len(t, got.Services, 1)
	require.Equal(t, "2025-11-22", got.EventDate.Format("2006-01-02"))

	byToken, err := store.GetRecordByToken(ctx, rec.PublicToken)
	require.NoError(t, err)
	require.Equal(t, rec.ID, byToken.ID)

	bySlug, err := store.GetRecordBySlug(ctx, rec.Slug)
	require.NoError(t, err)
	require.Equal(t, rec.ID, bySlug.ID)

	dup := pgRecord()
	dup.Slug = rec.Slug
	err = store.CreateRecord(ctx, dup)
	require.Equal(t, apperr.CodeSlugTaken, apperr.CodeOf(err))

	_, err = store.GetRecord(ctx, uuid.New().String())
	require.Equal(t, apperr.CodeRecordNotFound, apperr.CodeOf(err))
}

func TestPostgresStoreUpdateIf(t *testing.T) {
	ctx := context.Background()
	store := openTestPostgres(t)

	rec := pgRecord()
	require.NoError(t, store.CreateRecord(ctx, rec))

	next := rec.Clone()
	next.Version = 2
	next.Notes = "alterado"
	require.NoError(t, store.UpdateIf(ctx, next, 1, model.StatusDraft))

	stale := rec.Clone()
	stale.Version = 2
	err := store.UpdateIf(ctx, stale, 1, model.StatusDraft)
	require.Equal(t, apperr.CodeVersionConflict, apperr.CodeOf(err))

	missing := pgRecord()
	err = store.UpdateIf(ctx, missing, 1, model.StatusDraft)
	require.Equal(t, apperr.CodeRecordNotFound, apperr.CodeOf(err))

	got, err := store.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.Version)
	require.Equal(t, "alterado", got.Notes)
}

func TestPostgresStoreSignatureAudit(t *testing.T) {
	ctx := context.Background()
	store := openTestPostgres(t)

	rec := pgRecord()
	require.NoError(t, store.CreateRecord(ctx, rec))

	ledger := NewLedger(store, 3)
	sig := model.SignatureData{Image: "data:image/png;base64,iVBORw0KGgo=", SignerName: "Maria Silva", SignerEmail: "maria@example.com"}
	at := time.Now().UTC().Truncate(time.Microsecond)

	audit, err := ledger.RecordSignature(ctx, rec, sig, "10.0.0.1", "Firefox", at)
	require.NoError(t, err)

	again, err := ledger.RecordSignature(ctx, rec, sig, "10.0.0.2", "Chrome", at.Add(time.Minute))
	require.ErrorIs(t, err, ErrAuditExists)
	require.Equal(t, audit.ID, again.ID)
	require.Equal(t, "10.0.0.1", again.SignerIP)

	signedAt := audit.SignedAt
	err = store.UpdateStatus(ctx, rec.ID, model.StatusSigned, rec.Version+1, model.StatusDraft, &model.Audit{SignerIP: "10.0.0.9"})
	require.Equal(t, apperr.CodeVersionConflict, apperr.CodeOf(err))

	require.NoError(t, store.UpdateStatus(ctx, rec.ID, model.StatusSigned, rec.Version, model.StatusDraft, &model.Audit{
		SignedAt:    &signedAt,
		SignerIP:    audit.SignerIP,
		UserAgent:   audit.UserAgent,
		ContentHash: audit.ContentHash,
		Signature:   &sig,
	}))

	got, err := store.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusSigned, got.Status)
	require.NotNil(t, got.SignedAt)
	require.True(t, Verify(got, audit))
}

func TestPostgresStoreContent(t *testing.T) {
	ctx := context.Background()
	store := openTestPostgres(t)

	tmpl := &model.Template{ID: "pg-" + uuid.New().String(), Kind: model.KindProposal, Name: "P", HTML: "<p>x</p>"}
	require.NoError(t, store.SaveTemplate(ctx, tmpl))
	tmpl.Name = "P2"
	require.NoError(t, store.SaveTemplate(ctx, tmpl))
	got, err := store.GetTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	require.Equal(t, "P2", got.Name)

	tm := &model.Testimonial{ID: uuid.New().String(), Author: "Ana", Quote: "Lindo"}
	require.NoError(t, store.AddTestimonial(ctx, tm))
	require.NoError(t, store.ApproveTestimonial(ctx, tm.ID))
	approved, err := store.ListTestimonials(ctx, true)
	require.NoError(t, err)

	found := false
	for _, a := range approved {
		if a.ID == tm.ID {
			found = true
		}
	}
	require.True(t, found)

	err = store.ApproveTestimonial(ctx, uuid.New().String())
	require.Equal(t, apperr.CodeContentNotFound, apperr.CodeOf(err))
}
