package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/apperr"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/logger"
)

// Ledger owns signature audits and version increments.
type Ledger struct {
	store   RecordStore
	retries int
	now     func() time.Time
}

func NewLedger(store RecordStore, retries int) *Ledger {
	if retries <= 0 {
		retries = 5
	}
	return &Ledger{store: store, retries: retries, now: time.Now}
}

// fingerprintInput is the hashed view of a signed record. Field order is
// fixed by the struct so the JSON encoding is stable.
type fingerprintInput struct {
	RecordID     string `json:"record_id"`
	Kind         string `json:"kind"`
	PublicToken  string `json:"public_token"`
	Version      int    `json:"version"`
	ClientName   string `json:"client_name"`
	ClientEmail  string `json:"client_email"`
	EventType    string `json:"event_type"`
	EventDate    string `json:"event_date"`
	TotalPrice   string `json:"total_price"`
	DownPayment  string `json:"down_payment"`
	ContentSHA   string `json:"content_sha256"`
	SignatureSHA string `json:"signature_sha256"`
	SignerName   string `json:"signer_name"`
	SignerEmail  string `json:"signer_email"`
	SignerIP     string `json:"signer_ip"`
	UserAgent    string `json:"user_agent"`
	SignedAt     string `json:"signed_at"`
}

// Fingerprint hashes the record identity, its content and the signature
// capture. The result is hex-encoded SHA-256 and stable for a signed record.
func Fingerprint(rec *model.BusinessRecord, sig model.SignatureData, ip, userAgent string, at time.Time) (string, error) {
	eventDate := ""
	if rec.EventDate != nil {
		eventDate = rec.EventDate.Format("2006-01-02")
	}
	in := fingerprintInput{
		RecordID:     rec.ID,
		Kind:         string(rec.Kind),
		PublicToken:  rec.PublicToken,
		Version:      rec.Version,
		ClientName:   rec.ClientName,
		ClientEmail:  rec.ClientEmail,
		EventType:    rec.EventType,
		EventDate:    eventDate,
		TotalPrice:   rec.TotalPrice.StringFixed(2),
		DownPayment:  rec.DownPayment.StringFixed(2),
		ContentSHA:   hashString(rec.HTMLContent + "\x00" + rec.CSSContent),
		SignatureSHA: hashString(sig.Image),
		SignerName:   sig.SignerName,
		SignerEmail:  sig.SignerEmail,
		SignerIP:     ip,
		UserAgent:    userAgent,
		SignedAt:     at.UTC().Format(time.RFC3339Nano),
	}
	b, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("encode fingerprint: %w", err)
	}
	return hashString(string(b)), nil
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// RecordSignature writes the audit of a final signature over the current
// version. Audits are append-only: when one already exists for this version
// the stored audit is returned unchanged together with ErrAuditExists.
func (l *Ledger) RecordSignature(ctx context.Context, rec *model.BusinessRecord, sig model.SignatureData, ip, userAgent string, at time.Time) (*model.AuditRecord, error) {
	ctx = logger.WithRecord(ctx, rec.ID)
	hash, err := Fingerprint(rec, sig, ip, userAgent, at)
	if err != nil {
		return nil, err
	}

	audit := &model.AuditRecord{
		ID:          uuid.New().String(),
		RecordID:    rec.ID,
		SignerName:  sig.SignerName,
		SignerEmail: sig.SignerEmail,
		SignerIP:    ip,
		UserAgent:   userAgent,
		SignedAt:    at.UTC(),
		Version:     rec.Version,
		ContentHash: hash,
		CreatedAt:   l.now().UTC(),
	}

	if err := l.store.InsertAudit(ctx, audit); err != nil {
		if !errors.Is(err, ErrAuditExists) {
			return nil, fmt.Errorf("insert audit: %w", err)
		}
		existing, getErr := l.store.GetAudit(ctx, rec.ID)
		if getErr != nil {
			return nil, fmt.Errorf("load existing audit: %w", getErr)
		}
		logger.Warn(ctx, "signature audit already recorded", "audit_id", existing.ID)
		return existing, err
	}

	logger.Info(ctx, "signature audit recorded", "audit_id", audit.ID, "version", audit.Version)
	return audit, nil
}

// Verify recomputes the fingerprint of a signed record from its stored
// signature and the audit capture.
func Verify(rec *model.BusinessRecord, audit *model.AuditRecord) bool {
	if rec.Signature == nil || audit == nil {
		return false
	}
	snapshot := rec.Clone()
	snapshot.Version = audit.Version
	hash, err := Fingerprint(snapshot, *rec.Signature, audit.SignerIP, audit.UserAgent, audit.SignedAt)
	return err == nil && hash == audit.ContentHash
}

// Apply runs mutate on a copy of the stored record and writes it back with a
// conditional update, incrementing the version by exactly one. A concurrent
// writer makes the update fail; the read, mutate and write are then retried.
func (l *Ledger) Apply(ctx context.Context, id string, mutate func(rec *model.BusinessRecord) error) (*model.BusinessRecord, error) {
	ctx = logger.WithRecord(ctx, id)
	for attempt := 1; attempt <= l.retries; attempt++ {
		cur, err := l.store.GetRecord(ctx, id)
		if err != nil {
			return nil, err
		}

		next := cur.Clone()
		if err := mutate(next); err != nil {
			return nil, err
		}
		next.Version = cur.Version + 1
		next.VersionTimestamp = l.now().UTC()

		err = l.store.UpdateIf(ctx, next, cur.Version, cur.Status)
		if err == nil {
			logger.Debug(ctx, "version bumped", "version", next.Version)
			return next, nil
		}
		if apperr.CodeOf(err) != apperr.CodeVersionConflict {
			return nil, err
		}
		logger.Warn(ctx, "concurrent update, retrying", "attempt", attempt)
	}
	return nil, apperr.WithMetadata(apperr.KindConflict, apperr.CodeVersionConflict,
		"record kept changing, giving up", map[string]string{"id": id})
}

// BumpVersion increments the version of an editable record and returns the
// new value.
func (l *Ledger) BumpVersion(ctx context.Context, id string) (int, error) {
	rec, err := l.Apply(ctx, id, func(rec *model.BusinessRecord) error {
		_, err := model.Next(rec, model.ActionEdit)
		return err
	})
	if err != nil {
		return 0, err
	}
	return rec.Version, nil
}
