package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/apperr"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/logger"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/render"
)

// CreateRequest carries the operator input for a new record.
type CreateRequest struct {
	Kind       model.Kind `json:"kind"`
	TemplateID string     `json:"template_id"`

	model.Party
	model.Event

	TotalPrice       decimal.Decimal    `json:"total_price"`
	DownPayment      decimal.Decimal    `json:"down_payment"`
	DownPaymentDate  *time.Time         `json:"down_payment_date"`
	RemainingDueDate *time.Time         `json:"remaining_due_date"`
	Services         model.ServiceItems `json:"services"`

	HTMLContent string `json:"html_content"`
	CSSContent  string `json:"css_content"`
	Notes       string `json:"notes"`
}

// ClientMeta is what the public signing flow knows about the browser.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// Result is the outcome of a lifecycle operation. Warnings list collaborator
// failures that did not stop the transition.
type Result struct {
	Record   *model.BusinessRecord `json:"record"`
	Warnings []string              `json:"warnings,omitempty"`
}

func (r *Result) warn(ctx context.Context, msg string, err error) {
	logger.Warn(ctx, msg, "error", err)
	r.Warnings = append(r.Warnings, fmt.Sprintf("%s: %v", msg, err))
}

// WorkflowDeps wires a Workflow.
type WorkflowDeps struct {
	Store       Store
	Renderer    *render.Renderer
	Notifier    Notifier
	Storage     BinaryStorage
	Exporter    Exporter
	Access      *AccessResolver
	Company     model.Company
	EditRetries int
}

// Workflow owns record status and runs every lifecycle transition. Each
// transition is persisted before its side effects run; side-effect failures
// become warnings.
type Workflow struct {
	store    Store
	renderer *render.Renderer
	notifier Notifier
	storage  BinaryStorage
	exporter Exporter
	access   *AccessResolver
	ledger   *Ledger
	locks    *recordLocks
	company  model.Company
	now      func() time.Time
}

func NewWorkflow(deps WorkflowDeps) *Workflow {
	access := deps.Access
	if access == nil {
		access = NewAccessResolver(deps.Store, "")
	}
	return &Workflow{
		store:    deps.Store,
		renderer: deps.Renderer,
		notifier: deps.Notifier,
		storage:  deps.Storage,
		exporter: deps.Exporter,
		access:   access,
		ledger:   NewLedger(deps.Store, deps.EditRetries),
		locks:    newRecordLocks(),
		company:  deps.Company,
		now:      time.Now,
	}
}

// Ledger exposes the audit ledger used by the workflow.
func (w *Workflow) Ledger() *Ledger {
	return w.ledger
}

// Create validates and stores a new draft with version 1, then sends the
// initial notification to the client when an address is known.
func (w *Workflow) Create(ctx context.Context, req CreateRequest) (*Result, error) {
	now := w.now().UTC()
	rec := &model.BusinessRecord{
		Kind:        req.Kind,
		TemplateID:  strings.TrimSpace(req.TemplateID),
		Party:       req.Party,
		Event:       req.Event,
		Services:    append(model.ServiceItems(nil), req.Services...),
		HTMLContent: req.HTMLContent,
		CSSContent:  req.CSSContent,
		Notes:       req.Notes,
	}
	rec.TotalPrice = req.TotalPrice
	rec.DownPayment = req.DownPayment
	rec.DownPaymentDate = req.DownPaymentDate
	rec.RemainingDueDate = req.RemainingDueDate
	rec.Recompute()

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(rec.HTMLContent) == "" {
		if err := w.applyTemplate(ctx, rec, rec.TemplateID); err != nil {
			return nil, err
		}
	}

	rec.ID = uuid.New().String()
	rec.PublicToken = newPublicToken()
	rec.Status = model.StatusDraft
	rec.Version = 1
	rec.VersionTimestamp = now
	rec.CreatedAt = now
	rec.UpdatedAt = now

	base := SlugBase(rec.ClientName, rec.EventDate)
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		rec.Slug, err = uniqueSlug(ctx, w.store, base, rec.ID)
		if err != nil {
			return nil, err
		}
		err = w.store.CreateRecord(ctx, rec)
		if apperr.CodeOf(err) != apperr.CodeSlugTaken {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	ctx = logger.WithRecord(ctx, rec.ID)
	logger.Info(ctx, "record created", "kind", rec.Kind, "slug", rec.Slug)

	res := &Result{Record: rec}
	if rec.ClientEmail != "" {
		w.notify(ctx, res, rec, render.TemplateEmailCreated)
	}
	return res, nil
}

// Send emails the public link and moves a draft to sent.
func (w *Workflow) Send(ctx context.Context, id string) (*Result, error) {
	defer w.locks.Lock(id)()
	ctx = logger.WithRecord(ctx, id)

	rec, err := w.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := model.Next(rec, model.ActionSend)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(rec.ClientEmail) == "" {
		return nil, apperr.WithMetadata(apperr.KindValidation, apperr.CodeRequiredField,
			"client_email is required to send", map[string]string{"field": "client_email"})
	}
	if err := model.ValidateEmail(rec.ClientEmail); err != nil {
		return nil, err
	}

	updated, err := w.transition(ctx, rec, next, nil)
	if err != nil {
		return nil, err
	}

	res := &Result{Record: updated}
	w.notify(ctx, res, updated, render.TemplateEmailSent)
	return res, nil
}

// PreviewSignature stores the drawn signature in the non-final preview field
// and moves the contract to draft_signed. Only signature fields change.
func (w *Workflow) PreviewSignature(ctx context.Context, id string, sig model.SignatureData, meta ClientMeta) (*Result, error) {
	defer w.locks.Lock(id)()
	ctx = logger.WithRecord(ctx, id)

	rec, err := w.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := model.Next(rec, model.ActionPreviewSign)
	if err != nil {
		return nil, err
	}
	sig, image, err := w.checkSignature(rec, sig)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	at := w.now().UTC()
	if sig.CapturedAt.IsZero() {
		sig.CapturedAt = at
	}

	previewURL := ""
	if w.storage != nil {
		previewURL, err = w.storage.Upload(ctx, signaturePreviewObject(rec.ID, at, image.contentType), image.data, image.contentType)
		if err != nil {
			res.warn(ctx, "signature preview upload failed",
				apperr.Collaborator(apperr.CodeStorageFail, "storage upload failed", err))
			previewURL = ""
		}
	}

	updated, err := w.transition(ctx, rec, next, func(c *model.BusinessRecord) {
		c.PreviewSignature = &sig
		c.PreviewSignatureURL = previewURL
		c.PreviewFrom = rec.Status
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "signature preview stored", "signer_ip", meta.IP)

	res.Record = updated
	return res, nil
}

// DiscardPreview drops the preview signature and returns the contract to the
// state it was signable from.
func (w *Workflow) DiscardPreview(ctx context.Context, id string) (*Result, error) {
	defer w.locks.Lock(id)()
	ctx = logger.WithRecord(ctx, id)

	rec, err := w.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := model.Next(rec, model.ActionDiscardPreview)
	if err != nil {
		return nil, err
	}
	updated, err := w.transition(ctx, rec, next, clearPreview)
	if err != nil {
		return nil, err
	}
	return &Result{Record: updated}, nil
}

// ConfirmSignature makes the signature final. The audit is written first,
// then the signed status. When the conditional update fails for a reason
// other than a competing writer, the narrow status write persists it under
// the same version and status guard. A record that changed since it was read
// is never signed. Email and final export follow as best-effort steps. The
// version is not changed.
func (w *Workflow) ConfirmSignature(ctx context.Context, id string, sig model.SignatureData, meta ClientMeta) (*Result, error) {
	defer w.locks.Lock(id)()
	ctx = logger.WithRecord(ctx, id)

	rec, err := w.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := model.Next(rec, model.ActionConfirmSign)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(sig.Image) == "" && rec.PreviewSignature != nil {
		sig.Image = rec.PreviewSignature.Image
		sig.Method = rec.PreviewSignature.Method
	}
	sig, _, err = w.checkSignature(rec, sig)
	if err != nil {
		return nil, err
	}

	at := w.now().UTC()
	if sig.CapturedAt.IsZero() {
		sig.CapturedAt = at
	}

	signed := rec.Clone()
	signed.Signature = &sig
	audit, err := w.ledger.RecordSignature(ctx, signed, sig, meta.IP, meta.UserAgent, at)
	switch {
	case errors.Is(err, ErrAuditExists):
		// An earlier attempt on this version was not completed. Its capture
		// is reused only when it covers the same content and signature.
		if !Verify(signed, audit) {
			return nil, apperr.WithMetadata(apperr.KindConflict, apperr.CodeAuditExists,
				"a different signature was already captured for this version",
				map[string]string{"version": fmt.Sprint(rec.Version)})
		}
	case err != nil:
		return nil, err
	}

	signedAt := audit.SignedAt
	signed.Status = next
	signed.SignedAt = &signedAt
	signed.SignerIP = audit.SignerIP
	signed.UserAgent = audit.UserAgent
	signed.ContentHash = audit.ContentHash
	signed.PreviewFrom = ""

	res := &Result{}
	if err := w.store.UpdateIf(ctx, signed, rec.Version, rec.Status); err != nil {
		if competingWrite(err) {
			logger.Warn(ctx, "record changed while signing, signature rejected", "error", err)
			return nil, err
		}
		logger.Warn(ctx, "signed update failed, using status fallback", "error", err)
		if ferr := w.store.UpdateStatus(ctx, id, next, rec.Version, rec.Status, &signed.Audit); ferr != nil {
			if competingWrite(ferr) {
				return nil, ferr
			}
			return nil, apperr.Wrap(apperr.KindInternal, apperr.CodeInternal,
				"signature recorded but status could not be saved", errors.Join(err, ferr))
		}
		res.Warnings = append(res.Warnings, "signature saved through status fallback")
	}
	logger.Info(ctx, "contract signed", "version", signed.Version, "audit_id", audit.ID)

	// The signature is final from here on; follow-ups must not be cut short
	// by the client going away.
	ctx = context.WithoutCancel(ctx)

	current, err := w.store.GetRecord(ctx, id)
	if err != nil {
		current = signed
	}
	if current.ClientEmail != "" {
		w.notify(ctx, res, current, render.TemplateEmailSigned)
	}
	if url := w.storeSignedDocument(ctx, res, current); url != "" {
		current.SignedDocumentURL = url
	}

	res.Record = current
	return res, nil
}

// Cancel retires a draft or sent record.
func (w *Workflow) Cancel(ctx context.Context, id string) (*Result, error) {
	defer w.locks.Lock(id)()
	ctx = logger.WithRecord(ctx, id)

	rec, err := w.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := model.Next(rec, model.ActionCancel)
	if err != nil {
		return nil, err
	}
	updated, err := w.transition(ctx, rec, next, nil)
	if err != nil {
		return nil, err
	}
	return &Result{Record: updated}, nil
}

// Edit applies an operator patch and increments the version by one. A
// contract under signature preview loses the preview and goes back to its
// signable state. The slug is regenerated when the client name or event
// date changed.
func (w *Workflow) Edit(ctx context.Context, id string, patch model.Patch) (*Result, error) {
	defer w.locks.Lock(id)()
	ctx = logger.WithRecord(ctx, id)

	updated, err := w.ledger.Apply(ctx, id, func(rec *model.BusinessRecord) error {
		next, err := model.Next(rec, model.ActionEdit)
		if err != nil {
			return err
		}
		if rec.Status == model.StatusDraftSigned {
			clearPreview(rec)
		}
		rec.Status = next

		slugChanged := patch.Apply(rec)
		if patch.TemplateID != nil && patch.HTMLContent == nil {
			if err := w.applyTemplate(ctx, rec, rec.TemplateID); err != nil {
				return err
			}
		}
		if err := rec.Validate(); err != nil {
			return err
		}
		if slugChanged {
			slug, err := uniqueSlug(ctx, w.store, SlugBase(rec.ClientName, rec.EventDate), rec.ID)
			if err != nil {
				return err
			}
			rec.Slug = slug
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "record edited", "version", updated.Version, "slug", updated.Slug)
	return &Result{Record: updated}, nil
}

// Delete removes a draft. Anything that left draft is kept for the record.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	defer w.locks.Lock(id)()

	rec, err := w.store.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	if _, err := model.Next(rec, model.ActionDelete); err != nil {
		return err
	}
	if err := w.store.DeleteRecord(ctx, id); err != nil {
		return err
	}
	logger.Info(logger.WithRecord(ctx, id), "record deleted")
	return nil
}

func (w *Workflow) Get(ctx context.Context, id string) (*model.BusinessRecord, error) {
	return w.store.GetRecord(ctx, id)
}

func (w *Workflow) List(ctx context.Context, filter RecordFilter) ([]*model.BusinessRecord, error) {
	return w.store.ListRecords(ctx, filter)
}

// Audit returns the signature audit of a record and whether its fingerprint
// still matches the stored record.
func (w *Workflow) Audit(ctx context.Context, id string) (*model.AuditRecord, bool, error) {
	rec, err := w.store.GetRecord(ctx, id)
	if err != nil {
		return nil, false, err
	}
	audit, err := w.store.GetAudit(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return audit, Verify(rec, audit), nil
}

// Render produces the document of a record. It never modifies the record.
func (w *Workflow) Render(ctx context.Context, rec *model.BusinessRecord) (*render.Document, error) {
	src, err := render.NewSource(rec, w.company)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, apperr.CodeInvalidKind, "record cannot be rendered", err)
	}
	return w.renderer.Render(ctx, rec.HTMLContent, rec.CSSContent, src)
}

// Export renders the record and rasterizes it.
func (w *Workflow) Export(ctx context.Context, rec *model.BusinessRecord, mode ExportMode) (*Artifact, error) {
	if w.exporter == nil {
		return nil, apperr.New(apperr.KindCollaborator, apperr.CodeExporterFail, "document exporter is not configured")
	}
	doc, err := w.Render(ctx, rec)
	if err != nil {
		return nil, err
	}
	return w.exporter.Export(ctx, doc, mode)
}

// PublicLink returns the client-facing URL of rec.
func (w *Workflow) PublicLink(rec *model.BusinessRecord) string {
	return w.access.PublicLink(rec)
}

// transition writes rec with a new status (and optional extra changes)
// without touching the version.
func (w *Workflow) transition(ctx context.Context, rec *model.BusinessRecord, next model.Status, mutate func(*model.BusinessRecord)) (*model.BusinessRecord, error) {
	updated := rec.Clone()
	updated.Status = next
	if mutate != nil {
		mutate(updated)
	}
	if err := w.store.UpdateIf(ctx, updated, rec.Version, rec.Status); err != nil {
		return nil, err
	}
	logger.Info(ctx, "record status changed", "from", rec.Status, "to", next)
	return updated, nil
}

// competingWrite reports whether a conditional write failed because the
// record changed or disappeared after it was read.
func competingWrite(err error) bool {
	return apperr.CodeOf(err) == apperr.CodeVersionConflict || apperr.IsKind(err, apperr.KindNotFound)
}

func clearPreview(rec *model.BusinessRecord) {
	rec.PreviewSignature = nil
	rec.PreviewSignatureURL = ""
	rec.PreviewFrom = ""
}

func (w *Workflow) applyTemplate(ctx context.Context, rec *model.BusinessRecord, templateID string) error {
	t, err := w.store.GetTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	if t.Kind != rec.Kind {
		return apperr.WithMetadata(apperr.KindValidation, apperr.CodeInvalidTemplate,
			fmt.Sprintf("template %s is for %s, not %s", t.ID, t.Kind, rec.Kind),
			map[string]string{"field": "template_id"})
	}
	rec.HTMLContent = t.HTML
	rec.CSSContent = t.CSS
	return nil
}

// notify renders an email template for rec and sends it. Failures are
// recorded on res and never returned.
func (w *Workflow) notify(ctx context.Context, res *Result, rec *model.BusinessRecord, templateID string) {
	// The transition is already persisted; a client disconnect must not drop the mail.
	ctx = context.WithoutCancel(ctx)
	msg, err := w.message(ctx, rec, templateID)
	if err != nil {
		res.warn(ctx, "notification not rendered", err)
		return
	}
	if w.notifier == nil {
		res.warn(ctx, "notification not sent", errors.New("no notifier configured"))
		return
	}
	if err := w.notifier.Send(ctx, msg); err != nil {
		res.warn(ctx, "notification not sent",
			apperr.Collaborator(apperr.CodeNotificationFail, "mail delivery failed", err))
		return
	}
	logger.Info(ctx, "notification sent", "template", templateID)
}

func (w *Workflow) message(ctx context.Context, rec *model.BusinessRecord, templateID string) (Message, error) {
	t, err := w.store.GetTemplate(ctx, templateID)
	if err != nil {
		return Message{}, err
	}
	doc, err := render.NewSource(rec, w.company)
	if err != nil {
		return Message{}, err
	}
	src := render.EmailSource{Doc: doc, PublicLink: w.access.PublicLink(rec)}

	body, err := w.renderer.Render(ctx, t.HTML, t.CSS, src)
	if err != nil {
		return Message{}, err
	}
	htmlBody := body.HTML
	if body.CSS != "" {
		htmlBody = "<style>" + body.CSS + "</style>" + htmlBody
	}
	return Message{
		To:      rec.ClientEmail,
		Subject: w.renderer.RenderText(t.Subject, src),
		HTML:    htmlBody,
		Metadata: map[string]string{
			"record_id": rec.ID,
			"kind":      string(rec.Kind),
			"template":  templateID,
		},
	}, nil
}

// storeSignedDocument exports the final PDF once and links it on the record.
func (w *Workflow) storeSignedDocument(ctx context.Context, res *Result, rec *model.BusinessRecord) string {
	if w.exporter == nil || w.storage == nil {
		res.warn(ctx, "signed document not stored", errors.New("exporter or storage not configured"))
		return ""
	}
	artifact, err := w.Export(ctx, rec, ExportFinal)
	if err != nil {
		res.warn(ctx, "signed document export failed", err)
		return ""
	}
	url, err := w.storage.Upload(ctx, signedDocumentObject(rec.ID, rec.Slug, rec.Version), artifact.Data, artifact.ContentType)
	if err != nil {
		res.warn(ctx, "signed document upload failed",
			apperr.Collaborator(apperr.CodeStorageFail, "storage upload failed", err))
		return ""
	}
	if err := w.store.SetSignedDocumentURL(ctx, rec.ID, url); err != nil {
		res.warn(ctx, "signed document link not saved", err)
		return ""
	}
	return url
}

type signatureImage struct {
	data        []byte
	contentType string
}

// checkSignature fills signer identity from the record when missing and
// validates the capture.
func (w *Workflow) checkSignature(rec *model.BusinessRecord, sig model.SignatureData) (model.SignatureData, signatureImage, error) {
	sig.SignerName = strings.TrimSpace(sig.SignerName)
	sig.SignerEmail = strings.TrimSpace(sig.SignerEmail)
	if sig.SignerName == "" {
		sig.SignerName = rec.ClientName
	}
	if sig.SignerEmail == "" {
		sig.SignerEmail = rec.ClientEmail
	}
	if sig.Method == "" {
		sig.Method = "drawn"
	}

	if strings.TrimSpace(sig.SignerName) == "" {
		return sig, signatureImage{}, apperr.WithMetadata(apperr.KindValidation, apperr.CodeRequiredField,
			"signer name is required", map[string]string{"field": "signer_name"})
	}
	if sig.SignerEmail == "" {
		return sig, signatureImage{}, apperr.WithMetadata(apperr.KindValidation, apperr.CodeRequiredField,
			"signer email is required", map[string]string{"field": "signer_email"})
	}
	if err := model.ValidateEmail(sig.SignerEmail); err != nil {
		return sig, signatureImage{}, err
	}

	img, err := decodeSignature(sig.Image)
	if err != nil {
		return sig, signatureImage{}, err
	}
	return sig, img, nil
}

// decodeSignature accepts a base64 data URL of an image.
func decodeSignature(dataURL string) (signatureImage, error) {
	invalid := func(msg string) error {
		return apperr.WithMetadata(apperr.KindValidation, apperr.CodeInvalidSignature, msg,
			map[string]string{"field": "image"})
	}
	dataURL = strings.TrimSpace(dataURL)
	if dataURL == "" {
		return signatureImage{}, invalid("signature image is required")
	}
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return signatureImage{}, invalid("signature must be a base64 image data URL")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return signatureImage{}, invalid("signature image is not valid base64")
	}
	contentType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	return signatureImage{data: data, contentType: contentType}, nil
}

func newPublicToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
