package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/apperr"
	"github.com/shopspring/decimal"
)

// Kind is the closed set of document variants the system renders.
type Kind string

const (
	KindProposal Kind = "proposal"
	KindContract Kind = "contract"
	KindEmail    Kind = "email"
)

// Valid reports whether k names a business record kind.
func (k Kind) Valid() bool {
	return k == KindProposal || k == KindContract
}

// Label returns the Portuguese label used in public links and emails.
func (k Kind) Label() string {
	switch k {
	case KindProposal:
		return "proposta"
	case KindContract:
		return "contrato"
	case KindEmail:
		return "email"
	default:
		return string(k)
	}
}

// Party holds the client identity fields.
type Party struct {
	ClientName        string `json:"client_name" db:"client_name"`
	ClientEmail       string `json:"client_email" db:"client_email"`
	ClientPhone       string `json:"client_phone" db:"client_phone"`
	ClientAddress     string `json:"client_address" db:"client_address"`
	ClientProfession  string `json:"client_profession" db:"client_profession"`
	ClientCivilStatus string `json:"client_civil_status" db:"client_civil_status"`
}

// Event describes the ceremony being contracted. Date, time and location are
// optional and render as "to be defined" when absent.
type Event struct {
	EventType     string     `json:"event_type" db:"event_type"`
	EventDate     *time.Time `json:"event_date,omitempty" db:"event_date"`
	EventTime     string     `json:"event_time" db:"event_time"`
	EventLocation string     `json:"event_location" db:"event_location"`
}

// Commercial holds the money fields. RemainingAmount is derived.
type Commercial struct {
	TotalPrice       decimal.Decimal `json:"total_price" db:"total_price"`
	DownPayment      decimal.Decimal `json:"down_payment" db:"down_payment"`
	DownPaymentDate  *time.Time      `json:"down_payment_date,omitempty" db:"down_payment_date"`
	RemainingAmount  decimal.Decimal `json:"remaining_amount" db:"remaining_amount"`
	RemainingDueDate *time.Time      `json:"remaining_due_date,omitempty" db:"remaining_due_date"`
}

// ServiceItem is one line of the services table.
type ServiceItem struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Included    bool            `json:"included"`
}

// ServiceItems is stored as a JSON column.
type ServiceItems []ServiceItem

func (s ServiceItems) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

func (s *ServiceItems) Scan(src any) error {
	return scanJSON(src, s)
}

// IncludedOnly returns the services flagged as included, preserving order.
func (s ServiceItems) IncludedOnly() ServiceItems {
	out := make(ServiceItems, 0, len(s))
	for _, item := range s {
		if item.Included {
			out = append(out, item)
		}
	}
	return out
}

// SignatureData is the drawn signature plus capture metadata.
type SignatureData struct {
	Image       string    `json:"image"`
	SignerName  string    `json:"signer_name"`
	SignerEmail string    `json:"signer_email"`
	Method      string    `json:"method"`
	CapturedAt  time.Time `json:"captured_at"`
}

func (s SignatureData) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *SignatureData) Scan(src any) error {
	return scanJSON(src, s)
}

// Audit holds the contract-only signature fields.
type Audit struct {
	SignedAt            *time.Time     `json:"signed_at,omitempty" db:"signed_at"`
	SignerIP            string         `json:"signer_ip,omitempty" db:"signer_ip"`
	UserAgent           string         `json:"user_agent,omitempty" db:"user_agent"`
	ContentHash         string         `json:"content_hash,omitempty" db:"content_hash"`
	Signature           *SignatureData `json:"signature_data,omitempty" db:"signature_data"`
	PreviewSignature    *SignatureData `json:"preview_signature,omitempty" db:"preview_signature"`
	PreviewSignatureURL string         `json:"preview_signature_url,omitempty" db:"preview_signature_url"`
	SignedDocumentURL   string         `json:"signed_document_url,omitempty" db:"signed_document_url"`
}

// BusinessRecord is a proposal or a contract.
type BusinessRecord struct {
	ID          string `json:"id" db:"id"`
	Kind        Kind   `json:"kind" db:"kind"`
	Slug        string `json:"slug" db:"slug"`
	PublicToken string `json:"public_token" db:"public_token"`
	TemplateID  string `json:"template_id" db:"template_id"`

	Party
	Event
	Commercial
	Services ServiceItems `json:"services" db:"services"`

	HTMLContent string `json:"html_content" db:"html_content"`
	CSSContent  string `json:"css_content" db:"css_content"`
	Notes       string `json:"notes" db:"notes"`

	Status           Status    `json:"status" db:"status"`
	PreviewFrom      Status    `json:"preview_from,omitempty" db:"preview_from"`
	Version          int       `json:"version" db:"version"`
	VersionTimestamp time.Time `json:"version_timestamp" db:"version_timestamp"`

	Audit

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (r *BusinessRecord) Clone() *BusinessRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Services = append(ServiceItems(nil), r.Services...)
	c.EventDate = cloneTime(r.EventDate)
	c.DownPaymentDate = cloneTime(r.DownPaymentDate)
	c.RemainingDueDate = cloneTime(r.RemainingDueDate)
	c.Audit = r.Audit.Clone()
	return &c
}

// Clone returns a copy of a that shares no pointers with it.
func (a Audit) Clone() Audit {
	c := a
	c.SignedAt = cloneTime(a.SignedAt)
	if a.Signature != nil {
		sig := *a.Signature
		c.Signature = &sig
	}
	if a.PreviewSignature != nil {
		sig := *a.PreviewSignature
		c.PreviewSignature = &sig
	}
	return c
}

// Recompute derives the remaining amount: total minus down payment, floored at zero.
func (r *BusinessRecord) Recompute() {
	r.RemainingAmount = RemainingAmount(r.TotalPrice, r.DownPayment)
}

// RemainingAmount returns max(0, total - down).
func RemainingAmount(total, down decimal.Decimal) decimal.Decimal {
	rest := total.Sub(down)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// IsRetired reports whether the record reached a terminal status.
func (r *BusinessRecord) IsRetired() bool {
	return r.Status.IsTerminal()
}

// Validate checks the fields required to create or keep a record.
func (r *BusinessRecord) Validate() error {
	if !r.Kind.Valid() {
		return apperr.WithMetadata(apperr.KindValidation, apperr.CodeInvalidKind,
			fmt.Sprintf("unsupported document kind %q", r.Kind), map[string]string{"field": "kind"})
	}
	if strings.TrimSpace(r.ClientName) == "" {
		return requiredField("client_name")
	}
	if strings.TrimSpace(r.EventType) == "" {
		return requiredField("event_type")
	}
	if strings.TrimSpace(r.HTMLContent) == "" && strings.TrimSpace(r.TemplateID) == "" {
		return requiredField("template_id")
	}
	if r.TotalPrice.IsNegative() {
		return negativeAmount("total_price")
	}
	if r.DownPayment.IsNegative() {
		return negativeAmount("down_payment")
	}
	if r.ClientEmail != "" {
		if err := ValidateEmail(r.ClientEmail); err != nil {
			return err
		}
	}
	for i, item := range r.Services {
		if strings.TrimSpace(item.Name) == "" {
			return requiredField(fmt.Sprintf("services[%d].name", i))
		}
		if item.Price.IsNegative() {
			return negativeAmount(fmt.Sprintf("services[%d].price", i))
		}
	}
	return nil
}

// ValidateEmail checks that addr is a single bare address.
func ValidateEmail(addr string) error {
	parsed, err := mail.ParseAddress(strings.TrimSpace(addr))
	if err != nil || parsed.Address != strings.TrimSpace(addr) {
		return apperr.WithMetadata(apperr.KindValidation, apperr.CodeInvalidEmail,
			fmt.Sprintf("invalid email address %q", addr), map[string]string{"field": "client_email"})
	}
	return nil
}

func requiredField(field string) error {
	return apperr.WithMetadata(apperr.KindValidation, apperr.CodeRequiredField,
		field+" is required", map[string]string{"field": field})
}

func negativeAmount(field string) error {
	return apperr.WithMetadata(apperr.KindValidation, apperr.CodeNegativeAmount,
		field+" must not be negative", map[string]string{"field": field})
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("unsupported JSON column type")
	}
}
