package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Patch is an operator edit. Nil fields are left untouched. Commercial and
// content fields can only change through a Patch, never through the public
// signing flow.
type Patch struct {
	ClientName        *string `json:"client_name"`
	ClientEmail       *string `json:"client_email"`
	ClientPhone       *string `json:"client_phone"`
	ClientAddress     *string `json:"client_address"`
	ClientProfession  *string `json:"client_profession"`
	ClientCivilStatus *string `json:"client_civil_status"`

	EventType     *string    `json:"event_type"`
	EventDate     *time.Time `json:"event_date"`
	ClearDate     bool       `json:"clear_event_date"`
	EventTime     *string    `json:"event_time"`
	EventLocation *string    `json:"event_location"`

	TotalPrice       *decimal.Decimal `json:"total_price"`
	DownPayment      *decimal.Decimal `json:"down_payment"`
	DownPaymentDate  *time.Time       `json:"down_payment_date"`
	RemainingDueDate *time.Time       `json:"remaining_due_date"`

	Services    *ServiceItems `json:"services"`
	TemplateID  *string       `json:"template_id"`
	HTMLContent *string       `json:"html_content"`
	CSSContent  *string       `json:"css_content"`
	Notes       *string       `json:"notes"`
}

// Apply writes the patch onto rec and reports whether a field feeding the
// slug (client name or event date) changed.
func (p Patch) Apply(rec *BusinessRecord) (slugChanged bool) {
	if p.ClientName != nil && *p.ClientName != rec.ClientName {
		rec.ClientName = *p.ClientName
		slugChanged = true
	}
	setString(&rec.ClientEmail, p.ClientEmail)
	setString(&rec.ClientPhone, p.ClientPhone)
	setString(&rec.ClientAddress, p.ClientAddress)
	setString(&rec.ClientProfession, p.ClientProfession)
	setString(&rec.ClientCivilStatus, p.ClientCivilStatus)

	setString(&rec.EventType, p.EventType)
	switch {
	case p.ClearDate:
		if rec.EventDate != nil {
			slugChanged = true
		}
		rec.EventDate = nil
	case p.EventDate != nil:
		if rec.EventDate == nil || !sameDay(*rec.EventDate, *p.EventDate) {
			slugChanged = true
		}
		d := *p.EventDate
		rec.EventDate = &d
	}
	setString(&rec.EventTime, p.EventTime)
	setString(&rec.EventLocation, p.EventLocation)

	if p.TotalPrice != nil {
		rec.TotalPrice = *p.TotalPrice
	}
	if p.DownPayment != nil {
		rec.DownPayment = *p.DownPayment
	}
	if p.DownPaymentDate != nil {
		d := *p.DownPaymentDate
		rec.DownPaymentDate = &d
	}
	if p.RemainingDueDate != nil {
		d := *p.RemainingDueDate
		rec.RemainingDueDate = &d
	}
	if p.Services != nil {
		rec.Services = append(ServiceItems(nil), (*p.Services)...)
	}
	setString(&rec.TemplateID, p.TemplateID)
	setString(&rec.HTMLContent, p.HTMLContent)
	setString(&rec.CSSContent, p.CSSContent)
	setString(&rec.Notes, p.Notes)

	rec.Recompute()
	return slugChanged
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
