package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
	"github.com/shopspring/decimal"
)

// Value is the resolution of one static variable.
type Value struct {
	Text     string
	Markup   bool // Text is trusted HTML and is not escaped
	Optional bool // an empty Text is a legitimate empty state
}

// Source is one document variant. Each variant exposes the closed set of
// static variables it understands; anything else is an unknown token.
type Source interface {
	Kind() model.Kind
	Record() *model.BusinessRecord
	Variables(f Formatter) map[string]Value
}

// Footer is implemented by sources that append a section after the body.
type Footer interface {
	Footer(f Formatter) string
}

// NewSource returns the variant matching rec.Kind.
func NewSource(rec *model.BusinessRecord, company model.Company) (Source, error) {
	switch rec.Kind {
	case model.KindProposal:
		return ProposalSource{Rec: rec, Company: company}, nil
	case model.KindContract:
		return ContractSource{Rec: rec, Company: company}, nil
	default:
		return nil, fmt.Errorf("no render source for kind %q", rec.Kind)
	}
}

// ProposalSource renders proposals.
type ProposalSource struct {
	Rec     *model.BusinessRecord
	Company model.Company
}

func (s ProposalSource) Kind() model.Kind               { return model.KindProposal }
func (s ProposalSource) Record() *model.BusinessRecord { return s.Rec }

func (s ProposalSource) Variables(f Formatter) map[string]Value {
	return recordVariables(s.Rec, s.Company, f)
}

// ContractSource renders contracts, including their audit variables.
type ContractSource struct {
	Rec     *model.BusinessRecord
	Company model.Company
}

func (s ContractSource) Kind() model.Kind               { return model.KindContract }
func (s ContractSource) Record() *model.BusinessRecord { return s.Rec }

func (s ContractSource) Variables(f Formatter) map[string]Value {
	vars := recordVariables(s.Rec, s.Company, f)
	rec := s.Rec

	signedAt := ""
	if rec.SignedAt != nil {
		signedAt = f.Timestamp(*rec.SignedAt)
	}
	signerName, signature := "", ""
	if rec.Signature != nil {
		signerName = rec.Signature.SignerName
		signature = signatureImage(rec.Signature.Image)
	}

	vars["signed_at"] = Value{Text: signedAt, Optional: true}
	vars["signer_name"] = Value{Text: signerName, Optional: true}
	vars["signer_ip"] = Value{Text: rec.SignerIP, Optional: true}
	vars["signer_user_agent"] = Value{Text: rec.UserAgent, Optional: true}
	vars["content_hash"] = Value{Text: rec.ContentHash, Optional: true}
	vars["signature_image"] = Value{Text: signature, Markup: true, Optional: true}
	return vars
}

// Footer appends the audit section once the contract is signed.
func (s ContractSource) Footer(f Formatter) string {
	rec := s.Rec
	if rec.Status != model.StatusSigned || rec.SignedAt == nil {
		return ""
	}
	signer := ""
	if rec.Signature != nil {
		signer = rec.Signature.SignerName
	}

	var b strings.Builder
	b.WriteString(`<section class="audit-footer" data-atomic="true">`)
	b.WriteString(`<h4>Registro de assinatura eletrônica</h4><dl>`)
	row := func(label, value string) {
		fmt.Fprintf(&b, "<dt>%s</dt><dd>%s</dd>", label, html.EscapeString(value))
	}
	row("Assinado por", signer)
	row("Data/hora", f.Timestamp(*rec.SignedAt))
	row("Endereço IP", rec.SignerIP)
	row("Navegador", rec.UserAgent)
	row("Versão do documento", fmt.Sprintf("%d", rec.Version))
	row("Impressão digital", rec.ContentHash)
	b.WriteString(`</dl></section>`)
	return b.String()
}

// EmailSource renders notification messages about a record.
type EmailSource struct {
	Doc        Source
	PublicLink string
}

func (s EmailSource) Kind() model.Kind               { return model.KindEmail }
func (s EmailSource) Record() *model.BusinessRecord { return s.Doc.Record() }

func (s EmailSource) Variables(f Formatter) map[string]Value {
	vars := s.Doc.Variables(f)
	vars["public_link"] = Value{Text: s.PublicLink}
	vars["document_type"] = Value{Text: s.Doc.Kind().Label()}
	return vars
}

func recordVariables(rec *model.BusinessRecord, c model.Company, f Formatter) map[string]Value {
	text := func(s string) Value { return Value{Text: s} }
	optional := func(s string) Value { return Value{Text: s, Optional: true} }

	return map[string]Value{
		"document_id":   text(rec.ID),
		"document_date": text(f.Date(&rec.CreatedAt)),
		"slug":          text(rec.Slug),
		"version":       text(fmt.Sprintf("%d", rec.Version)),

		"client_name":         text(rec.ClientName),
		"client_email":        optional(rec.ClientEmail),
		"client_phone":        optional(rec.ClientPhone),
		"client_address":      optional(rec.ClientAddress),
		"client_profession":   optional(rec.ClientProfession),
		"client_civil_status": optional(rec.ClientCivilStatus),

		"event_type":      text(rec.EventType),
		"event_date":      text(f.Date(rec.EventDate)),
		"event_date_long": text(f.LongDate(rec.EventDate)),
		"event_time":      text(f.Text(rec.EventTime)),
		"event_location":  text(f.Text(rec.EventLocation)),

		"total_price":        text(f.Currency(rec.TotalPrice)),
		"down_payment":       text(f.Currency(rec.DownPayment)),
		"down_payment_date":  text(f.Date(rec.DownPaymentDate)),
		"remaining_amount":   text(f.Currency(model.RemainingAmount(rec.TotalPrice, rec.DownPayment))),
		"remaining_due_date": text(f.Date(rec.RemainingDueDate)),
		"services_total":     text(f.Currency(model.ServicesTotal(rec.Services))),
		"services_table":     {Text: servicesTable(rec.Services, f), Markup: true},
		"services_list":      {Text: servicesList(rec.Services), Markup: true},

		"notes": optional(rec.Notes),

		"company_name":     text(c.Name),
		"company_document": optional(c.Document),
		"company_address":  optional(c.Address),
		"company_email":    optional(c.Email),
		"company_phone":    optional(c.Phone),
		"company_owner":    optional(c.Owner),
	}
}

func servicesTable(items model.ServiceItems, f Formatter) string {
	included := items.IncludedOnly()
	if len(included) == 0 {
		return `<p class="services-empty">Nenhum serviço incluído</p>`
	}

	var b strings.Builder
	b.WriteString(`<table class="services-table"><thead><tr><th>Serviço</th><th>Descrição</th><th>Valor</th></tr></thead><tbody>`)
	for _, item := range included {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td></tr>",
			html.EscapeString(item.Name), html.EscapeString(item.Description), html.EscapeString(f.Currency(item.Price)))
	}
	fmt.Fprintf(&b, `</tbody><tfoot><tr><td colspan="2">Total</td><td>%s</td></tr></tfoot></table>`,
		html.EscapeString(f.Currency(model.ServicesTotal(items))))
	return b.String()
}

func servicesList(items model.ServiceItems) string {
	included := items.IncludedOnly()
	if len(included) == 0 {
		return `<p class="services-empty">Nenhum serviço incluído</p>`
	}

	var b strings.Builder
	b.WriteString(`<ul class="services-list">`)
	for _, item := range included {
		b.WriteString("<li>")
		b.WriteString(html.EscapeString(item.Name))
		if item.Description != "" {
			b.WriteString(" – ")
			b.WriteString(html.EscapeString(item.Description))
		}
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}

func signatureImage(dataURL string) string {
	if !strings.HasPrefix(dataURL, "data:image/") {
		return ""
	}
	return fmt.Sprintf(`<img class="signature-image" src="%s" alt="Assinatura">`, html.EscapeString(dataURL))
}

// amounts exposes the numeric record fields to calc expressions.
func amounts(rec *model.BusinessRecord) map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"total_price":      rec.TotalPrice,
		"down_payment":     rec.DownPayment,
		"remaining_amount": model.RemainingAmount(rec.TotalPrice, rec.DownPayment),
		"services_total":   model.ServicesTotal(rec.Services),
	}
}
