package render

import (
	"embed"
	"fmt"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
)

// Built-in template ids.
const (
	TemplateContract      = "contract-default"
	TemplateProposal      = "proposal-default"
	TemplateEmailCreated  = "email-record-created"
	TemplateEmailSent     = "email-record-sent"
	TemplateEmailSigned   = "email-contract-signed"
	defaultStylesheetFile = "defaults/document.css"
)

//go:embed defaults/*.html defaults/*.css
var defaultsFS embed.FS

// DefaultTemplates returns the templates shipped with the binary.
func DefaultTemplates() ([]model.Template, error) {
	css, err := defaultsFS.ReadFile(defaultStylesheetFile)
	if err != nil {
		return nil, fmt.Errorf("read default stylesheet: %w", err)
	}

	specs := []struct {
		id, file, name, subject string
		kind                    model.Kind
		css                     bool
	}{
		{TemplateContract, "contract.html", "Contrato padrão", "", model.KindContract, true},
		{TemplateProposal, "proposal.html", "Proposta padrão", "", model.KindProposal, true},
		{TemplateEmailCreated, "email_created.html", "E-mail de criação", "{{company_name}}: {{document_type}} de {{event_type}}", model.KindEmail, false},
		{TemplateEmailSent, "email_sent.html", "E-mail de envio", "{{company_name}}: seu documento está pronto", model.KindEmail, false},
		{TemplateEmailSigned, "email_signed.html", "E-mail de assinatura", "Contrato assinado – {{event_type}} {{event_date}}", model.KindEmail, false},
	}

	out := make([]model.Template, 0, len(specs))
	for _, s := range specs {
		body, err := defaultsFS.ReadFile("defaults/" + s.file)
		if err != nil {
			return nil, fmt.Errorf("read default template %s: %w", s.file, err)
		}
		t := model.Template{ID: s.id, Kind: s.kind, Name: s.name, Subject: s.subject, HTML: string(body)}
		if s.css {
			t.CSS = string(css)
		}
		out = append(out, t)
	}
	return out, nil
}
