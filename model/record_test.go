package model

import (
	"testing"
	"time"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/apperr"
	"github.com/shopspring/decimal"
)

func validRecord() *BusinessRecord {
	return &BusinessRecord{
		Kind:        KindContract,
		TemplateID:  "contract-default",
		Party:       Party{ClientName: "Maria Souza", ClientEmail: "maria@example.com"},
		Event:       Event{EventType: "Casamento"},
		Commercial:  Commercial{TotalPrice: decimal.NewFromInt(1000), DownPayment: decimal.NewFromInt(300)},
		HTMLContent: "<p>{{client_name}}</p>",
	}
}

func TestRemainingAmount(t *testing.T) {
	tests := []struct {
		total, down string
		want        string
	}{
		{"1000", "300", "700"},
		{"1000", "0", "1000"},
		{"1000", "1000", "0"},
		{"500", "750.50", "0"},
		{"1234.56", "234.50", "1000.06"},
	}

	for _, tt := range tests {
		got := RemainingAmount(decimal.RequireFromString(tt.total), decimal.RequireFromString(tt.down))
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("RemainingAmount(%s, %s) = %s, want %s", tt.total, tt.down, got, tt.want)
		}
	}
}

func TestRecomputeOverridesManualValue(t *testing.T) {
	rec := validRecord()
	rec.RemainingAmount = decimal.NewFromInt(999)
	rec.Recompute()

	if !rec.RemainingAmount.Equal(decimal.NewFromInt(700)) {
		t.Errorf("Expected remaining 700, got %s", rec.RemainingAmount)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BusinessRecord)
		code   apperr.Code
	}{
		{"valid", func(*BusinessRecord) {}, ""},
		{"bad kind", func(r *BusinessRecord) { r.Kind = KindEmail }, apperr.CodeInvalidKind},
		{"missing client", func(r *BusinessRecord) { r.ClientName = "  " }, apperr.CodeRequiredField},
		{"missing event type", func(r *BusinessRecord) { r.EventType = "" }, apperr.CodeRequiredField},
		{"missing template", func(r *BusinessRecord) { r.TemplateID = ""; r.HTMLContent = "" }, apperr.CodeRequiredField},
		{"negative total", func(r *BusinessRecord) { r.TotalPrice = decimal.NewFromInt(-1) }, apperr.CodeNegativeAmount},
		{"negative down", func(r *BusinessRecord) { r.DownPayment = decimal.NewFromInt(-5) }, apperr.CodeNegativeAmount},
		{"bad email", func(r *BusinessRecord) { r.ClientEmail = "not-an-email" }, apperr.CodeInvalidEmail},
		{"named email", func(r *BusinessRecord) { r.ClientEmail = "Maria <maria@example.com>" }, apperr.CodeInvalidEmail},
		{"service without name", func(r *BusinessRecord) {
			r.Services = ServiceItems{{Name: "", Included: true}}
		}, apperr.CodeRequiredField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(rec)
			err := rec.Validate()
			if tt.code == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if apperr.CodeOf(err) != tt.code {
				t.Errorf("Expected code %s, got %v", tt.code, err)
			}
			if !apperr.IsKind(err, apperr.KindValidation) {
				t.Errorf("Expected validation kind, got %s", apperr.KindOf(err))
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	d := time.Date(2025, 11, 22, 0, 0, 0, 0, time.UTC)
	rec := validRecord()
	rec.EventDate = &d
	rec.Services = ServiceItems{{Name: "Cerimonial", Included: true}}
	rec.PreviewSignature = &SignatureData{Image: "data:image/png;base64,AAAA"}

	c := rec.Clone()
	c.Services[0].Name = "changed"
	*c.EventDate = c.EventDate.AddDate(0, 0, 1)
	c.PreviewSignature.Image = ""

	if rec.Services[0].Name != "Cerimonial" {
		t.Error("Expected services to be copied")
	}
	if !rec.EventDate.Equal(d) {
		t.Error("Expected event date to be copied")
	}
	if rec.PreviewSignature.Image == "" {
		t.Error("Expected preview signature to be copied")
	}
}

func TestServiceItemsIncludedOnly(t *testing.T) {
	items := ServiceItems{
		{Name: "Cerimonial", Price: decimal.NewFromInt(800), Included: true},
		{Name: "Buffet", Price: decimal.NewFromInt(5000), Included: false},
		{Name: "Decoração", Price: decimal.NewFromInt(200), Included: true},
	}

	got := items.IncludedOnly()
	if len(got) != 2 || got[0].Name != "Cerimonial" || got[1].Name != "Decoração" {
		t.Errorf("Unexpected included services: %+v", got)
	}
	if total := ServicesTotal(items); !total.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected services total 1000, got %s", total)
	}
}

func TestServiceItemsScan(t *testing.T) {
	var items ServiceItems
	if err := items.Scan([]byte(`[{"name":"Cerimonial","price":"800","included":true}]`)); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(items) != 1 || !items[0].Price.Equal(decimal.NewFromInt(800)) {
		t.Errorf("Unexpected scan result %+v", items)
	}

	v, err := ServiceItems(nil).Value()
	if err != nil || string(v.([]byte)) != "[]" {
		t.Errorf("Expected empty JSON array for nil items, got %v (%v)", v, err)
	}
}
