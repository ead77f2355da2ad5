package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/model"
	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/pkg/apperr"
)

const reportSheet = "Registros"

var reportHeaders = []string{
	"ID", "Tipo", "Slug", "Status", "Versão", "Cliente", "E-mail", "Evento", "Data do evento",
	"Valor total", "Entrada", "Saldo", "Criado em", "Assinado em", "IP do signatário", "Impressão digital",
}

// RecordsReport builds an XLSX workbook with one row per record, including
// the audit columns of signed contracts.
func RecordsReport(ctx context.Context, store RecordStore, filter RecordFilter) ([]byte, error) {
	records, err := store.ListRecords(ctx, filter)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(reportSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	for i, header := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(reportSheet, cell, header)
	}

	for i, rec := range records {
		row := i + 2
		for col, v := range reportRow(rec) {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(reportSheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, apperr.CodeInternal, "failed to write report", err)
	}
	return buf.Bytes(), nil
}

func reportRow(rec *model.BusinessRecord) []any {
	eventDate, signedAt := "", ""
	if rec.EventDate != nil {
		eventDate = rec.EventDate.Format("02/01/2006")
	}
	if rec.SignedAt != nil {
		signedAt = rec.SignedAt.UTC().Format("2006-01-02 15:04:05")
	}
	total, _ := rec.TotalPrice.Float64()
	down, _ := rec.DownPayment.Float64()
	rest, _ := rec.RemainingAmount.Float64()

	return []any{
		rec.ID, rec.Kind.Label(), rec.Slug, string(rec.Status), rec.Version,
		rec.ClientName, rec.ClientEmail, rec.EventType, eventDate,
		total, down, rest,
		rec.CreatedAt.UTC().Format("2006-01-02 15:04:05"), signedAt, rec.SignerIP, rec.ContentHash,
	}
}
