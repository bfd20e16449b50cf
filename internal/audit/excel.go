package audit

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"reservio/internal/ledger"
)

// ExportExcel writes an xlsx report with a Bookings sheet covering
// [from, to) and an Activity sheet with the recent trail entries.
func ExportExcel(ctx context.Context, w io.Writer, l ledger.Ledger, trail *Trail, from, to time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeBookingsSheet(ctx, f, l, from, to); err != nil {
		return err
	}
	if err := writeActivitySheet(f, trail); err != nil {
		return err
	}

	return f.Write(w)
}

func writeBookingsSheet(ctx context.Context, f *excelize.File, l ledger.Ledger, from, to time.Time) error {
	const sheet = "Bookings"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Client ID", "Client Name", "Phone", "Professional", "Service", "Resources", "Start", "End", "Comment"}
	if err := writeRow(f, sheet, 1, toAny(headers)); err != nil {
		return err
	}
	boldHeader(f, sheet, len(headers))

	records, err := l.ListBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}

	for i, rec := range records {
		row := []interface{}{
			rec.ID, rec.ClientID, rec.ClientName, rec.ClientPhone,
			rec.ProfessionalID, rec.ServiceID, strings.Join(rec.ResourceIDs, ","),
			rec.Start.UTC().Format(time.RFC3339), rec.End.UTC().Format(time.RFC3339),
			rec.Comment,
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeActivitySheet(f *excelize.File, trail *Trail) error {
	const sheet = "Activity"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	headers := []string{"Timestamp", "Action", "Slot ID", "Client ID", "Outcome"}
	if err := writeRow(f, sheet, 1, toAny(headers)); err != nil {
		return err
	}
	boldHeader(f, sheet, len(headers))

	for i, e := range trail.Entries() {
		row := []interface{}{
			e.Timestamp.UTC().Format(time.RFC3339),
			e.Action, e.SlotID, e.ClientID, e.Outcome,
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for i, val := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, val); err != nil {
			return err
		}
	}
	return nil
}

func boldHeader(f *excelize.File, sheet string, cols int) {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return
	}
	startCell, _ := excelize.CoordinatesToCellName(1, 1)
	endCell, _ := excelize.CoordinatesToCellName(cols, 1)
	_ = f.SetCellStyle(sheet, startCell, endCell, style)
}

func toAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
