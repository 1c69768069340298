package services

import (
	"bytes"
	"fmt"
	"strings"

	"question-bank-backend/db/models"

	"github.com/xuri/excelize/v2"
)

const (
	resultSheetName  = "Results"
	summarySheetName = "Summary"
)

// RowReport is the in-memory projection of one row outcome handed to the
// result writer by the job's worker.
type RowReport struct {
	RowNumber int
	Result    models.RowResult
	Errors    []models.FieldError
	EntityRef string
}

// WriteResultWorkbook produces the annotated result workbook: every input
// row with its original values and spreadsheet position plus is_successful
// and reason columns, and a summary sheet with the final counts. Reports
// must already be in row order.
func WriteResultWorkbook(schema *Schema, records []RowRecord, reports []RowReport) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(resultSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create results sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	headers := []string{"row_number", "sheet_row"}
	for _, col := range schema.Columns {
		headers = append(headers, col.Header)
	}
	headers = append(headers, "is_successful", "reason")
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(resultSheetName, cell, h); err != nil {
			return nil, err
		}
	}

	recordByRow := make(map[int]RowRecord, len(records))
	for _, rec := range records {
		recordByRow[rec.RowNumber] = rec
	}

	succeeded, skipped := 0, 0
	for i, report := range reports {
		rec := recordByRow[report.RowNumber]

		// sheet_row is where the uploader can find the row in their own
		// file; it diverges from row_number when blank rows were dropped.
		values := []interface{}{report.RowNumber, rec.SheetRow}
		for _, col := range schema.Columns {
			values = append(values, rec.Get(col.Name))
		}
		switch report.Result {
		case models.RowResultSuccess:
			succeeded++
			values = append(values, "TRUE", "")
		case models.RowResultSkipped:
			skipped++
			values = append(values, "FALSE", reasonText(report))
		default:
			values = append(values, "FALSE", reasonText(report))
		}

		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(resultSheetName, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write result row %d: %w", report.RowNumber, err)
			}
		}
	}

	if _, err := f.NewSheet(summarySheetName); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	summary := [][]interface{}{
		{"total_rows", len(reports)},
		{"succeeded_rows", succeeded},
		{"failed_rows", len(reports) - succeeded - skipped},
		{"skipped_rows", skipped},
	}
	for i, pair := range summary {
		for j, v := range pair {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(summarySheetName, cell, v); err != nil {
				return nil, err
			}
		}
	}

	f.SetActiveSheet(index)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize result workbook: %w", err)
	}
	return buf, nil
}

func reasonText(report RowReport) string {
	if report.Result == models.RowResultSkipped {
		return "skipped: job was cancelled before this row was processed"
	}
	if report.Result == models.RowResultConflict && len(report.Errors) == 0 {
		return "conflict: an identical question already exists"
	}
	parts := make([]string, 0, len(report.Errors))
	for _, fe := range report.Errors {
		parts = append(parts, fe.Message)
	}
	return strings.Join(parts, "; ")
}
