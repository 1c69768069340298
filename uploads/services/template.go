package services

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	dataSheetName      = "Questions"
	referenceSheetName = "Reference"
)

// GenerateTemplate produces the blank upload workbook for a schema: a data
// sheet whose header row is exactly what the parser expects, one sample row,
// and a reference sheet describing each column. Output is deterministic for
// a given schema.
func GenerateTemplate(schema *Schema) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(dataSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create data sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	for i, col := range schema.Columns {
		headerCell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(dataSheetName, headerCell, col.Header); err != nil {
			return nil, fmt.Errorf("failed to write header %s: %w", col.Header, err)
		}

		sampleCell, err := excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(dataSheetName, sampleCell, col.Sample); err != nil {
			return nil, fmt.Errorf("failed to write sample for %s: %w", col.Header, err)
		}
	}

	if _, err := f.NewSheet(referenceSheetName); err != nil {
		return nil, fmt.Errorf("failed to create reference sheet: %w", err)
	}
	refHeaders := []string{"Column", "Required", "Notes"}
	for i, h := range refHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(referenceSheetName, cell, h); err != nil {
			return nil, err
		}
	}
	for row, col := range schema.Columns {
		required := "No"
		if col.Required {
			required = "Yes"
		}
		values := []interface{}{col.Header, required, col.Note}
		for i, v := range values {
			cell, err := excelize.CoordinatesToCellName(i+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(referenceSheetName, cell, v); err != nil {
				return nil, err
			}
		}
	}

	f.SetActiveSheet(index)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize template: %w", err)
	}
	return buf, nil
}
