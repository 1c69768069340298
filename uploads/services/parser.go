package services

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrUnreadableFile = errors.New("file is corrupt or not a spreadsheet")
	ErrEmptyFile      = errors.New("file contains no data rows")
)

// MissingColumnsError reports required columns absent from the header row.
// It is fatal for the whole file, not a per-row error.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}

// RowRecord is one data row keyed by normalized column name. RowNumber is
// the 1-based position among data rows and is what outcomes are keyed by;
// SheetRow is the row's position in the spreadsheet itself (header is row
// 1), which can run ahead of RowNumber when blank rows were dropped.
type RowRecord struct {
	RowNumber int
	SheetRow  int
	Values    map[string]string
}

// Get returns the trimmed cell value for a column, empty when absent.
func (r RowRecord) Get(name string) string {
	return strings.TrimSpace(r.Values[name])
}

// NormalizeHeader lowercases a header cell and converts spaces and dashes to
// underscores, so "Question Text", "question-text" and "question_text" all
// match the same column.
func NormalizeHeader(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return h
}

// ParseWorkbook reads spreadsheet bytes into ordered row records. Columns
// may appear in any order; headers are matched by normalized name. Blank
// rows are dropped and not counted.
func ParseWorkbook(src io.Reader, schema *Schema) ([]RowRecord, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrUnreadableFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	// Map each schema column to its position in the header row.
	colIndex := make(map[string]int)
	for i, header := range rows[0] {
		name := NormalizeHeader(header)
		if _, ok := schema.Column(name); ok {
			if _, seen := colIndex[name]; !seen {
				colIndex[name] = i
			}
		}
	}

	var missing []string
	for _, name := range schema.RequiredColumns() {
		if _, ok := colIndex[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingColumnsError{Columns: missing}
	}

	var records []RowRecord
	for i, row := range rows[1:] {
		values := make(map[string]string, len(colIndex))
		blank := true
		for name, idx := range colIndex {
			var cell string
			if idx < len(row) {
				cell = strings.TrimSpace(row[idx])
			}
			values[name] = cell
			if cell != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		records = append(records, RowRecord{
			RowNumber: len(records) + 1,
			SheetRow:  i + 2,
			Values:    values,
		})
	}

	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	return records, nil
}
