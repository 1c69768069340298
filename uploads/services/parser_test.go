package services

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, headers []string, rows [][]string) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue("Sheet1", cell, h))
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, v))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func questionHeaders() []string {
	schema := QuestionSchema()
	headers := make([]string, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		headers = append(headers, col.Header)
	}
	return headers
}

func sampleRow() []string {
	schema := QuestionSchema()
	row := make([]string, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		row = append(row, col.Sample)
	}
	return row
}

func TestParseWorkbook_ReadsRowsInOrder(t *testing.T) {
	headers := questionHeaders()
	buf := buildWorkbook(t, headers, [][]string{sampleRow(), sampleRow()})

	records, err := ParseWorkbook(buf, QuestionSchema())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 1, records[0].RowNumber)
	assert.Equal(t, 2, records[1].RowNumber)
	assert.Equal(t, "What is the boiling point of water at sea level?", records[0].Get("question_text"))
	assert.Equal(t, "B", records[0].Get("correct_answer"))
}

func TestParseWorkbook_HeaderOrderAndCaseInsensitive(t *testing.T) {
	// Shuffle columns and vary header casing and separators.
	schema := QuestionSchema()
	headers := questionHeaders()
	row := sampleRow()
	headers[0], headers[5] = headers[5], headers[0]
	row[0], row[5] = row[5], row[0]
	headers[1] = "Answer Option A"
	headers[2] = "ANSWER-OPTION-B"

	buf := buildWorkbook(t, headers, [][]string{row})

	records, err := ParseWorkbook(buf, schema)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "What is the boiling point of water at sea level?", records[0].Get("question_text"))
	assert.Equal(t, "90 degrees Celsius", records[0].Get("answer_option_a"))
	assert.Equal(t, "100 degrees Celsius", records[0].Get("answer_option_b"))
}

func TestParseWorkbook_SkipsBlankRows(t *testing.T) {
	headers := questionHeaders()
	blank := make([]string, len(headers))
	buf := buildWorkbook(t, headers, [][]string{sampleRow(), blank, sampleRow(), blank, blank})

	records, err := ParseWorkbook(buf, QuestionSchema())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].RowNumber)
	assert.Equal(t, 2, records[1].RowNumber)

	// Sheet rows keep their spreadsheet positions: the header is row 1
	// and the blank row 3 leaves a gap.
	assert.Equal(t, 2, records[0].SheetRow)
	assert.Equal(t, 4, records[1].SheetRow)
}

func TestParseWorkbook_MissingRequiredColumns(t *testing.T) {
	buf := buildWorkbook(t, []string{"question_text", "correct_answer"}, [][]string{{"q", "A"}})

	_, err := ParseWorkbook(buf, QuestionSchema())
	var missingErr *MissingColumnsError
	require.ErrorAs(t, err, &missingErr)
	assert.Contains(t, missingErr.Columns, "answer_option_a")
	assert.Contains(t, missingErr.Columns, "difficulty")
	assert.NotContains(t, missingErr.Columns, "question_text")
}

func TestParseWorkbook_EmptyFile(t *testing.T) {
	buf := buildWorkbook(t, questionHeaders(), nil)

	_, err := ParseWorkbook(buf, QuestionSchema())
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestParseWorkbook_UnreadableFile(t *testing.T) {
	_, err := ParseWorkbook(strings.NewReader("this is not a spreadsheet"), QuestionSchema())
	assert.ErrorIs(t, err, ErrUnreadableFile)
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "question_text", NormalizeHeader("  Question Text "))
	assert.Equal(t, "answer_option_a", NormalizeHeader("ANSWER-OPTION-A"))
	assert.Equal(t, "class", NormalizeHeader("Class"))
}
