package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGenerateTemplate_HeadersMatchSchema(t *testing.T) {
	schema := QuestionSchema()
	buf, err := GenerateTemplate(schema)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(dataSheetName)
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	require.Len(t, rows[0], len(schema.Columns))
	for i, col := range schema.Columns {
		assert.Equal(t, col.Header, rows[0][i])
	}
}

func TestGenerateTemplate_RoundTripsThroughParser(t *testing.T) {
	// The binding contract: a template with its sample row filled in must
	// parse cleanly against the same schema.
	schema := QuestionSchema()
	buf, err := GenerateTemplate(schema)
	require.NoError(t, err)

	records, err := ParseWorkbook(buf, schema)
	require.NoError(t, err)
	require.Len(t, records, 1)

	for _, col := range schema.Columns {
		assert.Equal(t, col.Sample, records[0].Get(col.Name), "column %s", col.Name)
	}
}

func TestGenerateTemplate_IncludesReferenceSheet(t *testing.T) {
	buf, err := GenerateTemplate(QuestionSchema())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Contains(t, f.GetSheetList(), referenceSheetName)

	rows, err := f.GetRows(referenceSheetName)
	require.NoError(t, err)
	require.Greater(t, len(rows), 1)
	assert.Equal(t, []string{"Column", "Required", "Notes"}, rows[0][:3])
}

func TestGenerateTemplate_Deterministic(t *testing.T) {
	first, err := GenerateTemplate(QuestionSchema())
	require.NoError(t, err)
	second, err := GenerateTemplate(QuestionSchema())
	require.NoError(t, err)

	parse := func(buf *bytes.Buffer) [][]string {
		f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows(dataSheetName)
		require.NoError(t, err)
		return rows
	}

	assert.Equal(t, parse(first), parse(second))
}
