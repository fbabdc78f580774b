package review

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestHistoryExport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := setupStore(t)

	createAnalysis(t, store, "ok", 0.91, "")
	newer := createAnalysis(t, store, "nok_hamer_weg", 0.77, "uploads/inspect_2.jpg")

	exp := NewHistoryExporter(store.Analyses)

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		n, err := exp.WriteCSV(ctx, &buf)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		records, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, historyColumns, records[0])
		assert.Len(t, records[1], len(historyColumns))
		assert.Equal(t, "nok_hamer_weg", records[1][5], "newest first")
		assert.Equal(t, "0.7700", records[1][6])
		assert.Equal(t, "uploads/inspect_2.jpg", records[1][22])
		assert.Equal(t, "onbekend", records[2][3])
	})

	t.Run("xlsx", func(t *testing.T) {
		var buf bytes.Buffer
		n, err := exp.WriteXLSX(ctx, &buf)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		f, err := excelize.OpenReader(&buf)
		require.NoError(t, err)
		defer f.Close()

		rows, err := f.GetRows(historySheet)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "id", rows[0][0])
		assert.Equal(t, "predicted_label", rows[0][5])
		assert.Equal(t, "nok_hamer_weg", rows[1][5])

		id, err := f.GetCellValue(historySheet, "A2")
		require.NoError(t, err)
		assert.Equal(t, strconv.FormatUint(uint64(newer.ID), 10), id)
	})
}

func TestExportFileName(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "analyses_export_20250102_030405.csv", ExportFileName("csv", now))
	assert.Equal(t, "analyses_export_20250102_030405.xlsx", ExportFileName("xlsx", now))
}
