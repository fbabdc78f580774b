package review

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/repository"
)

const historySheet = "Analyses"

// historyColumns are the exported analysis fields, in column order.
var historyColumns = []string{
	"id", "timestamp", "workplace_id", "device_id",
	"predicted_class", "predicted_label", "confidence", "status", "missing_items",
	"corrected_class", "corrected_label", "notes",
	"training_candidate", "exported_for_training", "face_count",
	"model_type", "model_version", "scheme",
	"detected_hamer", "detected_schaar", "detected_sleutel", "total_detections",
	"image_path", "created_at",
}

var historyColumnWidths = map[string]float64{
	"timestamp":       20,
	"device_id":       28,
	"predicted_label": 26,
	"missing_items":   24,
	"corrected_label": 26,
	"notes":           40,
	"image_path":      40,
	"created_at":      20,
}

// HistoryExporter writes the full inspection history, newest first.
type HistoryExporter struct {
	analyses repository.AnalysisRepository
}

// NewHistoryExporter creates a history exporter.
func NewHistoryExporter(analyses repository.AnalysisRepository) *HistoryExporter {
	return &HistoryExporter{analyses: analyses}
}

// ExportFileName returns the download name for an export in format ("csv" or "xlsx").
func ExportFileName(format string, now time.Time) string {
	return fmt.Sprintf("analyses_export_%s.%s", now.Format("20060102_150405"), format)
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optionalUint(v *uint) string {
	if v == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*v), 10)
}

func optionalString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// historyRow renders a in historyColumns order.
func historyRow(a *entities.Analysis) []string {
	return []string{
		strconv.FormatUint(uint64(a.ID), 10),
		a.Timestamp.Format(time.RFC3339),
		optionalUint(a.WorkplaceID),
		a.DeviceID,
		strconv.Itoa(a.PredictedClass),
		a.PredictedLabel,
		strconv.FormatFloat(a.Confidence, 'f', 4, 64),
		a.Status,
		strings.Join(a.MissingItemList(), ";"),
		optionalInt(a.CorrectedClass),
		optionalString(a.CorrectedLabel),
		optionalString(a.Notes),
		strconv.FormatBool(a.TrainingCandidate),
		strconv.FormatBool(a.ExportedForTraining),
		strconv.Itoa(a.FaceCount),
		a.ModelType,
		a.ModelVersion,
		a.Scheme,
		strconv.Itoa(a.DetectedHamer),
		strconv.Itoa(a.DetectedSchaar),
		strconv.Itoa(a.DetectedSleutel),
		strconv.Itoa(a.TotalDetections),
		optionalString(a.ImagePath),
		a.CreatedAt.Format(time.RFC3339),
	}
}

// WriteCSV writes every analysis as CSV and returns the number of rows.
func (h *HistoryExporter) WriteCSV(ctx context.Context, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(historyColumns); err != nil {
		return 0, exportIOError(err, "write_csv")
	}

	rows := 0
	err := h.analyses.All(ctx, func(a *entities.Analysis) error {
		rows++
		return cw.Write(historyRow(a))
	})
	if err != nil {
		return rows, exportIOError(err, "write_csv")
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return rows, exportIOError(err, "write_csv")
	}
	return rows, nil
}

// WriteXLSX writes every analysis as a spreadsheet with a styled, frozen
// header row and returns the number of rows.
func (h *HistoryExporter) WriteXLSX(ctx context.Context, w io.Writer) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return 0, exportIOError(err, "write_xlsx")
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return 0, exportIOError(err, "write_xlsx")
	}

	header := make([]any, len(historyColumns))
	for i, name := range historyColumns {
		header[i] = name
		if width, ok := historyColumnWidths[name]; ok {
			col, err := excelize.ColumnNumberToName(i + 1)
			if err != nil {
				return 0, exportIOError(err, "write_xlsx")
			}
			if err := f.SetColWidth(historySheet, col, col, width); err != nil {
				return 0, exportIOError(err, "write_xlsx")
			}
		}
	}
	if err := f.SetSheetRow(historySheet, "A1", &header); err != nil {
		return 0, exportIOError(err, "write_xlsx")
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(historyColumns), 1)
	if err != nil {
		return 0, exportIOError(err, "write_xlsx")
	}
	if err := f.SetCellStyle(historySheet, "A1", lastHeader, headerStyle); err != nil {
		return 0, exportIOError(err, "write_xlsx")
	}
	if err := f.SetPanes(historySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return 0, exportIOError(err, "write_xlsx")
	}

	rows := 0
	err = h.analyses.All(ctx, func(a *entities.Analysis) error {
		rows++
		cell, err := excelize.CoordinatesToCellName(1, rows+1)
		if err != nil {
			return err
		}
		values := historyRow(a)
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = v
		}
		// numeric columns stay numeric in the sheet
		row[0] = a.ID
		row[4] = a.PredictedClass
		row[6] = a.Confidence
		return f.SetSheetRow(historySheet, cell, &row)
	})
	if err != nil {
		return rows, exportIOError(err, "write_xlsx")
	}

	if _, err := f.WriteTo(w); err != nil {
		return rows, exportIOError(err, "write_xlsx")
	}
	return rows, nil
}
