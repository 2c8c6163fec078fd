package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/assessment-runner/internal/buffer"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/xuri/excelize/v2"
)

type ExportFormat string

const (
	ExportXLSX ExportFormat = "xlsx"
	ExportCSV  ExportFormat = "csv"
)

var exportHeaders = []string{"Section", "Question ID", "Question", "Type", "Answer", "Stored Value"}

// ExportService writes the saved responses of one attempt to a spreadsheet.
type ExportService interface {
	ExportResponses(ctx context.Context, api Backend, attemptID models.ID, content *Content, format ExportFormat) ([]byte, error)
}

type exportService struct {
	recorder *SessionRecorder
	logger   *slog.Logger
}

func NewExportService(recorder *SessionRecorder, logger *slog.Logger) ExportService {
	return &exportService{
		recorder: recorder,
		logger:   logger,
	}
}

type exportRow struct {
	section  int
	question int
	cells    []string
}

// ExportResponses reads the responses of attemptID from the backend.
// content, when known, labels each row with its section and question
// title and decodes answers by display type.
func (s *exportService) ExportResponses(ctx context.Context, api Backend, attemptID models.ID, content *Content, format ExportFormat) ([]byte, error) {
	responses, err := api.ListResponses(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses of attempt %s: %w", attemptID, err)
	}

	rows := make([]exportRow, 0, len(responses))
	for _, r := range responses {
		rows = append(rows, buildExportRow(content, r))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].section != rows[j].section {
			return rows[i].section < rows[j].section
		}
		return rows[i].question < rows[j].question
	})

	var out []byte
	switch format {
	case ExportCSV:
		out, err = writeCSV(rows)
	default:
		out, err = writeXLSX(rows)
	}
	if err != nil {
		return nil, err
	}

	s.recorder.RecordExport(ctx, attemptID, len(rows), string(format))
	s.logger.InfoContext(ctx, "Exported attempt responses",
		"attempt_id", attemptID,
		"rows", len(rows),
		"format", format)
	return out, nil
}

func buildExportRow(content *Content, r models.Response) exportRow {
	row := exportRow{section: 1 << 30, question: 1 << 30}
	sectionTitle, questionTitle := "", ""
	t := models.TypeText
	if content != nil {
		if si, qi, q, ok := content.Locate(r.QuestionID); ok {
			row.section, row.question = si, qi
			sectionTitle = content.Sections[si].Section.Title
			questionTitle = firstNonBlank(q.Title, q.Text)
			t = q.DisplayType()
		}
	}
	row.cells = []string{
		sectionTitle,
		r.QuestionID.String(),
		questionTitle,
		string(t),
		readableAnswer(buffer.Decode(t, r.AnswerText)),
		r.AnswerText,
	}
	return row
}

func readableAnswer(v models.AnswerValue) string {
	switch a := v.(type) {
	case models.TextAnswer:
		return string(a)
	case models.ListAnswer:
		return strings.Join(a, ", ")
	case models.IndexAnswer:
		parts := make([]string, len(a))
		for i, idx := range a {
			parts[i] = strconv.Itoa(idx)
		}
		return strings.Join(parts, ", ")
	case models.MatchAnswer:
		keys := make([]string, 0, len(a))
		for k := range a {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + " = " + a[k]
		}
		return strings.Join(parts, "; ")
	case models.MediaAnswer:
		return a.Ref
	default:
		return ""
	}
}

func writeXLSX(rows []exportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheetName := "Responses"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for rowIndex, row := range rows {
		for colIndex, value := range row.cells {
			cell, _ := excelize.CoordinatesToCellName(colIndex+1, rowIndex+2)
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", rowIndex+2, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeCSV(rows []exportRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row.cells); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write CSV: %w", err)
	}
	return buf.Bytes(), nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
