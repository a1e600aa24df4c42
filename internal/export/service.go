package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/freightdocs/bol-pipeline/constants"
	"github.com/freightdocs/bol-pipeline/internal/common"
	"github.com/freightdocs/bol-pipeline/internal/entity"
	"github.com/freightdocs/bol-pipeline/internal/store"
)

// Format selects an export serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a user-supplied format token.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatCSV, FormatXLSX:
		return Format(s), nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q", common.ErrInvalidInput, s)
}

// ContentType returns the MIME type for the serialized bytes.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// Service produces serialized export bytes from triaged documents. It
// reads through the store, expands multi-BOL documents, projects to the
// normalized schema, and encodes.
type Service struct {
	store  store.DocumentStore
	logger *slog.Logger
}

func NewService(st store.DocumentStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, logger: logger}
}

// BulkExport serializes every processed document.
func (s *Service) BulkExport(ctx context.Context, format Format) ([]byte, error) {
	start := time.Now()
	docs, err := s.store.ListByStatus(ctx, constants.StatusProcessed)
	if err != nil {
		return nil, fmt.Errorf("list processed documents: %w", err)
	}
	records := ExpandAll(docs)
	b, err := s.serialize(records, format)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.bulk.ok",
		"format", string(format),
		"documents", len(docs),
		"records", len(records),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b, nil
}

// SingleExport serializes one document's records. The document must
// carry extracted data (processed or awaiting validation).
func (s *Service) SingleExport(ctx context.Context, id uuid.UUID, format Format) ([]byte, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.ExtractedData == nil {
		return nil, fmt.Errorf("%w: document %s has no extracted data", common.ErrInvalidInput, id)
	}
	records := Expand(doc)
	b, err := s.serialize(records, format)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.single.ok", "id", id, "format", string(format), "records", len(records))
	return b, nil
}

func (s *Service) serialize(records []entity.ExportableRecord, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return writeCSV(ProjectFlat(records))
	case FormatXLSX:
		return writeXLSX(ProjectFlat(records))
	default:
		return writeJSON(ProjectNested(records))
	}
}

func writeJSON(nested NestedExport) ([]byte, error) {
	b, err := json.MarshalIndent(nested, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json export: %w", err)
	}
	return b, nil
}

func writeCSV(rows []FlatRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(FlatHeaders); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row.Values()); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func writeXLSX(rows []FlatRow) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Bills of Lading"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	for i, h := range FlatHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for r, row := range rows {
		for c, v := range row.Values() {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	// Widen the identity and address columns
	_ = f.SetColWidth(sheet, "A", "B", 28)
	_ = f.SetColWidth(sheet, "H", "I", 16)
	_ = f.SetColWidth(sheet, "J", "O", 30)
	_ = f.SetColWidth(sheet, "R", "U", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
