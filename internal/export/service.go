package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/repository"
)

const (
	validationsSheet = "Validations"
	batchesSheet     = "Batches"
)

// Service produces XLSX bytes for a session's validations and batch log.
type Service struct {
	sessions    repository.SessionRepository
	batches     repository.BatchRepository
	validations repository.ValidationRepository
	logger      *slog.Logger
}

func NewService(sessions repository.SessionRepository, batches repository.BatchRepository,
	validations repository.ValidationRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{sessions: sessions, batches: batches, validations: validations, logger: logger}
}

// SessionXLSX returns a workbook with one row per validation and a second sheet with one row per
// batch. Failed batches are included so a reviewer can see where extraction stopped.
func (s *Service) SessionXLSX(ctx context.Context, sessionID uuid.UUID) ([]byte, error) {
	start := time.Now()

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	vals, err := s.validations.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query validations: %w", err)
	}
	batches, err := s.batches.List(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// NewFile starts with Sheet1; rename it so the validations sheet is first and active.
	if err := f.SetSheetName("Sheet1", validationsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(batchesSheet); err != nil {
		return nil, err
	}
	idx, _ := f.GetSheetIndex(validationsSheet)
	f.SetActiveSheet(idx)

	if err := writeRow(f, validationsSheet, 1, []any{
		"Batch", "Record", "Kind", "Collection", "Field ID", "Field",
		"Value", "Confidence", "Status", "Source", "Flags", "Reasoning",
	}); err != nil {
		return nil, err
	}
	for i, v := range vals {
		value := ""
		if v.ExtractedValue != nil {
			value = *v.ExtractedValue
		}
		if err := writeRow(f, validationsSheet, i+2, []any{
			v.BatchNumber,
			v.RecordIndex,
			string(v.FieldType),
			v.CollectionName,
			v.FieldID,
			v.FieldName,
			value,
			v.ConfidenceScore,
			string(v.ValidationStatus),
			v.DocumentSource,
			strings.Join(v.Flags, ", "),
			truncate(v.AIReasoning, 300),
		}); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(validationsSheet, "A", "C", 10)
	_ = f.SetColWidth(validationsSheet, "D", "F", 22)
	_ = f.SetColWidth(validationsSheet, "G", "G", 40)
	_ = f.SetColWidth(validationsSheet, "J", "J", 28)
	_ = f.SetColWidth(validationsSheet, "L", "L", 60)
	_ = f.AutoFilter(validationsSheet, fmt.Sprintf("A1:L%d", len(vals)+1), nil)

	if err := writeBatches(f, batches); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"session_id", sessionID.String(),
		"project_id", sess.ProjectID,
		"rows", len(vals),
		"batches", len(batches),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeBatches(f *excelize.File, batches []entity.SessionBatch) error {
	if err := writeRow(f, batchesSheet, 1, []any{
		"Batch", "Start", "End", "Status", "Validations", "Input tokens", "Output tokens", "Error kind", "Error",
	}); err != nil {
		return err
	}
	for i, b := range batches {
		if err := writeRow(f, batchesSheet, i+2, []any{
			b.BatchNumber,
			b.StartIndex,
			b.EndIndex,
			string(b.Status),
			b.ValidationCount,
			b.InputTokenCount,
			b.OutputTokenCount,
			b.ErrorKind,
			truncate(b.ErrorMessage, 300),
		}); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(batchesSheet, "I", "I", 60)
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("xlsx row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("xlsx %s row %d: %w", sheet, row, err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
