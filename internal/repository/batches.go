package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

const (
	batchTable      = "session_batch"
	validationTable = "field_validation"
)

var batchColumns = []string{
	"id", "session_id", "batch_number", "start_index", "end_index",
	"extraction_prompt", "ai_response", "input_token_count", "output_token_count",
	"validation_count", "status", "error_kind", "error_message", "created_at",
}

// BatchRepository persists model calls. Batches and their validations are written in
// one transaction so a crash between batches loses at most the in-flight batch.
type BatchRepository interface {
	AppendSucceeded(ctx context.Context, b *entity.SessionBatch, validations []entity.FieldValidation) error
	AppendFailed(ctx context.Context, b *entity.SessionBatch) error
	List(ctx context.Context, sessionID uuid.UUID) ([]entity.SessionBatch, error)
	NextBatchNumber(ctx context.Context, sessionID uuid.UUID) (int, error)
	// ExtractedCount is the resume point: the highest end index of a succeeded batch.
	ExtractedCount(ctx context.Context, sessionID uuid.UUID) (int, error)
}

type batchRepo struct {
	db  *DB
	log *slog.Logger
}

func NewBatchRepository(db *DB, log *slog.Logger) BatchRepository {
	if log == nil {
		log = slog.Default()
	}
	return &batchRepo{db: db, log: log}
}

func (r *batchRepo) AppendSucceeded(ctx context.Context, b *entity.SessionBatch, validations []entity.FieldValidation) error {
	b.Status = constants.BatchStatusSucceeded
	b.ValidationCount = len(validations)
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		if err := r.insertBatch(ctx, tx, b); err != nil {
			return err
		}
		for i := range validations {
			v := &validations[i]
			v.SessionID = b.SessionID
			if err := r.insertValidation(ctx, tx, b.ID, v); err != nil {
				return err
			}
		}
		return r.addTokens(ctx, tx, b)
	})
	if err != nil {
		r.log.Error("batch append failed", "session_id", b.SessionID, "batch_number", b.BatchNumber, "err", err)
		return err
	}
	r.log.Info("batch appended", "session_id", b.SessionID, "batch_number", b.BatchNumber,
		"validations", len(validations), "start_index", b.StartIndex, "end_index", b.EndIndex)
	return nil
}

func (r *batchRepo) AppendFailed(ctx context.Context, b *entity.SessionBatch) error {
	b.Status = constants.BatchStatusFailed
	b.ValidationCount = 0
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		if err := r.insertBatch(ctx, tx, b); err != nil {
			return err
		}
		return r.addTokens(ctx, tx, b)
	})
	if err != nil {
		r.log.Error("failed batch append failed", "session_id", b.SessionID, "batch_number", b.BatchNumber, "err", err)
		return err
	}
	r.log.Warn("batch recorded as failed", "session_id", b.SessionID, "batch_number", b.BatchNumber, "error_kind", b.ErrorKind)
	return nil
}

func (r *batchRepo) insertBatch(ctx context.Context, tx *sql.Tx, b *entity.SessionBatch) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	return r.db.insert(ctx, tx, batchTable,
		column{"id", b.ID},
		column{"session_id", b.SessionID},
		column{"batch_number", b.BatchNumber},
		column{"start_index", b.StartIndex},
		column{"end_index", b.EndIndex},
		column{"extraction_prompt", b.ExtractionPrompt},
		column{"ai_response", b.AIResponse},
		column{"input_token_count", b.InputTokenCount},
		column{"output_token_count", b.OutputTokenCount},
		column{"validation_count", b.ValidationCount},
		column{"status", string(b.Status)},
		column{"error_kind", nullString(b.ErrorKind)},
		column{"error_message", nullString(b.ErrorMessage)},
		column{"created_at", b.CreatedAt},
	)
}

func (r *batchRepo) insertValidation(ctx context.Context, tx *sql.Tx, batchID uuid.UUID, v *entity.FieldValidation) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	flags := "[]"
	if len(v.Flags) > 0 {
		b, err := json.Marshal(v.Flags)
		if err != nil {
			return fmt.Errorf("encode flags: %w", err)
		}
		flags = string(b)
	}
	var value any
	if v.ExtractedValue != nil {
		value = *v.ExtractedValue
	}
	return r.db.insert(ctx, tx, validationTable,
		column{"id", v.ID},
		column{"session_id", v.SessionID},
		column{"batch_id", batchID},
		column{"field_type", string(v.FieldType)},
		column{"field_id", v.FieldID},
		column{"field_name", v.FieldName},
		column{"collection_name", nullString(v.CollectionName)},
		column{"extracted_value", value},
		column{"confidence_score", v.ConfidenceScore},
		column{"ai_reasoning", v.AIReasoning},
		column{"document_source", v.DocumentSource},
		column{"validation_status", string(v.ValidationStatus)},
		column{"record_index", v.RecordIndex},
		column{"batch_number", v.BatchNumber},
		column{"flags", flags},
		column{"created_at", v.CreatedAt},
	)
}

func (r *batchRepo) addTokens(ctx context.Context, tx *sql.Tx, b *entity.SessionBatch) error {
	q, args := r.db.builder().Update(sessionTable).
		Add("input_token_count", b.InputTokenCount).
		Add("output_token_count", b.OutputTokenCount).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", b.SessionID)).
		Query()
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%w: update session tokens: %v", common.ErrDatabase, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", b.SessionID, common.ErrNotFound)
	}
	return nil
}

func (r *batchRepo) List(ctx context.Context, sessionID uuid.UUID) ([]entity.SessionBatch, error) {
	q, args := r.db.builder().Select(batchColumns...).
		From(entsql.Table(batchTable)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("batch_number").
		Query()
	rows, err := r.db.sql().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list batches: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.SessionBatch
	for rows.Next() {
		var (
			b                   entity.SessionBatch
			status              string
			response            sql.NullString
			errKind, errMessage sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.SessionID, &b.BatchNumber, &b.StartIndex, &b.EndIndex,
			&b.ExtractionPrompt, &response, &b.InputTokenCount, &b.OutputTokenCount,
			&b.ValidationCount, &status, &errKind, &errMessage, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan batch: %v", common.ErrDatabase, err)
		}
		b.AIResponse = response.String
		b.Status = constants.BatchStatus(status)
		b.ErrorKind = errKind.String
		b.ErrorMessage = errMessage.String
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate batches: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *batchRepo) NextBatchNumber(ctx context.Context, sessionID uuid.UUID) (int, error) {
	nums, err := r.intColumn(ctx, "batch_number", entsql.EQ("session_id", sessionID))
	if err != nil {
		return 0, err
	}
	return maxOf(nums) + 1, nil
}

func (r *batchRepo) ExtractedCount(ctx context.Context, sessionID uuid.UUID) (int, error) {
	ends, err := r.intColumn(ctx, "end_index", entsql.And(
		entsql.EQ("session_id", sessionID),
		entsql.EQ("status", string(constants.BatchStatusSucceeded)),
	))
	if err != nil {
		return 0, err
	}
	return maxOf(ends), nil
}

func (r *batchRepo) intColumn(ctx context.Context, col string, where *entsql.Predicate) ([]int, error) {
	q, args := r.db.builder().Select(col).
		From(entsql.Table(batchTable)).
		Where(where).
		Query()
	rows, err := r.db.sql().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: select %s: %v", common.ErrDatabase, col, err)
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", common.ErrDatabase, col, err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func maxOf(ns []int) int {
	m := 0
	for _, n := range ns {
		if n > m {
			m = n
		}
	}
	return m
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
