package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

var validationColumns = []string{
	"id", "session_id", "field_type", "field_id", "field_name", "collection_name",
	"extracted_value", "confidence_score", "ai_reasoning", "document_source",
	"validation_status", "record_index", "batch_number", "flags", "created_at",
}

// ValidationRepository reads validations. Writes go through BatchRepository.
type ValidationRepository interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]entity.FieldValidation, error)
	// VerifiedFieldIDs returns schema field ids that already have a verified validation.
	VerifiedFieldIDs(ctx context.Context, sessionID uuid.UUID) (map[string]struct{}, error)
}

type validationRepo struct {
	db  *DB
	log *slog.Logger
}

func NewValidationRepository(db *DB, log *slog.Logger) ValidationRepository {
	if log == nil {
		log = slog.Default()
	}
	return &validationRepo{db: db, log: log}
}

func (r *validationRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]entity.FieldValidation, error) {
	q, args := r.db.builder().Select(validationColumns...).
		From(entsql.Table(validationTable)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("batch_number", "record_index", "field_id").
		Query()
	rows, err := r.db.sql().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list validations: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.FieldValidation
	for rows.Next() {
		var (
			v                        entity.FieldValidation
			fieldType, status        string
			collection, value, flags sql.NullString
			reasoning, source        sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.SessionID, &fieldType, &v.FieldID, &v.FieldName, &collection,
			&value, &v.ConfidenceScore, &reasoning, &source,
			&status, &v.RecordIndex, &v.BatchNumber, &flags, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan validation: %v", common.ErrDatabase, err)
		}
		v.FieldType = constants.FieldKind(fieldType)
		v.ValidationStatus = constants.ValidationStatus(status)
		v.CollectionName = collection.String
		if value.Valid {
			s := value.String
			v.ExtractedValue = &s
		}
		v.AIReasoning = reasoning.String
		v.DocumentSource = source.String
		if flags.Valid && flags.String != "" {
			if err := json.Unmarshal([]byte(flags.String), &v.Flags); err != nil {
				r.log.Warn("validation flags undecodable", "validation_id", v.ID, "err", err)
			}
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate validations: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *validationRepo) VerifiedFieldIDs(ctx context.Context, sessionID uuid.UUID) (map[string]struct{}, error) {
	q, args := r.db.builder().Select("field_id").
		From(entsql.Table(validationTable)).
		Where(entsql.And(
			entsql.EQ("session_id", sessionID),
			entsql.EQ("field_type", string(constants.FieldKindSchemaField)),
			entsql.EQ("validation_status", string(constants.ValidationStatusVerified)),
		)).
		Distinct().
		Query()
	rows, err := r.db.sql().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: verified field ids: %v", common.ErrDatabase, err)
	}
	defer rows.Close()
	out := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan field id: %v", common.ErrDatabase, err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}
