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

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

const documentTable = "document"

type DocumentRepository interface {
	// AddAll stores the session corpus in order. Documents are immutable once stored.
	AddAll(ctx context.Context, sessionID uuid.UUID, docs []entity.Document) error
	List(ctx context.Context, sessionID uuid.UUID) ([]entity.Document, error)
}

type documentRepo struct {
	db  *DB
	log *slog.Logger
}

func NewDocumentRepository(db *DB, log *slog.Logger) DocumentRepository {
	if log == nil {
		log = slog.Default()
	}
	return &documentRepo{db: db, log: log}
}

func (r *documentRepo) AddAll(ctx context.Context, sessionID uuid.UUID, docs []entity.Document) error {
	now := time.Now().UTC()
	err := r.db.inTx(ctx, func(tx *sql.Tx) error {
		for i := range docs {
			d := &docs[i]
			if d.ID == uuid.Nil {
				d.ID = uuid.New()
			}
			meta, err := json.Marshal(d.Meta)
			if err != nil {
				return fmt.Errorf("encode document meta: %w", err)
			}
			if err := r.db.insert(ctx, tx, documentTable,
				column{"id", d.ID},
				column{"session_id", sessionID},
				column{"position", i},
				column{"name", d.Name},
				column{"mime_type", d.MIMEType},
				column{"format", d.Format},
				column{"size_bytes", d.SizeBytes},
				column{"extracted_text", d.ExtractedText},
				column{"meta", string(meta)},
				column{"error", nullString(d.Error)},
				column{"created_at", now},
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.Error("documents store failed", "session_id", sessionID, "err", err)
		return err
	}
	r.log.Info("documents stored", "session_id", sessionID, "count", len(docs))
	return nil
}

func (r *documentRepo) List(ctx context.Context, sessionID uuid.UUID) ([]entity.Document, error) {
	q, args := r.db.builder().Select("id", "name", "mime_type", "format", "size_bytes", "extracted_text", "meta", "error").
		From(entsql.Table(documentTable)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("position").
		Query()
	rows, err := r.db.sql().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list documents: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.Document
	for rows.Next() {
		var (
			d                        entity.Document
			mime, format, text, meta sql.NullString
			docErr                   sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Name, &mime, &format, &d.SizeBytes, &text, &meta, &docErr); err != nil {
			return nil, fmt.Errorf("%w: scan document: %v", common.ErrDatabase, err)
		}
		d.MIMEType = mime.String
		d.Format = format.String
		d.ExtractedText = text.String
		d.Error = docErr.String
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &d.Meta); err != nil {
				r.log.Warn("document meta undecodable", "document_id", d.ID, "err", err)
			}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate documents: %v", common.ErrDatabase, err)
	}
	return out, nil
}
