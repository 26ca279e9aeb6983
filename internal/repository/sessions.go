package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

const sessionTable = "extraction_session"

var sessionColumns = []string{
	"id", "project_id", "status", "tool", "total_records",
	"input_token_count", "output_token_count", "created_at", "updated_at",
}

type SessionRepository interface {
	Create(ctx context.Context, s *entity.ExtractionSession) error
	Get(ctx context.Context, id uuid.UUID) (*entity.ExtractionSession, error)
	SetStatus(ctx context.Context, id uuid.UUID, status constants.SessionStatus) error
	ListByProject(ctx context.Context, projectID string) ([]entity.ExtractionSession, error)
}

type sessionRepo struct {
	db  *DB
	log *slog.Logger
}

func NewSessionRepository(db *DB, log *slog.Logger) SessionRepository {
	if log == nil {
		log = slog.Default()
	}
	return &sessionRepo{db: db, log: log}
}

func (r *sessionRepo) Create(ctx context.Context, s *entity.ExtractionSession) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	if s.Status == "" {
		s.Status = constants.SessionStatusInProgress
	}
	err := r.db.insert(ctx, r.db.sql(), sessionTable,
		column{"id", s.ID},
		column{"project_id", s.ProjectID},
		column{"status", string(s.Status)},
		column{"tool", string(s.Tool)},
		column{"total_records", s.TotalRecords},
		column{"input_token_count", s.InputTokenCount},
		column{"output_token_count", s.OutputTokenCount},
		column{"created_at", s.CreatedAt},
		column{"updated_at", s.UpdatedAt},
	)
	if err != nil {
		r.log.Error("session create failed", "project_id", s.ProjectID, "err", err)
		return err
	}
	r.log.Info("session created", "session_id", s.ID, "project_id", s.ProjectID, "tool", s.Tool, "total_records", s.TotalRecords)
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, id uuid.UUID) (*entity.ExtractionSession, error) {
	q, args := r.db.builder().Select(sessionColumns...).
		From(entsql.Table(sessionTable)).
		Where(entsql.EQ("id", id)).
		Query()
	rows, err := r.db.sql().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: get session: %v", common.ErrDatabase, err)
	}
	defer rows.Close()
	list, err := scanSessions(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("session %s: %w", id, common.ErrNotFound)
	}
	return &list[0], nil
}

func (r *sessionRepo) SetStatus(ctx context.Context, id uuid.UUID, status constants.SessionStatus) error {
	if err := validate(sessionTable, "status", string(status)); err != nil {
		return err
	}
	q, args := r.db.builder().Update(sessionTable).
		Set("status", string(status)).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := r.db.sql().ExecContext(ctx, q, args...)
	if err != nil {
		r.log.Error("session status update failed", "session_id", id, "status", status, "err", err)
		return fmt.Errorf("%w: set session status: %v", common.ErrDatabase, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, common.ErrNotFound)
	}
	r.log.Info("session status updated", "session_id", id, "status", status)
	return nil
}

func (r *sessionRepo) ListByProject(ctx context.Context, projectID string) ([]entity.ExtractionSession, error) {
	q, args := r.db.builder().Select(sessionColumns...).
		From(entsql.Table(sessionTable)).
		Where(entsql.EQ("project_id", projectID)).
		OrderBy(entsql.Desc("created_at")).
		Query()
	rows, err := r.db.sql().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %v", common.ErrDatabase, err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

func scanSessions(rows *sql.Rows) ([]entity.ExtractionSession, error) {
	var out []entity.ExtractionSession
	for rows.Next() {
		var (
			s            entity.ExtractionSession
			status, tool string
		)
		if err := rows.Scan(&s.ID, &s.ProjectID, &status, &tool, &s.TotalRecords,
			&s.InputTokenCount, &s.OutputTokenCount, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan session: %v", common.ErrDatabase, err)
		}
		s.Status = constants.SessionStatus(status)
		s.Tool = constants.ToolKind(tool)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: iterate sessions: %v", common.ErrDatabase, err)
	}
	return out, nil
}
