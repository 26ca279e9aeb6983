package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/internal/batch"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/corpus"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/project"
	"github.com/joseph-ayodele/docextract/internal/repository"
	"github.com/joseph-ayodele/docextract/internal/source"
	"github.com/joseph-ayodele/docextract/internal/textextract"
)

// SourceLoader resolves locations (files, directories, gs:// URIs) to document bytes.
type SourceLoader interface {
	Load(ctx context.Context, locations []string) ([]textextract.Source, []source.Skipped, source.Stats, error)
}

type CorpusBuilder interface {
	Build(ctx context.Context, sources []textextract.Source) (*corpus.Corpus, error)
}

// BatchRunner is satisfied by *batch.Controller.
type BatchRunner interface {
	Run(ctx context.Context, job batch.Job) (batch.Outcome, error)
}

// Request starts a new session (SessionID unset) or resumes one.
type Request struct {
	ProjectID string
	Locations []string
	// RecordCount overrides the record pool with n synthetic records when the documents carry no
	// table rows. Zero means a single document-level batch.
	RecordCount int
	SessionID   uuid.UUID
}

type Result struct {
	Session   *entity.ExtractionSession
	Documents []entity.Document
	Skipped   []source.Skipped
	Outcome   batch.Outcome
}

// Processor coordinates the corpus stage (load, extract, persist documents) then the batch stage.
type Processor struct {
	logger    *slog.Logger
	projects  project.Store
	loader    SourceLoader
	corpus    CorpusBuilder
	sessions  repository.SessionRepository
	documents repository.DocumentRepository
	batches   BatchRunner
}

func NewProcessor(
	logger *slog.Logger,
	projects project.Store,
	loader SourceLoader,
	builder CorpusBuilder,
	sessions repository.SessionRepository,
	documents repository.DocumentRepository,
	batches BatchRunner,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:    logger,
		projects:  projects,
		loader:    loader,
		corpus:    builder,
		sessions:  sessions,
		documents: documents,
		batches:   batches,
	}
}

// Run prepares the session and drives batched extraction to completion, failure or cancellation.
// The returned Result is populated as far as the run got, even when err is non-nil.
func (p *Processor) Run(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	var res Result
	logger := common.LoggerFromContext(ctx, p.logger)

	if req.SessionID == uuid.Nil && req.ProjectID == "" {
		return res, common.NewAppError("INVALID_INPUT", "project id or session id is required", common.ErrInvalidInput)
	}

	job, skipped, err := p.prepare(ctx, req)
	res.Skipped = skipped
	if err != nil {
		logger.Error("processor.prepare.failed", "project_id", req.ProjectID, "session_id", req.SessionID, "err", err)
		return res, err
	}
	res.Session = job.Session
	res.Documents = job.Documents

	log := logger.With("session_id", job.Session.ID, "project_id", job.Project.ID)
	log.Info("processor.corpus.ok",
		"documents", len(job.Documents),
		"records", len(job.Records),
		"skipped", len(skipped),
	)

	out, err := p.batches.Run(ctx, job)
	res.Outcome = out
	if err != nil {
		log.Error("processor.extract.failed", "state", out.State, "failed_batch", out.FailedBatch, "err", err)
		return res, err
	}
	log.Info("processor.extract.ok",
		"state", out.State,
		"batches", len(out.Batches),
		"validations", out.UsableValidations,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (p *Processor) prepare(ctx context.Context, req Request) (batch.Job, []source.Skipped, error) {
	if req.SessionID != uuid.Nil {
		return p.resume(ctx, req)
	}

	proj, err := p.projects.Load(ctx, req.ProjectID)
	if err != nil {
		return batch.Job{}, nil, fmt.Errorf("load project: %w", err)
	}
	c, skipped, err := p.buildCorpus(ctx, req.Locations)
	if err != nil {
		return batch.Job{}, skipped, err
	}
	records := recordPool(c, req.RecordCount)

	sess := &entity.ExtractionSession{
		ProjectID:    proj.ID,
		Tool:         proj.Tool,
		TotalRecords: len(records),
	}
	if err := p.sessions.Create(ctx, sess); err != nil {
		return batch.Job{}, skipped, fmt.Errorf("create session: %w", err)
	}
	if err := p.documents.AddAll(ctx, sess.ID, c.Documents); err != nil {
		return batch.Job{}, skipped, fmt.Errorf("store documents: %w", err)
	}
	return batch.Job{Session: sess, Project: proj, Documents: c.Documents, Records: records}, skipped, nil
}

// resume reloads a session and its stored documents. Records are rebuilt from the locations when
// given, otherwise the session's record count is covered by synthetic records.
func (p *Processor) resume(ctx context.Context, req Request) (batch.Job, []source.Skipped, error) {
	sess, err := p.sessions.Get(ctx, req.SessionID)
	if err != nil {
		return batch.Job{}, nil, fmt.Errorf("load session: %w", err)
	}
	if req.ProjectID != "" && req.ProjectID != sess.ProjectID {
		return batch.Job{}, nil, common.NewAppError("INVALID_INPUT",
			fmt.Sprintf("session %s belongs to project %s", sess.ID, sess.ProjectID), common.ErrInvalidInput)
	}
	proj, err := p.projects.Load(ctx, sess.ProjectID)
	if err != nil {
		return batch.Job{}, nil, fmt.Errorf("load project: %w", err)
	}
	docs, err := p.documents.List(ctx, sess.ID)
	if err != nil {
		return batch.Job{}, nil, fmt.Errorf("load documents: %w", err)
	}

	var (
		records []entity.Record
		skipped []source.Skipped
	)
	if len(req.Locations) > 0 {
		c, sk, err := p.buildCorpus(ctx, req.Locations)
		skipped = sk
		if err != nil {
			return batch.Job{}, skipped, err
		}
		records = recordPool(c, req.RecordCount)
	} else {
		records = corpus.SyntheticRecords(sess.TotalRecords)
	}
	if len(records) != sess.TotalRecords {
		return batch.Job{}, skipped, common.NewAppError("INVALID_INPUT",
			fmt.Sprintf("session %s has %d records, resume produced %d", sess.ID, sess.TotalRecords, len(records)),
			common.ErrInvalidInput)
	}
	p.logger.Info("processor.resume", "session_id", sess.ID, "status", sess.Status, "documents", len(docs))
	return batch.Job{Session: sess, Project: proj, Documents: docs, Records: records}, skipped, nil
}

func (p *Processor) buildCorpus(ctx context.Context, locations []string) (*corpus.Corpus, []source.Skipped, error) {
	srcs, skipped, stats, err := p.loader.Load(ctx, locations)
	if err != nil {
		return nil, skipped, fmt.Errorf("load sources: %w", err)
	}
	p.logger.Debug("processor.sources",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"duplicates", stats.Duplicates,
		"failed", stats.Failed,
	)
	if len(srcs) == 0 {
		return nil, skipped, common.NewAppError("INVALID_INPUT", "no documents to extract", common.ErrInvalidInput)
	}
	c, err := p.corpus.Build(ctx, srcs)
	if err != nil {
		return nil, skipped, fmt.Errorf("build corpus: %w", err)
	}
	return c, skipped, nil
}

func recordPool(c *corpus.Corpus, override int) []entity.Record {
	if len(c.Records) > 0 {
		return c.Records
	}
	return corpus.SyntheticRecords(override)
}
