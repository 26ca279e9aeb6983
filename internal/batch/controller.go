package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/mapper"
	"github.com/joseph-ayodele/docextract/internal/prompt"
	"github.com/joseph-ayodele/docextract/internal/recovery"
	"github.com/joseph-ayodele/docextract/internal/repository"
)

// State of one controller run.
type State string

const (
	StateIdle       State = "idle"
	StateBatching   State = "batching"
	StateContinuing State = "continuing"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
	// StateCancelled means the caller stopped the run between batches. The session keeps its
	// partial progress and stays in_progress.
	StateCancelled State = "cancelled"
)

// Job is one extraction run over a session.
type Job struct {
	Session   *entity.ExtractionSession
	Project   *entity.Project
	Documents []entity.Document
	// Records is the candidate record pool. Record i (1-based) must be Records[i-1]. An empty
	// pool is extracted in a single document-level batch.
	Records []entity.Record
}

// Outcome reports what a run did. On failure FailedBatch, RawText and Err describe the failed
// batch and UsableValidations counts what earlier batches already persisted.
type Outcome struct {
	State             State
	Batches           []entity.SessionBatch
	Extracted         int
	Total             int
	FailedBatch       int
	RawText           string
	UsableValidations int
	Anomalies         []mapper.Anomaly
	Err               error
}

// Controller drives batched extraction for one session at a time. It keeps no per-session
// state between runs; progress is read back from the repositories.
type Controller struct {
	completer   llm.Completer
	sessions    repository.SessionRepository
	batches     repository.BatchRepository
	validations repository.ValidationRepository
	assembler   *prompt.Assembler
	recoverer   *recovery.Recoverer
	maxRecords  int
	callTimeout time.Duration
	log         *slog.Logger
}

type Option func(*Controller)

// WithMaxRecords sets the per-call record cap for AI tools.
func WithMaxRecords(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxRecords = n
		}
	}
}

// WithCallTimeout bounds each model call.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

func WithRecoverer(r *recovery.Recoverer) Option {
	return func(c *Controller) { c.recoverer = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

func New(completer llm.Completer, sessions repository.SessionRepository, batches repository.BatchRepository,
	validations repository.ValidationRepository, opts ...Option) *Controller {
	c := &Controller{
		completer:   completer,
		sessions:    sessions,
		batches:     batches,
		validations: validations,
		maxRecords:  constants.DefaultMaxBatchRecords,
		callTimeout: 120 * time.Second,
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.recoverer == nil {
		c.recoverer = recovery.New(recovery.WithLogger(c.log))
	}
	c.assembler = prompt.NewAssembler(c.log)
	return c
}

// NextWindow returns the 1-based inclusive record window for the next batch. AI tools are capped
// at maxRecords per call; function tools take everything remaining. ok is false when nothing
// remains.
func NextWindow(total, extracted int, tool constants.ToolKind, maxRecords int) (start, end int, ok bool) {
	remaining := total - extracted
	if remaining <= 0 {
		return 0, 0, false
	}
	processing := remaining
	if tool != constants.ToolKindFunction && maxRecords > 0 && processing > maxRecords {
		processing = maxRecords
	}
	return extracted + 1, extracted + processing, true
}

// Run extracts until the record pool is exhausted, a batch fails, or ctx is cancelled. It resumes
// from the highest end index of the session's succeeded batches, so re-running after a failure
// never repeats finished work. A failed batch is returned both in Outcome.Err and as the error.
func (c *Controller) Run(ctx context.Context, job Job) (Outcome, error) {
	if job.Session == nil || job.Project == nil {
		return Outcome{State: StateIdle}, common.NewAppError("BATCH_ERROR", "session and project are required", common.ErrInvalidInput)
	}
	sessionID := job.Session.ID
	total := len(job.Records)
	out := Outcome{State: StateIdle, Total: total}
	log := c.log.With("session_id", sessionID, "project_id", job.Project.ID)

	ctx = common.WithSessionID(ctx, sessionID.String())
	// Persistence must not be torn by a caller cancelling while a batch is in flight.
	persistCtx := context.WithoutCancel(ctx)

	extracted, err := c.batches.ExtractedCount(persistCtx, sessionID)
	if err != nil {
		return out, err
	}
	if total == 0 {
		done, err := c.hasSucceededBatch(persistCtx, sessionID)
		if err != nil {
			return out, err
		}
		if done {
			return c.complete(persistCtx, log, sessionID, out)
		}
	}
	out.Extracted = extracted
	if job.Session.Status != constants.SessionStatusInProgress {
		if err := c.sessions.SetStatus(persistCtx, sessionID, constants.SessionStatusInProgress); err != nil {
			return out, err
		}
		job.Session.Status = constants.SessionStatusInProgress
	}

	m := mapper.New(job.Project, log)
	tool := job.Project.Tool
	if tool == "" {
		tool = job.Session.Tool
	}

	for {
		start, end, more := NextWindow(total, out.Extracted, tool, c.maxRecords)
		if total > 0 && !more {
			return c.complete(persistCtx, log, sessionID, out)
		}
		if err := ctx.Err(); err != nil {
			log.Info("batch.cancelled", "extracted", out.Extracted, "total", total)
			out.State = StateCancelled
			return out, nil
		}
		out.State = StateBatching

		b, anomalies, xerr := c.runBatch(ctx, persistCtx, log, job, m, start, end)
		if b == nil {
			return out, xerr
		}
		out.Batches = append(out.Batches, *b)
		out.Anomalies = append(out.Anomalies, anomalies...)
		if xerr != nil {
			return c.fail(persistCtx, log, out, b, xerr)
		}

		if total == 0 {
			return c.complete(persistCtx, log, sessionID, out)
		}
		out.Extracted = end
		if out.Extracted < total {
			out.State = StateContinuing
			log.Info("batch.continue", "extracted", out.Extracted, "total", total)
		}
	}
}

// runBatch assembles, calls, recovers, maps and persists one batch. A nil batch means an
// infrastructure error (the returned error); a non-nil batch with an error is a failed batch
// that has not been persisted yet.
func (c *Controller) runBatch(ctx, persistCtx context.Context, log *slog.Logger, job Job, m *mapper.Mapper,
	start, end int) (*entity.SessionBatch, []mapper.Anomaly, error) {
	sessionID := job.Session.ID
	number, err := c.batches.NextBatchNumber(persistCtx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	skip, err := c.validations.VerifiedFieldIDs(persistCtx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	bundle := prompt.Bundle{
		Documents:          job.Documents,
		SchemaFields:       job.Project.SchemaFields,
		Collections:        job.Project.Collections,
		KnowledgeDocuments: job.Project.KnowledgeDocuments,
		ExtractionRules:    job.Project.ExtractionRules,
		SkipFieldIDs:       skip,
	}
	if start > 0 {
		bundle.Window = &prompt.RecordWindow{Start: start, End: end, Total: len(job.Records), Records: job.Records[start-1 : end]}
	}
	text, err := c.assembler.Assemble(bundle)
	if err != nil {
		return nil, nil, fmt.Errorf("assemble prompt for batch %d: %w", number, err)
	}

	b := &entity.SessionBatch{
		ID:               uuid.New(),
		SessionID:        sessionID,
		BatchNumber:      number,
		StartIndex:       start,
		EndIndex:         end,
		ExtractionPrompt: text,
	}
	log = log.With("batch_number", number, "start_index", start, "end_index", end)
	log.Info("batch.start", "prompt_len", len(text), "skipped_fields", len(skip))
	began := time.Now()

	// The call is bounded by its own timeout, never by the caller's cancellation.
	callCtx, cancel := context.WithTimeout(persistCtx, c.callTimeout)
	completion, err := c.completer.Complete(callCtx, text)
	cancel()
	b.AIResponse = completion.Text
	b.InputTokenCount = completion.InputTokens
	b.OutputTokenCount = completion.OutputTokens
	if err != nil {
		return b, nil, llm.Classify(err)
	}
	if completion.Truncated {
		log.Warn("batch.response_truncated", "output_tokens", completion.OutputTokens)
	}

	payload, err := c.recoverer.Recover(completion.Text)
	if err != nil {
		return b, nil, err
	}
	var w mapper.Window
	if bundle.Window != nil {
		w = mapper.Window{Offset: start - 1, Size: end - start + 1}
	}
	res, err := m.MapWindow(persistCtx, payload.FieldValidations, number, w)
	if err != nil {
		return nil, nil, err
	}
	if err := c.batches.AppendSucceeded(persistCtx, b, res.Validations); err != nil {
		return nil, nil, err
	}
	log.Info("batch.ok",
		"validations", len(res.Validations),
		"anomalies", len(res.Anomalies),
		"salvaged", payload.Salvaged,
		"input_tokens", b.InputTokenCount,
		"output_tokens", b.OutputTokenCount,
		"elapsed_ms", time.Since(began).Milliseconds(),
	)
	return b, res.Anomalies, nil
}

func (c *Controller) fail(ctx context.Context, log *slog.Logger, out Outcome, b *entity.SessionBatch, cause error) (Outcome, error) {
	var xe *common.ExtractionError
	if !errors.As(cause, &xe) {
		xe = common.NewExtractionError(common.KindModelError, "batch failed", cause)
	}
	xe.Batch = b.BatchNumber
	b.ErrorKind = string(xe.Kind)
	b.ErrorMessage = xe.Error()

	if err := c.batches.AppendFailed(ctx, b); err != nil {
		return out, err
	}
	out.Batches[len(out.Batches)-1] = *b
	if err := c.sessions.SetStatus(ctx, b.SessionID, constants.SessionStatusFailed); err != nil {
		return out, err
	}
	usable, err := c.validations.ListBySession(ctx, b.SessionID)
	if err != nil {
		return out, err
	}

	out.State = StateFailed
	out.FailedBatch = b.BatchNumber
	out.RawText = b.AIResponse
	if xe.Candidate != "" {
		out.RawText = xe.Candidate
	}
	out.UsableValidations = len(usable)
	out.Err = xe
	log.Error("batch.failed",
		"batch_number", b.BatchNumber,
		"error_kind", xe.Kind,
		"usable_validations", out.UsableValidations,
		"err", xe,
	)
	return out, xe
}

func (c *Controller) complete(ctx context.Context, log *slog.Logger, sessionID uuid.UUID, out Outcome) (Outcome, error) {
	if err := c.sessions.SetStatus(ctx, sessionID, constants.SessionStatusComplete); err != nil {
		return out, err
	}
	usable, err := c.validations.ListBySession(ctx, sessionID)
	if err != nil {
		return out, err
	}
	out.State = StateComplete
	out.UsableValidations = len(usable)
	log.Info("batch.complete",
		"batches", len(out.Batches),
		"extracted", out.Extracted,
		"total", out.Total,
		"validations", out.UsableValidations,
	)
	return out, nil
}

func (c *Controller) hasSucceededBatch(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	list, err := c.batches.List(ctx, sessionID)
	if err != nil {
		return false, err
	}
	for _, b := range list {
		if b.Status == constants.BatchStatusSucceeded {
			return true, nil
		}
	}
	return false, nil
}
