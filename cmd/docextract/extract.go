package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"entgo.io/ent/dialect"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/docextract/internal/async"
	"github.com/joseph-ayodele/docextract/internal/batch"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/corpus"
	"github.com/joseph-ayodele/docextract/internal/llm/provider"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
	"github.com/joseph-ayodele/docextract/internal/project"
	"github.com/joseph-ayodele/docextract/internal/recovery"
	"github.com/joseph-ayodele/docextract/internal/source"
	"github.com/joseph-ayodele/docextract/internal/textextract"
)

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "run extraction for one or more projects over a set of documents",
		ArgsUsage: "<file|dir|gs://bucket/prefix>...",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "project", Aliases: []string{"p"}, Usage: "project id; repeat to run several sessions concurrently"},
			&cli.StringFlag{Name: "session", Usage: "resume a failed or cancelled session"},
			&cli.IntFlag{Name: "records", Usage: "record count when the documents carry no table rows"},
			&cli.BoolFlag{Name: "salvage", Usage: "keep complete entries from truncated responses"},
			&cli.BoolFlag{Name: "skip-hidden", Value: true, Usage: "skip dot files when scanning directories"},
		},
		Action: extractAction,
	}
}

func extractAction(c *cli.Context) error {
	projects := c.StringSlice("project")
	var sessionID uuid.UUID
	if s := c.String("session"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return cli.Exit(fmt.Sprintf("invalid --session %q: %v", s, err), 2)
		}
		sessionID = id
		if len(projects) > 1 {
			return cli.Exit("--session resumes a single session; pass at most one --project", 2)
		}
	} else if len(projects) == 0 {
		return cli.Exit("at least one --project is required", 2)
	}
	locations := c.Args().Slice()
	if sessionID == uuid.Nil && len(locations) == 0 {
		return cli.Exit("no document locations given", 2)
	}

	ctx := c.Context
	rt, err := newRuntime(c, slog.Default())
	if err != nil {
		return err
	}
	defer rt.Close()

	reqs := requests(projects, sessionID, locations, c.Int("records"))
	queue := rt.queue(ctx, len(reqs))
	for _, r := range reqs {
		if err := queue.Enqueue(ctx, async.Job{Request: r}); err != nil {
			queue.Shutdown(context.WithoutCancel(ctx))
			return err
		}
	}
	queue.Shutdown(context.WithoutCancel(ctx))

	var results []async.Result
	for r := range queue.Results() {
		results = append(results, r)
	}
	printResults(results)

	var failed []error
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Err)
		}
	}
	if len(failed) > 0 {
		return cli.Exit(errors.Join(failed...).Error(), 1)
	}
	return nil
}

func requests(projects []string, sessionID uuid.UUID, locations []string, records int) []pipeline.Request {
	if sessionID != uuid.Nil {
		r := pipeline.Request{SessionID: sessionID, Locations: locations, RecordCount: records}
		if len(projects) == 1 {
			r.ProjectID = projects[0]
		}
		return []pipeline.Request{r}
	}
	out := make([]pipeline.Request, 0, len(projects))
	for _, p := range projects {
		out = append(out, pipeline.Request{ProjectID: p, Locations: locations, RecordCount: records})
	}
	return out
}

func printResults(results []async.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tSESSION\tSTATE\tBATCHES\tRECORDS\tVALIDATIONS\tERROR")
	for _, r := range results {
		proj, session := r.Job.Request.ProjectID, "-"
		if r.Result.Session != nil {
			proj = r.Result.Session.ProjectID
			session = r.Result.Session.ID.String()
		}
		out := r.Result.Outcome
		errText := ""
		if r.Err != nil {
			errText = firstLine(r.Err.Error())
			if k := common.KindOf(r.Err); k != "" {
				errText = fmt.Sprintf("%s (batch %d): %s", k, out.FailedBatch, errText)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d/%d\t%d\t%s\n",
			proj, session, out.State, len(out.Batches), out.Extracted, out.Total, out.UsableValidations, errText)
	}
	_ = w.Flush()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// runtime is the wired extraction stack shared by extract and watch.
type runtime struct {
	cfg    *common.Config
	logger *slog.Logger
	store  *store
	loader *source.Loader
	proc   *pipeline.Processor
	closer func() error
}

func newRuntime(c *cli.Context, logger *slog.Logger) (*runtime, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if c.IsSet("salvage") {
		cfg.Batch.SalvagePartial = c.Bool("salvage")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx := c.Context

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if st.db.Dialect() == dialect.SQLite {
		if err := st.db.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
	}

	completer, closeLLM, err := provider.New(ctx, cfg.LLM, cfg.Storage, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	skipHidden := true
	if c.IsSet("skip-hidden") {
		skipHidden = c.Bool("skip-hidden")
	}
	loader := source.NewLoader(source.Options{SkipHidden: skipHidden}, cfg.Storage, logger)
	extractor := textextract.NewExtractor(textextract.Config{
		Pdftotext:      cfg.Extraction.Pdftotext,
		DetectLanguage: cfg.Extraction.DetectLanguage,
	}, logger)
	controller := batch.New(completer, st.sessions, st.batches, st.validations,
		batch.WithMaxRecords(cfg.Batch.MaxRecords),
		batch.WithCallTimeout(cfg.LLM.CallTimeout),
		batch.WithRecoverer(recovery.New(recovery.WithSalvage(cfg.Batch.SalvagePartial), recovery.WithLogger(logger))),
		batch.WithLogger(logger),
	)
	proc := pipeline.NewProcessor(logger,
		project.NewFileStore(c.String("projects-dir"), logger),
		loader,
		corpus.NewStore(extractor, cfg.Extraction.Workers, logger),
		st.sessions,
		st.documents,
		controller,
	)
	return &runtime{cfg: cfg, logger: logger, store: st, loader: loader, proc: proc, closer: closeLLM}, nil
}

// queue starts a session queue sized for at least n jobs.
func (rt *runtime) queue(ctx context.Context, n int) *async.SessionQueue {
	return async.NewSessionQueue(ctx, rt.proc,
		async.WithWorkers(rt.cfg.Batch.SessionWorkers),
		async.WithQueueSize(max(rt.cfg.Batch.QueueSize, n)),
		async.WithLogger(rt.logger),
	)
}

func (rt *runtime) Close() {
	if err := rt.closer(); err != nil {
		rt.logger.Warn("llm client close failed", "err", err)
	}
	if err := rt.loader.Close(); err != nil {
		rt.logger.Warn("source loader close failed", "err", err)
	}
	rt.store.Close()
}
