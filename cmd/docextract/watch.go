package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/docextract/internal/async"
	"github.com/joseph-ayodele/docextract/internal/source"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "start a session for every settled drop of new documents in the watched directories",
		ArgsUsage: "<dir>...",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "project", Aliases: []string{"p"}, Usage: "project id; repeat to run each drop through several projects", Required: true},
			&cli.DurationFlag{Name: "debounce", Value: 2 * time.Second, Usage: "quiet period before a drop is processed"},
			&cli.BoolFlag{Name: "initial-scan", Usage: "process documents already present"},
			&cli.IntFlag{Name: "records", Usage: "record count when the documents carry no table rows"},
			&cli.BoolFlag{Name: "salvage", Usage: "keep complete entries from truncated responses"},
		},
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("no directories given", 2)
	}
	ctx := c.Context
	logger := slog.Default()

	rt, err := newRuntime(c, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	drops, errs, err := source.Watch(ctx, source.WatchConfig{
		Roots:       c.Args().Slice(),
		InitialScan: c.Bool("initial-scan"),
		Debounce:    c.Duration("debounce"),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	queue := rt.queue(ctx, 0)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range queue.Results() {
			printResults([]async.Result{r})
		}
	}()

	for drops != nil || errs != nil {
		select {
		case paths, ok := <-drops:
			if !ok {
				drops = nil
				continue
			}
			for _, r := range requests(c.StringSlice("project"), uuid.Nil, paths, c.Int("records")) {
				if err := queue.Enqueue(ctx, async.Job{Request: r}); err != nil {
					logger.Warn("watch.enqueue_failed", "err", err)
				}
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watch.error", "err", err)
		}
	}

	queue.Shutdown(context.WithoutCancel(ctx))
	<-done
	return nil
}
