package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/docextract/internal/common"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "docextract",
		Usage: "extract schema fields from document sets with a language model",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file; environment variables override it", EnvVars: []string{"DOCEXTRACT_CONFIG"}},
			&cli.StringFlag{Name: "projects-dir", Value: "projects", Usage: "directory of <project>.yaml files", EnvVars: []string{"DOCEXTRACT_PROJECTS_DIR"}},
			&cli.StringFlag{Name: "log-format", Value: "json", Usage: "json or text"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn or error"},
		},
		Before: func(c *cli.Context) error {
			slog.SetDefault(newLogger(c.String("log-format"), c.String("log-level")))
			return nil
		},
		Commands: []*cli.Command{
			extractCommand(),
			watchCommand(),
			textCommand(),
			exportCommand(),
			statusCommand(),
			{
				Name:   "migrate",
				Usage:  "create or update the database schema",
				Action: migrateAction,
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("docextract failed", "err", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func loadConfig(c *cli.Context) (*common.Config, error) {
	return common.LoadConfigFile(c.String("config"))
}
