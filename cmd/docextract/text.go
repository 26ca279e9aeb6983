package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/docextract/internal/textextract"
)

func textCommand() *cli.Command {
	return &cli.Command{
		Name:      "text",
		Usage:     "print the normalized text extracted from one document",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "language", Usage: "detect the document language"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one file", 2)
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger := slog.Default()
			x := textextract.NewExtractor(textextract.Config{
				Pdftotext:      cfg.Extraction.Pdftotext,
				DetectLanguage: cfg.Extraction.DetectLanguage || c.Bool("language"),
			}, logger)

			start := time.Now()
			res, err := x.ExtractText(c.Context, textextract.Source{Path: c.Args().First()})
			if err != nil {
				logger.Error("text extraction failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
				return err
			}
			logger.Info("text extraction OK",
				"format", res.Format,
				"method", res.Meta.Method,
				"pages", res.Meta.Pages,
				"sheets", len(res.Meta.Sheets),
				"language", res.Meta.Language,
				"bytes", len(res.Text),
				"warnings", res.Warnings,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			fmt.Println(res.Text)
			return nil
		},
	}
}
