package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/docextract/internal/export"
)

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "write a session's validations and batch log to an XLSX workbook",
		ArgsUsage: "<session-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output path (default <session-id>.xlsx)"},
		},
		Action: func(c *cli.Context) error {
			id, err := sessionArg(c)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger := slog.Default()
			st, err := openStore(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			b, err := export.NewService(st.sessions, st.batches, st.validations, logger).SessionXLSX(c.Context, id)
			if err != nil {
				return err
			}
			out := c.String("out")
			if out == "" {
				out = id.String() + ".xlsx"
			}
			if err := os.WriteFile(out, b, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Println(out)
			return nil
		},
	}
}

func sessionArg(c *cli.Context) (uuid.UUID, error) {
	if c.NArg() != 1 {
		return uuid.Nil, cli.Exit("expected exactly one session id", 2)
	}
	id, err := uuid.Parse(c.Args().First())
	if err != nil {
		return uuid.Nil, cli.Exit(fmt.Sprintf("invalid session id %q: %v", c.Args().First(), err), 2)
	}
	return id, nil
}
