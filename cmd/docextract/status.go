package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "show a session's batches and validation counts, or list a project's sessions",
		ArgsUsage: "[session-id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Usage: "list sessions of this project"},
			&cli.BoolFlag{Name: "json", Usage: "print JSON"},
		},
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	if c.NArg() == 0 && c.String("project") == "" {
		return cli.Exit("pass a session id or --project", 2)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	st, err := openStore(c.Context, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer st.Close()

	if c.NArg() == 0 {
		list, err := st.sessions.ListByProject(c.Context, c.String("project"))
		if err != nil {
			return err
		}
		if c.Bool("json") {
			return printJSON(list)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tSTATUS\tRECORDS\tINPUT TOKENS\tOUTPUT TOKENS\tUPDATED")
		for _, s := range list {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n", s.ID, s.Status, s.TotalRecords,
				s.InputTokenCount, s.OutputTokenCount, s.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	}

	id, err := sessionArg(c)
	if err != nil {
		return err
	}
	sess, err := st.sessions.Get(c.Context, id)
	if err != nil {
		return err
	}
	if sess.Batches, err = st.batches.List(c.Context, id); err != nil {
		return err
	}
	if sess.Validations, err = st.validations.ListBySession(c.Context, id); err != nil {
		return err
	}
	if sess.Documents, err = st.documents.List(c.Context, id); err != nil {
		return err
	}
	if c.Bool("json") {
		for i := range sess.Batches {
			sess.Batches[i].ExtractionPrompt = ""
		}
		for i := range sess.Documents {
			sess.Documents[i].ExtractedText = ""
		}
		return printJSON(sess)
	}
	printSession(sess)
	return nil
}

func printSession(s *entity.ExtractionSession) {
	byStatus := map[constants.ValidationStatus]int{}
	for _, v := range s.Validations {
		byStatus[v.ValidationStatus]++
	}
	fmt.Printf("session   %s\nproject   %s\nstatus    %s\nrecords   %d\ntokens    %d in / %d out\n",
		s.ID, s.ProjectID, s.Status, s.TotalRecords, s.InputTokenCount, s.OutputTokenCount)
	fmt.Printf("documents %d\nvalidations %d (verified %d, pending %d, rejected %d)\n\n",
		len(s.Documents), len(s.Validations),
		byStatus[constants.ValidationStatusVerified],
		byStatus[constants.ValidationStatusPending],
		byStatus[constants.ValidationStatusRejected])

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BATCH\tWINDOW\tSTATUS\tVALIDATIONS\tTOKENS\tERROR")
	for _, b := range s.Batches {
		window := "document"
		if b.StartIndex > 0 {
			window = fmt.Sprintf("%d-%d", b.StartIndex, b.EndIndex)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d/%d\t%s\n", b.BatchNumber, window, b.Status, b.ValidationCount,
			b.InputTokenCount, b.OutputTokenCount, b.ErrorKind)
	}
	_ = w.Flush()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
