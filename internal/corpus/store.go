package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/textextract"
)

// maxRecordText bounds the row text shown next to a record label in prompts.
const maxRecordText = 300

// TextExtractor is the text extraction service the store reads documents through.
type TextExtractor interface {
	ExtractText(ctx context.Context, src textextract.Source) (textextract.Extracted, error)
}

// Corpus is the ordered document set of one session plus its candidate record pool.
type Corpus struct {
	Documents []entity.Document
	Records   []entity.Record
	// Failed counts documents whose text could not be extracted.
	Failed int
}

// Store turns document sources into a Corpus.
type Store struct {
	extractor TextExtractor
	workers   int
	log       *slog.Logger
}

func NewStore(extractor TextExtractor, workers int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 4
	}
	return &Store{extractor: extractor, workers: workers, log: logger}
}

type extracted struct {
	doc    entity.Document
	tables []textextract.Table
}

// Build extracts every source concurrently and returns the documents in source order. A
// document that fails extraction keeps its slot with Error set; only ctx cancellation fails
// the build.
func (s *Store) Build(ctx context.Context, sources []textextract.Source) (*Corpus, error) {
	start := time.Now()
	slots := make([]extracted, len(sources))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, src := range sources {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			slots[i] = s.extractOne(gCtx, src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := &Corpus{Documents: make([]entity.Document, 0, len(slots))}
	for _, sl := range slots {
		if sl.doc.Error != "" {
			c.Failed++
		}
		c.Documents = append(c.Documents, sl.doc)
		c.Records = appendRecords(c.Records, sl.doc.Name, sl.tables)
	}
	s.log.Info("corpus.built",
		"documents", len(c.Documents),
		"failed", c.Failed,
		"records", len(c.Records),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return c, nil
}

func (s *Store) extractOne(ctx context.Context, src textextract.Source) extracted {
	name := src.Name
	if name == "" {
		name = filepath.Base(src.Path)
	}
	doc := entity.Document{ID: uuid.New(), Name: name, SizeBytes: int64(len(src.Data))}
	if src.Data == nil && src.Path != "" {
		if fi, err := os.Stat(src.Path); err == nil {
			doc.SizeBytes = fi.Size()
		}
	}
	if doc.Format = constants.MapExtToFormat(filepath.Ext(name)); doc.Format == "" {
		doc.Format = constants.TXT
	}

	res, err := s.extractor.ExtractText(ctx, src)
	if res.MIMEType != "" {
		doc.MIMEType = res.MIMEType
	}
	if res.Format != "" {
		doc.Format = res.Format
	}
	if err != nil {
		s.log.Warn("corpus.document_failed", "document", name, "error", err)
		doc.Error = err.Error()
		return extracted{doc: doc}
	}
	doc.ExtractedText = textextract.Normalize(res.Text)
	doc.Meta = res.Meta
	return extracted{doc: doc, tables: res.Tables}
}

// appendRecords numbers every table row after the records already in the pool.
func appendRecords(records []entity.Record, docName string, tables []textextract.Table) []entity.Record {
	for _, t := range tables {
		for i, row := range t.Rows {
			line := i + 2
			if i < len(t.Lines) {
				line = t.Lines[i]
			}
			records = append(records, entity.Record{
				Index: len(records) + 1,
				Label: fmt.Sprintf("%s / %s row %d", docName, t.Name, line),
				Text:  rowText(t.Header, row),
			})
		}
	}
	return records
}

func rowText(header, row []string) string {
	parts := make([]string, 0, len(row))
	for i, v := range row {
		if v == "" {
			continue
		}
		if i < len(header) && header[i] != "" {
			parts = append(parts, header[i]+": "+v)
		} else {
			parts = append(parts, v)
		}
	}
	text := strings.Join(parts, "; ")
	if r := []rune(text); len(r) > maxRecordText {
		text = string(r[:maxRecordText]) + "…"
	}
	return text
}

// SyntheticRecords builds a label-only pool of n records.
func SyntheticRecords(n int) []entity.Record {
	out := make([]entity.Record, n)
	for i := range out {
		out[i] = entity.Record{Index: i + 1, Label: fmt.Sprintf("record %d", i+1)}
	}
	return out
}
