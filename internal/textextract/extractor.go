package textextract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

type Config struct {
	Pdftotext      string // binary name or absolute path; if empty -> "pdftotext"
	DetectLanguage bool
	// MaxRowsPerSheet bounds rows read from one sheet or CSV file; 0 = no limit.
	MaxRowsPerSheet int
}

// Source is one document to extract. Data wins over Path when both are set.
type Source struct {
	Name string
	Path string
	Data []byte
}

// Table is a sheet or CSV file. Header is the first non-empty row. Lines holds the 1-based
// source row number of each entry in Rows.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
	Lines  []int
}

type Extracted struct {
	Text     string
	Format   string
	MIMEType string
	Meta     entity.DocumentMeta
	// Tables is set for spreadsheet and CSV documents.
	Tables   []Table
	Duration time.Duration
	Warnings []string
}

type Extractor struct {
	cfg      Config
	runner   Runner
	detector *languageDetector
	logger   *slog.Logger
}

type Option func(*Extractor)

// WithRunner replaces the external command runner.
func WithRunner(r Runner) Option {
	return func(e *Extractor) { e.runner = r }
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	e := &Extractor{cfg: cfg, runner: execRunner{log: logger}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	if cfg.DetectLanguage {
		e.detector = newLanguageDetector()
	}
	return e
}

// ExtractText picks a strategy from the content type, falling back to the file extension.
func (e *Extractor) ExtractText(ctx context.Context, src Source) (Extracted, error) {
	start := time.Now()
	data := src.Data
	if data == nil {
		b, err := os.ReadFile(src.Path)
		if err != nil {
			return Extracted{}, fmt.Errorf("read %s: %w", src.Path, err)
		}
		data = b
	}
	name := src.Name
	if name == "" {
		name = filepath.Base(src.Path)
	}

	format, mime := detectFormat(name, data)
	log := e.logger.With("document", name, "format", format)
	log.Debug("textextract.start", "mime", mime, "bytes", len(data))

	var (
		res Extracted
		err error
	)
	switch format {
	case constants.PDF:
		res, err = e.extractPDF(ctx, src, data)
	case constants.DOCX:
		res, err = extractDOCX(data)
	case constants.XLSX:
		res, err = e.extractXLSX(data)
	case constants.CSV:
		res, err = e.extractCSV(name, data)
	case constants.HTML:
		res, err = extractHTML(data)
	case constants.TXT:
		res = Extracted{Text: string(data), Meta: entity.DocumentMeta{Method: "plain"}}
	default:
		log.Error("textextract.unsupported", "mime", mime)
		return Extracted{MIMEType: mime}, common.NewAppError("UNSUPPORTED_FORMAT",
			fmt.Sprintf("cannot extract text from %s (%s)", name, mime), common.ErrInvalidInput)
	}
	res.Format = format
	res.MIMEType = mime
	res.Duration = time.Since(start)
	if err != nil {
		log.Error("textextract.error", "error", err, "elapsed_ms", res.Duration.Milliseconds())
		return res, err
	}

	res.Text = Normalize(res.Text)
	if e.detector != nil {
		res.Meta.Language = e.detector.detect(res.Text)
	}
	log.Info("textextract.ok",
		"chars", len(res.Text),
		"pages", res.Meta.Pages,
		"sheets", len(res.Meta.Sheets),
		"warnings", len(res.Warnings),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// detectFormat sniffs the content and falls back to the extension. A text sniff (plain, CSV,
// HTML) on a known extension defers to the extension; binary sniffs win.
func detectFormat(name string, data []byte) (format, mime string) {
	byExt := constants.MapExtToFormat(filepath.Ext(name))
	mime = mimetype.Detect(data).String()
	sniffed := constants.MapMIMEToFormat(mime)

	switch {
	case sniffed == "":
		return byExt, mime
	case byExt == "":
		return sniffed, mime
	case isTextFormat(sniffed) && byExt != constants.PDF:
		return byExt, mime
	default:
		return sniffed, mime
	}
}

func isTextFormat(f string) bool {
	return f == constants.TXT || f == constants.CSV || f == constants.HTML
}
