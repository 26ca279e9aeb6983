package textextract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/docextract/internal/entity"
)

func (e *Extractor) extractPDF(ctx context.Context, src Source, data []byte) (Extracted, error) {
	res := Extracted{Meta: entity.DocumentMeta{Method: "pdf-text"}}

	path := src.Path
	if src.Data != nil || path == "" {
		tmp, err := os.CreateTemp("", "docextract-*.pdf")
		if err != nil {
			return res, err
		}
		defer func() { _ = os.Remove(tmp.Name()) }()
		if _, err := tmp.Write(data); err != nil {
			_ = tmp.Close()
			return res, err
		}
		if err := tmp.Close(); err != nil {
			return res, err
		}
		path = tmp.Name()
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return res, fmt.Errorf("pdftotext: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	res.Text = string(out)

	pages, perr := pageCount(data)
	if perr != nil {
		// pdftotext separates pages with a form feed
		pages = 1 + strings.Count(strings.TrimRight(res.Text, "\f\n"), "\f")
		res.Warnings = append(res.Warnings, "page count from text: "+perr.Error())
	}
	res.Meta.Pages = pages
	if strings.TrimSpace(res.Text) == "" {
		res.Warnings = append(res.Warnings, "no text layer; scanned PDFs need OCR before upload")
	}
	return res, nil
}

func pageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), conf)
}
