package textextract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/docextract/internal/entity"
)

func (e *Extractor) extractCSV(name string, data []byte) (Extracted, error) {
	res := Extracted{Meta: entity.DocumentMeta{Method: "csv"}}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(name, data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return res, fmt.Errorf("parse csv: %w", err)
	}

	sheet := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	tbl, truncated := e.table(sheet, rows)
	if truncated {
		res.Warnings = append(res.Warnings, fmt.Sprintf("csv truncated to %d rows", e.cfg.MaxRowsPerSheet))
	}
	res.Tables = []Table{tbl}
	res.Meta.Sheets = []string{sheet}

	var sb strings.Builder
	writeTable(&sb, tbl)
	res.Text = sb.String()
	return res, nil
}

// sniffDelimiter picks tab for .tsv files, otherwise the most frequent of , ; | and tab on the
// first line.
func sniffDelimiter(name string, data []byte) rune {
	if strings.EqualFold(filepath.Ext(name), ".tsv") {
		return '\t'
	}
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}
