package textextract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docextract/internal/entity"
)

// extractDOCX reads paragraph text from word/document.xml. Tabs and breaks are kept.
func extractDOCX(data []byte) (Extracted, error) {
	res := Extracted{Meta: entity.DocumentMeta{Method: "docx-xml"}}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return res, fmt.Errorf("open docx: %w", err)
	}
	var part *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			part = f
			break
		}
	}
	if part == nil {
		return res, fmt.Errorf("open docx: word/document.xml missing")
	}
	rc, err := part.Open()
	if err != nil {
		return res, fmt.Errorf("open docx body: %w", err)
	}
	defer func() { _ = rc.Close() }()

	var sb strings.Builder
	dec := xml.NewDecoder(rc)
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, fmt.Errorf("parse docx body: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			case "tc":
				sb.WriteByte('\t')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	res.Text = sb.String()
	return res, nil
}

// extractXLSX renders every sheet as pipe-separated rows under a sheet heading and keeps the
// rows as tables.
func (e *Extractor) extractXLSX(data []byte) (Extracted, error) {
	res := Extracted{Meta: entity.DocumentMeta{Method: "xlsx"}}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return res, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			e.logger.Warn("textextract.xlsx.close_error", "error", cerr)
		}
	}()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return res, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		tbl, truncated := e.table(sheet, rows)
		if truncated {
			res.Warnings = append(res.Warnings, fmt.Sprintf("sheet %q truncated to %d rows", sheet, e.cfg.MaxRowsPerSheet))
		}
		res.Meta.Sheets = append(res.Meta.Sheets, sheet)
		res.Tables = append(res.Tables, tbl)
		writeTable(&sb, tbl)
	}
	res.Text = sb.String()
	return res, nil
}

// table drops blank rows, takes the first remaining row as header and applies the row limit.
func (e *Extractor) table(name string, rows [][]string) (Table, bool) {
	tbl := Table{Name: name}
	for i, r := range rows {
		if isBlankRow(r) {
			continue
		}
		if tbl.Header == nil {
			tbl.Header = trimCells(r)
			continue
		}
		if e.cfg.MaxRowsPerSheet > 0 && len(tbl.Rows) >= e.cfg.MaxRowsPerSheet {
			return tbl, true
		}
		tbl.Rows = append(tbl.Rows, trimCells(r))
		tbl.Lines = append(tbl.Lines, i+1)
	}
	return tbl, false
}

func writeTable(sb *strings.Builder, t Table) {
	if sb.Len() > 0 {
		sb.WriteString("\n\n")
	}
	sb.WriteString("## Sheet: " + t.Name + "\n")
	if t.Header != nil {
		sb.WriteString(strings.Join(t.Header, " | "))
		sb.WriteByte('\n')
	}
	for _, r := range t.Rows {
		sb.WriteString(strings.Join(r, " | "))
		sb.WriteByte('\n')
	}
}

func isBlankRow(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimCells(r []string) []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
