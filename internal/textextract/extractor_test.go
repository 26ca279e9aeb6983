package textextract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
)

type stubRunner struct {
	out  string
	err  error
	args []string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.args = append([]string{name}, args...)
	if s.err != nil {
		return nil, []byte("Syntax Error: Couldn't find trailer dictionary"), s.err
	}
	return []byte(s.out), nil, nil
}

func TestExtractText_PDFUsesPdftotext(t *testing.T) {
	r := &stubRunner{out: "INVOICE   No. 42\n\fPage two\n"}
	e := NewExtractor(Config{Pdftotext: "/usr/bin/pdftotext"}, nil, WithRunner(r))

	res, err := e.ExtractText(context.Background(), Source{Name: "invoice.pdf", Data: []byte("%PDF-1.4\nnot really a pdf")})
	require.NoError(t, err)

	assert.Equal(t, constants.PDF, res.Format)
	assert.Equal(t, "/usr/bin/pdftotext", r.args[0])
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}, r.args[1:6])
	assert.Equal(t, "-", r.args[len(r.args)-1])
	assert.Equal(t, "INVOICE  No. 42\n\fPage two", res.Text)
	// pdfcpu cannot read the stub, so pages fall back to form feeds
	assert.Equal(t, 2, res.Meta.Pages)
	assert.NotEmpty(t, res.Warnings)
}

func TestExtractText_PDFRunnerError(t *testing.T) {
	e := NewExtractor(Config{}, nil, WithRunner(&stubRunner{err: errors.New("exit status 1")}))
	_, err := e.ExtractText(context.Background(), Source{Name: "broken.pdf", Data: []byte("%PDF-1.7")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailer dictionary")
}

func TestExtractText_CSV(t *testing.T) {
	data := "\xef\xbb\xbfitem;qty;price\n\nWidget;2;9.50\nGadget;1;20\n"
	e := NewExtractor(Config{}, nil)
	res, err := e.ExtractText(context.Background(), Source{Name: "lines.csv", Data: []byte(data)})
	require.NoError(t, err)

	assert.Equal(t, constants.CSV, res.Format)
	require.Len(t, res.Tables, 1)
	assert.Equal(t, "lines", res.Tables[0].Name)
	assert.Equal(t, []string{"item", "qty", "price"}, res.Tables[0].Header)
	assert.Equal(t, [][]string{{"Widget", "2", "9.50"}, {"Gadget", "1", "20"}}, res.Tables[0].Rows)
	assert.Equal(t, "## Sheet: lines\nitem | qty | price\nWidget | 2 | 9.50\nGadget | 1 | 20", res.Text)
}

func TestExtractText_CSVRowLimit(t *testing.T) {
	e := NewExtractor(Config{MaxRowsPerSheet: 1}, nil)
	res, err := e.ExtractText(context.Background(), Source{Name: "rows.tsv", Data: []byte("a\tb\n1\t2\n3\t4\n")})
	require.NoError(t, err)
	assert.Len(t, res.Tables[0].Rows, 1)
	assert.Len(t, res.Warnings, 1)
}

func TestExtractText_XLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Invoice", "Amount"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"INV-1", 120.5}))
	_, err := f.NewSheet("Vendors")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Vendors", "A1", &[]any{"Name"}))
	require.NoError(t, f.SetSheetRow("Vendors", "A2", &[]any{"Acme"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	e := NewExtractor(Config{}, nil)
	res, err := e.ExtractText(context.Background(), Source{Name: "book.xlsx", Data: buf.Bytes()})
	require.NoError(t, err)

	assert.Equal(t, constants.XLSX, res.Format)
	assert.Equal(t, []string{"Sheet1", "Vendors"}, res.Meta.Sheets)
	require.Len(t, res.Tables, 2)
	assert.Equal(t, [][]string{{"INV-1", "120.5"}}, res.Tables[0].Rows)
	assert.Equal(t, []int{2}, res.Tables[0].Lines)
	assert.Contains(t, res.Text, "## Sheet: Sheet1\nInvoice | Amount\nINV-1 | 120.5")
	assert.Contains(t, res.Text, "## Sheet: Vendors\nName\nAcme")
}

func TestExtractText_XLSXBlankRowsKeepSourceLines(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Party", "Role"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"Acme Corp", "Customer"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A6", &[]any{"Beta LLC", "Supplier"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	res, err := NewExtractor(Config{}, nil).ExtractText(context.Background(), Source{Name: "parties.xlsx", Data: buf.Bytes()})
	require.NoError(t, err)

	require.Len(t, res.Tables, 1)
	assert.Equal(t, []string{"Party", "Role"}, res.Tables[0].Header)
	assert.Equal(t, []int{3, 6}, res.Tables[0].Lines)
	assert.Contains(t, res.Text, "Acme Corp | Customer")
}

func docx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, _ = w.Write([]byte(`<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`))
	w, err = zw.Create("word/document.xml")
	require.NoError(t, err)
	_, _ = w.Write([]byte(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractText_DOCX(t *testing.T) {
	body := `<w:p><w:r><w:t>Vendor:</w:t><w:tab/><w:t>Acme Corp</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t xml:space="preserve">Total </w:t><w:t>100</w:t></w:r></w:p>`
	e := NewExtractor(Config{}, nil)
	res, err := e.ExtractText(context.Background(), Source{Name: "contract.docx", Data: docx(t, body)})
	require.NoError(t, err)
	assert.Equal(t, constants.DOCX, res.Format)
	assert.Equal(t, "Vendor:  Acme Corp\nTotal 100", res.Text)
}

func TestExtractText_HTML(t *testing.T) {
	page := `<html><head><title>Statement</title><style>p{}</style></head><body>
<h1>March</h1><p>Balance   due</p><script>var x = 1;</script>
<table><tr><th>Item</th><th>Cost</th></tr><tr><td>Rent</td><td>900</td></tr></table></body></html>`
	e := NewExtractor(Config{}, nil)
	res, err := e.ExtractText(context.Background(), Source{Name: "statement.html", Data: []byte(page)})
	require.NoError(t, err)
	assert.Equal(t, "Statement\nMarch\nBalance due\nItem | Cost\nRent | 900", res.Text)
}

func TestExtractText_PlainTextAndUnsupported(t *testing.T) {
	e := NewExtractor(Config{}, nil)
	res, err := e.ExtractText(context.Background(), Source{Name: "notes.md", Data: []byte("a,b,c\r\n1,2,3\r\n\r\n\r\n\r\nend")})
	require.NoError(t, err)
	assert.Equal(t, constants.TXT, res.Format)
	assert.Equal(t, "a,b,c\n1,2,3\n\nend", res.Text)

	_, err = e.ExtractText(context.Background(), Source{Name: "photo.bin", Data: []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestExtractText_SniffsMissingExtension(t *testing.T) {
	r := &stubRunner{out: "text"}
	e := NewExtractor(Config{}, nil, WithRunner(r))
	res, err := e.ExtractText(context.Background(), Source{Name: "upload", Data: []byte("%PDF-1.5\n...")})
	require.NoError(t, err)
	assert.Equal(t, constants.PDF, res.Format)
	assert.Equal(t, "application/pdf", res.MIMEType)
}

func TestNormalize(t *testing.T) {
	in := "Total:\t\t 42  \r\n-----\r\nA     B\n\n\n\nC\x00"
	assert.Equal(t, "Total:  42\n\nA  B\n\nC", Normalize(in))
	assert.Equal(t, Normalize(in), Normalize(Normalize(in)))
}

func TestLanguageDetection(t *testing.T) {
	e := NewExtractor(Config{DetectLanguage: true}, nil)
	text := "Die Rechnung wurde am ersten Montag des Monats an den Lieferanten geschickt und bezahlt."
	res, err := e.ExtractText(context.Background(), Source{Name: "brief.txt", Data: []byte(text)})
	require.NoError(t, err)
	assert.Equal(t, "de", res.Meta.Language)
	assert.True(t, strings.HasPrefix(res.Text, "Die Rechnung"))
}
