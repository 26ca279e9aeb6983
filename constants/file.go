package constants

import "strings"

// Document formats understood by the text extraction service.
const (
	PDF  = "PDF"
	DOCX = "DOCX"
	XLSX = "XLSX"
	CSV  = "CSV"
	TXT  = "TXT"
	HTML = "HTML"
)

// FileTypes holds the allowed values for the format column of a document row.
var FileTypes = []string{PDF, DOCX, XLSX, CSV, TXT, HTML}

// AllowedExtensions holds the default allowed file extensions for document sources.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"docx": {},
	"xlsx": {},
	"xlsm": {},
	"csv":  {},
	"tsv":  {},
	"txt":  {},
	"md":   {},
	"html": {},
	"htm":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a normalized extension to a document format, or "" if unknown.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "docx":
		return DOCX
	case "xlsx", "xlsm":
		return XLSX
	case "csv", "tsv":
		return CSV
	case "txt", "md":
		return TXT
	case "html", "htm":
		return HTML
	default:
		return ""
	}
}

// MapMIMEToFormat maps a detected MIME type to a document format, or "" if unknown.
func MapMIMEToFormat(mime string) string {
	mime = strings.ToLower(mime)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case "application/pdf":
		return PDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return DOCX
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return XLSX
	case "text/csv", "text/tab-separated-values":
		return CSV
	case "text/html":
		return HTML
	case "text/plain":
		return TXT
	default:
		return ""
	}
}
