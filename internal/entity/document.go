package entity

import (
	"github.com/google/uuid"
)

// DocumentMeta carries page or sheet information reported by the text extraction service.
type DocumentMeta struct {
	Pages    int      `json:"pages,omitempty"`
	Sheets   []string `json:"sheets,omitempty"`
	Language string   `json:"language,omitempty"`
	Method   string   `json:"method,omitempty"`
}

// Document is one uploaded file and its extracted text. It is immutable once extracted.
type Document struct {
	ID            uuid.UUID    `json:"id"`
	Name          string       `json:"name"`
	MIMEType      string       `json:"mime_type"`
	Format        string       `json:"format"`
	SizeBytes     int64        `json:"size_bytes"`
	ExtractedText string       `json:"extracted_text"`
	Meta          DocumentMeta `json:"meta"`
	// Error is set when text extraction failed; such documents are kept but contribute no text.
	Error string `json:"error,omitempty"`
}

// Record is one candidate record instance offered to a batch. Index is 1-based.
type Record struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	Text  string `json:"text,omitempty"`
}
