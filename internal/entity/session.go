package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/constants"
)

// FieldValidation is the pipeline's output unit.
type FieldValidation struct {
	ID               uuid.UUID                  `json:"id"`
	SessionID        uuid.UUID                  `json:"session_id"`
	FieldType        constants.FieldKind        `json:"field_type"`
	FieldID          string                     `json:"field_id"`
	FieldName        string                     `json:"field_name"`
	CollectionName   string                     `json:"collection_name,omitempty"`
	ExtractedValue   *string                    `json:"extracted_value"`
	ConfidenceScore  float64                    `json:"confidence_score"`
	AIReasoning      string                     `json:"ai_reasoning,omitempty"`
	DocumentSource   string                     `json:"document_source,omitempty"`
	ValidationStatus constants.ValidationStatus `json:"validation_status"`
	RecordIndex      int                        `json:"record_index"`
	BatchNumber      int                        `json:"batch_number"`
	Flags            []string                   `json:"flags,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
}

// SessionBatch records one model call. Batches are append-only.
type SessionBatch struct {
	ID               uuid.UUID             `json:"id"`
	SessionID        uuid.UUID             `json:"session_id"`
	BatchNumber      int                   `json:"batch_number"`
	StartIndex       int                   `json:"start_index"`
	EndIndex         int                   `json:"end_index"`
	ExtractionPrompt string                `json:"extraction_prompt"`
	AIResponse       string                `json:"ai_response"`
	InputTokenCount  int                   `json:"input_token_count"`
	OutputTokenCount int                   `json:"output_token_count"`
	ValidationCount  int                   `json:"validation_count"`
	Status           constants.BatchStatus `json:"status"`
	ErrorKind        string                `json:"error_kind,omitempty"`
	ErrorMessage     string                `json:"error_message,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
}

// ExtractionSession aggregates documents, batches and validations for one extraction run.
type ExtractionSession struct {
	ID               uuid.UUID               `json:"id"`
	ProjectID        string                  `json:"project_id"`
	Status           constants.SessionStatus `json:"status"`
	Tool             constants.ToolKind      `json:"tool"`
	TotalRecords     int                     `json:"total_records"`
	InputTokenCount  int                     `json:"input_token_count"`
	OutputTokenCount int                     `json:"output_token_count"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`

	Documents   []Document        `json:"documents,omitempty"`
	Batches     []SessionBatch    `json:"batches,omitempty"`
	Validations []FieldValidation `json:"validations,omitempty"`
}
