package constants

// FieldType is the declared value type of a schema field or collection property.
type FieldType string

const (
	FieldTypeText   FieldType = "TEXT"
	FieldTypeNumber FieldType = "NUMBER"
	FieldTypeDate   FieldType = "DATE"
	FieldTypeChoice FieldType = "CHOICE"
)

// FieldTypes lists every valid FieldType.
var FieldTypes = []string{string(FieldTypeText), string(FieldTypeNumber), string(FieldTypeDate), string(FieldTypeChoice)}

// FieldKind tells whether a validation targets a flat schema field or a collection property.
type FieldKind string

const (
	FieldKindSchemaField        FieldKind = "schema_field"
	FieldKindCollectionProperty FieldKind = "collection_property"
)

var FieldKinds = []string{string(FieldKindSchemaField), string(FieldKindCollectionProperty)}

// ToolKind decides how batches are sized. AI tools send free-text instructions to a model
// and are capped per call; function tools are deterministic lookups and are not.
type ToolKind string

const (
	ToolKindAI       ToolKind = "ai"
	ToolKindFunction ToolKind = "function"
)

// DefaultAutoVerificationConfidence is applied when a field is created without a threshold.
const DefaultAutoVerificationConfidence = 80

// DefaultMaxBatchRecords is the per-call record cap for AI tools.
const DefaultMaxBatchRecords = 50
