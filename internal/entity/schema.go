package entity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/docextract/constants"
)

// FieldConfig is the type-specific configuration of a field. The set of implementations is
// closed: TextConfig, NumberConfig, DateConfig and ChoiceConfig.
type FieldConfig interface {
	FieldType() constants.FieldType
	// Summary is a short, stable, human readable rendering used in prompts.
	Summary() string
	isFieldConfig()
}

type TextConfig struct {
	MaxLength int `json:"max_length,omitempty" yaml:"max_length,omitempty"`
}

type NumberConfig struct {
	Min      *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max      *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Decimals int      `json:"decimals,omitempty" yaml:"decimals,omitempty"`
}

type DateConfig struct {
	Layout string `json:"layout,omitempty" yaml:"layout,omitempty"` // Go reference layout, default 2006-01-02
}

type ChoiceConfig struct {
	Options []string `json:"options" yaml:"options"`
}

func (TextConfig) FieldType() constants.FieldType   { return constants.FieldTypeText }
func (NumberConfig) FieldType() constants.FieldType { return constants.FieldTypeNumber }
func (DateConfig) FieldType() constants.FieldType   { return constants.FieldTypeDate }
func (ChoiceConfig) FieldType() constants.FieldType { return constants.FieldTypeChoice }

func (TextConfig) isFieldConfig()   {}
func (NumberConfig) isFieldConfig() {}
func (DateConfig) isFieldConfig()   {}
func (ChoiceConfig) isFieldConfig() {}

func (c TextConfig) Summary() string {
	if c.MaxLength > 0 {
		return fmt.Sprintf("text, at most %d characters", c.MaxLength)
	}
	return "text"
}

func (c NumberConfig) Summary() string {
	parts := []string{"number"}
	if c.Min != nil {
		parts = append(parts, "min "+strconv.FormatFloat(*c.Min, 'f', -1, 64))
	}
	if c.Max != nil {
		parts = append(parts, "max "+strconv.FormatFloat(*c.Max, 'f', -1, 64))
	}
	if c.Decimals > 0 {
		parts = append(parts, fmt.Sprintf("%d decimals", c.Decimals))
	}
	return strings.Join(parts, ", ")
}

func (c DateConfig) Summary() string {
	return "date formatted as " + c.EffectiveLayout()
}

// EffectiveLayout returns the configured layout or ISO-8601 date.
func (c DateConfig) EffectiveLayout() string {
	if c.Layout == "" {
		return "2006-01-02"
	}
	return c.Layout
}

func (c ChoiceConfig) Summary() string {
	return "one of: " + strings.Join(c.Options, " | ")
}

// DefaultConfig returns the zero config for a field type.
func DefaultConfig(t constants.FieldType) FieldConfig {
	switch t {
	case constants.FieldTypeNumber:
		return NumberConfig{}
	case constants.FieldTypeDate:
		return DateConfig{}
	case constants.FieldTypeChoice:
		return ChoiceConfig{}
	default:
		return TextConfig{}
	}
}

// FieldSpec is the shape shared by schema fields and collection properties.
type FieldSpec struct {
	ID                         string              `json:"id"`
	Name                       string              `json:"name"`
	Type                       constants.FieldType `json:"type"`
	Description                string              `json:"description"`
	AutoVerificationConfidence int                 `json:"auto_verification_confidence"`
	OrderIndex                 int                 `json:"order_index"`
	Config                     FieldConfig         `json:"-"`
}

// EffectiveConfig never returns nil.
func (f FieldSpec) EffectiveConfig() FieldConfig {
	if f.Config != nil {
		return f.Config
	}
	return DefaultConfig(f.Type)
}

// SchemaField is a flat, singular extraction target.
type SchemaField struct {
	FieldSpec
}

// Property is one attribute of a repeatable collection record.
type Property struct {
	FieldSpec
}

// Collection is a repeatable record type with ordered properties.
type Collection struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Properties  []Property `json:"properties"`
}

// Project bundles everything the schema store supplies for one project.
type Project struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	Tool               constants.ToolKind  `json:"tool"`
	SchemaFields       []SchemaField       `json:"schema_fields"`
	Collections        []Collection        `json:"collections"`
	KnowledgeDocuments []KnowledgeDocument `json:"knowledge_documents"`
	ExtractionRules    []ExtractionRule    `json:"extraction_rules"`
}

// Target is a resolved extraction target: either a schema field or a collection property.
type Target struct {
	Kind           constants.FieldKind
	Spec           FieldSpec
	CollectionName string
}

// Targets indexes every schema field and property by id.
func (p *Project) Targets() map[string]Target {
	out := make(map[string]Target, len(p.SchemaFields))
	for _, f := range p.SchemaFields {
		out[f.ID] = Target{Kind: constants.FieldKindSchemaField, Spec: f.FieldSpec}
	}
	for _, c := range p.Collections {
		for _, prop := range c.Properties {
			out[prop.ID] = Target{Kind: constants.FieldKindCollectionProperty, Spec: prop.FieldSpec, CollectionName: c.Name}
		}
	}
	return out
}
