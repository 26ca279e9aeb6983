package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/tyler-sommer/stick"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

// Stable section markers.
const (
	DocumentsHeader   = "=== DOCUMENTS ==="
	DocumentSeparator = "=== DOCUMENT SEPARATOR ==="
	EndOfDocuments    = "=== END OF DOCUMENTS ==="
	SchemaHeader      = "=== SCHEMA FIELDS ==="
	CollectionsHeader = "=== COLLECTIONS ==="
	KnowledgeHeader   = "=== KNOWLEDGE DOCUMENTS ==="
	RulesHeader       = "=== EXTRACTION RULES ==="
	InstructionHeader = "=== PROCESSING INSTRUCTIONS ==="
	ConfidenceHeader  = "=== CONFIDENCE SCORING ==="
	OutputHeader      = "=== REQUIRED OUTPUT FORMAT ==="
)

// ExampleConfidence is the placeholder score in the output example.
const ExampleConfidence = 95

// RecordWindow restricts a prompt to records [Start, End] of Total. Records holds the window's
// records in order.
type RecordWindow struct {
	Start   int
	End     int
	Total   int
	Records []entity.Record
}

// Bundle is everything one prompt is assembled from.
type Bundle struct {
	Documents          []entity.Document
	SchemaFields       []entity.SchemaField
	Collections        []entity.Collection
	KnowledgeDocuments []entity.KnowledgeDocument
	ExtractionRules    []entity.ExtractionRule
	Window             *RecordWindow
	// SkipFieldIDs are omitted from the schema blocks and the output example.
	SkipFieldIDs map[string]struct{}
}

// Assembler renders a Bundle to a prompt. Output is a pure function of the bundle.
type Assembler struct {
	env       *stick.Env
	templates map[string]string
	log       *slog.Logger
}

func NewAssembler(logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{env: stick.New(nil), templates: templates, log: logger}
}

func (a *Assembler) render(tag string, vars map[string]string) (string, error) {
	tpl, ok := a.templates[tag]
	if !ok {
		return "", fmt.Errorf("template %q not found", tag)
	}
	ctx := make(map[string]stick.Value, len(vars))
	for k, v := range vars {
		ctx[k] = v
	}
	var out strings.Builder
	if err := a.env.Execute(tpl, &out, ctx); err != nil {
		return "", fmt.Errorf("execute %q: %w", tag, err)
	}
	return strings.TrimRight(out.String(), "\n"), nil
}

// Assemble builds the prompt with sections in fixed order: documents, schema, knowledge,
// rules, instructions, confidence policy, output example.
func (a *Assembler) Assemble(b Bundle) (string, error) {
	fields := visibleFields(b)
	collections := visibleCollections(b)

	var sb strings.Builder

	writeDocuments(&sb, b.Documents)

	schemaJSON, err := marshal(schemaEntries(fields, b))
	if err != nil {
		return "", fmt.Errorf("encode schema fields: %w", err)
	}
	collectionsJSON, err := marshal(collectionEntries(collections, b))
	if err != nil {
		return "", fmt.Errorf("encode collections: %w", err)
	}
	section(&sb, SchemaHeader, schemaJSON)
	section(&sb, CollectionsHeader, collectionsJSON)

	intro, err := a.render("knowledge_intro", nil)
	if err != nil {
		return "", err
	}
	section(&sb, KnowledgeHeader, knowledgeBody(intro, b.KnowledgeDocuments))
	section(&sb, RulesHeader, rulesBody(b.ExtractionRules))

	instructions, err := a.render("instructions", map[string]string{
		"document_count": strconv.Itoa(len(b.Documents)),
	})
	if err != nil {
		return "", err
	}
	if w := b.Window; w != nil {
		text, err := a.renderWindow(w)
		if err != nil {
			return "", err
		}
		instructions += "\n\n" + text
	}
	section(&sb, InstructionHeader, instructions)

	policy, err := a.render("confidence", nil)
	if err != nil {
		return "", err
	}
	section(&sb, ConfidenceHeader, policy)

	outputIntro, err := a.render("output", nil)
	if err != nil {
		return "", err
	}
	example, err := marshal(map[string]any{"field_validations": exampleEntries(fields, collections)})
	if err != nil {
		return "", fmt.Errorf("encode output example: %w", err)
	}
	section(&sb, OutputHeader, outputIntro+"\n\n"+example)

	out := sb.String()
	a.log.Debug("prompt.assembled",
		"documents", len(b.Documents),
		"schema_fields", len(fields),
		"collections", len(collections),
		"skipped_fields", len(b.SkipFieldIDs),
		"has_window", b.Window != nil,
		"chars", len(out),
	)
	return out, nil
}

func (a *Assembler) renderWindow(w *RecordWindow) (string, error) {
	labels := make([]string, 0, len(w.Records))
	for i, r := range w.Records {
		line := fmt.Sprintf("- record_index %d: RECORD %d", i, r.Index)
		if r.Label != "" {
			line += " (" + r.Label + ")"
		}
		if r.Text != "" {
			line += ": " + r.Text
		}
		labels = append(labels, line)
	}
	return a.render("window", map[string]string{
		"start":       strconv.Itoa(w.Start),
		"end":         strconv.Itoa(w.End),
		"total":       strconv.Itoa(w.Total),
		"last_offset": strconv.Itoa(w.End - w.Start),
		"labels":      strings.Join(labels, "\n"),
	})
}

func section(sb *strings.Builder, header, body string) {
	sb.WriteString("\n")
	sb.WriteString(header)
	sb.WriteString("\n")
	sb.WriteString(body)
	sb.WriteString("\n")
}

func writeDocuments(sb *strings.Builder, docs []entity.Document) {
	sb.WriteString(DocumentsHeader)
	sb.WriteString("\n")
	for i, d := range docs {
		if i > 0 {
			sb.WriteString(DocumentSeparator)
			sb.WriteString("\n")
		}
		fmt.Fprintf(sb, "DOCUMENT %d: %s\n", i+1, d.Name)
		text := strings.TrimSpace(d.ExtractedText)
		if text == "" {
			text = "(no text could be extracted from this document)"
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	sb.WriteString(EndOfDocuments)
	sb.WriteString("\n")
}

func visibleFields(b Bundle) []entity.SchemaField {
	out := make([]entity.SchemaField, 0, len(b.SchemaFields))
	for _, f := range b.SchemaFields {
		if _, skip := b.SkipFieldIDs[f.ID]; !skip {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out
}

func visibleCollections(b Bundle) []entity.Collection {
	out := make([]entity.Collection, 0, len(b.Collections))
	for _, c := range b.Collections {
		props := make([]entity.Property, 0, len(c.Properties))
		for _, p := range c.Properties {
			if _, skip := b.SkipFieldIDs[p.ID]; !skip {
				props = append(props, p)
			}
		}
		if len(props) == 0 {
			continue
		}
		sort.SliceStable(props, func(i, j int) bool { return props[i].OrderIndex < props[j].OrderIndex })
		c.Properties = props
		out = append(out, c)
	}
	return out
}

type fieldEntry struct {
	FieldID                    string `json:"field_id"`
	Name                       string `json:"name"`
	Type                       string `json:"type"`
	Description                string `json:"description"`
	Format                     string `json:"format"`
	AutoVerificationConfidence int    `json:"auto_verification_confidence"`
	RulesAndKnowledge          string `json:"rules_and_knowledge,omitempty"`
}

type collectionEntry struct {
	CollectionID string       `json:"collection_id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Properties   []fieldEntry `json:"properties"`
}

func newFieldEntry(spec entity.FieldSpec, qualified string, b Bundle) fieldEntry {
	return fieldEntry{
		FieldID:                    spec.ID,
		Name:                       spec.Name,
		Type:                       string(spec.Type),
		Description:                spec.Description,
		Format:                     spec.EffectiveConfig().Summary(),
		AutoVerificationConfidence: spec.AutoVerificationConfidence,
		RulesAndKnowledge:          rulesAndKnowledge(b, spec.ID, spec.Name, qualified),
	}
}

func schemaEntries(fields []entity.SchemaField, b Bundle) []fieldEntry {
	out := make([]fieldEntry, 0, len(fields))
	for _, f := range fields {
		out = append(out, newFieldEntry(f.FieldSpec, "", b))
	}
	return out
}

func collectionEntries(cols []entity.Collection, b Bundle) []collectionEntry {
	out := make([]collectionEntry, 0, len(cols))
	for _, c := range cols {
		ce := collectionEntry{CollectionID: c.ID, Name: c.Name, Description: c.Description, Properties: []fieldEntry{}}
		for _, p := range c.Properties {
			ce.Properties = append(ce.Properties, newFieldEntry(p.FieldSpec, c.Name+"."+p.Name, b))
		}
		out = append(out, ce)
	}
	return out
}

// targets reports whether ref names the field by id, name, or Collection.Property.
func targets(ref, id, name, qualified string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false
	}
	return ref == id || strings.EqualFold(ref, name) || (qualified != "" && strings.EqualFold(ref, qualified))
}

func rulesAndKnowledge(b Bundle, id, name, qualified string) string {
	var rules, docs []string
	for _, r := range b.ExtractionRules {
		for _, tf := range r.TargetFields {
			if targets(tf, id, name, qualified) {
				rules = append(rules, r.RuleName)
				break
			}
		}
	}
	for _, k := range b.KnowledgeDocuments {
		if targets(k.TargetField, id, name, qualified) {
			docs = append(docs, k.DisplayName)
		}
	}
	var parts []string
	if len(rules) > 0 {
		parts = append(parts, "Rules: "+strings.Join(rules, ", "))
	}
	if len(docs) > 0 {
		parts = append(parts, "Knowledge: "+strings.Join(docs, ", "))
	}
	return strings.Join(parts, "; ")
}

func knowledgeBody(intro string, docs []entity.KnowledgeDocument) string {
	if len(docs) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	sb.WriteString(intro)
	for i, k := range docs {
		fmt.Fprintf(&sb, "\n\nKNOWLEDGE DOCUMENT %d: %s", i+1, k.DisplayName)
		if k.Description != "" {
			sb.WriteString("\nDescription: " + k.Description)
		}
		if k.TargetField != "" {
			sb.WriteString("\nRelevant to: " + k.TargetField)
		} else {
			sb.WriteString("\nRelevant to: all fields")
		}
		sb.WriteString("\n" + strings.TrimSpace(k.Content))
	}
	return sb.String()
}

func rulesBody(rules []entity.ExtractionRule) string {
	if len(rules) == 0 {
		return "(none)"
	}
	blocks := make([]string, 0, len(rules))
	for i, r := range rules {
		var sb strings.Builder
		if r.IsGlobal() {
			fmt.Fprintf(&sb, "RULE %d [GLOBAL]: %s\nApplies to: all fields", i+1, r.RuleName)
		} else {
			fmt.Fprintf(&sb, "RULE %d [TARGETED]: %s\nApplies to: %s", i+1, r.RuleName, strings.Join(r.TargetFields, ", "))
		}
		sb.WriteString("\n" + strings.TrimSpace(r.RuleContent))
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, "\n\n")
}

type exampleEntry struct {
	FieldType        string  `json:"field_type"`
	FieldID          string  `json:"field_id"`
	FieldName        string  `json:"field_name"`
	CollectionName   string  `json:"collection_name,omitempty"`
	Description      string  `json:"description"`
	ExtractedValue   *string `json:"extracted_value"`
	ConfidenceScore  int     `json:"confidence_score"`
	ValidationStatus string  `json:"validation_status"`
	RecordIndex      int     `json:"record_index"`
	AIReasoning      string  `json:"ai_reasoning"`
	DocumentSource   string  `json:"document_source"`
}

func exampleEntries(fields []entity.SchemaField, cols []entity.Collection) []exampleEntry {
	out := make([]exampleEntry, 0, len(fields))
	add := func(kind constants.FieldKind, spec entity.FieldSpec, collection string) {
		out = append(out, exampleEntry{
			FieldType:        string(kind),
			FieldID:          spec.ID,
			FieldName:        spec.Name,
			CollectionName:   collection,
			Description:      spec.Description,
			ConfidenceScore:  ExampleConfidence,
			ValidationStatus: string(constants.ValidationStatusPending),
		})
	}
	for _, f := range fields {
		add(constants.FieldKindSchemaField, f.FieldSpec, "")
	}
	for _, c := range cols {
		for _, p := range c.Properties {
			add(constants.FieldKindCollectionProperty, p.FieldSpec, c.Name)
		}
	}
	return out
}

// marshal indents without HTML escaping so document text survives verbatim.
func marshal(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
