package prompt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

func testBundle() Bundle {
	return Bundle{
		Documents: []entity.Document{
			{Name: "msa.pdf", ExtractedText: "Master Services Agreement between Acme <Corp> & Beta LLC."},
			{Name: "sow.docx", ExtractedText: "Statement of Work 1"},
			{Name: "broken.xlsx", Error: "zip: not a valid zip file"},
		},
		SchemaFields: []entity.SchemaField{
			{FieldSpec: entity.FieldSpec{ID: "f2", Name: "Effective Date", Type: constants.FieldTypeDate, OrderIndex: 2, AutoVerificationConfidence: 80}},
			{FieldSpec: entity.FieldSpec{ID: "f1", Name: "Title", Type: constants.FieldTypeText, OrderIndex: 1, AutoVerificationConfidence: 85,
				Description: "Agreement title"}},
		},
		Collections: []entity.Collection{{
			ID: "c1", Name: "Parties", Description: "Contracting parties",
			Properties: []entity.Property{
				{FieldSpec: entity.FieldSpec{ID: "p1", Name: "Name", Type: constants.FieldTypeText, OrderIndex: 0, AutoVerificationConfidence: 80}},
				{FieldSpec: entity.FieldSpec{ID: "p2", Name: "Role", Type: constants.FieldTypeChoice, OrderIndex: 1, AutoVerificationConfidence: 80,
					Config: entity.ChoiceConfig{Options: []string{"Customer", "Supplier"}}}},
			},
		}},
		KnowledgeDocuments: []entity.KnowledgeDocument{
			{ID: "k1", DisplayName: "Party Registry", Content: "Acme Corp is always the Customer.", TargetField: "Parties.Role"},
		},
		ExtractionRules: []entity.ExtractionRule{
			{RuleName: "Inc suffix", RuleContent: "Reduce confidence by 10 when the party name lacks a legal suffix."},
			{RuleName: "Date format", RuleContent: "Dates must be ISO.", TargetFields: []string{"f2"}},
		},
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	a := NewAssembler(nil)
	first, err := a.Assemble(testBundle())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := NewAssembler(nil).Assemble(testBundle())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAssemble_SectionOrder(t *testing.T) {
	out, err := NewAssembler(nil).Assemble(testBundle())
	require.NoError(t, err)

	markers := []string{
		DocumentsHeader, "DOCUMENT 1: msa.pdf", DocumentSeparator, "DOCUMENT 2: sow.docx", "DOCUMENT 3: broken.xlsx",
		EndOfDocuments, SchemaHeader, CollectionsHeader, KnowledgeHeader, "KNOWLEDGE DOCUMENT 1: Party Registry",
		RulesHeader, "RULE 1 [GLOBAL]: Inc suffix", "RULE 2 [TARGETED]: Date format", InstructionHeader,
		ConfidenceHeader, OutputHeader,
	}
	last := -1
	for _, m := range markers {
		idx := strings.Index(out, m)
		require.GreaterOrEqual(t, idx, 0, "missing %q", m)
		assert.Greater(t, idx, last, "%q out of order", m)
		last = idx
	}
	assert.Equal(t, 2, strings.Count(out, DocumentSeparator))
	assert.Contains(t, out, "Acme <Corp> & Beta LLC.")
	assert.Contains(t, out, "(no text could be extracted from this document)")
	assert.Contains(t, out, "NOT extraction targets")
	assert.Contains(t, out, "85-95")
}

func TestAssemble_SchemaBlocks(t *testing.T) {
	out, err := NewAssembler(nil).Assemble(testBundle())
	require.NoError(t, err)

	var fields []fieldEntry
	require.NoError(t, json.Unmarshal([]byte(between(out, SchemaHeader, CollectionsHeader)), &fields))
	require.Len(t, fields, 2)
	assert.Equal(t, "f1", fields[0].FieldID, "ordered by order index")
	assert.Equal(t, "f2", fields[1].FieldID)
	assert.Equal(t, "Rules: Date format", fields[1].RulesAndKnowledge)
	assert.Equal(t, "date formatted as 2006-01-02", fields[1].Format)

	var cols []collectionEntry
	require.NoError(t, json.Unmarshal([]byte(between(out, CollectionsHeader, KnowledgeHeader)), &cols))
	require.Len(t, cols, 1)
	require.Len(t, cols[0].Properties, 2)
	assert.Equal(t, "Knowledge: Party Registry", cols[0].Properties[1].RulesAndKnowledge)
	assert.Equal(t, "one of: Customer | Supplier", cols[0].Properties[1].Format)
}

func TestAssemble_OutputExample(t *testing.T) {
	out, err := NewAssembler(nil).Assemble(testBundle())
	require.NoError(t, err)

	body := out[strings.Index(out, OutputHeader)+len(OutputHeader):]
	body = body[strings.Index(body, "{"):]
	var example struct {
		FieldValidations []map[string]any `json:"field_validations"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &example))
	require.Len(t, example.FieldValidations, 4)

	ids := []string{}
	for _, e := range example.FieldValidations {
		ids = append(ids, e["field_id"].(string))
		assert.Nil(t, e["extracted_value"])
		assert.Contains(t, e, "extracted_value")
		assert.Equal(t, float64(95), e["confidence_score"])
		assert.Equal(t, "pending", e["validation_status"])
		assert.Equal(t, float64(0), e["record_index"])
	}
	assert.Equal(t, []string{"f1", "f2", "p1", "p2"}, ids)
	assert.Equal(t, "collection_property", example.FieldValidations[2]["field_type"])
	assert.Equal(t, "Parties", example.FieldValidations[2]["collection_name"])
	assert.Equal(t, "schema_field", example.FieldValidations[0]["field_type"])
}

func TestAssemble_SkipFieldIDs(t *testing.T) {
	b := testBundle()
	b.SkipFieldIDs = map[string]struct{}{"f1": {}}
	out, err := NewAssembler(nil).Assemble(b)
	require.NoError(t, err)

	assert.NotContains(t, out, `"field_id": "f1"`)
	assert.Contains(t, out, `"field_id": "f2"`)
	assert.Contains(t, out, `"field_id": "p1"`)
}

func TestAssemble_Window(t *testing.T) {
	b := testBundle()
	b.Window = &RecordWindow{
		Start: 51, End: 53, Total: 120,
		Records: []entity.Record{
			{Index: 51, Label: "Sheet1 row 52"},
			{Index: 52, Label: "Sheet1 row 53"},
			{Index: 53, Label: "Sheet1 row 54", Text: "Gamma Ltd | Supplier"},
		},
	}
	out, err := NewAssembler(nil).Assemble(b)
	require.NoError(t, err)

	instr := between(out, InstructionHeader, ConfidenceHeader)
	assert.Contains(t, instr, "records 51 to 53 of 120")
	assert.Contains(t, instr, "- record_index 0: RECORD 51 (Sheet1 row 52)")
	assert.Contains(t, instr, "- record_index 2: RECORD 53 (Sheet1 row 54): Gamma Ltd | Supplier")
	assert.Contains(t, instr, "record 53 is record_index 2")
}

func TestAssemble_EmptyKnowledgeAndRules(t *testing.T) {
	b := testBundle()
	b.KnowledgeDocuments = nil
	b.ExtractionRules = nil
	out, err := NewAssembler(nil).Assemble(b)
	require.NoError(t, err)
	assert.Equal(t, "(none)", between(out, KnowledgeHeader, RulesHeader))
	assert.Equal(t, "(none)", between(out, RulesHeader, InstructionHeader))
}

func between(s, start, end string) string {
	i := strings.Index(s, start)
	j := strings.Index(s, end)
	if i < 0 || j < 0 || j < i {
		return ""
	}
	return strings.TrimSpace(s[i+len(start) : j])
}
