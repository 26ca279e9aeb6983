package mapper

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

func testProject() *entity.Project {
	limit := 1000.0
	return &entity.Project{
		ID: "contracts",
		SchemaFields: []entity.SchemaField{
			{FieldSpec: entity.FieldSpec{ID: "f_title", Name: "Title", Type: constants.FieldTypeText, AutoVerificationConfidence: 80}},
			{FieldSpec: entity.FieldSpec{ID: "f_amount", Name: "Amount", Type: constants.FieldTypeNumber, AutoVerificationConfidence: 90,
				Config: entity.NumberConfig{Max: &limit}}},
			{FieldSpec: entity.FieldSpec{ID: "f_signed", Name: "Signed On", Type: constants.FieldTypeDate, AutoVerificationConfidence: 80}},
			{FieldSpec: entity.FieldSpec{ID: "f_law", Name: "Governing Law", Type: constants.FieldTypeChoice, AutoVerificationConfidence: 80,
				Config: entity.ChoiceConfig{Options: []string{"NY", "DE"}}}},
		},
		Collections: []entity.Collection{{
			ID: "c_parties", Name: "Parties",
			Properties: []entity.Property{
				{FieldSpec: entity.FieldSpec{ID: "p_name", Name: "Name", Type: constants.FieldTypeText, AutoVerificationConfidence: 75}},
			},
		}},
	}
}

func entries(t *testing.T, raws ...string) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(raws))
	for i, r := range raws {
		require.True(t, json.Valid([]byte(r)), r)
		out[i] = json.RawMessage(r)
	}
	return out
}

func TestMap_AutoVerificationBoundary(t *testing.T) {
	m := New(testProject(), nil)
	res, err := m.Map(context.Background(), entries(t,
		`{"field_id": "f_title", "extracted_value": "MSA", "confidence_score": 80}`,
		`{"field_id": "p_name", "extracted_value": "Acme", "confidence_score": 74, "record_index": 0}`,
		`{"field_id": "p_name", "extracted_value": "Beta", "confidence_score": 75, "record_index": 1}`,
	), 1)
	require.NoError(t, err)
	require.Len(t, res.Validations, 3)

	assert.Equal(t, constants.ValidationStatusVerified, res.Validations[0].ValidationStatus)
	assert.Equal(t, constants.ValidationStatusPending, res.Validations[1].ValidationStatus)
	assert.Equal(t, constants.ValidationStatusVerified, res.Validations[2].ValidationStatus)
}

func TestMap_ResolvesTargets(t *testing.T) {
	m := New(testProject(), nil)
	res, err := m.Map(context.Background(), entries(t,
		`{"field_id": "p_name", "field_name": "ignored", "extracted_value": "Acme", "confidence_score": 95,
		  "ai_reasoning": "named in preamble", "document_source": "DOCUMENT 1: msa.pdf", "record_index": 2}`,
	), 3)
	require.NoError(t, err)
	require.Len(t, res.Validations, 1)

	v := res.Validations[0]
	assert.Equal(t, constants.FieldKindCollectionProperty, v.FieldType)
	assert.Equal(t, "Name", v.FieldName)
	assert.Equal(t, "Parties", v.CollectionName)
	assert.Equal(t, "named in preamble", v.AIReasoning)
	assert.Equal(t, "DOCUMENT 1: msa.pdf", v.DocumentSource)
	assert.Equal(t, 2, v.RecordIndex)
	assert.Equal(t, 3, v.BatchNumber)
	require.NotNil(t, v.ExtractedValue)
	assert.Equal(t, "Acme", *v.ExtractedValue)
	assert.Empty(t, v.Flags)
}

func TestMap_UnresolvedAndNonObjectAreDropped(t *testing.T) {
	m := New(testProject(), nil)
	res, err := m.Map(context.Background(), entries(t,
		`{"field_id": "nope", "extracted_value": "x", "confidence_score": 99}`,
		`"just text"`,
		`{"field_id": "f_title", "extracted_value": "MSA", "confidence_score": 99}`,
	), 1)
	require.NoError(t, err)
	require.Len(t, res.Validations, 1)
	require.Len(t, res.Anomalies, 2)
	assert.Equal(t, AnomalyUnresolvedFieldID, res.Anomalies[0].Kind)
	assert.Equal(t, "nope", res.Anomalies[0].FieldID)
	assert.Equal(t, AnomalyNotObject, res.Anomalies[1].Kind)
}

func TestMap_ConfidenceHandling(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		score float64
		flag  string
	}{
		{"above range", `{"field_id": "f_title", "confidence_score": 140}`, 100, FlagConfidenceClamped},
		{"below range", `{"field_id": "f_title", "confidence_score": -3}`, 0, FlagConfidenceClamped},
		{"non numeric", `{"field_id": "f_title", "confidence_score": "high"}`, 0, FlagConfidenceNotNumeric},
		{"missing", `{"field_id": "f_title"}`, 0, FlagConfidenceNotNumeric},
		{"numeric string", `{"field_id": "f_title", "confidence_score": "88%"}`, 88, ""},
		{"fractional", `{"field_id": "f_title", "confidence_score": 79.5}`, 79.5, ""},
	}
	m := New(testProject(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := m.Map(context.Background(), entries(t, tt.raw), 1)
			require.NoError(t, err)
			require.Len(t, res.Validations, 1)
			v := res.Validations[0]
			assert.Equal(t, tt.score, v.ConfidenceScore)
			if tt.flag == "" {
				assert.Empty(t, v.Flags)
			} else {
				assert.Contains(t, v.Flags, tt.flag)
			}
		})
	}
}

func TestMap_ValueNormalization(t *testing.T) {
	m := New(testProject(), nil)
	res, err := m.Map(context.Background(), entries(t,
		`{"field_id": "f_title", "extracted_value": null, "confidence_score": 90}`,
		`{"field_id": "f_amount", "extracted_value": 1250.50, "confidence_score": 90}`,
		`{"field_id": "p_name", "extracted_value": {"first": "Ann"}, "confidence_score": 90}`,
		`{"field_id": "f_law", "extracted_value": true, "confidence_score": 90}`,
	), 1)
	require.NoError(t, err)
	require.Len(t, res.Validations, 4)

	assert.Nil(t, res.Validations[0].ExtractedValue)
	assert.Equal(t, "1250.50", *res.Validations[1].ExtractedValue)
	assert.Equal(t, `{"first":"Ann"}`, *res.Validations[2].ExtractedValue)
	assert.Equal(t, "true", *res.Validations[3].ExtractedValue)
}

func TestMap_TypeChecksFlagOnly(t *testing.T) {
	m := New(testProject(), nil)
	res, err := m.Map(context.Background(), entries(t,
		`{"field_id": "f_amount", "extracted_value": "about ten", "confidence_score": 95}`,
		`{"field_id": "f_signed", "extracted_value": "March 3rd", "confidence_score": 95}`,
		`{"field_id": "f_law", "extracted_value": "CA", "confidence_score": 95}`,
		`{"field_id": "f_law", "extracted_value": "ny", "confidence_score": 95, "record_index": 1}`,
		`{"field_id": "f_amount", "extracted_value": "2,500", "confidence_score": 95, "record_index": 1}`,
		`{"field_id": "f_signed", "extracted_value": "2024-03-03", "confidence_score": 95, "record_index": 1}`,
	), 1)
	require.NoError(t, err)
	require.Len(t, res.Validations, 6)

	assert.Equal(t, []string{FlagValueTypeMismatch}, res.Validations[0].Flags)
	assert.Equal(t, []string{FlagValueTypeMismatch}, res.Validations[1].Flags)
	assert.Equal(t, []string{FlagValueTypeMismatch}, res.Validations[2].Flags)
	assert.Empty(t, res.Validations[3].Flags)
	assert.Equal(t, []string{FlagValueOutOfRange}, res.Validations[4].Flags)
	assert.Empty(t, res.Validations[5].Flags)
	for _, v := range res.Validations {
		assert.Equal(t, constants.ValidationStatusVerified, v.ValidationStatus)
	}
}

func TestMap_RecordIndex(t *testing.T) {
	m := New(testProject(), nil)
	res, err := m.Map(context.Background(), entries(t,
		`{"field_id": "p_name", "extracted_value": "A", "confidence_score": 90}`,
		`{"field_id": "p_name", "extracted_value": "B", "confidence_score": 90, "record_index": 1.5}`,
		`{"field_id": "p_name", "extracted_value": "C", "confidence_score": 90, "record_index": 4}`,
		`{"field_id": "p_name", "extracted_value": "D", "confidence_score": 90, "record_index": 4}`,
	), 2)
	require.NoError(t, err)

	require.Len(t, res.Validations, 2)
	assert.Equal(t, 0, res.Validations[0].RecordIndex)
	assert.Equal(t, 4, res.Validations[1].RecordIndex)
	assert.Equal(t, "C", *res.Validations[1].ExtractedValue)

	require.Len(t, res.Anomalies, 2)
	assert.Equal(t, AnomalyDuplicateRecord, res.Anomalies[0].Kind, "fractional index defaults to 0 and collides")
	assert.Equal(t, AnomalyDuplicateRecord, res.Anomalies[1].Kind)
}

func TestMapWindow_OffsetsAndFlagsRecordIndex(t *testing.T) {
	m := New(testProject(), nil)
	res, err := m.MapWindow(context.Background(), entries(t,
		`{"field_id": "p_name", "extracted_value": "A", "confidence_score": 90, "record_index": 0}`,
		`{"field_id": "p_name", "extracted_value": "B", "confidence_score": 90, "record_index": 49}`,
		`{"field_id": "p_name", "extracted_value": "C", "confidence_score": 90, "record_index": 70}`,
	), 2, Window{Offset: 50, Size: 50})
	require.NoError(t, err)

	require.Len(t, res.Validations, 3)
	assert.Equal(t, 50, res.Validations[0].RecordIndex)
	assert.Equal(t, 99, res.Validations[1].RecordIndex)
	assert.NotContains(t, res.Validations[1].Flags, FlagRecordIndexInvalid)
	assert.Equal(t, 120, res.Validations[2].RecordIndex)
	assert.Contains(t, res.Validations[2].Flags, FlagRecordIndexInvalid)
}

func TestMap_RejectsInvalidBatchNumber(t *testing.T) {
	_, err := New(testProject(), nil).Map(context.Background(), nil, 0)
	assert.Error(t, err)
}
