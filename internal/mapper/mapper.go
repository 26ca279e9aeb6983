package mapper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

// Per-record flags. Flags never change the validation status.
const (
	FlagConfidenceNotNumeric = "confidence_not_numeric"
	FlagConfidenceClamped    = "confidence_clamped"
	FlagRecordIndexInvalid   = "record_index_invalid"
	FlagValueTypeMismatch    = "value_type_mismatch"
	FlagValueOutOfRange      = "value_out_of_range"
	FlagValueTooLong         = "value_too_long"
)

// Anomaly kinds for dropped entries.
const (
	AnomalyUnresolvedFieldID = string(common.KindUnresolvedFieldID)
	AnomalyNotObject         = "EntryNotObject"
	AnomalyDuplicateRecord   = "DuplicateRecord"
)

// Anomaly is a recoverable, per-entry problem. The entry was dropped; the batch continues.
type Anomaly struct {
	Kind    string `json:"kind"`
	Entry   int    `json:"entry"`
	FieldID string `json:"field_id,omitempty"`
	Message string `json:"message"`
}

type Result struct {
	Validations []entity.FieldValidation
	Anomalies   []Anomaly
}

// Mapper turns recovered field_validations entries into typed validation records for one project.
type Mapper struct {
	targets map[string]entity.Target
	log     *slog.Logger
}

func New(project *entity.Project, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{targets: project.Targets(), log: logger}
}

type recordKey struct {
	fieldID string
	index   int
}

// Window places a batch inside the session's record pool. Offset is the absolute 0-based index
// of the window's first record; Size is the number of records in the window. The zero value
// means the batch has no window.
type Window struct {
	Offset int
	Size   int
}

// Map converts entries into validations stamped with batchNumber.
func (m *Mapper) Map(ctx context.Context, entries []json.RawMessage, batchNumber int) (Result, error) {
	return m.MapWindow(ctx, entries, batchNumber, Window{})
}

// MapWindow is Map for a windowed batch. Collection property record indexes are window
// relative in the response and absolute in the result; indexes beyond the window are flagged.
func (m *Mapper) MapWindow(ctx context.Context, entries []json.RawMessage, batchNumber int, w Window) (Result, error) {
	if batchNumber < 1 {
		return Result{}, fmt.Errorf("%w: batch number must be positive, got %d", common.ErrInvalidInput, batchNumber)
	}
	log := common.LoggerFromContext(ctx, m.log)

	var res Result
	seen := make(map[recordKey]struct{}, len(entries))
	for i, raw := range entries {
		obj, ok := decodeObject(raw)
		if !ok {
			res.Anomalies = append(res.Anomalies, Anomaly{Kind: AnomalyNotObject, Entry: i, Message: "entry is not a json object"})
			log.Warn("mapper.entry_not_object", "entry", i, "batch_number", batchNumber)
			continue
		}

		fieldID := asText(obj["field_id"])
		target, ok := m.targets[fieldID]
		if !ok {
			res.Anomalies = append(res.Anomalies, Anomaly{
				Kind:    AnomalyUnresolvedFieldID,
				Entry:   i,
				FieldID: fieldID,
				Message: fmt.Sprintf("field id %q does not match any schema field or property", fieldID),
			})
			log.Warn("mapper.unresolved_field", "entry", i, "field_id", fieldID, "batch_number", batchNumber)
			continue
		}

		v := entity.FieldValidation{
			FieldType:      target.Kind,
			FieldID:        target.Spec.ID,
			FieldName:      target.Spec.Name,
			CollectionName: target.CollectionName,
			ExtractedValue: normalizeValue(obj["extracted_value"]),
			AIReasoning:    asText(obj["ai_reasoning"]),
			DocumentSource: asText(obj["document_source"]),
			BatchNumber:    batchNumber,
		}

		score, flags := confidence(obj["confidence_score"])
		v.ConfidenceScore = score
		v.Flags = append(v.Flags, flags...)

		idx, idxOK := recordIndex(obj["record_index"])
		if idxOK && w.Size > 0 && idx >= w.Size {
			idxOK = false
		}
		if !idxOK {
			v.Flags = append(v.Flags, FlagRecordIndexInvalid)
		}
		if target.Kind == constants.FieldKindCollectionProperty {
			idx += w.Offset
		}
		v.RecordIndex = idx

		key := recordKey{fieldID: v.FieldID, index: v.RecordIndex}
		if _, dup := seen[key]; dup {
			res.Anomalies = append(res.Anomalies, Anomaly{
				Kind:    AnomalyDuplicateRecord,
				Entry:   i,
				FieldID: fieldID,
				Message: fmt.Sprintf("duplicate record_index %d", v.RecordIndex),
			})
			log.Warn("mapper.duplicate_record", "entry", i, "field_id", fieldID, "record_index", v.RecordIndex)
			continue
		}
		seen[key] = struct{}{}

		if v.ExtractedValue != nil {
			v.Flags = append(v.Flags, checkValue(target.Spec.EffectiveConfig(), *v.ExtractedValue)...)
		}

		if v.ConfidenceScore >= float64(target.Spec.AutoVerificationConfidence) {
			v.ValidationStatus = constants.ValidationStatusVerified
		} else {
			v.ValidationStatus = constants.ValidationStatusPending
		}
		res.Validations = append(res.Validations, v)
	}

	log.Info("mapper.ok",
		"batch_number", batchNumber,
		"entries", len(entries),
		"validations", len(res.Validations),
		"anomalies", len(res.Anomalies),
	)
	return res, nil
}

func decodeObject(raw json.RawMessage) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// normalizeValue renders a JSON value as the stored text form. JSON null stays nil.
func normalizeValue(v any) *string {
	if v == nil {
		return nil
	}
	s := asText(v)
	return &s
}

func asText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func number(v any) (float64, bool) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "%"))
	default:
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func confidence(v any) (float64, []string) {
	f, ok := number(v)
	if !ok {
		return 0, []string{FlagConfidenceNotNumeric}
	}
	switch {
	case f < 0:
		return 0, []string{FlagConfidenceClamped}
	case f > 100:
		return 100, []string{FlagConfidenceClamped}
	}
	return f, nil
}

// recordIndex defaults to 0 when absent. Negative or fractional values are reported invalid.
func recordIndex(v any) (int, bool) {
	if v == nil {
		return 0, true
	}
	f, ok := number(v)
	if !ok || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func checkValue(cfg entity.FieldConfig, value string) []string {
	value = strings.TrimSpace(value)
	switch c := cfg.(type) {
	case entity.NumberConfig:
		f, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
		if err != nil {
			return []string{FlagValueTypeMismatch}
		}
		if (c.Min != nil && f < *c.Min) || (c.Max != nil && f > *c.Max) {
			return []string{FlagValueOutOfRange}
		}
	case entity.DateConfig:
		if _, err := time.Parse(c.EffectiveLayout(), value); err != nil {
			return []string{FlagValueTypeMismatch}
		}
	case entity.ChoiceConfig:
		if len(c.Options) == 0 {
			return nil
		}
		for _, o := range c.Options {
			if strings.EqualFold(o, value) {
				return nil
			}
		}
		return []string{FlagValueTypeMismatch}
	case entity.TextConfig:
		if c.MaxLength > 0 && utf8.RuneCountInString(value) > c.MaxLength {
			return []string{FlagValueTooLong}
		}
	}
	return nil
}
