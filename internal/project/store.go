package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

// Store is the read-only schema store.
type Store interface {
	Load(ctx context.Context, projectID string) (*entity.Project, error)
}

var compiledSchema = jsonschema.MustCompileString("project.schema.json", projectSchema)

// FileStore reads <dir>/<projectID>.yaml (or .yml).
type FileStore struct {
	dir string
	log *slog.Logger
}

func NewFileStore(dir string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{dir: dir, log: logger}
}

func (s *FileStore) Load(_ context.Context, projectID string) (*entity.Project, error) {
	if strings.TrimSpace(projectID) == "" || strings.ContainsAny(projectID, `/\`) {
		return nil, common.NewAppError("INVALID_INPUT", fmt.Sprintf("invalid project id %q", projectID), common.ErrInvalidInput)
	}
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(s.dir, projectID+ext)
		if _, err := os.Stat(path); err == nil {
			p, err := LoadFile(path)
			if err != nil {
				s.log.Error("project.load_failed", "project_id", projectID, "path", path, "err", err)
				return nil, err
			}
			if p.ID != projectID {
				return nil, common.NewAppError("INVALID_INPUT",
					fmt.Sprintf("%s declares id %q", path, p.ID), common.ErrInvalidInput)
			}
			s.log.Info("project.loaded", "project_id", p.ID, "fields", len(p.SchemaFields), "collections", len(p.Collections))
			return p, nil
		}
	}
	return nil, fmt.Errorf("project %s: %w", projectID, common.ErrNotFound)
}

// LoadFile parses and validates one project file. Knowledge document content_file paths are
// relative to the file.
func LoadFile(path string) (*entity.Project, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("project file %s: %w", path, common.ErrNotFound)
		}
		return nil, err
	}
	return Parse(b, filepath.Dir(path))
}

// Parse decodes YAML project bytes, validates them against the project JSON Schema, then
// checks cross references.
func Parse(b []byte, baseDir string) (*entity.Project, error) {
	var raw any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, common.NewAppError("INVALID_INPUT", "parse project yaml", errors.Join(common.ErrInvalidInput, err))
	}
	doc, err := toJSONValue(raw)
	if err != nil {
		return nil, common.NewAppError("INVALID_INPUT", "project yaml", errors.Join(common.ErrInvalidInput, err))
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return nil, common.NewAppError("INVALID_INPUT", "project schema", errors.Join(common.ErrInvalidInput, common.ErrValidation, err))
	}

	var f projectFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, common.NewAppError("INVALID_INPUT", "decode project", errors.Join(common.ErrInvalidInput, err))
	}
	p, err := f.toEntity(baseDir)
	if err != nil {
		return nil, err
	}
	if err := validateProject(p); err != nil {
		return nil, err
	}
	return p, nil
}

// toJSONValue round-trips through encoding/json so the validator sees float64 numbers and
// string-keyed maps.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func validateProject(p *entity.Project) error {
	v := common.NewValidator()
	v.Field("tool", string(p.Tool), common.OneOf(string(constants.ToolKindAI), string(constants.ToolKindFunction)))

	targets := map[string]string{}
	seen := map[string]bool{}
	check := func(kind string, spec entity.FieldSpec, qualified string) {
		if seen[spec.ID] {
			v.Fail(kind+".id", spec.ID, "is not unique across fields and properties")
		}
		seen[spec.ID] = true
		v.Field(kind+"["+spec.ID+"].type", string(spec.Type), common.OneOf(constants.FieldTypes...))
		targets[strings.ToLower(spec.ID)] = spec.ID
		targets[strings.ToLower(spec.Name)] = spec.ID
		if qualified != "" {
			targets[strings.ToLower(qualified)] = spec.ID
		}
		v.Field(kind+"["+spec.ID+"].auto_verification_confidence", spec.AutoVerificationConfidence, common.IntRange(0, 100))
		if c, ok := spec.Config.(entity.ChoiceConfig); ok && len(c.Options) == 0 {
			v.Fail(kind+"["+spec.ID+"].options", nil, "CHOICE fields need at least one option")
		}
		if c, ok := spec.Config.(entity.NumberConfig); ok && c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			v.Fail(kind+"["+spec.ID+"].min", *c.Min, "must not exceed max")
		}
	}
	for _, f := range p.SchemaFields {
		check("schema_fields", f.FieldSpec, "")
	}
	for _, c := range p.Collections {
		for _, prop := range c.Properties {
			check("collections."+c.Name, prop.FieldSpec, c.Name+"."+prop.Name)
		}
	}
	for _, r := range p.ExtractionRules {
		for _, t := range r.TargetFields {
			if _, ok := targets[strings.ToLower(t)]; !ok {
				v.Fail("extraction_rules["+r.RuleName+"].target_fields", t, "does not name a field or property")
			}
		}
	}
	for _, k := range p.KnowledgeDocuments {
		if k.TargetField == "" {
			continue
		}
		if _, ok := targets[strings.ToLower(k.TargetField)]; !ok {
			v.Fail("knowledge_documents["+k.ID+"].target_field", k.TargetField, "does not name a field or property")
		}
	}
	return common.ValidateAndReturnError(v)
}
