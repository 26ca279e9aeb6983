package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

// projectFile is the on-disk YAML shape. Type-specific settings sit flat on each field and
// are folded into the field's FieldConfig.
type projectFile struct {
	ID                 string           `yaml:"id"`
	Name               string           `yaml:"name"`
	Tool               string           `yaml:"tool"`
	SchemaFields       []fieldFile      `yaml:"schema_fields"`
	Collections        []collectionFile `yaml:"collections"`
	KnowledgeDocuments []knowledgeFile  `yaml:"knowledge_documents"`
	ExtractionRules    []ruleFile       `yaml:"extraction_rules"`
}

type ruleFile struct {
	RuleName     string   `yaml:"rule_name"`
	RuleContent  string   `yaml:"rule_content"`
	TargetFields []string `yaml:"target_fields"`
}

type fieldFile struct {
	ID                         string   `yaml:"id"`
	Name                       string   `yaml:"name"`
	Type                       string   `yaml:"type"`
	Description                string   `yaml:"description"`
	AutoVerificationConfidence *int     `yaml:"auto_verification_confidence"`
	OrderIndex                 *int     `yaml:"order_index"`
	MaxLength                  int      `yaml:"max_length"`
	Min                        *float64 `yaml:"min"`
	Max                        *float64 `yaml:"max"`
	Decimals                   int      `yaml:"decimals"`
	Layout                     string   `yaml:"layout"`
	Options                    []string `yaml:"options"`
}

type collectionFile struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Properties  []fieldFile `yaml:"properties"`
}

type knowledgeFile struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description"`
	Content     string `yaml:"content"`
	ContentFile string `yaml:"content_file"`
	TargetField string `yaml:"target_field"`
}

func (f fieldFile) toSpec(position int) entity.FieldSpec {
	spec := entity.FieldSpec{
		ID:                         f.ID,
		Name:                       f.Name,
		Type:                       constants.FieldType(f.Type),
		Description:                f.Description,
		AutoVerificationConfidence: constants.DefaultAutoVerificationConfidence,
		OrderIndex:                 position,
	}
	if f.AutoVerificationConfidence != nil {
		spec.AutoVerificationConfidence = *f.AutoVerificationConfidence
	}
	if f.OrderIndex != nil {
		spec.OrderIndex = *f.OrderIndex
	}
	switch spec.Type {
	case constants.FieldTypeNumber:
		spec.Config = entity.NumberConfig{Min: f.Min, Max: f.Max, Decimals: f.Decimals}
	case constants.FieldTypeDate:
		spec.Config = entity.DateConfig{Layout: f.Layout}
	case constants.FieldTypeChoice:
		spec.Config = entity.ChoiceConfig{Options: f.Options}
	default:
		spec.Config = entity.TextConfig{MaxLength: f.MaxLength}
	}
	return spec
}

func (f projectFile) toEntity(baseDir string) (*entity.Project, error) {
	p := &entity.Project{
		ID:   f.ID,
		Name: f.Name,
		Tool: constants.ToolKind(f.Tool),
	}
	for _, r := range f.ExtractionRules {
		p.ExtractionRules = append(p.ExtractionRules, entity.ExtractionRule{
			RuleName:     r.RuleName,
			RuleContent:  r.RuleContent,
			TargetFields: r.TargetFields,
		})
	}
	if p.Tool == "" {
		p.Tool = constants.ToolKindAI
	}
	for i, sf := range f.SchemaFields {
		p.SchemaFields = append(p.SchemaFields, entity.SchemaField{FieldSpec: sf.toSpec(i)})
	}
	for _, cf := range f.Collections {
		c := entity.Collection{ID: cf.ID, Name: cf.Name, Description: cf.Description}
		for i, pf := range cf.Properties {
			c.Properties = append(c.Properties, entity.Property{FieldSpec: pf.toSpec(i)})
		}
		p.Collections = append(p.Collections, c)
	}
	for _, kf := range f.KnowledgeDocuments {
		content := kf.Content
		if kf.ContentFile != "" {
			path := kf.ContentFile
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			b, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("knowledge document %s: %w", kf.ID, err)
			}
			content = string(b)
		}
		p.KnowledgeDocuments = append(p.KnowledgeDocuments, entity.KnowledgeDocument{
			ID:          kf.ID,
			DisplayName: kf.DisplayName,
			Description: kf.Description,
			Content:     content,
			TargetField: kf.TargetField,
		})
	}
	return p, nil
}
