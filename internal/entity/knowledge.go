package entity

// KnowledgeDocument is reference material injected into the prompt. TargetField is empty
// for documents that apply globally.
type KnowledgeDocument struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Content     string `json:"content"`
	TargetField string `json:"target_field,omitempty"`
}

// ExtractionRule adjusts confidence scoring. An empty TargetFields makes it global.
type ExtractionRule struct {
	RuleName     string   `json:"rule_name"`
	RuleContent  string   `json:"rule_content"`
	TargetFields []string `json:"target_fields"`
}

func (r ExtractionRule) IsGlobal() bool {
	return len(r.TargetFields) == 0
}
