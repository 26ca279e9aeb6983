package schema

import "entgo.io/ent"

// All lists every schema in migration order.
func All() []ent.Interface {
	return []ent.Interface{
		ExtractionSession{},
		SessionBatch{},
		FieldValidation{},
		Document{},
	}
}
