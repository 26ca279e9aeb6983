package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/db/ent/schema/utils"
)

type FieldValidation struct{ ent.Schema }

func (FieldValidation) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "field_validation"},
	}
}

func (FieldValidation) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.UUID("session_id", uuid.UUID{}),
		field.UUID("batch_id", uuid.UUID{}),
		field.String("field_type").
			Validate(utils.EnumValidator(constants.FieldKinds...)),
		field.String("field_id").NotEmpty(),
		field.String("field_name"),
		field.String("collection_name").Optional().Nillable(),
		field.Text("extracted_value").Optional().Nillable(),
		field.Float("confidence_score").Min(0).Max(100),
		field.Text("ai_reasoning").Optional(),
		field.String("document_source").Optional(),
		field.String("validation_status").
			Validate(utils.EnumValidator(constants.ValidationStatuses...)),
		field.Int("record_index").NonNegative(),
		field.Int("batch_number").Positive(),
		field.JSON("flags", []string{}).Optional(),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (FieldValidation) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("session_id", "batch_number", "field_id", "record_index").Unique(),
		index.Fields("session_id", "field_id", "validation_status"),
	}
}
