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

// SessionBatch is append-only: one row per model call, failed calls included.
type SessionBatch struct{ ent.Schema }

func (SessionBatch) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "session_batch"},
	}
}

func (SessionBatch) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.UUID("session_id", uuid.UUID{}),
		field.Int("batch_number").Positive(),
		field.Int("start_index").Default(0),
		field.Int("end_index").Default(0),
		field.Text("extraction_prompt"),
		field.Text("ai_response").Optional(),
		field.Int("input_token_count").Default(0),
		field.Int("output_token_count").Default(0),
		field.Int("validation_count").Default(0),
		field.String("status").
			Validate(utils.EnumValidator(constants.BatchStatuses...)),
		field.String("error_kind").Optional().Nillable(),
		field.Text("error_message").Optional().Nillable(),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (SessionBatch) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("session_id", "batch_number").Unique(),
		index.Fields("session_id", "status"),
	}
}
