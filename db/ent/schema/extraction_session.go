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

type ExtractionSession struct{ ent.Schema }

func (ExtractionSession) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "extraction_session"},
	}
}

func (ExtractionSession) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.String("project_id").NotEmpty(),
		field.String("status").
			Validate(utils.EnumValidator(constants.SessionStatuses...)),
		field.String("tool").
			Validate(utils.EnumValidator(string(constants.ToolKindAI), string(constants.ToolKindFunction))),
		field.Int("total_records").Default(0),
		field.Int("input_token_count").Default(0),
		field.Int("output_token_count").Default(0),
		field.Time("created_at").Default(time.Now).Immutable(),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (ExtractionSession) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("project_id", "status"),
	}
}
