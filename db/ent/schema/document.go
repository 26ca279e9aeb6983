package schema

import (
	"encoding/json"
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

type Document struct{ ent.Schema }

func (Document) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "document"},
	}
}

func (Document) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.UUID("session_id", uuid.UUID{}),
		field.Int("position").NonNegative(),
		field.String("name").NotEmpty(),
		field.String("mime_type").Optional(),
		field.String("format").Optional().
			Validate(utils.EnumValidator(append([]string{""}, constants.FileTypes...)...)),
		field.Int64("size_bytes").Default(0),
		field.Text("extracted_text").Optional(),
		field.JSON("meta", json.RawMessage{}).Optional(),
		field.Text("error").Optional().Nillable(),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (Document) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("session_id", "position").Unique(),
	}
}
