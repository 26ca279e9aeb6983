package repository

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	entschema "entgo.io/ent/dialect/sql/schema"

	dbschema "github.com/joseph-ayodele/docextract/db/ent/schema"
	"github.com/joseph-ayodele/docextract/internal/common"
)

// table is the runtime view of one ent schema: its migration table plus the
// field validators declared on it.
type table struct {
	def        *entschema.Table
	validators map[string][]any
}

var tables = mustLoadTables(dbschema.All())

func mustLoadTables(schemas []ent.Interface) map[string]*table {
	out, err := loadTables(schemas)
	if err != nil {
		panic(err)
	}
	return out
}

func loadTables(schemas []ent.Interface) (map[string]*table, error) {
	out := make(map[string]*table, len(schemas))
	for _, s := range schemas {
		name := tableName(s)
		t := &table{
			def:        &entschema.Table{Name: name},
			validators: map[string][]any{},
		}
		cols := map[string]*entschema.Column{}
		for _, f := range s.Fields() {
			d := f.Descriptor()
			if d.Err != nil {
				return nil, fmt.Errorf("schema %s field %s: %w", name, d.Name, d.Err)
			}
			c := &entschema.Column{
				Name:       d.Name,
				Type:       d.Info.Type,
				Unique:     d.Unique,
				Nullable:   d.Optional || d.Nillable,
				Size:       int64(d.Size),
				SchemaType: d.SchemaType,
			}
			t.def.Columns = append(t.def.Columns, c)
			cols[d.Name] = c
			if d.Name == "id" {
				t.def.PrimaryKey = []*entschema.Column{c}
			}
			if len(d.Validators) > 0 {
				t.validators[d.Name] = d.Validators
			}
		}
		for _, idx := range s.Indexes() {
			d := idx.Descriptor()
			ic := make([]*entschema.Column, 0, len(d.Fields))
			for _, fname := range d.Fields {
				c, ok := cols[fname]
				if !ok {
					return nil, fmt.Errorf("schema %s index references unknown field %s", name, fname)
				}
				ic = append(ic, c)
			}
			t.def.Indexes = append(t.def.Indexes, &entschema.Index{
				Name:    name + "_" + strings.Join(d.Fields, "_"),
				Unique:  d.Unique,
				Columns: ic,
			})
		}
		out[name] = t
	}
	return out, nil
}

func tableName(s ent.Interface) string {
	for _, a := range s.Annotations() {
		switch ann := a.(type) {
		case entsql.Annotation:
			if ann.Table != "" {
				return ann.Table
			}
		case *entsql.Annotation:
			if ann != nil && ann.Table != "" {
				return ann.Table
			}
		}
	}
	return strings.ToLower(fmt.Sprintf("%T", s))
}

// Migrate creates or updates every table declared in db/ent/schema.
func (db *DB) Migrate(ctx context.Context) error {
	defs := make([]*entschema.Table, 0, len(tables))
	for _, s := range dbschema.All() {
		defs = append(defs, tables[tableName(s)].def)
	}
	m, err := entschema.NewMigrate(db.drv)
	if err != nil {
		return fmt.Errorf("%w: migrate init: %v", common.ErrDatabase, err)
	}
	if err := m.Create(ctx, defs...); err != nil {
		return fmt.Errorf("%w: migrate: %v", common.ErrDatabase, err)
	}
	db.logger.Info("schema migrated", "tables", len(defs), "dialect", db.dialect)
	return nil
}

// validate runs the schema-declared validators for one column value. Nil values skip
// validation; optional columns are enforced by the database.
func validate(tbl, col string, v any) error {
	t, ok := tables[tbl]
	if !ok {
		return fmt.Errorf("unknown table %s", tbl)
	}
	for _, fn := range t.validators[col] {
		var err error
		switch check := fn.(type) {
		case func(string) error:
			if s, ok := v.(string); ok {
				err = check(s)
			}
		case func(int) error:
			if n, ok := v.(int); ok {
				err = check(n)
			}
		case func(int64) error:
			if n, ok := v.(int64); ok {
				err = check(n)
			}
		case func(float64) error:
			if f, ok := v.(float64); ok {
				err = check(f)
			}
		}
		if err != nil {
			return common.NewAppError("VALIDATION_ERROR", fmt.Sprintf("%s.%s", tbl, col), fmt.Errorf("%w: %v", common.ErrValidation, err))
		}
	}
	return nil
}

// column is one name/value pair of an insert.
type column struct {
	name  string
	value any
}

// insert validates and writes one row.
func (db *DB) insert(ctx context.Context, ex execer, tbl string, cols ...column) error {
	names := make([]string, 0, len(cols))
	values := make([]any, 0, len(cols))
	for _, c := range cols {
		if err := validate(tbl, c.name, c.value); err != nil {
			return err
		}
		names = append(names, c.name)
		values = append(values, c.value)
	}
	q, args := db.builder().Insert(tbl).Columns(names...).Values(values...).Query()
	if _, err := ex.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("%w: insert %s: %v", common.ErrDatabase, tbl, err)
	}
	return nil
}
