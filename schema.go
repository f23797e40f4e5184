package sqlorm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var safeNameRE = regexp.MustCompile("^[a-zA-Z0-9_]+$")

// Schema is the table mapping of a record type, derived once from its field
// descriptors. It holds the SQL templates used to read and write records and
// is never modified after [NewSchema] returns.
type Schema struct {
	// Table is the table name.
	Table string
	// PrimaryKey is the name of the primary key field.
	PrimaryKey string
	// Fields lists the other fields in declaration order.
	Fields []string

	// Select lists the primary key then the other fields.
	Select string
	// Insert binds the other fields then the primary key.
	Insert string
	// Update binds the other fields then the primary key.
	Update string
	// Delete binds the primary key.
	Delete string

	mappings map[string]Field
}

// NewSchema derives the schema of a table from its field descriptors. Exactly
// one field must be the primary key.
func NewSchema(table string, fields ...Field) (*Schema, error) {
	if !safeNameRE.MatchString(table) {
		return nil, errors.Errorf("unsafe table name %q", table)
	}
	s := &Schema{
		Table:    table,
		mappings: make(map[string]Field, len(fields)),
	}
	for _, f := range fields {
		if !safeNameRE.MatchString(f.Name) {
			return nil, errors.Errorf("unsafe column name %q in table %q", f.Name, table)
		}
		if _, ok := s.mappings[f.Name]; ok {
			return nil, errors.Errorf("duplicate field %q in table %q", f.Name, table)
		}
		s.mappings[f.Name] = f
		if f.PrimaryKey {
			if s.PrimaryKey != "" {
				return nil, errors.Errorf("duplicate primary key for field: %s", f.Name)
			}
			s.PrimaryKey = f.Name
		} else {
			s.Fields = append(s.Fields, f.Name)
		}
	}
	if s.PrimaryKey == "" {
		return nil, errors.Errorf("primary key not found in table %q", table)
	}

	escaped := make([]string, len(s.Fields))
	assignments := make([]string, len(s.Fields))
	for i, name := range s.Fields {
		escaped[i] = quote(name)
		assignments[i] = quote(name) + "=?"
	}
	pk := quote(s.PrimaryKey)
	tbl := quote(table)

	s.Select = fmt.Sprintf("select %s from %s", strings.Join(append([]string{pk}, escaped...), ", "), tbl)
	s.Insert = fmt.Sprintf("insert into %s (%s) values (%s)",
		tbl, strings.Join(append(escaped, pk), ", "), QuestionMarks(len(s.Fields)+1))
	if len(assignments) > 0 {
		s.Update = fmt.Sprintf("update %s set %s where %s = ?", tbl, strings.Join(assignments, ", "), pk)
	}
	s.Delete = fmt.Sprintf("delete from %s where %s = ?", tbl, pk)
	return s, nil
}

// MustSchema is the same as [NewSchema] except that it panics on error.
func MustSchema(table string, fields ...Field) *Schema {
	s, err := NewSchema(table, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Field returns the descriptor of the named field.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.mappings[name]
	return f, ok
}

// Columns returns every field name, primary key first, in the order of the
// select template.
func (s *Schema) Columns() []string {
	return append([]string{s.PrimaryKey}, s.Fields...)
}

// bindOrder returns the field names in the order the insert and update
// templates bind them.
func (s *Schema) bindOrder() []string {
	return append(append(make([]string, 0, len(s.Fields)+1), s.Fields...), s.PrimaryKey)
}

func quote(name string) string {
	return "`" + name + "`"
}

// QuestionMarks returns a string consisting of n `?` placeholders separated
// by commas. If n is <= 0, panics.
func QuestionMarks(n int) string {
	if n <= 0 {
		panic("sqlorm.QuestionMarks called with n <= 0")
	}
	var qmarks strings.Builder
	qmarks.Grow(3 * n)
	for i := 0; i < n; i++ {
		if i > 0 {
			qmarks.WriteString(", ")
		}
		qmarks.WriteByte('?')
	}
	return qmarks.String()
}
