package sqlorm

import (
	"fmt"
)

// FieldKind identifies the field descriptor variant.
type FieldKind int

const (
	GenericKind FieldKind = iota
	StringKind
	BooleanKind
	IntegerKind
	FloatKind
	TextKind
)

var kindNames = [...]string{
	GenericKind: "Field",
	StringKind:  "StringField",
	BooleanKind: "BooleanField",
	IntegerKind: "IntegerField",
	FloatKind:   "FloatField",
	TextKind:    "TextField",
}

func (k FieldKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("FieldKind(%d)", int(k))
}

// Field describes one column of a record type: its name, SQL column type,
// whether it is the primary key and its default value.
//
// Default holds either a literal value or a func() any that produces one.
type Field struct {
	Kind       FieldKind
	Name       string
	ColumnType string
	PrimaryKey bool
	Default    any
}

// FieldOption configures a [Field] at construction.
type FieldOption func(*Field)

// PrimaryKey marks the field as the primary key. Boolean and text fields
// cannot be primary keys and ignore this option.
func PrimaryKey() FieldOption {
	return func(f *Field) {
		if f.Kind != BooleanKind && f.Kind != TextKind {
			f.PrimaryKey = true
		}
	}
}

// Default sets the value used when the field is unset on save. v is either a
// literal or a func() any called each time a default is needed.
func Default(v any) FieldOption {
	return func(f *Field) { f.Default = v }
}

// DDL overrides the SQL column type.
func DDL(columnType string) FieldOption {
	return func(f *Field) { f.ColumnType = columnType }
}

func newField(kind FieldKind, name, columnType string, def any, opts []FieldOption) Field {
	f := Field{Kind: kind, Name: name, ColumnType: columnType, Default: def}
	for _, o := range opts {
		o(&f)
	}
	return f
}

// NewField returns a generic field with the given column type and no default.
func NewField(name, columnType string, opts ...FieldOption) Field {
	return newField(GenericKind, name, columnType, nil, opts)
}

// StringField returns a varchar(100) field with no default.
func StringField(name string, opts ...FieldOption) Field {
	return newField(StringKind, name, "varchar(100)", nil, opts)
}

// BooleanField returns a boolean field defaulting to false.
func BooleanField(name string, opts ...FieldOption) Field {
	return newField(BooleanKind, name, "boolean", false, opts)
}

// IntegerField returns a bigint field defaulting to 0.
func IntegerField(name string, opts ...FieldOption) Field {
	return newField(IntegerKind, name, "bigint", int64(0), opts)
}

// FloatField returns a real field defaulting to 0.0.
func FloatField(name string, opts ...FieldOption) Field {
	return newField(FloatKind, name, "real", 0.0, opts)
}

// TextField returns a text field with no default. It is never a primary key.
func TextField(name string, opts ...FieldOption) Field {
	return newField(TextKind, name, "text", nil, opts)
}

// HasDefault reports whether the field carries a default value.
func (f Field) HasDefault() bool {
	return f.Default != nil
}

// DefaultValue returns the field's default, calling the producer if the
// default is a func() any.
func (f Field) DefaultValue() any {
	if producer, ok := f.Default.(func() any); ok {
		return producer()
	}
	return f.Default
}

func (f Field) String() string {
	return fmt.Sprintf("<%s, %s:%s>", f.Kind, f.ColumnType, f.Name)
}
