package typeinfo

import (
	"reflect"
)

// Field represents a single field from a struct type.
type Field struct {
	Type reflect.Type

	// Name is the name of the struct field.
	Name string

	// Index of this field in the structure.
	Index int
}

// Info represents reflected information about a struct type.
type Info struct {
	Type reflect.Type

	// Relate tag names to fields.
	TagToField map[string]Field

	// Relate field names to tags.
	FieldToTag map[string]string

	// Tags in field declaration order.
	Tags []string
}

// Field returns the struct field tagged with the given column name.
func (info *Info) Field(tag string) (Field, bool) {
	f, ok := info.TagToField[tag]
	return f, ok
}
