package typeinfo

import (
	"database/sql"
	"reflect"

	"github.com/pkg/errors"
)

var scannerInterface = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

// Locate returns the field of the struct value v that is tagged with the given
// column name. v must have the type described by info.
func (info *Info) Locate(v reflect.Value, tag string) (reflect.Value, error) {
	if v.Type() != info.Type {
		return reflect.Value{}, errors.Errorf("need %s, got %s", info.Type.Name(), v.Type().Name())
	}
	f, ok := info.TagToField[tag]
	if !ok {
		return reflect.Value{}, errors.Errorf("type %q has no %q db tag", info.Type.Name(), tag)
	}
	return v.Field(f.Index), nil
}

// IsUnset reports whether the field holds its zero value.
func IsUnset(field reflect.Value) bool {
	return field.IsZero()
}

// Assign stores val into the settable field, converting between compatible
// types. A nil val zeroes the field.
func Assign(field reflect.Value, val any) error {
	if !field.CanSet() {
		return errors.Errorf("cannot set field of type %s", field.Type())
	}
	if val == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	// Types such as sql.NullString decode themselves.
	if field.Addr().Type().Implements(scannerInterface) {
		return field.Addr().Interface().(sql.Scanner).Scan(val)
	}

	v := reflect.ValueOf(val)
	target := field.Type()
	if target.Kind() == reflect.Pointer {
		elem := reflect.New(target.Elem())
		if err := Assign(elem.Elem(), val); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}

	switch {
	case v.Type().AssignableTo(target):
		field.Set(v)
	case convertible(v.Type(), target):
		field.Set(v.Convert(target))
	default:
		return errors.Errorf("cannot assign %s to field of type %s", v.Type(), target)
	}
	return nil
}

// convertible restricts reflect's conversion rules to those that preserve the
// value. Integer to string conversion, for example, would produce a rune.
func convertible(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	switch {
	case isNumber(from.Kind()) && isNumber(to.Kind()):
		return true
	case from.Kind() == to.Kind():
		return true
	case from.Kind() == reflect.String && to.Kind() == reflect.Slice && to.Elem().Kind() == reflect.Uint8:
		return true
	case from.Kind() == reflect.Slice && from.Elem().Kind() == reflect.Uint8 && to.Kind() == reflect.String:
		return true
	}
	return false
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
