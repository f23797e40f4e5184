// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"reflect"

	"github.com/pkg/errors"
)

// ValidateRecord checks that arg is a non-nil pointer to a struct of type t and
// returns the addressable struct value it points to.
func ValidateRecord(t reflect.Type, arg any) (reflect.Value, error) {
	v := reflect.ValueOf(arg)
	if isInvalidNil(v) {
		return reflect.Value{}, errors.Errorf("need pointer to %s, got nil", t.Name())
	}
	if v.Kind() != reflect.Pointer {
		return reflect.Value{}, errors.Errorf("need pointer to %s, got %s", t.Name(), v.Kind())
	}
	v = v.Elem()
	if v.Type() != t {
		return reflect.Value{}, errors.Errorf("need pointer to %s, got pointer to %s", t.Name(), v.Type().Name())
	}
	return v, nil
}

func isInvalidNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Invalid:
		return true
	case reflect.Pointer, reflect.Map:
		return v.IsNil()
	}
	return false
}
