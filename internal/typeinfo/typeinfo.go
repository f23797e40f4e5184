package typeinfo

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var cacheMutex sync.RWMutex
var cache = make(map[reflect.Type]*Info)

// GetTypeInfo will return the Info of a given type,
// generating and caching as required.
func GetTypeInfo(value any) (*Info, error) {
	if value == (any)(nil) {
		return &Info{}, errors.Errorf("cannot reflect nil value")
	}

	v := reflect.ValueOf(value)
	v = reflect.Indirect(v)
	if !v.IsValid() {
		return &Info{}, errors.Errorf("cannot reflect nil value")
	}

	return TypeInfoOf(v.Type())
}

// TypeInfoOf is the same as GetTypeInfo but takes the type directly. Pointer
// types are dereferenced.
func TypeInfoOf(t reflect.Type) (*Info, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	cacheMutex.RLock()
	info, found := cache[t]
	cacheMutex.RUnlock()
	if found {
		return info, nil
	}

	info, err := generate(t)
	if err != nil {
		return &Info{}, err
	}

	cacheMutex.Lock()
	cache[t] = info
	cacheMutex.Unlock()

	return info, nil
}

// generate produces and returns reflection information for the input
// reflect.Type that is specifically required for sqlorm operation.
func generate(typ reflect.Type) (*Info, error) {
	// Reflection information is only generated for structs.
	if typ.Kind() != reflect.Struct {
		return &Info{}, errors.Errorf("can only reflect struct type")
	}

	info := Info{
		TagToField: make(map[string]Field),
		FieldToTag: make(map[string]string),
		Type:       typ,
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		// Fields without a "db" tag are outside of sqlorm's remit.
		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		if !field.IsExported() {
			return &Info{}, errors.Errorf("field %q with db tag %q is not exported", field.Name, tag)
		}
		tag, err := parseTag(tag)
		if err != nil {
			return &Info{}, err
		}
		if _, ok := info.TagToField[tag]; ok {
			return &Info{}, errors.Errorf("db tag %q appears more than once", tag)
		}
		info.TagToField[tag] = Field{
			Name:  field.Name,
			Index: i,
			Type:  field.Type,
		}
		info.FieldToTag[field.Name] = tag
		info.Tags = append(info.Tags, tag)
	}

	return &info, nil
}

// This expression should be aligned with the identifiers the schema accepts
// for table and column names.
var validColNameRx = regexp.MustCompile(`^([a-zA-Z_])+([a-zA-Z_0-9])*$`)

// parseTag parses the input tag string and returns the column name. Options
// after a comma are not supported.
func parseTag(tag string) (string, error) {
	options := strings.Split(tag, ",")
	if len(options) > 1 {
		return "", errors.Errorf("unexpected tag value %q", options[1])
	}

	name := options[0]
	if len(name) == 0 {
		return "", errors.Errorf("empty db tag")
	}

	if !validColNameRx.MatchString(name) {
		return "", errors.Errorf("invalid column name in 'db' tag")
	}

	return name, nil
}
