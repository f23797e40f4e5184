// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlorm

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/canonical/sqlorm/internal/typeinfo"
)

// Table binds a [Schema] to the record type T, a struct whose `db` tags name
// the columns of the table. A Table is created once per record type with
// [Define] and is safe for concurrent use.
type Table[T any] struct {
	schema *Schema
	info   *typeinfo.Info
}

// Define derives the schema of a record type from its field descriptors and
// binds it to T. If table is empty the name of T is used. Every field must
// have a matching `db` tag in T.
func Define[T any](table string, fields ...Field) (*Table[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return nil, errors.Errorf("record type must be a struct, got %s", typ.Kind())
	}
	if table == "" {
		table = typ.Name()
	}
	schema, err := NewSchema(table, fields...)
	if err != nil {
		return nil, err
	}
	info, err := typeinfo.TypeInfoOf(typ)
	if err != nil {
		return nil, errors.Wrapf(err, "record type %s", typ.Name())
	}
	for _, col := range schema.Columns() {
		if _, ok := info.Field(col); !ok {
			return nil, errors.Errorf("record type %s has no field tagged db:%q", typ.Name(), col)
		}
	}

	logrus.WithField("table", table).Debugf("found model: %s", typ.Name())
	return &Table[T]{schema: schema, info: info}, nil
}

// MustDefine is the same as [Define] except that it panics on error. It is
// intended for package level declarations, so that an invalid record type
// stops the program before any record is used.
//
// Define and MustDefine run before any pool exists, so the "found model"
// debug message goes to the logrus standard logger.
func MustDefine[T any](table string, fields ...Field) *Table[T] {
	t, err := Define[T](table, fields...)
	if err != nil {
		panic(err)
	}
	return t
}

// Schema returns the derived schema of the table.
func (t *Table[T]) Schema() *Schema {
	return t.schema
}

// Find fetches the record with the given primary key. It returns nil and no
// error if there is no such record.
func (t *Table[T]) Find(ctx context.Context, q Querier, pk any) (*T, error) {
	query := fmt.Sprintf("%s where %s = ?", t.schema.Select, quote(t.schema.PrimaryKey))
	var rec *T
	_, err := q.Query(ctx, query, []any{pk}, 1, func(rows *sqlx.Rows) error {
		r, err := t.scan(rows)
		rec = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Limit restricts the number of records returned by [Table.FindAll].
type Limit struct {
	offset int
	count  int
	ranged bool
}

// LimitTo returns at most count records.
func LimitTo(count int) *Limit {
	return &Limit{count: count}
}

// LimitRange skips offset records then returns at most count records.
func LimitRange(offset, count int) *Limit {
	return &Limit{offset: offset, count: count, ranged: true}
}

// FindOptions holds the optional clauses of [Table.FindAll].
type FindOptions struct {
	// Where is the condition following the WHERE keyword. It may use `?`
	// placeholders bound to Args.
	Where   string
	Args    []any
	OrderBy string
	Limit   *Limit
}

// FindAll fetches the records matching the options, in the order the database
// returns them.
//
// The Where and OrderBy clauses are inserted into the query as they are and
// must not contain user input.
func (t *Table[T]) FindAll(ctx context.Context, q Querier, opts FindOptions) ([]*T, error) {
	query, args := t.findAllQuery(opts)
	recs := []*T{}
	_, err := q.Query(ctx, query, args, 0, func(rows *sqlx.Rows) error {
		r, err := t.scan(rows)
		if err != nil {
			return err
		}
		recs = append(recs, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (t *Table[T]) findAllQuery(opts FindOptions) (string, []any) {
	parts := []string{t.schema.Select}
	args := append([]any(nil), opts.Args...)
	if opts.Where != "" {
		parts = append(parts, "where", opts.Where)
	}
	if opts.OrderBy != "" {
		parts = append(parts, "order by", opts.OrderBy)
	}
	if l := opts.Limit; l != nil {
		parts = append(parts, "limit")
		if l.ranged {
			parts = append(parts, "?, ?")
			args = append(args, l.offset, l.count)
		} else {
			parts = append(parts, "?")
			args = append(args, l.count)
		}
	}
	return strings.Join(parts, " "), args
}

// Count runs the integer aggregate selectExpr, for example "count(id)", over
// the records matching where and returns its value, or 0 if it is NULL. Use
// [Table.Aggregate] for expressions with other result types.
func (t *Table[T]) Count(ctx context.Context, q Querier, selectExpr, where string, args ...any) (int64, error) {
	var num sql.NullInt64
	if err := t.aggregate(ctx, q, selectExpr, where, args, &num); err != nil {
		return 0, err
	}
	return num.Int64, nil
}

// Aggregate runs the single-row aggregate selectExpr, for example
// "avg(views)", over the records matching where and returns its value as the
// driver decodes it. Raw bytes are returned as a string, NULL as nil.
func (t *Table[T]) Aggregate(ctx context.Context, q Querier, selectExpr, where string, args ...any) (any, error) {
	var val any
	if err := t.aggregate(ctx, q, selectExpr, where, args, &val); err != nil {
		return nil, err
	}
	if b, ok := val.([]byte); ok {
		return string(b), nil
	}
	return val, nil
}

func (t *Table[T]) aggregate(ctx context.Context, q Querier, selectExpr, where string, args []any, dest any) error {
	query := fmt.Sprintf("select %s _num_ from %s", selectExpr, quote(t.schema.Table))
	if where != "" {
		query += " where " + where
	}
	_, err := q.Query(ctx, query, args, 1, func(rows *sqlx.Rows) error {
		return rows.Scan(dest)
	})
	return err
}

// Save inserts the record. Unset fields that have a default are set to it
// first. Affecting a number of rows other than one is logged and reported in
// the [Result], not as an error.
func (t *Table[T]) Save(ctx context.Context, q Querier, rec *T) (Result, error) {
	v, err := t.record(rec)
	if err != nil {
		return Result{}, err
	}
	args := make([]any, 0, len(t.schema.Fields)+1)
	for _, name := range t.schema.bindOrder() {
		val, err := t.valueOrDefault(v, name, q.Logger())
		if err != nil {
			return Result{}, err
		}
		args = append(args, val)
	}
	rows, err := q.Execute(ctx, t.schema.Insert, args...)
	if err != nil {
		return Result{}, err
	}
	return t.result(q, OpSave, rows), nil
}

// Update writes the current values of the record's fields to the row with the
// record's primary key. Defaults are not applied. Affecting a number of rows
// other than one is logged and reported in the [Result], not as an error.
func (t *Table[T]) Update(ctx context.Context, q Querier, rec *T) (Result, error) {
	if t.schema.Update == "" {
		return Result{}, errors.Errorf("table %q has no fields to update", t.schema.Table)
	}
	v, err := t.record(rec)
	if err != nil {
		return Result{}, err
	}
	args := make([]any, 0, len(t.schema.Fields)+1)
	for _, name := range t.schema.bindOrder() {
		val, err := t.value(v, name)
		if err != nil {
			return Result{}, err
		}
		args = append(args, val)
	}
	rows, err := q.Execute(ctx, t.schema.Update, args...)
	if err != nil {
		return Result{}, err
	}
	return t.result(q, OpUpdate, rows), nil
}

// Remove deletes the row with the record's primary key. Affecting a number of
// rows other than one is logged and reported in the [Result], not as an error.
func (t *Table[T]) Remove(ctx context.Context, q Querier, rec *T) (Result, error) {
	v, err := t.record(rec)
	if err != nil {
		return Result{}, err
	}
	pk, err := t.value(v, t.schema.PrimaryKey)
	if err != nil {
		return Result{}, err
	}
	rows, err := q.Execute(ctx, t.schema.Delete, pk)
	if err != nil {
		return Result{}, err
	}
	return t.result(q, OpRemove, rows), nil
}

// Value returns the value of the named field of the record.
func (t *Table[T]) Value(rec *T, name string) (any, error) {
	v, err := t.record(rec)
	if err != nil {
		return nil, err
	}
	return t.value(v, name)
}

// ValueOrDefault returns the value of the named field of the record. If the
// field holds its zero value and has a default, the default is stored into
// the record and returned.
func (t *Table[T]) ValueOrDefault(rec *T, name string) (any, error) {
	v, err := t.record(rec)
	if err != nil {
		return nil, err
	}
	return t.valueOrDefault(v, name, logrus.StandardLogger())
}

// FromRow decodes a row returned by [Pool.Select] into a record. Columns that
// are not fields of the record are ignored.
func (t *Table[T]) FromRow(row Row) (*T, error) {
	rec := new(T)
	v := reflect.ValueOf(rec).Elem()
	for col, val := range row {
		if _, ok := t.schema.Field(col); !ok {
			continue
		}
		field, err := t.info.Locate(v, col)
		if err != nil {
			return nil, err
		}
		if err := typeinfo.Assign(field, val); err != nil {
			return nil, errors.Wrapf(err, "column %q", col)
		}
	}
	return rec, nil
}

func (t *Table[T]) record(rec *T) (reflect.Value, error) {
	return typeinfo.ValidateRecord(t.info.Type, rec)
}

func (t *Table[T]) value(v reflect.Value, name string) (any, error) {
	if _, ok := t.schema.Field(name); !ok {
		return nil, errors.Errorf("table %q has no field %q", t.schema.Table, name)
	}
	field, err := t.info.Locate(v, name)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

func (t *Table[T]) valueOrDefault(v reflect.Value, name string, log logrus.FieldLogger) (any, error) {
	desc, ok := t.schema.Field(name)
	if !ok {
		return nil, errors.Errorf("table %q has no field %q", t.schema.Table, name)
	}
	field, err := t.info.Locate(v, name)
	if err != nil {
		return nil, err
	}
	if typeinfo.IsUnset(field) && desc.HasDefault() {
		def := desc.DefaultValue()
		log.Debugf("using default value for %s: %v", name, def)
		if err := typeinfo.Assign(field, def); err != nil {
			return nil, errors.Wrapf(err, "default value for %q", name)
		}
	}
	return field.Interface(), nil
}

func (t *Table[T]) scan(rows *sqlx.Rows) (*T, error) {
	rec := new(T)
	if err := rows.StructScan(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (t *Table[T]) result(q Querier, op Op, rows int64) Result {
	r := Result{Op: op, Table: t.schema.Table, RowsAffected: rows}
	if !r.Matched() {
		q.Logger().WithField("table", r.Table).Warnf("failed to %s by primary key: affected rows: %d", op, rows)
	}
	return r
}
