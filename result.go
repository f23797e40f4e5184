package sqlorm

import (
	"github.com/pkg/errors"
)

// ErrRowCount is wrapped by [Result.Err] when a mutation did not affect
// exactly one row.
var ErrRowCount = errors.New("affected row count is not 1")

// Op names a mutation.
type Op string

const (
	OpSave   Op = "save"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
)

// Result describes the outcome of a mutation by primary key. A mutation that
// affects no rows, for example because the primary key is not in the table,
// still returns a nil error; callers who need it to fail use [Result.Err].
type Result struct {
	Op           Op
	Table        string
	RowsAffected int64
}

// Matched reports whether exactly one row was affected.
func (r Result) Matched() bool {
	return r.RowsAffected == 1
}

// Err returns an error wrapping [ErrRowCount] if the mutation did not affect
// exactly one row, and nil otherwise.
func (r Result) Err() error {
	if r.Matched() {
		return nil
	}
	return errors.Wrapf(ErrRowCount, "failed to %s %q by primary key: affected rows: %d", r.Op, r.Table, r.RowsAffected)
}
