package database

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a point read or delete finds no row for the key
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when two identities supplied for the same record disagree
	ErrConflict = errors.New("conflict")
)

// StorageError wraps a failure reported by PostgreSQL or the driver
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// RowRejected reports whether PostgreSQL refused the data itself rather than failing to run the
// statement: SQLSTATE class 22 (data exception, e.g. value too long) or 23 (integrity constraint)
func (e *StorageError) RowRejected() bool {
	var pqErr *pq.Error
	if errors.As(e.Err, &pqErr) {
		class := pqErr.Code.Class()
		return class == "22" || class == "23"
	}
	return false
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
