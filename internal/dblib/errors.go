package dblib

import (
	"errors"
	"fmt"
)

// Kind classifies failures by how the editor recovers from them.
type Kind int

const (
	// ConnectionError means the driver or the database file is unreachable.
	ConnectionError Kind = iota + 1
	// MetadataError is a table, column or index introspection failure.
	MetadataError
	// StatementError is a single insert, update or delete that failed.
	StatementError
	// IntegrityWarning means no reliable row key exists and a fallback is used.
	IntegrityWarning
)

func (k Kind) String() string {
	switch k {
	case ConnectionError:
		return "connection error"
	case MetadataError:
		return "metadata error"
	case StatementError:
		return "statement error"
	case IntegrityWarning:
		return "integrity warning"
	default:
		return "error"
	}
}

var (
	ErrNoSelection         = errors.New("no row selected")
	ErrMetadataUnsupported = errors.New("index metadata is not available for this database")
	ErrNoRowsAffected      = errors.New("no rows affected")
	ErrNoColumns           = errors.New("table has no columns")
	ErrClosed              = errors.New("session is closed")
)

type Error struct {
	Kind  Kind
	Op    string
	Table string
	Err   error
}

func (e *Error) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(kind Kind, op, table string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Table: table, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
