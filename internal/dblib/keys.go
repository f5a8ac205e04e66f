package dblib

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// KeyDescriptor names the column or ordered columns that locate a row.
// Rows match on the conjunction of equality over all Columns.
type KeyDescriptor struct {
	Columns []string
	// Fallback is set when no primary-key index was found and Columns is a
	// best-effort substitute.
	Fallback bool
	// Unique is set when Columns are known to identify at most one row:
	// always for a primary key, and for a fallback column whose values were
	// all distinct.
	Unique bool
	// Reason explains the fallback for the user.
	Reason string
}

// Single returns the key column when the key has exactly one column.
func (k KeyDescriptor) Single() (string, bool) {
	if len(k.Columns) == 1 {
		return k.Columns[0], true
	}
	return "", false
}

// Contains reports whether col is part of the key.
func (k KeyDescriptor) Contains(col string) bool {
	for _, c := range k.Columns {
		if c == col {
			return true
		}
	}
	return false
}

func (k KeyDescriptor) String() string {
	if col, ok := k.Single(); ok {
		return col
	}
	return "(" + strings.Join(k.Columns, ", ") + ")"
}

// Resolver determines and caches the row identity of each table. The cache
// lives until Reset, which the caller invokes on reconnect.
type Resolver struct {
	session *Session

	mu     sync.Mutex
	cache  map[string]KeyDescriptor
	flight singleflight.Group
}

func NewResolver(session *Session) *Resolver {
	return &Resolver{
		session: session,
		cache:   make(map[string]KeyDescriptor),
	}
}

// Resolve returns the key descriptor of table. Metadata failures are not
// returned: they send resolution to the data-driven fallback. An error is
// returned only when the table's columns cannot be read at all.
func (r *Resolver) Resolve(ctx context.Context, table string) (KeyDescriptor, error) {
	r.mu.Lock()
	if kd, ok := r.cache[table]; ok {
		r.mu.Unlock()
		return kd, nil
	}
	r.mu.Unlock()

	v, err, _ := r.flight.Do(table, func() (any, error) {
		kd, err := r.resolve(ctx, table)
		if err != nil {
			return KeyDescriptor{}, err
		}
		r.mu.Lock()
		r.cache[table] = kd
		r.mu.Unlock()
		return kd, nil
	})
	if err != nil {
		return KeyDescriptor{}, err
	}
	return v.(KeyDescriptor), nil
}

// Cached returns the descriptor of table without touching the database.
func (r *Resolver) Cached(table string) (KeyDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kd, ok := r.cache[table]
	return kd, ok
}

// Invalidate forgets the cached key of table.
func (r *Resolver) Invalidate(table string) {
	r.mu.Lock()
	delete(r.cache, table)
	r.mu.Unlock()
}

// Reset forgets every cached key.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.cache = make(map[string]KeyDescriptor)
	r.mu.Unlock()
}

func (r *Resolver) resolve(ctx context.Context, table string) (KeyDescriptor, error) {
	log := r.session.Logger().WithValues("table", table)

	pk, err := r.session.PrimaryKey(ctx, table)
	switch {
	case err == nil && len(pk) > 0:
		log.V(2).Info("primary key", "columns", pk)
		return KeyDescriptor{Columns: pk, Unique: true}, nil
	case err != nil && !errors.Is(err, ErrMetadataUnsupported):
		log.V(1).Info("index metadata unavailable, using fallback", "error", err.Error())
	}

	data, err := r.session.Snapshot(ctx, table, nil)
	if err != nil {
		// Rows unreadable: the declared columns still give a usable key.
		columns, colErr := r.session.Columns(ctx, table)
		if colErr != nil {
			return KeyDescriptor{}, colErr
		}
		if len(columns) == 0 {
			return KeyDescriptor{}, wrap(MetadataError, "resolve key", table, ErrNoColumns)
		}
		return KeyDescriptor{
			Columns:  []string{columns[0].Name},
			Fallback: true,
			Reason:   fmt.Sprintf("rows of %s could not be read; using first column %q", table, columns[0].Name),
		}, nil
	}
	kd, err := fallbackKey(data)
	if err != nil {
		return KeyDescriptor{}, wrap(MetadataError, "resolve key", table, err)
	}
	log.V(1).Info("fallback key", "columns", kd.Columns, "reason", kd.Reason)
	return kd, nil
}

// fallbackKey selects the first column, in declared order, whose values are
// all distinct. NULL counts as a value, so two NULLs are duplicates. With no
// such column the first declared column is used.
func fallbackKey(data *TableData) (KeyDescriptor, error) {
	if len(data.Columns) == 0 {
		return KeyDescriptor{}, ErrNoColumns
	}
	for i, col := range data.Columns {
		if columnIsUnique(data.Rows, i) {
			return KeyDescriptor{
				Columns:  []string{col.Name},
				Fallback: true,
				Unique:   true,
				Reason:   fmt.Sprintf("table %s has no primary key; using unique column %q", data.Name, col.Name),
			}, nil
		}
	}
	first := data.Columns[0].Name
	return KeyDescriptor{
		Columns:  []string{first},
		Fallback: true,
		Reason: fmt.Sprintf("table %s has no primary key and no column with all-distinct values; "+
			"using first column %q, updates may hit more than one row", data.Name, first),
	}, nil
}

func columnIsUnique(rows [][]any, col int) bool {
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		k := valueKey(row[col])
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
	}
	return true
}

// valueKey boxes a scanned value into a comparable string. The type tag
// keeps 1 and "1" apart; NULL has its own box.
func valueKey(v any) string {
	switch x := v.(type) {
	case nil:
		return "n:"
	case []byte:
		return "s:" + string(x)
	case string:
		return "s:" + x
	default:
		return fmt.Sprintf("%T:%v", x, x)
	}
}
