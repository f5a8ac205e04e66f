package dblib

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// openTestSession opens a SQLite file in a temp dir and runs the given DDL
// and DML statements against it.
func openTestSession(t *testing.T, stmts ...string) (*Session, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}
	s, err := NewSession(db, SQLite, logr.Discard())
	require.NoError(t, err)
	return s, db
}

type message struct {
	kind MessageKind
	text string
}

// fakeSurface records messages and answers prompts with canned replies.
type fakeSurface struct {
	*Grid
	messages []message

	formValues map[string]string
	formOK     bool
	formFields []string

	confirm bool
	prompts []string
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{Grid: NewGrid()}
}

func (f *fakeSurface) ShowMessage(kind MessageKind, text string) {
	f.messages = append(f.messages, message{kind, text})
}

func (f *fakeSurface) PromptForm(title string, fields []string) (map[string]string, bool) {
	f.formFields = fields
	return f.formValues, f.formOK
}

func (f *fakeSurface) PromptConfirm(text string) bool {
	f.prompts = append(f.prompts, text)
	return f.confirm
}

func (f *fakeSurface) lastMessage() message {
	if len(f.messages) == 0 {
		return message{}
	}
	return f.messages[len(f.messages)-1]
}

func (f *fakeSurface) hasMessage(kind MessageKind) bool {
	for _, m := range f.messages {
		if m.kind == kind {
			return true
		}
	}
	return false
}

func newTestReconciler(t *testing.T, stmts ...string) (*Reconciler, *fakeSurface, *sql.DB) {
	t.Helper()
	s, db := openTestSession(t, stmts...)
	surface := newFakeSurface()
	return NewReconciler(s, NewResolver(s), surface), surface, db
}

func queryStrings(t *testing.T, db *sql.DB, query string, args ...any) []string {
	t.Helper()
	rows, err := db.QueryContext(context.Background(), query, args...)
	require.NoError(t, err)
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v sql.NullString
		require.NoError(t, rows.Scan(&v))
		if v.Valid {
			out = append(out, v.String)
		} else {
			out = append(out, NullGlyph)
		}
	}
	require.NoError(t, rows.Err())
	return out
}
