package dblib

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const peopleDDL = `CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT NOT NULL, code TEXT UNIQUE)`

func peopleReconciler(t *testing.T) (*Reconciler, *fakeSurface, *sql.DB) {
	t.Helper()
	r, surface, db := newTestReconciler(t,
		peopleDDL,
		`INSERT INTO people VALUES (5, 'a', 'p'), (7, 'c', 'q'), (9, 'e', 'r')`,
	)
	_, err := r.Load(context.Background(), "people")
	require.NoError(t, err)
	return r, surface, db
}

func TestLoadPushesRowsOrderedByKey(t *testing.T) {
	r, surface, _ := newTestReconciler(t,
		peopleDDL,
		`INSERT INTO people VALUES (9, 'e', NULL), (5, 'a', 'p')`,
	)
	data, err := r.Load(context.Background(), "people")
	require.NoError(t, err)
	assert.Len(t, data.Rows, 2)
	assert.Equal(t, []string{"id", "name", "code"}, surface.Columns("people"))
	assert.Equal(t, [][]string{{"5", "a", "p"}, {"9", "e", NullGlyph}}, surface.Rows("people"))
}

func TestRecordEditKeepsOriginalOld(t *testing.T) {
	r, _, _ := peopleReconciler(t)
	ctx := context.Background()

	require.NoError(t, r.RecordEdit(ctx, "people", 0, 1, "b"))
	require.NoError(t, r.RecordEdit(ctx, "people", 0, 1, "bb"))

	pending := r.Staging().Pending("people")
	require.Len(t, pending, 1)
	assert.Equal(t, "a", pending[0].Old)
	assert.Equal(t, "bb", pending[0].New)
	assert.Equal(t, "name", pending[0].Column)
	assert.NotEmpty(t, pending[0].Identity)
}

func TestRecordEditRowOutOfRange(t *testing.T) {
	r, _, _ := peopleReconciler(t)
	err := r.RecordEdit(context.Background(), "people", 10, 1, "x")
	require.Error(t, err)
	assert.Equal(t, StatementError, KindOf(err))
}

func TestCommitKeyEditAnchorsOnOldValue(t *testing.T) {
	r, surface, db := peopleReconciler(t)
	ctx := context.Background()

	surface.UpdateCell("people", 0, 0, "6")
	require.NoError(t, r.RecordEdit(ctx, "people", 0, 0, "6"))

	report, err := r.Commit(ctx, "people")
	require.NoError(t, err)
	assert.True(t, report.Committed)
	assert.Equal(t, 1, report.Succeeded)
	assert.NotEqual(t, uuid.Nil, report.BatchID)

	assert.Equal(t, []string{"6", "7", "9"}, queryStrings(t, db, `SELECT id FROM people ORDER BY id`))
	assert.Equal(t, []string{"a"}, queryStrings(t, db, `SELECT name FROM people WHERE id = 6`))
	assert.Zero(t, r.Staging().Len("people"))
	assert.Equal(t, "6", surface.Rows("people")[0][0])
}

func TestCommitNonKeyEditAnchorsOnDisplayedKey(t *testing.T) {
	r, surface, db := peopleReconciler(t)
	ctx := context.Background()

	require.NoError(t, r.RecordEdit(ctx, "people", 0, 1, "b"))
	report, err := r.Commit(ctx, "people")
	require.NoError(t, err)
	assert.True(t, report.Committed)

	assert.Equal(t, []string{"b"}, queryStrings(t, db, `SELECT name FROM people WHERE id = 5`))
	assert.Equal(t, []string{"c"}, queryStrings(t, db, `SELECT name FROM people WHERE id = 7`))
	assert.Equal(t, MessageInfo, surface.lastMessage().kind)
}

func TestCommitPartialFailureRollsBack(t *testing.T) {
	r, surface, db := peopleReconciler(t)
	ctx := context.Background()

	require.NoError(t, r.RecordEdit(ctx, "people", 0, 1, "b"))
	// Duplicates row 2's code.
	require.NoError(t, r.RecordEdit(ctx, "people", 1, 2, "r"))
	require.NoError(t, r.RecordEdit(ctx, "people", 2, 1, "f"))

	report, err := r.Commit(ctx, "people")
	require.Error(t, err)
	assert.Equal(t, StatementError, KindOf(err))
	assert.False(t, report.Committed)
	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "code", report.Errors[0].Edit.Column)

	// Nothing took effect and the edits stay staged.
	assert.Equal(t, []string{"a", "c", "e"}, queryStrings(t, db, `SELECT name FROM people ORDER BY id`))
	assert.Equal(t, []string{"p", "q", "r"}, queryStrings(t, db, `SELECT code FROM people ORDER BY id`))
	assert.Equal(t, 3, r.Staging().Len("people"))
	assert.Equal(t, MessageError, surface.lastMessage().kind)
	assert.Contains(t, surface.lastMessage().text, "rolled back")
}

func TestCommitMissingRowFails(t *testing.T) {
	r, _, db := peopleReconciler(t)
	ctx := context.Background()

	require.NoError(t, r.RecordEdit(ctx, "people", 1, 1, "x"))
	_, err := db.Exec(`DELETE FROM people WHERE id = 7`)
	require.NoError(t, err)

	report, err := r.Commit(ctx, "people")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoRowsAffected))
	assert.Equal(t, 1, report.Failed)
}

func TestCommitNothingStaged(t *testing.T) {
	r, surface, _ := peopleReconciler(t)
	report, err := r.Commit(context.Background(), "people")
	require.NoError(t, err)
	assert.Zero(t, report.Attempted)
	assert.False(t, report.Committed)
	assert.Equal(t, message{MessageInfo, "No changes to save"}, surface.lastMessage())
}

func TestCommitFallbackKeyWarns(t *testing.T) {
	r, surface, db := newTestReconciler(t,
		`CREATE TABLE notes (slug TEXT, body TEXT)`,
		`INSERT INTO notes VALUES ('a', 'x'), ('b', 'x')`,
	)
	ctx := context.Background()
	_, err := r.Load(ctx, "notes")
	require.NoError(t, err)

	require.NoError(t, r.RecordEdit(ctx, "notes", 1, 1, "y"))
	report, err := r.Commit(ctx, "notes")
	require.NoError(t, err)
	assert.True(t, report.Fallback)
	assert.True(t, surface.hasMessage(MessageWarning))
	assert.Equal(t, []string{"x", "y"}, queryStrings(t, db, `SELECT body FROM notes ORDER BY slug`))
}

func TestCommitNullEdit(t *testing.T) {
	r, _, db := peopleReconciler(t)
	ctx := context.Background()

	require.NoError(t, r.RecordEdit(ctx, "people", 0, 2, NullGlyph))
	_, err := r.Commit(ctx, "people")
	require.NoError(t, err)

	require.NoError(t, r.RecordEdit(ctx, "people", 0, 2, "z"))
	_, err = r.Commit(ctx, "people")
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, queryStrings(t, db, `SELECT code FROM people WHERE id = 5`))
}

func TestBulkEditModes(t *testing.T) {
	for _, c := range []struct {
		mode BulkMode
		want []string
	}{
		{BulkPrepend, []string{"Xfoo", "Xbar", "X"}},
		{BulkAppend, []string{"fooX", "barX", "X"}},
		{BulkReplace, []string{"X", "X", "X"}},
	} {
		t.Run(c.mode.String(), func(t *testing.T) {
			r, surface, db := newTestReconciler(t,
				`CREATE TABLE words (id INTEGER PRIMARY KEY, word TEXT)`,
				`INSERT INTO words VALUES (1, 'foo'), (2, 'bar'), (3, NULL)`,
			)
			ctx := context.Background()
			_, err := r.Load(ctx, "words")
			require.NoError(t, err)

			var calls int
			report, err := r.BulkEdit(ctx, "words", 1, c.mode, "X", WithProgress(func(done, total int) {
				calls++
				assert.Equal(t, 3, total)
			}))
			require.NoError(t, err)
			assert.Equal(t, 3, report.Rows)
			assert.Equal(t, 3, report.Succeeded)
			assert.Zero(t, report.Failed)
			assert.Equal(t, 3, calls)
			assert.Equal(t, c.want, queryStrings(t, db, `SELECT word FROM words ORDER BY id`))
			assert.Equal(t, MessageInfo, surface.lastMessage().kind)
		})
	}
}

func TestBulkEditKeyColumn(t *testing.T) {
	r, _, db := newTestReconciler(t,
		`CREATE TABLE tags (name TEXT PRIMARY KEY, hits INTEGER)`,
		`INSERT INTO tags VALUES ('go', 1), ('sql', 2)`,
	)
	ctx := context.Background()
	_, err := r.Load(ctx, "tags")
	require.NoError(t, err)

	report, err := r.BulkEdit(ctx, "tags", 0, BulkPrepend, "#")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, []string{"#go", "#sql"}, queryStrings(t, db, `SELECT name FROM tags ORDER BY hits`))
}

func TestBulkEditCountsFailures(t *testing.T) {
	r, surface, db := newTestReconciler(t,
		`CREATE TABLE words (id INTEGER PRIMARY KEY, word TEXT UNIQUE)`,
		`INSERT INTO words VALUES (1, 'a'), (2, 'b')`,
	)
	ctx := context.Background()
	_, err := r.Load(ctx, "words")
	require.NoError(t, err)

	report, err := r.BulkEdit(ctx, "words", 1, BulkReplace, "same")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, MessageWarning, surface.lastMessage().kind)
	assert.Equal(t, []string{"same", "b"}, queryStrings(t, db, `SELECT word FROM words ORDER BY id`))
}

func TestParseBulkMode(t *testing.T) {
	m, err := ParseBulkMode(" Append ")
	require.NoError(t, err)
	assert.Equal(t, BulkAppend, m)
	_, err = ParseBulkMode("rot13")
	assert.Error(t, err)
	assert.Equal(t, "foo", BulkAppend.Apply(NullGlyph, "foo"))
}

func TestInsertRow(t *testing.T) {
	r, surface, db := newTestReconciler(t,
		`CREATE TABLE pets (id INTEGER PRIMARY KEY, name TEXT, age INTEGER)`,
	)
	ctx := context.Background()
	surface.formOK = true
	surface.formValues = map[string]string{"id": "10", "name": "", "age": ""}

	ok, err := r.InsertRow(ctx, "pets")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"id", "name", "age"}, surface.formFields)

	assert.Equal(t, []string{""}, queryStrings(t, db, `SELECT name FROM pets WHERE id = 10`))
	assert.Equal(t, []string{NullGlyph}, queryStrings(t, db, `SELECT age FROM pets WHERE id = 10`))
	assert.Equal(t, 1, surface.RowCount("pets"))
}

func TestInsertRowCancelled(t *testing.T) {
	r, surface, db := newTestReconciler(t,
		`CREATE TABLE pets (id INTEGER PRIMARY KEY, name TEXT)`,
	)
	surface.formOK = false

	ok, err := r.InsertRow(context.Background(), "pets")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, queryStrings(t, db, `SELECT name FROM pets`))
}

func TestInsertRowFailure(t *testing.T) {
	r, surface, _ := peopleReconciler(t)
	surface.formOK = true
	surface.formValues = map[string]string{"id": "5", "name": "dup", "code": "z"}

	ok, err := r.InsertRow(context.Background(), "people")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, StatementError, KindOf(err))
	assert.Equal(t, MessageError, surface.lastMessage().kind)
}

func TestDeleteRowWithoutSelection(t *testing.T) {
	r, surface, _ := peopleReconciler(t)
	require.NoError(t, r.session.Close())

	err := r.DeleteRow(context.Background(), "people")
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.Equal(t, MessageWarning, surface.lastMessage().kind)
	assert.Empty(t, surface.prompts)
}

func TestDeleteRow(t *testing.T) {
	r, surface, db := peopleReconciler(t)
	ctx := context.Background()
	surface.Select("people", 1)

	surface.confirm = false
	require.NoError(t, r.DeleteRow(ctx, "people"))
	require.Len(t, surface.prompts, 1)
	assert.Contains(t, surface.prompts[0], "id = 7")
	assert.Len(t, queryStrings(t, db, `SELECT id FROM people`), 3)

	surface.confirm = true
	require.NoError(t, r.DeleteRow(ctx, "people"))
	assert.Equal(t, []string{"5", "9"}, queryStrings(t, db, `SELECT id FROM people ORDER BY id`))
	assert.Equal(t, 2, surface.RowCount("people"))
}

func TestCommitBeginFailureCountsEdits(t *testing.T) {
	r, surface, _ := peopleReconciler(t)
	require.NoError(t, r.RecordEdit(context.Background(), "people", 0, 1, "b"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := r.Commit(ctx, "people")
	require.Error(t, err)
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, surface.lastMessage().text, "1 of 1 changes failed")
	assert.Equal(t, 1, r.Staging().Len("people"))
}

func TestCommitRowEditedBeforeItsKey(t *testing.T) {
	r, surface, db := peopleReconciler(t)
	ctx := context.Background()

	surface.UpdateCell("people", 0, 1, "b")
	require.NoError(t, r.RecordEdit(ctx, "people", 0, 1, "b"))
	surface.UpdateCell("people", 0, 0, "6")
	require.NoError(t, r.RecordEdit(ctx, "people", 0, 0, "6"))

	report, err := r.Commit(ctx, "people")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, []string{"6", "7", "9"}, queryStrings(t, db, `SELECT id FROM people ORDER BY id`))
	assert.Equal(t, []string{"b"}, queryStrings(t, db, `SELECT name FROM people WHERE id = 6`))
}

func TestCommitKeyEditedBeforeRow(t *testing.T) {
	r, surface, db := peopleReconciler(t)
	ctx := context.Background()

	surface.UpdateCell("people", 1, 0, "8")
	require.NoError(t, r.RecordEdit(ctx, "people", 1, 0, "8"))
	surface.UpdateCell("people", 1, 1, "d")
	require.NoError(t, r.RecordEdit(ctx, "people", 1, 1, "d"))

	_, err := r.Commit(ctx, "people")
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, queryStrings(t, db, `SELECT name FROM people WHERE id = 8`))
}

const gradesDDL = `CREATE TABLE grades (student TEXT, course TEXT, score INTEGER, PRIMARY KEY (student, course))`

func TestCommitCompositeKeyEdit(t *testing.T) {
	r, surface, db := newTestReconciler(t,
		gradesDDL,
		`INSERT INTO grades VALUES ('ann', 'math', 1), ('bob', 'math', 2), ('ann', 'bio', 3)`,
	)
	ctx := context.Background()
	_, err := r.Load(ctx, "grades")
	require.NoError(t, err)
	// Ordered by student, course: ann/bio, ann/math, bob/math.
	require.Equal(t, []string{"ann", "math", "1"}, surface.Rows("grades")[1])

	surface.UpdateCell("grades", 1, 1, "art")
	require.NoError(t, r.RecordEdit(ctx, "grades", 1, 1, "art"))
	surface.UpdateCell("grades", 2, 2, "20")
	require.NoError(t, r.RecordEdit(ctx, "grades", 2, 2, "20"))

	report, err := r.Commit(ctx, "grades")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)

	// course anchors on its old value and student on the displayed one, so
	// bob's math row is untouched by ann's course change.
	assert.Equal(t, []string{"ann/art", "bob/math", "ann/bio"},
		queryStrings(t, db, `SELECT student || '/' || course FROM grades ORDER BY score`))
	assert.Equal(t, []string{"20"}, queryStrings(t, db, `SELECT score FROM grades WHERE student = 'bob'`))
}

func TestCompositeKeyDelete(t *testing.T) {
	r, surface, db := newTestReconciler(t,
		gradesDDL,
		`INSERT INTO grades VALUES ('ann', 'math', 1), ('bob', 'math', 2), ('ann', 'bio', 3)`,
	)
	ctx := context.Background()
	_, err := r.Load(ctx, "grades")
	require.NoError(t, err)

	surface.confirm = true
	surface.Select("grades", 1)
	require.NoError(t, r.DeleteRow(ctx, "grades"))
	assert.Contains(t, surface.prompts[0], "student = 'ann' AND course = 'math'")
	assert.Equal(t, []string{"2", "3"}, queryStrings(t, db, `SELECT score FROM grades ORDER BY score`))
}

func TestNullAnchorUpdateAndDelete(t *testing.T) {
	r, surface, db := newTestReconciler(t,
		`CREATE TABLE notes (tag TEXT, body TEXT)`,
		`INSERT INTO notes VALUES ('x', 'b'), (NULL, 'a')`,
	)
	ctx := context.Background()
	_, err := r.Load(ctx, "notes")
	require.NoError(t, err)
	kd, ok := r.Resolver().Cached("notes")
	require.True(t, ok)
	require.Equal(t, []string{"tag"}, kd.Columns)
	require.True(t, kd.Unique)
	// NULL sorts first.
	require.Equal(t, NullGlyph, surface.Rows("notes")[0][0])

	surface.UpdateCell("notes", 0, 1, "a2")
	require.NoError(t, r.RecordEdit(ctx, "notes", 0, 1, "a2"))
	_, err = r.Commit(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, []string{"a2"}, queryStrings(t, db, `SELECT body FROM notes WHERE tag IS NULL`))
	assert.Equal(t, []string{"b"}, queryStrings(t, db, `SELECT body FROM notes WHERE tag = 'x'`))

	surface.confirm = true
	surface.Select("notes", 0)
	require.NoError(t, r.DeleteRow(ctx, "notes"))
	assert.Equal(t, []string{"x"}, queryStrings(t, db, `SELECT tag FROM notes`))
}

func sharedKeyReconciler(t *testing.T) (*Reconciler, *fakeSurface, *sql.DB) {
	t.Helper()
	r, surface, db := newTestReconciler(t,
		`CREATE TABLE t (a INTEGER, b TEXT)`,
		`INSERT INTO t VALUES (1, 'foo'), (1, 'bar'), (2, 'foo')`,
	)
	_, err := r.Load(context.Background(), "t")
	require.NoError(t, err)
	return r, surface, db
}

func TestBulkEditSharedKeyNeedsConfirmation(t *testing.T) {
	r, surface, db := sharedKeyReconciler(t)
	surface.confirm = false

	report, err := r.BulkEdit(context.Background(), "t", 1, BulkPrepend, "X")
	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	require.Len(t, surface.prompts, 1)
	kd, _ := r.Resolver().Cached("t")
	assert.Contains(t, surface.prompts[0], kd.Reason)
	assert.Equal(t, []string{"foo", "bar", "foo"}, queryStrings(t, db, `SELECT b FROM t ORDER BY rowid`))
}

func TestBulkEditSharedKeyReportsOverwrittenRows(t *testing.T) {
	r, surface, db := sharedKeyReconciler(t)
	surface.confirm = true

	var calls []int
	report, err := r.BulkEdit(context.Background(), "t", 1, BulkPrepend, "X", WithProgress(func(done, total int) {
		calls = append(calls, done)
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Overwritten)
	assert.Zero(t, report.Shared)
	assert.Equal(t, []int{1, 2, 3}, calls)

	assert.Equal(t, []string{"Xfoo", "Xfoo", "Xfoo"}, queryStrings(t, db, `SELECT b FROM t ORDER BY rowid`))
	last := surface.lastMessage()
	assert.Equal(t, MessageWarning, last.kind)
	assert.Contains(t, last.text, "2 succeeded")
	assert.Contains(t, last.text, "1 not applied")
}

func TestBulkEditSharedKeySameValue(t *testing.T) {
	r, surface, _ := sharedKeyReconciler(t)
	surface.confirm = true

	report, err := r.BulkEdit(context.Background(), "t", 1, BulkReplace, "z")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Shared)
	assert.Zero(t, report.Overwritten)
	assert.Equal(t, MessageInfo, surface.lastMessage().kind)
}

func TestBulkEditProgressCountsSkippedRows(t *testing.T) {
	r, surface, _ := peopleReconciler(t)
	// A key cell that can no longer be read fails the row without a statement.
	surface.Load("people", []string{"id", "name", "code"}, [][]string{{"5", "a", "p"}, {}, {"9", "e", "r"}})

	var last int
	report, err := r.BulkEdit(context.Background(), "people", 2, BulkAppend, "!", WithProgress(func(done, total int) {
		last = done
	}))
	require.NoError(t, err)
	assert.Equal(t, 3, last)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
}

func TestReloadPicksUpNewColumns(t *testing.T) {
	r, surface, db := peopleReconciler(t)
	_, err := db.Exec(`ALTER TABLE people ADD COLUMN age INTEGER`)
	require.NoError(t, err)

	_, err = r.Reload(context.Background(), "people")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "code", "age"}, surface.Columns("people"))
}
