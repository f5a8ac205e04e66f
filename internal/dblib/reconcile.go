package dblib

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// Reconciler stages cell edits from the display surface and replays them
// against the database.
type Reconciler struct {
	session  *Session
	resolver *Resolver
	staging  *StagingArea
	surface  Surface
	log      logr.Logger
}

func NewReconciler(session *Session, resolver *Resolver, surface Surface) *Reconciler {
	return &Reconciler{
		session:  session,
		resolver: resolver,
		staging:  NewStagingArea(),
		surface:  surface,
		log:      session.Logger().WithName("reconciler"),
	}
}

func (r *Reconciler) Staging() *StagingArea { return r.staging }
func (r *Reconciler) Resolver() *Resolver    { return r.resolver }

// EditError is the failure of one pending edit.
type EditError struct {
	Edit *PendingEdit
	Err  error
}

func (e EditError) Error() string {
	return fmt.Sprintf("row %d, column %s: %v", e.Edit.Row+1, e.Edit.Column, e.Err)
}

func (e EditError) Unwrap() error { return e.Err }

// CommitReport summarises one Commit.
type CommitReport struct {
	Table     string
	BatchID   uuid.UUID
	Attempted int
	Succeeded int
	Failed    int
	Errors    []EditError
	// Committed is true only when every edit succeeded and the transaction
	// committed. On any failure nothing takes effect.
	Committed bool
	Fallback  bool
}

var errBatchFailed = errors.New("batch has failed edits")

// orderFor returns the ordering that keeps row positions stable between the
// displayed snapshot and later baseline reads.
func orderFor(kd KeyDescriptor) []string {
	if kd.Unique {
		return kd.Columns
	}
	return nil
}

// Load reads table and pushes it to the surface. Pending edits of the table
// are discarded: the view is reloaded.
func (r *Reconciler) Load(ctx context.Context, table string) (*TableData, error) {
	kd, err := r.resolver.Resolve(ctx, table)
	if err != nil {
		r.surface.ShowMessage(MessageError, fmt.Sprintf("Failed to load table %s: %v", table, err))
		return nil, err
	}
	data, err := r.session.Snapshot(ctx, table, orderFor(kd))
	if err != nil {
		r.surface.ShowMessage(MessageError, fmt.Sprintf("Failed to load table %s: %v", table, err))
		return nil, err
	}
	r.staging.Clear(table)
	r.surface.Load(table, data.ColumnNames(), r.session.FormatRows(data))
	return data, nil
}

// Reload forgets the cached columns and key of table and loads it again, so
// schema changes made elsewhere become visible.
func (r *Reconciler) Reload(ctx context.Context, table string) (*TableData, error) {
	r.session.ForgetColumns(table)
	r.resolver.Invalidate(table)
	return r.Load(ctx, table)
}

// Reconnect closes the session and opens it again with opts. Cached keys and
// every staged edit belong to the old connection and are dropped. It returns
// the tables of the new connection.
func (r *Reconciler) Reconnect(ctx context.Context, opts Options) ([]string, error) {
	r.resolver.Reset()
	r.staging.Reset()
	if err := r.session.Reopen(ctx, opts); err != nil {
		r.surface.ShowMessage(MessageError, fmt.Sprintf("Reconnect failed: %v", err))
		return nil, err
	}
	r.log = r.session.Logger().WithName("reconciler")
	tables, err := r.session.Tables(ctx)
	if err != nil {
		r.surface.ShowMessage(MessageError, fmt.Sprintf("Reconnect failed: %v", err))
		return nil, err
	}
	r.log.Info("reconnected", "tables", len(tables))
	r.surface.ShowMessage(MessageInfo, fmt.Sprintf("Connected, %d tables", len(tables)))
	return tables, nil
}

// Discard drops pending edits of table, e.g. when its view closes.
func (r *Reconciler) Discard(table string) {
	r.staging.Clear(table)
}

// RecordEdit stages the text the user typed into a cell. The first edit of a
// cell captures the database value as the old value; later edits only
// replace the new value.
func (r *Reconciler) RecordEdit(ctx context.Context, table string, row, col int, text string) error {
	if e, ok := r.staging.Lookup(table, row, col); ok {
		r.staging.Update(e, text)
		r.log.V(2).Info("edit updated", "table", table, "row", row, "column", e.Column)
		return nil
	}

	kd, err := r.resolver.Resolve(ctx, table)
	if err != nil {
		return err
	}
	// The surface keeps no baseline, so the old value is read fresh.
	data, err := r.session.Snapshot(ctx, table, orderFor(kd))
	if err != nil {
		return err
	}
	if col < 0 || col >= len(data.Columns) {
		return wrap(StatementError, "record edit", table, fmt.Errorf("column %d out of range", col))
	}
	if row < 0 || row >= len(data.Rows) {
		return wrap(StatementError, "record edit", table, fmt.Errorf("row %d no longer exists", row+1))
	}

	edit := PendingEdit{
		Table:  table,
		Row:    row,
		Col:    col,
		Column: data.Columns[col].Name,
		Old:    data.Rows[row][col],
		New:    text,
	}
	if kd.Unique {
		anchor := make([]any, len(kd.Columns))
		for i, k := range kd.Columns {
			idx := data.ColumnIndex(k)
			if idx < 0 {
				anchor = nil
				break
			}
			anchor[i] = data.Rows[row][idx]
		}
		if anchor != nil {
			edit.Identity = encodeIdentity(anchor)
		}
	}
	r.staging.Add(edit)
	r.log.V(2).Info("edit staged", "table", table, "row", row, "column", edit.Column, "old", edit.Old)
	return nil
}

// rowColumn locates a staged edit by display row and column name.
type rowColumn struct {
	row    int
	column string
}

// anchorFor builds the key values locating the row of the i-th edit of a
// batch. A key column that is the edited column anchors on the old value.
// Another key column anchors on the old value of a staged edit to it that
// runs later in the batch, and otherwise on the displayed text, which is
// what the database holds once earlier statements have run.
func (r *Reconciler) anchorFor(table string, kd KeyDescriptor, cols []Column, names []string, edits []*PendingEdit, order map[rowColumn]int, i int) ([]any, error) {
	e := edits[i]
	anchor := make([]any, len(kd.Columns))
	for j, k := range kd.Columns {
		if k == e.Column {
			anchor[j] = e.Old
			continue
		}
		if later, ok := order[rowColumn{e.Row, k}]; ok && later > i {
			anchor[j] = edits[later].Old
			continue
		}
		idx := indexOf(names, k)
		if idx < 0 {
			return nil, fmt.Errorf("key column %s not found", k)
		}
		text, ok := r.surface.CellText(table, e.Row, idx)
		if !ok {
			return nil, fmt.Errorf("key column %s not displayed for row %d", k, e.Row+1)
		}
		anchor[j] = toDBValue(cols[idx].Type, text)
	}
	return anchor, nil
}

// Commit replays every pending edit of table in one transaction. Edits are
// attempted independently; if any fails the transaction is rolled back, no
// change takes effect and the edits stay staged for a retry.
func (r *Reconciler) Commit(ctx context.Context, table string) (CommitReport, error) {
	report := CommitReport{Table: table, BatchID: uuid.New()}
	log := r.log.WithValues("table", table, "batch", report.BatchID.String())

	edits := r.staging.Pending(table)
	if len(edits) == 0 {
		r.surface.ShowMessage(MessageInfo, "No changes to save")
		return report, nil
	}

	kd, err := r.resolver.Resolve(ctx, table)
	if err != nil {
		r.surface.ShowMessage(MessageError, fmt.Sprintf("Save failed: %v", err))
		return report, err
	}
	if kd.Fallback {
		report.Fallback = true
		r.surface.ShowMessage(MessageWarning, kd.Reason)
	}
	cols, err := r.session.Columns(ctx, table)
	if err != nil {
		r.surface.ShowMessage(MessageError, fmt.Sprintf("Save failed: %v", err))
		return report, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	type statement struct {
		edit  *PendingEdit
		query string
		args  []any
		err   error
	}
	order := make(map[rowColumn]int, len(edits))
	for i, e := range edits {
		order[rowColumn{e.Row, e.Column}] = i
	}
	h := r.session.Handler()
	stmts := make([]statement, 0, len(edits))
	for i, e := range edits {
		st := statement{edit: e}
		anchor, err := r.anchorFor(table, kd, cols, names, edits, order, i)
		if err != nil {
			st.err = err
			stmts = append(stmts, st)
			continue
		}
		colType := ""
		if idx := indexOf(names, e.Column); idx >= 0 {
			colType = cols[idx].Type
		}
		where, whereArgs := whereKey(h, kd.Columns, anchor, 2)
		st.query = fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s",
			r.session.quoteTable(table), h.QuoteIdent(e.Column), h.Placeholder(1), where)
		st.args = append([]any{toDBValue(colType, e.New)}, whereArgs...)
		stmts = append(stmts, st)
	}

	txErr := r.session.InTx(ctx, func(tx *Tx) error {
		for _, st := range stmts {
			report.Attempted++
			if st.err != nil {
				report.Failed++
				report.Errors = append(report.Errors, EditError{Edit: st.edit, Err: st.err})
				continue
			}
			res, err := tx.ExecIsolated(ctx, st.query, st.args...)
			if err == nil {
				if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
					err = ErrNoRowsAffected
				}
			}
			if err != nil {
				log.V(1).Info("edit failed", "row", st.edit.Row, "column", st.edit.Column, "error", err.Error())
				report.Failed++
				report.Errors = append(report.Errors, EditError{Edit: st.edit, Err: err})
				continue
			}
			report.Succeeded++
		}
		if report.Failed > 0 {
			return errBatchFailed
		}
		return nil
	})

	if txErr != nil {
		if !errors.Is(txErr, errBatchFailed) {
			// Begin or commit itself failed: nothing was applied.
			report.Attempted = len(stmts)
			report.Failed = report.Attempted
			report.Succeeded = 0
			report.Errors = append(report.Errors, EditError{Edit: edits[0], Err: txErr})
		}
		log.Info("commit rolled back", "succeeded", report.Succeeded, "failed", report.Failed)
		r.surface.ShowMessage(MessageError, fmt.Sprintf(
			"%d of %d changes failed; the transaction was rolled back and no changes were saved.\n%s",
			report.Failed, report.Attempted, summarizeEditErrors(report.Errors)))
		errs := make([]error, len(report.Errors))
		for i, e := range report.Errors {
			errs[i] = e
		}
		return report, wrap(StatementError, "commit", table, errors.Join(errs...))
	}

	report.Committed = true
	log.Info("commit", "edits", report.Succeeded)
	r.staging.Clear(table)
	r.surface.ShowMessage(MessageInfo, fmt.Sprintf("Saved %d changes", report.Succeeded))
	if _, err := r.Load(ctx, table); err != nil {
		return report, err
	}
	return report, nil
}

func summarizeEditErrors(errs []EditError) string {
	const max = 5
	lines := make([]string, 0, max+1)
	for i, e := range errs {
		if i == max {
			lines = append(lines, fmt.Sprintf("... and %d more", len(errs)-max))
			break
		}
		lines = append(lines, e.Error())
	}
	return strings.Join(lines, "\n")
}

// InsertRow prompts for one value per declared column and inserts them in
// declared order. It returns false when the form was cancelled.
func (r *Reconciler) InsertRow(ctx context.Context, table string) (bool, error) {
	cols, err := r.session.Columns(ctx, table)
	if err != nil {
		r.surface.ShowMessage(MessageError, fmt.Sprintf("Insert failed: %v", err))
		return false, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	values, ok := r.surface.PromptForm("New row in "+table, names)
	if !ok {
		return false, nil
	}

	h := r.session.Handler()
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = h.QuoteIdent(c.Name)
		placeholders[i] = h.Placeholder(i + 1)
		text := values[c.Name]
		if text == "" && !isTextType(c.Type) {
			args[i] = nil
		} else {
			args[i] = toDBValue(c.Type, text)
		}
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.session.quoteTable(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	if _, err := r.session.Exec(ctx, query, args...); err != nil {
		err = wrap(StatementError, "insert", table, err)
		r.surface.ShowMessage(MessageError, fmt.Sprintf("Insert failed: %v", err))
		return false, err
	}
	r.log.Info("row inserted", "table", table)
	r.surface.ShowMessage(MessageInfo, "Row inserted")
	if _, err := r.Load(ctx, table); err != nil {
		return true, err
	}
	return true, nil
}

// DeleteRow deletes the selected row after confirmation. Without a
// selection nothing touches the database.
func (r *Reconciler) DeleteRow(ctx context.Context, table string) error {
	row := r.surface.SelectedRow(table)
	if row < 0 {
		r.surface.ShowMessage(MessageWarning, "Select a row first")
		return ErrNoSelection
	}
	kd, err := r.resolver.Resolve(ctx, table)
	if err != nil {
		r.surface.ShowMessage(MessageError, fmt.Sprintf("Delete failed: %v", err))
		return err
	}
	cols, err := r.session.Columns(ctx, table)
	if err != nil {
		r.surface.ShowMessage(MessageError, fmt.Sprintf("Delete failed: %v", err))
		return err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	anchor := make([]any, len(kd.Columns))
	for i, k := range kd.Columns {
		idx := indexOf(names, k)
		text, ok := r.surface.CellText(table, row, idx)
		if idx < 0 || !ok {
			err := wrap(StatementError, "delete", table, fmt.Errorf("cannot read key value %s", k))
			r.surface.ShowMessage(MessageError, err.Error())
			return err
		}
		anchor[i] = toDBValue(cols[idx].Type, text)
	}

	prompt := fmt.Sprintf("Delete the row where %s?", describeAnchor(kd.Columns, anchor))
	if !kd.Unique {
		prompt += "\n" + kd.Reason
	}
	if !r.surface.PromptConfirm(prompt) {
		return nil
	}

	h := r.session.Handler()
	where, args := whereKey(h, kd.Columns, anchor, 1)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", r.session.quoteTable(table), where)
	res, err := r.session.Exec(ctx, query, args...)
	if err == nil {
		if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
			err = ErrNoRowsAffected
		}
	}
	if err != nil {
		err = wrap(StatementError, "delete", table, err)
		r.surface.ShowMessage(MessageError, fmt.Sprintf("Delete failed: %v", err))
		return err
	}
	r.log.Info("row deleted", "table", table, "key", describeAnchor(kd.Columns, anchor))
	r.surface.ShowMessage(MessageInfo, "Row deleted")
	_, err = r.Load(ctx, table)
	return err
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
