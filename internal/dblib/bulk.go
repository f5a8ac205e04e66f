package dblib

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
)

// BulkMode is the transform a bulk edit applies to each cell.
type BulkMode int

const (
	BulkReplace BulkMode = iota
	BulkPrepend
	BulkAppend
)

func (m BulkMode) String() string {
	switch m {
	case BulkPrepend:
		return "prepend"
	case BulkAppend:
		return "append"
	default:
		return "replace"
	}
}

// ParseBulkMode accepts the names returned by String.
func ParseBulkMode(s string) (BulkMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "replace":
		return BulkReplace, nil
	case "prepend":
		return BulkPrepend, nil
	case "append":
		return BulkAppend, nil
	}
	return BulkReplace, fmt.Errorf("unknown bulk mode %q (want replace, prepend or append)", s)
}

// Apply transforms current. NULL is treated as the empty string when
// prepending or appending.
func (m BulkMode) Apply(current, value string) string {
	if current == NullGlyph {
		current = ""
	}
	switch m {
	case BulkPrepend:
		return value + current
	case BulkAppend:
		return current + value
	default:
		return value
	}
}

// BulkReport is the aggregate outcome of a bulk edit.
type BulkReport struct {
	Table     string
	Column    string
	Mode      BulkMode
	Rows      int
	Succeeded int
	Failed    int
	// Shared counts rows whose key matched an earlier row: that row's
	// statement already wrote the value this row wanted.
	Shared int
	// Overwritten counts rows whose key matched an earlier row that wrote a
	// different value. Their own value was not applied.
	Overwritten int
	Cancelled   bool
}

func (b BulkReport) summary() string {
	msg := fmt.Sprintf("Bulk %s on %s: %d succeeded, %d failed", b.Mode, b.Column, b.Succeeded, b.Failed)
	if b.Shared > 0 {
		msg += fmt.Sprintf(", %d updated through a shared key", b.Shared)
	}
	if b.Overwritten > 0 {
		msg += fmt.Sprintf(", %d not applied (a row with the same key wrote its value first)", b.Overwritten)
	}
	return msg
}

type bulkConfig struct {
	progress func(done, total int)
}

type BulkOption func(*bulkConfig)

// WithProgress reports progress after every row.
func WithProgress(fn func(done, total int)) BulkOption {
	return func(c *bulkConfig) { c.progress = fn }
}

// bulkRun is the state of one BulkEdit.
type bulkRun struct {
	r      *Reconciler
	table  string
	col    int
	mode   BulkMode
	value  string
	kd     KeyDescriptor
	cols   []Column
	keyIdx []int
	log    logr.Logger
	// written maps a row identity to the value its statement wrote.
	written map[string]string
}

// BulkEdit applies mode with value to column col of every displayed row of
// table. Each row is written immediately in its own statement; staged edits
// are not involved. With a key that does not identify single rows the user
// is asked first.
func (r *Reconciler) BulkEdit(ctx context.Context, table string, col int, mode BulkMode, value string, opts ...BulkOption) (BulkReport, error) {
	var cfg bulkConfig
	for _, o := range opts {
		o(&cfg)
	}

	cols, err := r.session.Columns(ctx, table)
	if err != nil {
		r.surface.ShowMessage(MessageError, fmt.Sprintf("Bulk edit failed: %v", err))
		return BulkReport{}, err
	}
	if col < 0 || col >= len(cols) {
		err := wrap(StatementError, "bulk edit", table, fmt.Errorf("column %d out of range", col))
		r.surface.ShowMessage(MessageError, err.Error())
		return BulkReport{}, err
	}
	kd, err := r.resolver.Resolve(ctx, table)
	if err != nil {
		r.surface.ShowMessage(MessageError, fmt.Sprintf("Bulk edit failed: %v", err))
		return BulkReport{}, err
	}

	target := cols[col]
	report := BulkReport{Table: table, Column: target.Name, Mode: mode, Rows: r.surface.RowCount(table)}
	if kd.Fallback {
		r.surface.ShowMessage(MessageWarning, kd.Reason)
	}
	if !kd.Unique {
		prompt := fmt.Sprintf("%s\nRows sharing a key value all receive the value of the first of them. Continue bulk %s on %s?",
			kd.Reason, mode, target.Name)
		if !r.surface.PromptConfirm(prompt) {
			report.Cancelled = true
			r.surface.ShowMessage(MessageInfo, "Bulk edit cancelled")
			return report, nil
		}
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	run := &bulkRun{
		r:       r,
		table:   table,
		col:     col,
		mode:    mode,
		value:   value,
		kd:      kd,
		cols:    cols,
		keyIdx:  make([]int, len(kd.Columns)),
		log:     r.log.WithValues("table", table, "column", target.Name, "mode", mode.String()),
		written: make(map[string]string),
	}
	for i, k := range kd.Columns {
		run.keyIdx[i] = indexOf(names, k)
	}

	for row := 0; row < report.Rows; row++ {
		if ctx.Err() != nil {
			report.Failed += report.Rows - row
			break
		}
		run.apply(ctx, row, &report)
		if cfg.progress != nil {
			cfg.progress(row+1, report.Rows)
		}
	}

	run.log.Info("bulk edit", "succeeded", report.Succeeded, "failed", report.Failed,
		"shared", report.Shared, "overwritten", report.Overwritten)
	kind := MessageInfo
	if report.Failed > 0 || report.Overwritten > 0 {
		kind = MessageWarning
	}
	r.surface.ShowMessage(kind, report.summary())
	if _, err := r.Load(ctx, table); err != nil {
		return report, err
	}
	return report, nil
}

// apply writes one row and records its outcome in report.
func (b *bulkRun) apply(ctx context.Context, row int, report *BulkReport) {
	surface := b.r.surface
	current, _ := surface.CellText(b.table, row, b.col)
	next := b.mode.Apply(current, b.value)

	anchor := make([]any, len(b.kd.Columns))
	for i, idx := range b.keyIdx {
		if idx < 0 {
			report.Failed++
			return
		}
		text, found := surface.CellText(b.table, row, idx)
		if !found {
			report.Failed++
			return
		}
		anchor[i] = toDBValue(b.cols[idx].Type, text)
	}

	id := encodeIdentity(anchor)
	if prev, ok := b.written[id]; ok {
		if prev == next {
			report.Shared++
		} else {
			report.Overwritten++
			b.log.V(1).Info("row overwritten by shared key", "row", row, "wanted", next, "got", prev)
		}
		surface.UpdateCell(b.table, row, b.col, prev)
		return
	}

	h := b.r.session.Handler()
	target := b.cols[b.col]
	where, args := whereKey(h, b.kd.Columns, anchor, 2)
	query := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s",
		b.r.session.quoteTable(b.table), h.QuoteIdent(target.Name), h.Placeholder(1), where)
	res, err := b.r.session.Exec(ctx, query, append([]any{toDBValue(target.Type, next)}, args...)...)
	if err == nil {
		if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
			err = ErrNoRowsAffected
		}
	}
	if err != nil {
		b.log.V(1).Info("row failed", "row", row, "error", err.Error())
		report.Failed++
		return
	}
	report.Succeeded++
	b.written[id] = next
	surface.UpdateCell(b.table, row, b.col, next)
}
