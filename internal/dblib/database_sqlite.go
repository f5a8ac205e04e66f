package dblib

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// SQLiteHandler implements DatabaseHandler for SQLite databases.
type SQLiteHandler struct{}

func (h *SQLiteHandler) LoadTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// LoadColumns loads columns for a SQLite table from PRAGMA table_info.
func (h *SQLiteHandler) LoadColumns(ctx context.Context, db *sql.DB, tableName string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", h.QuoteIdent(tableName)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		var cid, pk int
		var notNull string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		col.Nullable = notNull != "1"
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("no such table: %s", tableName)
	}
	return columns, nil
}

// LoadPrimaryKey returns PK columns ordered by the pk ordinal in PRAGMA table_info.
func (h *SQLiteHandler) LoadPrimaryKey(ctx context.Context, db *sql.DB, tableName string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", h.QuoteIdent(tableName)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type pkEntry struct {
		ord  int
		name string
	}
	var pkEntries []pkEntry
	for rows.Next() {
		var cid, pk int
		var cname, ctype, notNull string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &cname, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		if pk > 0 {
			pkEntries = append(pkEntries, pkEntry{ord: pk, name: cname})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(pkEntries, func(i, j int) bool { return pkEntries[i].ord < pkEntries[j].ord })
	pkCols := make([]string, 0, len(pkEntries))
	for _, e := range pkEntries {
		pkCols = append(pkCols, e.name)
	}
	return pkCols, nil
}

// QuoteIdent quotes an identifier for SQLite using double quotes.
func (h *SQLiteHandler) QuoteIdent(ident string) string {
	if isSafeUnquotedIdent(ident) {
		return ident
	}
	return "\"" + strings.ReplaceAll(ident, "\"", "\"\"") + "\""
}

func (h *SQLiteHandler) Placeholder(position int) string {
	return "?"
}
