package dblib

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// MySQLHandler implements DatabaseHandler for MySQL databases.
type MySQLHandler struct{}

func (h *MySQLHandler) LoadTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
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

func (h *MySQLHandler) LoadColumns(ctx context.Context, db *sql.DB, tableName string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, `SELECT column_name, data_type, is_nullable
			FROM information_schema.columns
			WHERE table_schema = DATABASE() AND table_name = ?
			ORDER BY ordinal_position`, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable); err != nil {
			return nil, err
		}
		col.Nullable = strings.ToLower(nullable) == "yes"
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q doesn't exist", tableName)
	}
	return columns, nil
}

// LoadPrimaryKey reads the PRIMARY index from information_schema.statistics.
func (h *MySQLHandler) LoadPrimaryKey(ctx context.Context, db *sql.DB, tableName string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT column_name
		FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = ? AND index_name = 'PRIMARY'
		ORDER BY seq_in_index`, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pkCols := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		pkCols = append(pkCols, c)
	}
	return pkCols, rows.Err()
}

// QuoteIdent quotes an identifier for MySQL using backticks.
func (h *MySQLHandler) QuoteIdent(ident string) string {
	if isSafeUnquotedIdent(ident) {
		return ident
	}
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (h *MySQLHandler) Placeholder(position int) string {
	return "?"
}
