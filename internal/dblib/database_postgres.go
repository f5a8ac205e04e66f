package dblib

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PostgresHandler implements DatabaseHandler for PostgreSQL databases.
type PostgresHandler struct{}

// splitSchema extracts schema and relation name, defaulting to public.
func splitSchema(tableName string) (string, string) {
	if dot := strings.IndexByte(tableName, '.'); dot != -1 {
		return tableName[:dot], tableName[dot+1:]
	}
	return "public", tableName
}

func (h *PostgresHandler) LoadTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
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

// LoadColumns loads columns for a PostgreSQL table.
func (h *PostgresHandler) LoadColumns(ctx context.Context, db *sql.DB, tableName string) ([]Column, error) {
	schema, rel := splitSchema(tableName)
	rows, err := db.QueryContext(ctx, `SELECT column_name, data_type, is_nullable
			FROM information_schema.columns
			WHERE table_schema = $1 AND table_name = $2
			ORDER BY ordinal_position`, schema, rel)
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
		return nil, fmt.Errorf("relation %q does not exist", tableName)
	}
	return columns, nil
}

// LoadPrimaryKey reads the primary index columns in index order.
func (h *PostgresHandler) LoadPrimaryKey(ctx context.Context, db *sql.DB, tableName string) ([]string, error) {
	schema, rel := splitSchema(tableName)
	rows, err := db.QueryContext(ctx, `SELECT a.attname
		FROM pg_index i
		JOIN pg_class c ON c.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN LATERAL unnest(i.indkey) WITH ORDINALITY AS k(attnum, ord) ON TRUE
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = k.attnum
		WHERE n.nspname = $1 AND c.relname = $2 AND i.indisprimary
		ORDER BY k.ord`, schema, rel)
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

// QuoteIdent quotes an identifier for PostgreSQL using double quotes.
func (h *PostgresHandler) QuoteIdent(ident string) string {
	if isSafeUnquotedIdent(ident) {
		return ident
	}
	return "\"" + strings.ReplaceAll(ident, "\"", "\"\"") + "\""
}

// Placeholder returns the positional placeholder: $1, $2, etc.
func (h *PostgresHandler) Placeholder(position int) string {
	return fmt.Sprintf("$%d", position)
}
