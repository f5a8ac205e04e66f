package dblib

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// AccessHandler implements DatabaseHandler for Microsoft Access files opened
// through the ODBC driver.
//
// The Jet/ACE catalog is only reachable through ODBC catalog calls
// (SQLStatistics), which database/sql does not expose. Key resolution for
// Access tables therefore always goes through the data-driven fallback.
type AccessHandler struct{}

// LoadTables reads user tables from MSysObjects. Type 1 is a local table;
// Flags 0 excludes system and hidden tables.
func (h *AccessHandler) LoadTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT Name FROM MSysObjects WHERE Type = 1 AND Flags = 0 ORDER BY Name")
	if err != nil {
		return nil, fmt.Errorf("read MSysObjects (grant read permission on system objects): %w", err)
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

func (h *AccessHandler) LoadColumns(ctx context.Context, db *sql.DB, tableName string) ([]Column, error) {
	return loadColumnsGeneric(ctx, db, h.QuoteIdent(tableName))
}

func (h *AccessHandler) LoadPrimaryKey(ctx context.Context, db *sql.DB, tableName string) ([]string, error) {
	return nil, ErrMetadataUnsupported
}

// QuoteIdent quotes an identifier with brackets. Access identifiers cannot
// contain a closing bracket, so it is doubled only to keep the statement
// well-formed.
func (h *AccessHandler) QuoteIdent(ident string) string {
	if isSafeUnquotedIdent(ident) {
		return ident
	}
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

func (h *AccessHandler) Placeholder(position int) string {
	return "?"
}

// AccessConnectionString builds the ODBC connection string for an Access file.
func AccessConnectionString(path string) string {
	return fmt.Sprintf("DRIVER={Microsoft Access Driver (*.mdb, *.accdb)};DBQ=%s", path)
}
