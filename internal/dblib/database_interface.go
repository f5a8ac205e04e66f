package dblib

import (
	"context"
	"database/sql"
	"fmt"
)

// DatabaseHandler defines database-specific operations for a particular database type.
// Each backend (SQLite, PostgreSQL, MySQL, Access) implements this interface to
// provide schema introspection and the identifier/placeholder dialect.
//
// Database-agnostic logic (key resolution, edit reconciliation) only talks to
// a handler, which keeps new backends down to one file.
type DatabaseHandler interface {
	// LoadTables lists user tables in name order.
	LoadTables(ctx context.Context, db *sql.DB) ([]string, error)

	// LoadColumns loads the declared columns of a table in declaration order.
	LoadColumns(ctx context.Context, db *sql.DB, tableName string) ([]Column, error)

	// LoadPrimaryKey returns the columns of the table's primary-key index,
	// ordered by their ordinal position inside the index. An empty slice
	// means the table has no primary key. Backends whose index catalog is not
	// reachable through SQL return ErrMetadataUnsupported.
	LoadPrimaryKey(ctx context.Context, db *sql.DB, tableName string) ([]string, error)

	// QuoteIdent quotes an identifier (table name, column name, etc.) for safe use in SQL.
	//   - MySQL: backticks `identifier`
	//   - PostgreSQL, SQLite: double quotes "identifier"
	//   - Access: brackets [identifier]
	QuoteIdent(ident string) string

	// Placeholder returns the parameter placeholder for position i (1-indexed).
	//   - PostgreSQL: $1, $2, $3, ...
	//   - MySQL, SQLite, Access: ?, ?, ?, ...
	Placeholder(position int) string
}

// NewDatabaseHandler creates a DatabaseHandler for the given database type.
//
//	handler, err := NewDatabaseHandler(dbType)
//	if err != nil {
//	    return fmt.Errorf("unsupported database: %w", err)
//	}
//	cols, err := handler.LoadPrimaryKey(ctx, db, "users")
func NewDatabaseHandler(dbType DatabaseType) (DatabaseHandler, error) {
	switch dbType {
	case MySQL:
		return &MySQLHandler{}, nil
	case PostgreSQL:
		return &PostgresHandler{}, nil
	case SQLite:
		return &SQLiteHandler{}, nil
	case Access:
		return &AccessHandler{}, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %v", dbType)
	}
}

// loadColumnsGeneric reads column names and types from an empty result set.
// It works for any driver that implements ColumnTypes.
func loadColumnsGeneric(ctx context.Context, db *sql.DB, quotedTable string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE 1=0", quotedTable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	columns := make([]Column, 0, len(types))
	for _, ct := range types {
		nullable, ok := ct.Nullable()
		if !ok {
			nullable = true
		}
		columns = append(columns, Column{
			Name:     ct.Name(),
			Type:     ct.DatabaseTypeName(),
			Nullable: nullable,
		})
	}
	return columns, rows.Err()
}
