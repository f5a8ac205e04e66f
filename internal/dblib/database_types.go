package dblib

// should be configurable
const NullGlyph = "\\0"
const NullDisplay = "null"

type DatabaseType int

const (
	SQLite DatabaseType = iota
	PostgreSQL
	MySQL
	Access
)

func (t DatabaseType) String() string {
	switch t {
	case SQLite:
		return "sqlite"
	case PostgreSQL:
		return "postgres"
	case MySQL:
		return "mysql"
	case Access:
		return "access"
	default:
		return "unknown"
	}
}

// DriverName returns the database/sql driver registered for the type.
func (t DatabaseType) DriverName() string {
	switch t {
	case SQLite:
		return "sqlite3"
	case PostgreSQL:
		return "postgres"
	case MySQL:
		return "mysql"
	case Access:
		return "odbc"
	default:
		return ""
	}
}

type databaseFeature struct {
	// savepoints is set when a failed statement aborts the enclosing
	// transaction unless it ran under its own savepoint.
	savepoints bool
}

var databaseFeatures = map[DatabaseType]databaseFeature{
	SQLite: {
		savepoints: false,
	},
	PostgreSQL: {
		savepoints: true,
	},
	MySQL: {
		savepoints: false,
	},
	Access: {
		savepoints: false,
	},
}

// Column is one declared column of a table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// TableData is an in-memory reflection of a table's rows, in the order the
// display surface shows them.
type TableData struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// ColumnNames returns the declared column names in order.
func (td *TableData) ColumnNames() []string {
	names := make([]string, len(td.Columns))
	for i, c := range td.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of the named column, or -1.
func (td *TableData) ColumnIndex(name string) int {
	for i, c := range td.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}
