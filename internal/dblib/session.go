package dblib

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Options describe how to open a Session.
type Options struct {
	Type DatabaseType
	DSN  string
	// Charset names the encoding of byte-string cells (e.g. "gbk" for Access
	// files written by a Chinese-locale Office). Empty means UTF-8.
	Charset string
	Logger  logr.Logger
}

// Session owns the single database connection of the editor. It is opened
// on connect and released on reconnect or shutdown; nothing else holds a
// *sql.DB.
type Session struct {
	db      *sql.DB
	dbType  DatabaseType
	handler DatabaseHandler
	decoder *encoding.Decoder
	log     logr.Logger

	columns map[string][]Column
}

// Open connects, pings and returns a ready Session. Failures are
// ConnectionErrors.
func Open(ctx context.Context, opts Options) (*Session, error) {
	s := &Session{}
	if err := s.open(ctx, opts); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSession wraps an already opened handle. It is used by tests and by
// callers that manage driver registration themselves.
func NewSession(db *sql.DB, dbType DatabaseType, logger logr.Logger) (*Session, error) {
	handler, err := NewDatabaseHandler(dbType)
	if err != nil {
		return nil, wrap(ConnectionError, "open", "", err)
	}
	db.SetMaxOpenConns(1)
	return &Session{
		db:      db,
		dbType:  dbType,
		handler: handler,
		log:     logger,
		columns: make(map[string][]Column),
	}, nil
}

func (s *Session) open(ctx context.Context, opts Options) error {
	handler, err := NewDatabaseHandler(opts.Type)
	if err != nil {
		return wrap(ConnectionError, "open", "", err)
	}
	var decoder *encoding.Decoder
	if opts.Charset != "" && !strings.EqualFold(opts.Charset, "utf-8") && !strings.EqualFold(opts.Charset, "utf8") {
		enc, err := htmlindex.Get(opts.Charset)
		if err != nil {
			return wrap(ConnectionError, "open", "", fmt.Errorf("unknown charset %q: %w", opts.Charset, err))
		}
		decoder = enc.NewDecoder()
	}

	db, err := sql.Open(opts.Type.DriverName(), opts.DSN)
	if err != nil {
		return wrap(ConnectionError, "open", "", fmt.Errorf("failed to connect to database: %w", err))
	}
	// One connection: the editor is strictly sequential, and an open
	// transaction must never race a second pooled connection on file
	// databases.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return wrap(ConnectionError, "open", "", fmt.Errorf("failed to ping database: %w", err))
	}

	s.db = db
	s.dbType = opts.Type
	s.handler = handler
	s.decoder = decoder
	s.log = opts.Logger
	s.columns = make(map[string][]Column)
	s.log.V(1).Info("connected", "type", opts.Type.String())
	return nil
}

// Reopen closes the current connection first, then connects with opts.
func (s *Session) Reopen(ctx context.Context, opts Options) error {
	if err := s.Close(); err != nil {
		s.log.Error(err, "close previous connection")
	}
	return s.open(ctx, opts)
}

// Close releases the connection. It is safe to call more than once.
func (s *Session) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.columns = nil
	return err
}

func (s *Session) Type() DatabaseType         { return s.dbType }
func (s *Session) Handler() DatabaseHandler   { return s.handler }
func (s *Session) Logger() logr.Logger        { return s.log }
func (s *Session) quoteTable(t string) string { return quoteQualified(s.handler, t) }

// Tables lists user tables.
func (s *Session) Tables(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, wrap(ConnectionError, "list tables", "", ErrClosed)
	}
	tables, err := s.handler.LoadTables(ctx, s.db)
	if err != nil {
		return nil, wrap(MetadataError, "list tables", "", err)
	}
	return tables, nil
}

// Columns returns the declared columns of table, cached for the session.
func (s *Session) Columns(ctx context.Context, table string) ([]Column, error) {
	if s.db == nil {
		return nil, wrap(ConnectionError, "list columns", table, ErrClosed)
	}
	if cols, ok := s.columns[table]; ok {
		return cols, nil
	}
	cols, err := s.handler.LoadColumns(ctx, s.db, table)
	if err != nil {
		return nil, wrap(MetadataError, "list columns", table, err)
	}
	s.log.V(2).Info("loaded columns", "table", table, "count", len(cols))
	s.columns[table] = cols
	return cols, nil
}

// ForgetColumns drops cached column metadata for table.
func (s *Session) ForgetColumns(table string) {
	delete(s.columns, table)
}

// PrimaryKey returns the primary-key index columns of table.
func (s *Session) PrimaryKey(ctx context.Context, table string) ([]string, error) {
	if s.db == nil {
		return nil, wrap(ConnectionError, "load primary key", table, ErrClosed)
	}
	cols, err := s.handler.LoadPrimaryKey(ctx, s.db, table)
	if err != nil {
		return nil, wrap(MetadataError, "load primary key", table, err)
	}
	return cols, nil
}

// Snapshot reads every row of table. When orderBy is non-empty the rows are
// sorted by those columns so repeated snapshots agree on row positions.
func (s *Session) Snapshot(ctx context.Context, table string, orderBy []string) (*TableData, error) {
	columns, err := s.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = s.handler.QuoteIdent(c.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(quoted, ", "), s.quoteTable(table))
	if len(orderBy) > 0 {
		order := make([]string, len(orderBy))
		for i, c := range orderBy {
			order[i] = s.handler.QuoteIdent(c)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(order, ", "))
	}

	query := b.String()
	s.log.V(2).Info("snapshot", "query", query)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrap(StatementError, "read rows", table, err)
	}
	defer rows.Close()

	data := &TableData{Name: table, Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		scanArgs := make([]any, len(values))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, wrap(StatementError, "read rows", table, fmt.Errorf("scan failed: %w", err))
		}
		data.Rows = append(data.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(StatementError, "read rows", table, err)
	}
	return data, nil
}

// Exec runs a single autocommitted statement.
func (s *Session) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	s.log.V(1).Info("exec", "query", query, "args", args)
	return s.db.ExecContext(ctx, query, args...)
}

// Tx is a transaction bound to the session's dialect.
type Tx struct {
	tx  *sql.Tx
	s   *Session
	seq int
}

// InTx runs fn in a transaction, committing when fn returns nil and rolling
// back otherwise.
func (s *Session) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	if s.db == nil {
		return ErrClosed
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx failed: %w", err)
	}
	if err := fn(&Tx{tx: sqlTx, s: s}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.log.Error(rbErr, "rollback failed")
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

// ExecIsolated runs one statement so that its failure leaves the rest of the
// transaction usable. On backends where an error aborts the transaction the
// statement runs under its own savepoint.
func (t *Tx) ExecIsolated(ctx context.Context, query string, args ...any) (sql.Result, error) {
	t.s.log.V(1).Info("exec", "query", query, "args", args)
	if !databaseFeatures[t.s.dbType].savepoints {
		return t.tx.ExecContext(ctx, query, args...)
	}
	t.seq++
	sp := fmt.Sprintf("edit_%d", t.seq)
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
		return nil, err
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
			return nil, fmt.Errorf("%w (rollback to savepoint: %v)", err, rbErr)
		}
		return nil, err
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
		return nil, err
	}
	return res, nil
}

// FormatValue renders a scanned value as display text. NULL becomes
// NullGlyph so it survives a round trip through the display surface.
func (s *Session) FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return NullGlyph
	case []byte:
		if s.decoder != nil {
			if out, err := s.decoder.Bytes(x); err == nil {
				return string(out)
			}
		}
		return string(x)
	case string:
		return x
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(x)
	}
}

// FormatRows renders a snapshot as display text.
func (s *Session) FormatRows(data *TableData) [][]string {
	out := make([][]string, len(data.Rows))
	for i, row := range data.Rows {
		texts := make([]string, len(row))
		for j, v := range row {
			texts[j] = s.FormatValue(v)
		}
		out[i] = texts
	}
	return out
}
