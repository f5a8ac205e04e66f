package main

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	_ "github.com/alexbrainman/odbc"
	"github.com/go-logr/logr"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/pflag"

	"mdbed/internal/dblib"
)

// Config describes one database connection. Flags fill it first; a named
// alias from the settings file fills whatever the flags left empty.
type Config struct {
	Database string
	// Type selects the backend explicitly: access, sqlite, postgres or mysql.
	Type     string
	Host     string
	Port     string
	Username string
	Password string
	// Charset of byte-string cells, e.g. gbk.
	Charset string
}

func addConnectionFlags(flags *pflag.FlagSet, c *Config) {
	flags.StringVarP(&c.Type, "type", "t", "", "Database type: access, sqlite, postgres or mysql (default: detected)")
	flags.StringVarP(&c.Host, "host", "h", "", "Database host")
	flags.StringVarP(&c.Port, "port", "p", "", "Database port")
	flags.StringVarP(&c.Username, "username", "U", "", "Database username")
	flags.StringVarP(&c.Password, "password", "W", "", "Database password")
	flags.StringVar(&c.Charset, "charset", "", "Encoding of text cells (e.g. gbk); default utf-8")
}

func parseDatabaseType(s string) (dblib.DatabaseType, error) {
	switch strings.ToLower(s) {
	case "access", "mdb", "accdb":
		return dblib.Access, nil
	case "sqlite", "sqlite3":
		return dblib.SQLite, nil
	case "postgres", "postgresql", "pg":
		return dblib.PostgreSQL, nil
	case "mysql", "mariadb":
		return dblib.MySQL, nil
	default:
		return 0, fmt.Errorf("unknown database type %q", s)
	}
}

func (c *Config) detectDatabaseType() (dblib.DatabaseType, error) {
	if c.Type != "" {
		return parseDatabaseType(c.Type)
	}
	switch strings.ToLower(filepath.Ext(c.Database)) {
	case ".mdb", ".accdb":
		return dblib.Access, nil
	case ".sqlite", ".sqlite3", ".db":
		return dblib.SQLite, nil
	}
	return dblib.PostgreSQL, nil
}

func (c *Config) buildConnectionString() (string, dblib.DatabaseType, error) {
	dbType, err := c.detectDatabaseType()
	if err != nil {
		return "", dbType, err
	}

	switch dbType {
	case dblib.Access:
		path, err := filepath.Abs(c.Database)
		if err != nil {
			return "", dbType, err
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return "", dbType, fmt.Errorf("access file does not exist: %s", c.Database)
		}
		connStr := dblib.AccessConnectionString(path)
		if c.Password != "" {
			connStr += ";PWD=" + c.Password
		}
		return connStr, dbType, nil

	case dblib.SQLite:
		if _, err := os.Stat(c.Database); os.IsNotExist(err) {
			return "", dbType, fmt.Errorf("sqlite file does not exist: %s", c.Database)
		}
		return c.Database, dbType, nil

	case dblib.PostgreSQL:
		connStr := fmt.Sprintf("dbname=%s", c.Database)
		if c.Host != "" {
			connStr += fmt.Sprintf(" host=%s", c.Host)
		}
		if c.Port != "" {
			connStr += fmt.Sprintf(" port=%s", c.Port)
		}
		if c.Username != "" {
			connStr += fmt.Sprintf(" user=%s", c.Username)
		} else if currentUser, err := user.Current(); err == nil {
			connStr += fmt.Sprintf(" user=%s", currentUser.Username)
		}
		if c.Password != "" {
			connStr += fmt.Sprintf(" password=%s", c.Password)
		}
		connStr += " sslmode=disable"
		return connStr, dbType, nil

	case dblib.MySQL:
		connStr := c.Username
		if connStr == "" {
			if currentUser, err := user.Current(); err == nil {
				connStr = currentUser.Username
			}
		}
		if c.Password != "" {
			connStr += ":" + c.Password
		}
		connStr += "@"
		host := c.Host
		if host == "" {
			host = "localhost"
		}
		port := c.Port
		if port == "" {
			port = "3306"
		}
		connStr += fmt.Sprintf("tcp(%s:%s)/%s", host, port, c.Database)
		return connStr, dbType, nil

	default:
		return "", dbType, fmt.Errorf("unsupported database type")
	}
}

// Options turns the config into session options.
func (c *Config) Options(logger logr.Logger) (dblib.Options, error) {
	connStr, dbType, err := c.buildConnectionString()
	if err != nil {
		return dblib.Options{}, err
	}
	return dblib.Options{
		Type:    dbType,
		DSN:     connStr,
		Charset: c.Charset,
		Logger:  logger,
	}, nil
}

// Open connects to the configured database.
func (c *Config) Open(ctx context.Context, logger logr.Logger) (*dblib.Session, error) {
	opts, err := c.Options(logger)
	if err != nil {
		return nil, err
	}
	if breadcrumbs != nil {
		breadcrumbs.RecordDatabase("connect " + opts.Type.String())
	}
	return dblib.Open(ctx, opts)
}

// DisplayName is the short name shown in the status bar.
func (c *Config) DisplayName() string {
	if dbType, err := c.detectDatabaseType(); err == nil && (dbType == dblib.Access || dbType == dblib.SQLite) {
		return filepath.Base(c.Database)
	}
	if c.Host != "" {
		return c.Database + "@" + c.Host
	}
	return c.Database
}
