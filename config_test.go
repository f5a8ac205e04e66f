package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdbed/internal/dblib"
)

func TestDetectDatabaseType(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected dblib.DatabaseType
	}{
		{"access mdb", Config{Database: "orders.mdb"}, dblib.Access},
		{"access accdb upper", Config{Database: `C:\data\Orders.ACCDB`}, dblib.Access},
		{"sqlite db", Config{Database: "shop.db"}, dblib.SQLite},
		{"sqlite3", Config{Database: "shop.sqlite3"}, dblib.SQLite},
		{"postgres default", Config{Database: "shop"}, dblib.PostgreSQL},
		{"override", Config{Database: "shop", Type: "mysql"}, dblib.MySQL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.config.detectDatabaseType()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := (&Config{Database: "x", Type: "oracle"}).detectDatabaseType()
	assert.Error(t, err)
}

func TestBuildConnectionString(t *testing.T) {
	dir := t.TempDir()
	mdb := filepath.Join(dir, "orders.mdb")
	require.NoError(t, os.WriteFile(mdb, nil, 0o644))

	connStr, dbType, err := (&Config{Database: mdb, Password: "secret"}).buildConnectionString()
	require.NoError(t, err)
	assert.Equal(t, dblib.Access, dbType)
	assert.Equal(t, "DRIVER={Microsoft Access Driver (*.mdb, *.accdb)};DBQ="+mdb+";PWD=secret", connStr)

	_, _, err = (&Config{Database: filepath.Join(dir, "missing.accdb")}).buildConnectionString()
	assert.ErrorContains(t, err, "does not exist")

	_, _, err = (&Config{Database: filepath.Join(dir, "missing.db")}).buildConnectionString()
	assert.ErrorContains(t, err, "does not exist")

	connStr, _, err = (&Config{Database: "shop", Host: "db", Port: "5433", Username: "bob"}).buildConnectionString()
	require.NoError(t, err)
	assert.Equal(t, "dbname=shop host=db port=5433 user=bob sslmode=disable", connStr)

	connStr, _, err = (&Config{Database: "shop", Type: "mysql", Username: "root", Password: "pw"}).buildConnectionString()
	require.NoError(t, err)
	assert.Equal(t, "root:pw@tcp(localhost:3306)/shop", connStr)
}

func TestConfigOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.db")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	opts, err := (&Config{Database: path, Charset: "gbk"}).Options(logr.Discard())
	require.NoError(t, err)
	assert.Equal(t, dblib.SQLite, opts.Type)
	assert.Equal(t, path, opts.DSN)
	assert.Equal(t, "gbk", opts.Charset)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "orders.accdb", (&Config{Database: "/data/orders.accdb"}).DisplayName())
	assert.Equal(t, "shop@db", (&Config{Database: "shop", Host: "db"}).DisplayName())
}
