package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect names.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the standard Exec, Query and Prepare methods.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

var (
	_ ExecQuerier = (*sql.DB)(nil)
	_ ExecQuerier = (*sql.Tx)(nil)
	_ ExecQuerier = (*sql.Conn)(nil)
)

// Normalize maps a driver name, or one of its common aliases, to a dialect name.
func Normalize(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MySQL, "mariadb":
		return MySQL, nil
	case Postgres, "postgresql", "pgsql", "pg":
		return Postgres, nil
	case SQLite, "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("dialect: unsupported driver %q", name)
	}
}
