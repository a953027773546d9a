// Package dialect names the database dialects supported by fluent and
// defines the executor interfaces shared by drivers and transactions.
//
// # Supported Dialects
//
// Each dialect is identified by a constant string that is also the name the
// corresponding database/sql driver registers under:
//
//	dialect.MySQL    = "mysql"
//	dialect.Postgres = "postgres"
//	dialect.SQLite   = "sqlite"
//
// # ExecQuerier Interface
//
// The ExecQuerier interface is implemented by *sql.DB, *sql.Tx and *sql.Conn:
//
//	type ExecQuerier interface {
//	    ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
//	    QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
//	    PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
//	}
//
// # Sub-packages
//
//   - dialect/sql: driver wrapper, literal quoting, placeholder handling and statistics
package dialect
