// Package sql wraps database/sql for the dialects fluent supports.
//
// It is the layer between the fluent session and the database drivers:
// statements are written with "?" placeholders and rebound per dialect,
// literal values are quoted per dialect, and every statement is recorded
// in per-driver statistics.
//
// # Drivers
//
//	drv, err := sql.Open(dialect.MySQL, dsn, sql.WithSlowQueryLog(nil))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
//	res, err := drv.Exec(ctx, "UPDATE users SET name = ? WHERE id = ?", "a8m", 1)
//
// # Literals
//
// Quote renders a Go value as an SQL literal:
//
//	sql.Quote(dialect.MySQL, "it's")     // 'it''s'
//	sql.Quote(dialect.Postgres, true)    // TRUE
//	sql.Quote(dialect.SQLite, nil)       // NULL
//
// # Placeholders
//
//	sql.CountPlaceholders(dialect.MySQL, "SELECT * FROM t WHERE a = ? AND b = '?'") // 1
//	sql.Rebind(dialect.Postgres, "a = ? AND b = ?")                                 // a = $1 AND b = $2
//
// # Statistics
//
// Every Driver carries a Recorder:
//
//	s := drv.QueryStats().Stats()
//	fmt.Println(s) // queries=12 execs=3 duration=... slow=0 errors=1
//
// # Constraint errors
//
// IsUniqueConstraintError, IsForeignKeyConstraintError and IsCheckConstraintError
// classify driver errors from MySQL, PostgreSQL and SQLite.
package sql
