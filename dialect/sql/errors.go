package sql

import (
	"errors"
	"slices"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// violation describes how each driver reports one kind of constraint failure.
type violation struct {
	pgCode      string
	mysqlNums   []uint16
	sqliteCodes []int
	fallback    []string
}

var (
	uniqueViolation = violation{
		pgCode:      pgUniqueViolation,
		mysqlNums:   []uint16{mysqlDuplicateEntry},
		sqliteCodes: []int{sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY},
		fallback:    []string{"Error 1062", "violates unique constraint", "UNIQUE constraint failed"},
	}
	foreignKeyViolation = violation{
		pgCode:      pgForeignKeyViolation,
		mysqlNums:   []uint16{mysqlForeignKeyParent, mysqlForeignKeyChild},
		sqliteCodes: []int{sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY},
		fallback:    []string{"Error 1451", "Error 1452", "violates foreign key constraint", "FOREIGN KEY constraint failed"},
	}
	checkViolation = violation{
		pgCode:      pgCheckViolation,
		mysqlNums:   []uint16{mysqlCheckConstraintViolate},
		sqliteCodes: []int{sqlite3.SQLITE_CONSTRAINT_CHECK},
		fallback:    []string{"Error 3819", "violates check constraint", "CHECK constraint failed"},
	}
)

func (v violation) match(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == v.pgCode {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && slices.Contains(v.mysqlNums, myErr.Number) {
		return true
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && slices.Contains(v.sqliteCodes, liteErr.Code()) {
		return true
	}
	// Fallback to string matching for drivers that don't expose typed errors.
	return containsAny(err.Error(), v.fallback...)
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err)
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
// e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool {
	return uniqueViolation.match(err)
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
// e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	return foreignKeyViolation.match(err)
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
// e.g. a value does not satisfy a check condition.
func IsCheckConstraintError(err error) bool {
	return checkViolation.match(err)
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
