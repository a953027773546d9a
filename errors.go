package fluent

import (
	"errors"
	"fmt"
	"strings"

	dsql "github.com/syssam/fluent/dialect/sql"
)

// Standard sentinel errors. Every error returned by the package matches one
// of them with errors.Is.
var (
	// ErrInvalidIdentifier is returned when a connection identifier is empty or
	// not of the form "profile:database".
	ErrInvalidIdentifier = errors.New("fluent: invalid connection identifier")

	// ErrUnknownProfile is returned when the identifier names a profile that
	// is not configured.
	ErrUnknownProfile = errors.New("fluent: unknown profile")

	// ErrDatabaseNotPermitted is returned when the profile does not list the
	// requested database.
	ErrDatabaseNotPermitted = errors.New("fluent: database not permitted")

	// ErrConnectionFailed is returned when a connection cannot be opened.
	ErrConnectionFailed = errors.New("fluent: connection failed")

	// ErrColumnValueCountMismatch is returned when the number of placeholders
	// does not match the number of supplied values.
	ErrColumnValueCountMismatch = errors.New("fluent: column/value count mismatch")

	// ErrQueryFailed is returned when the database rejects a statement.
	ErrQueryFailed = errors.New("fluent: query failed")

	// ErrNoQueryExecuted is returned by the fetch accessors when no statement
	// has executed successfully since the last reset.
	ErrNoQueryExecuted = errors.New("fluent: no query executed")

	// ErrUnknownColumn is returned when a projected column is not in the result.
	ErrUnknownColumn = errors.New("fluent: unknown column")

	// ErrEmptyResult is returned when grouping an empty result.
	ErrEmptyResult = errors.New("fluent: empty result")

	// ErrMissingKeyColumn is returned when the grouping key is not in the result.
	ErrMissingKeyColumn = errors.New("fluent: missing key column")

	// ErrTxInProgress is returned when switching profiles while a transaction
	// is open on another one.
	ErrTxInProgress = errors.New("fluent: transaction in progress")
)

// IdentifierError describes why a connection identifier could not be resolved.
type IdentifierError struct {
	ID     ID     // Identifier as given
	Reason string // Human readable reason
	kind   error
}

// Error returns the error string.
func (e *IdentifierError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%v: %s", e.kind, e.Reason)
	}
	return fmt.Sprintf("%v: %q: %s", e.kind, string(e.ID), e.Reason)
}

// Is reports whether the target is the sentinel of this identifier error.
func (e *IdentifierError) Is(err error) bool {
	return err == e.kind
}

func newIdentifierError(kind error, id ID, reason string) *IdentifierError {
	return &IdentifierError{ID: id, Reason: reason, kind: kind}
}

// ConnectionError wraps the driver error returned while opening a connection.
type ConnectionError struct {
	ID  ID    // Identifier being connected
	Err error // Underlying driver error
}

// Error returns the error string.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("fluent: connection %q failed: %v", string(e.ID), e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches ErrConnectionFailed.
func (e *ConnectionError) Is(err error) bool {
	return err == ErrConnectionFailed
}

// CountMismatchError reports a placeholder count that differs from the number
// of values supplied for it.
type CountMismatchError struct {
	Placeholders int
	Values       int
}

// Error returns the error string.
func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("fluent: %d placeholders but %d values", e.Placeholders, e.Values)
}

// Is reports whether the target error matches ErrColumnValueCountMismatch.
func (e *CountMismatchError) Is(err error) bool {
	return err == ErrColumnValueCountMismatch
}

// QueryError is returned when the database rejects a statement.
//
// Its message is, in order of precedence: the message supplied by the
// caller, the driver error followed by the statement text in debug mode, or
// the driver error alone. The statement text never appears in the message
// outside debug mode.
type QueryError struct {
	Query string // Statement text
	Args  []any  // Bound arguments, if any
	Err   error  // Underlying driver error
	msg   string
}

func newQueryError(query string, args []any, err error, override string, debug bool) *QueryError {
	msg := override
	switch {
	case msg != "":
	case debug:
		msg = err.Error() + "; query: " + collapseSpace(query)
	default:
		msg = err.Error()
	}
	return &QueryError{Query: query, Args: args, Err: err, msg: msg}
}

// Error returns the error string.
func (e *QueryError) Error() string {
	return e.msg
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches ErrQueryFailed.
func (e *QueryError) Is(err error) bool {
	return err == ErrQueryFailed
}

// IsConstraint reports whether the statement violated a unique, foreign-key
// or check constraint.
func (e *QueryError) IsConstraint() bool {
	return dsql.IsConstraintError(e.Err)
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// ColumnError reports a column that is absent from the result.
type ColumnError struct {
	Column string
	kind   error
}

// Error returns the error string.
func (e *ColumnError) Error() string {
	return fmt.Sprintf("%v %q", e.kind, e.Column)
}

// Is reports whether the target is the sentinel of this column error.
func (e *ColumnError) Is(err error) bool {
	return err == e.kind
}

// collapseSpace replaces every run of white space with a single space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
