package fluent

import (
	"context"
	"database/sql/driver"
	"strings"
)

// BeginTransaction opens a transaction on the active profile, or on the
// default one when none is active. Statements run through the transaction
// until Commit or Rollback. It returns false if a transaction is already open
// or the database refuses to start one.
func (s *Session) BeginTransaction(ctx context.Context) bool {
	if s.tx != nil {
		s.logger.WarnContext(ctx, "begin transaction: transaction in progress", "profile", s.id)
		return false
	}
	if _, err := s.ensure(ctx, execConfig{}); err != nil {
		s.logger.WarnContext(ctx, "begin transaction", "error", err)
		return false
	}
	// The transaction may need the connection held by unread rows.
	s.settle(ctx)
	tx, err := s.drv.BeginTx(ctx, nil)
	if err != nil {
		s.logger.WarnContext(ctx, "begin transaction", "profile", s.id, "error", err)
		return false
	}
	s.tx = tx
	s.trace(ctx, "BEGIN", nil)
	return true
}

// Commit commits the open transaction. It returns false if none is open or
// the commit fails; either way the session leaves the transaction.
func (s *Session) Commit() bool {
	return s.finish("commit", driver.Tx.Commit)
}

// Rollback rolls back the open transaction. It returns false if none is open
// or the rollback fails; either way the session leaves the transaction.
func (s *Session) Rollback() bool {
	return s.finish("rollback", driver.Tx.Rollback)
}

// InTransaction reports whether a transaction is open.
func (s *Session) InTransaction() bool {
	return s.tx != nil
}

func (s *Session) finish(op string, end func(driver.Tx) error) bool {
	if s.tx == nil {
		return false
	}
	ctx := context.Background()
	// Rows of the last statement are read before the transaction ends.
	s.settle(ctx)
	tx := s.tx
	s.tx = nil
	if err := end(tx); err != nil {
		s.logger.WarnContext(ctx, op+" transaction", "profile", s.id, "error", err)
		return false
	}
	s.trace(ctx, strings.ToUpper(op), nil)
	return true
}
