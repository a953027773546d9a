package fluent

import "context"

// Insert inserts one row with every value rendered as a literal.
//
//	s.Insert(ctx, "users", fluent.Columns{fluent.Col("name"), fluent.ColValue("active", true)}, []any{"a8m"})
//	// INSERT INTO users(name,active) VALUES('a8m',1)
func (s *Session) Insert(ctx context.Context, table string, cols Columns, values []any, opts ...ExecOption) (int64, error) {
	return s.insert(ctx, table, cols, values, false, opts)
}

// InsertPrepare inserts one row binding the values of bare columns as
// parameters. Inline column values are still rendered as literals.
func (s *Session) InsertPrepare(ctx context.Context, table string, cols Columns, values []any, opts ...ExecOption) (int64, error) {
	return s.insert(ctx, table, cols, values, true, opts)
}

// Update updates the rows matching cond with every value rendered as a literal.
func (s *Session) Update(ctx context.Context, table string, cols Columns, values []any, cond Condition, opts ...ExecOption) (int64, error) {
	return s.update(ctx, table, cols, values, cond, false, opts)
}

// UpdatePrepare updates the rows matching cond binding the column values and
// then the condition values as parameters.
func (s *Session) UpdatePrepare(ctx context.Context, table string, cols Columns, values []any, cond Condition, opts ...ExecOption) (int64, error) {
	return s.update(ctx, table, cols, values, cond, true, opts)
}

// Delete deletes the rows matching cond with the condition values rendered as literals.
func (s *Session) Delete(ctx context.Context, table string, cond Condition, opts ...ExecOption) (int64, error) {
	return s.deleteRows(ctx, table, cond, false, opts)
}

// DeletePrepare deletes the rows matching cond binding the condition values.
func (s *Session) DeletePrepare(ctx context.Context, table string, cond Condition, opts ...ExecOption) (int64, error) {
	return s.deleteRows(ctx, table, cond, true, opts)
}

func (s *Session) insert(ctx context.Context, table string, cols Columns, values []any, prepared bool, opts []ExecOption) (int64, error) {
	d, err := s.dialect(ctx, opts)
	if err != nil {
		return 0, err
	}
	names, frags, err := BuildColumnValues(d, cols, values, "", prepared)
	if err != nil {
		return 0, err
	}
	return s.write(ctx, InsertSQL(table, names, frags), values, prepared, opts)
}

func (s *Session) update(ctx context.Context, table string, cols Columns, values []any, cond Condition, prepared bool, opts []ExecOption) (int64, error) {
	d, err := s.dialect(ctx, opts)
	if err != nil {
		return 0, err
	}
	names, frags, err := BuildColumnValues(d, cols, values, "=", prepared)
	if err != nil {
		return 0, err
	}
	where, err := BindWhere(d, cond.Clause, cond.Values, prepared)
	if err != nil {
		return 0, err
	}
	params := make([]any, 0, len(values)+len(cond.Values))
	params = append(params, values...)
	params = append(params, cond.Values...)
	return s.write(ctx, UpdateSQL(table, names, frags, where), params, prepared, opts)
}

func (s *Session) deleteRows(ctx context.Context, table string, cond Condition, prepared bool, opts []ExecOption) (int64, error) {
	d, err := s.dialect(ctx, opts)
	if err != nil {
		return 0, err
	}
	where, err := BindWhere(d, cond.Clause, cond.Values, prepared)
	if err != nil {
		return 0, err
	}
	return s.write(ctx, DeleteSQL(table, where), cond.Values, prepared, opts)
}

// write runs a rendered mutation and drops the cached results of its profile.
// Literal statements carry their values inline and ignore params.
func (s *Session) write(ctx context.Context, query string, params []any, prepared bool, opts []ExecOption) (int64, error) {
	var (
		n   int64
		err error
	)
	if prepared {
		n, err = s.ExecutePrepared(ctx, query, params, opts...)
	} else {
		n, err = s.ExecuteStatic(ctx, query, opts...)
	}
	if err != nil {
		return 0, err
	}
	if err := s.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "invalidate cache", "error", err)
	}
	return n, nil
}

// dialect clears the last result and returns the dialect statements will be
// rendered for.
func (s *Session) dialect(ctx context.Context, opts []ExecOption) (string, error) {
	s.reset()
	conn, err := s.ensure(ctx, newExecConfig(opts))
	if err != nil {
		return "", err
	}
	return conn.Dialect(), nil
}
