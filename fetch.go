package fluent

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"

	dsql "github.com/syssam/fluent/dialect/sql"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Columns returns the result columns of the last statement in result order.
func (s *Session) Columns() ([]string, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	return slices.Clone(s.columns), nil
}

// load buffers the rows of the last statement on first access. Statements
// that returned no rows buffer an empty result. A failed read is kept and
// returned by every later access until the next statement.
func (s *Session) load() error {
	if !s.executed {
		return ErrNoQueryExecuted
	}
	if s.loadErr != nil {
		return s.loadErr
	}
	if s.buffered {
		return nil
	}
	s.buffered = true
	s.rows = []Row{}
	if s.pending == nil {
		return nil
	}
	rows := s.pending
	s.pending = nil
	columns, out, err := dsql.ScanMaps(rows)
	if err != nil {
		s.rows = nil
		s.loadErr = newQueryError(s.query, nil, err, "", s.debug)
		return s.loadErr
	}
	s.columns = columns
	s.rows = make([]Row, len(out))
	for i, m := range out {
		s.rows[i] = m
	}
	return nil
}

// settle buffers pending rows so that the connection they hold is released.
func (s *Session) settle(ctx context.Context) {
	if s.pending == nil {
		return
	}
	if err := s.load(); err != nil {
		s.logger.WarnContext(ctx, "buffer result", "error", err)
	}
}

// Fetch returns row i of the result, or nil if i is out of range.
func (s *Session) Fetch(i int) (Row, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(s.rows) {
		return nil, nil
	}
	return maps.Clone(s.rows[i]), nil
}

// FetchFirst returns the first row of the result, or nil if it is empty.
func (s *Session) FetchFirst() (Row, error) {
	return s.Fetch(0)
}

// FetchLast returns the last row of the result, or nil if it is empty.
func (s *Session) FetchLast() (Row, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	return s.Fetch(len(s.rows) - 1)
}

// FetchAll returns every row of the result in order.
func (s *Session) FetchAll() ([]Row, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	out := make([]Row, len(s.rows))
	for i, r := range s.rows {
		out[i] = maps.Clone(r)
	}
	return out, nil
}

// FetchColumns projects the result onto the named columns. With one name each
// element is the column value; with several it is a []any of the values in
// name order. Without names every column is projected. An empty result
// yields an empty slice.
func (s *Session) FetchColumns(names ...string) ([]any, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	out := make([]any, 0, len(s.rows))
	if len(s.rows) == 0 {
		return out, nil
	}
	if len(names) == 0 {
		names = s.columns
	}
	if err := s.checkColumns(names); err != nil {
		return nil, err
	}
	for _, r := range s.rows {
		if len(names) == 1 {
			out = append(out, r[names[0]])
			continue
		}
		vs := make([]any, len(names))
		for i, name := range names {
			vs[i] = r[name]
		}
		out = append(out, vs)
	}
	return out, nil
}

// FetchByKey groups the result by the value of column key. Rows sharing a key
// value overwrite each other, so the last one wins. Unless keep is set the
// key column is removed from the grouped rows.
func (s *Session) FetchByKey(key string, keep bool) (map[any]Row, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	if len(s.rows) == 0 {
		return nil, ErrEmptyResult
	}
	if _, ok := s.rows[0][key]; !ok {
		return nil, &ColumnError{Column: key, kind: ErrMissingKeyColumn}
	}
	out := make(map[any]Row, len(s.rows))
	for _, r := range s.rows {
		r = maps.Clone(r)
		k := mapKey(r[key])
		if !keep {
			delete(r, key)
		}
		out[k] = r
	}
	return out, nil
}

// FetchColumnsByKey maps the value of column key to the named columns of each
// row. With one column the map holds its value; with several it holds a Row
// of them. Without names every other column is used. The result is empty when
// the result is empty, has fewer than two columns or lacks the key column.
func (s *Session) FetchColumnsByKey(key string, names ...string) (map[any]any, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	out := make(map[any]any, len(s.rows))
	if len(s.rows) == 0 || len(s.columns) < 2 {
		return out, nil
	}
	if _, ok := s.rows[0][key]; !ok {
		return out, nil
	}
	if len(names) == 0 {
		names = slices.DeleteFunc(slices.Clone(s.columns), func(c string) bool { return c == key })
	}
	if err := s.checkColumns(names); err != nil {
		return nil, err
	}
	for _, r := range s.rows {
		k := mapKey(r[key])
		if len(names) == 1 {
			out[k] = r[names[0]]
			continue
		}
		v := make(Row, len(names))
		for _, name := range names {
			v[name] = r[name]
		}
		out[k] = v
	}
	return out, nil
}

func (s *Session) checkColumns(names []string) error {
	for _, name := range names {
		if _, ok := s.rows[0][name]; !ok {
			return &ColumnError{Column: name, kind: ErrUnknownColumn}
		}
	}
	return nil
}

// mapKey returns v, or its string form when v cannot be a map key.
func mapKey(v any) any {
	if v == nil || reflect.TypeOf(v).Comparable() {
		return v
	}
	return fmt.Sprint(v)
}

// ReadAll executes query as a prepared statement and returns every row.
func (s *Session) ReadAll(ctx context.Context, query string, params ...any) ([]Row, error) {
	if _, err := s.ExecutePrepared(ctx, query, params); err != nil {
		return nil, err
	}
	return s.FetchAll()
}

// ReadRow executes query as a prepared statement and returns its first row,
// or nil if there is none.
func (s *Session) ReadRow(ctx context.Context, query string, params ...any) (Row, error) {
	if _, err := s.ExecutePrepared(ctx, query, params); err != nil {
		return nil, err
	}
	return s.FetchFirst()
}

// ReadValue executes query as a prepared statement and returns the first
// column of its first row, or nil if there is none.
func (s *Session) ReadValue(ctx context.Context, query string, params ...any) (any, error) {
	if _, err := s.ExecutePrepared(ctx, query, params); err != nil {
		return nil, err
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	if len(s.rows) == 0 || len(s.columns) == 0 {
		return nil, nil
	}
	return s.rows[0][s.columns[0]], nil
}
