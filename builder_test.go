package fluent_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/fluent"
	"github.com/syssam/fluent/dialect"
)

func TestBuildColumnValues(t *testing.T) {
	tests := []struct {
		name      string
		dialect   string
		cols      fluent.Columns
		values    []any
		joinSign  string
		prepared  bool
		wantNames []string
		wantFrags []string
	}{
		{
			name:      "literal",
			dialect:   dialect.MySQL,
			cols:      fluent.Columns{fluent.Col("a"), fluent.ColValue("b", 5)},
			values:    []any{10},
			wantNames: []string{"a", "b"},
			wantFrags: []string{"10", "5"},
		},
		{
			name:      "prepared",
			dialect:   dialect.MySQL,
			cols:      fluent.Columns{fluent.Col("a"), fluent.ColValue("b", 5)},
			values:    []any{10},
			prepared:  true,
			wantNames: []string{"a", "b"},
			wantFrags: []string{"?", "5"},
		},
		{
			name:      "inline_string_stays_literal_when_prepared",
			dialect:   dialect.SQLite,
			cols:      fluent.Columns{fluent.ColValue("status", "it's"), fluent.Col("id")},
			values:    []any{1},
			joinSign:  "=",
			prepared:  true,
			wantNames: []string{"status", "id"},
			wantFrags: []string{"='it''s'", "=?"},
		},
		{
			name:      "join_sign",
			dialect:   dialect.Postgres,
			cols:      fluent.Cols("name", "active", "deleted_at"),
			values:    []any{"a8m", true, nil},
			joinSign:  "=",
			wantNames: []string{"name", "active", "deleted_at"},
			wantFrags: []string{"='a8m'", "=TRUE", "=NULL"},
		},
		{
			name:      "mysql_escaping",
			dialect:   dialect.MySQL,
			cols:      fluent.Cols("path"),
			values:    []any{`C:\it's`},
			wantNames: []string{"path"},
			wantFrags: []string{`'C:\\it''s'`},
		},
		{
			name:      "time",
			dialect:   dialect.MySQL,
			cols:      fluent.Cols("created_at"),
			values:    []any{time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)},
			wantNames: []string{"created_at"},
			wantFrags: []string{"'2024-05-01 10:30:00'"},
		},
		{
			name:      "empty",
			dialect:   dialect.MySQL,
			wantNames: []string{},
			wantFrags: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names, frags, err := fluent.BuildColumnValues(tt.dialect, tt.cols, tt.values, tt.joinSign, tt.prepared)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNames, names)
			assert.Equal(t, tt.wantFrags, frags)
		})
	}
}

func TestBuildColumnValuesErrors(t *testing.T) {
	t.Run("too_few_values", func(t *testing.T) {
		_, _, err := fluent.BuildColumnValues(dialect.MySQL, fluent.Cols("a", "b"), []any{1}, "", false)
		require.ErrorIs(t, err, fluent.ErrColumnValueCountMismatch)
		var me *fluent.CountMismatchError
		require.ErrorAs(t, err, &me)
		assert.Equal(t, 2, me.Placeholders)
		assert.Equal(t, 1, me.Values)
	})

	t.Run("too_many_values", func(t *testing.T) {
		_, _, err := fluent.BuildColumnValues(dialect.MySQL, fluent.Columns{fluent.ColValue("a", 1)}, []any{2}, "", true)
		assert.ErrorIs(t, err, fluent.ErrColumnValueCountMismatch)
	})

	t.Run("unquotable", func(t *testing.T) {
		_, _, err := fluent.BuildColumnValues(dialect.MySQL, fluent.Cols("a"), []any{[]int{1}}, "", false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `column "a"`)
	})
}

func TestBindWhere(t *testing.T) {
	t.Run("literal", func(t *testing.T) {
		where, err := fluent.BindWhere(dialect.MySQL, "id = ? AND name=?", []any{7, "a'b"}, false)
		require.NoError(t, err)
		assert.Equal(t, "id = 7 AND name= 'a''b'", where)
	})

	t.Run("prepared", func(t *testing.T) {
		values := []any{7, "a'b"}
		where, err := fluent.BindWhere(dialect.MySQL, "id =  ? AND name=?", values, true)
		require.NoError(t, err)
		assert.Equal(t, "id = ? AND name= ?", where)
		assert.Equal(t, []any{7, "a'b"}, values)
	})

	t.Run("comparison_operators", func(t *testing.T) {
		where, err := fluent.BindWhere(dialect.Postgres, "age >= ? AND age <= ? AND id != ?", []any{18, 65, 3}, false)
		require.NoError(t, err)
		assert.Equal(t, "age >= 18 AND age <= 65 AND id != 3", where)
	})

	t.Run("quoted_marker_is_text", func(t *testing.T) {
		where, err := fluent.BindWhere(dialect.MySQL, "note = 'a = ?' AND id = ?", []any{7}, false)
		require.NoError(t, err)
		assert.Equal(t, "note = 'a = ?' AND id = 7", where)

		where, err = fluent.BindWhere(dialect.SQLite, `note = 'C:\' AND id=?`, []any{7}, false)
		require.NoError(t, err)
		assert.Equal(t, `note = 'C:\' AND id= 7`, where)

		where, err = fluent.BindWhere(dialect.MySQL, "note = 'a = ?' AND id =  ?", []any{7}, true)
		require.NoError(t, err)
		assert.Equal(t, "note = 'a = ?' AND id = ?", where)
	})

	t.Run("bare_placeholder_is_not_a_marker", func(t *testing.T) {
		where, err := fluent.BindWhere(dialect.MySQL, "id IN (?) AND a = ?", []any{1}, false)
		require.NoError(t, err)
		assert.Equal(t, "id IN (?) AND a = 1", where)
	})

	t.Run("no_markers", func(t *testing.T) {
		where, err := fluent.BindWhere(dialect.MySQL, "deleted_at IS NULL", nil, false)
		require.NoError(t, err)
		assert.Equal(t, "deleted_at IS NULL", where)
	})

	t.Run("too_few_values", func(t *testing.T) {
		_, err := fluent.BindWhere(dialect.MySQL, "a = ? AND b = ?", []any{1}, false)
		assert.ErrorIs(t, err, fluent.ErrColumnValueCountMismatch)
	})

	t.Run("too_many_values", func(t *testing.T) {
		_, err := fluent.BindWhere(dialect.MySQL, "a = ?", []any{1, 2}, false)
		assert.ErrorIs(t, err, fluent.ErrColumnValueCountMismatch)
	})

	t.Run("unquotable", func(t *testing.T) {
		_, err := fluent.BindWhere(dialect.MySQL, "a = ?", []any{struct{}{}}, false)
		assert.Error(t, err)
	})
}

func TestStatementSQL(t *testing.T) {
	names := []string{"a", "b"}
	assert.Equal(t, "INSERT INTO t(a,b) VALUES(1,'x')", fluent.InsertSQL("t", names, []string{"1", "'x'"}))
	assert.Equal(t, "UPDATE t SET a=1,b=? WHERE id = 2", fluent.UpdateSQL("t", names, []string{"=1", "=?"}, "id = 2"))
	assert.Equal(t, "UPDATE t SET a=1", fluent.UpdateSQL("t", names[:1], []string{"=1"}, "  "))
	assert.Equal(t, "DELETE FROM t WHERE id = ?", fluent.DeleteSQL("t", "id = ?"))
	assert.Equal(t, "DELETE FROM t", fluent.DeleteSQL("t", ""))

	cond := fluent.Where("id = ?", 1)
	assert.Equal(t, "id = ?", cond.Clause)
	assert.Equal(t, []any{1}, cond.Values)
}
