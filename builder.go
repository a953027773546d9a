package fluent

import (
	"fmt"
	"strings"
	"unicode"

	dsql "github.com/syssam/fluent/dialect/sql"
)

// Column is one entry of an insert or update column list. A bare column takes
// its value from the positional values of the call; an inline column carries
// its own value, which is always rendered as a literal.
type Column struct {
	Name   string
	Value  any
	Inline bool
}

// Col returns a bare column bound to the next positional value.
func Col(name string) Column {
	return Column{Name: name}
}

// ColValue returns a column with an inline value.
func ColValue(name string, v any) Column {
	return Column{Name: name, Value: v, Inline: true}
}

// Columns is an ordered column list.
type Columns []Column

// Cols returns a list of bare columns.
func Cols(names ...string) Columns {
	cols := make(Columns, len(names))
	for i, name := range names {
		cols[i] = Col(name)
	}
	return cols
}

// Names returns the column names in order.
func (c Columns) Names() []string {
	names := make([]string, len(c))
	for i := range c {
		names[i] = c[i].Name
	}
	return names
}

// BuildColumnValues returns the column names and value fragments of cols. Bare
// columns consume values in order and must consume all of them. In prepared
// mode a bare column becomes a "?" placeholder; otherwise its value is quoted
// for dialect d. Each fragment is prefixed with joinSign ("" for inserts, "="
// for updates).
func BuildColumnValues(d string, cols Columns, values []any, joinSign string, prepared bool) (names, frags []string, err error) {
	names, frags = cols.Names(), make([]string, len(cols))
	bare := make([]int, 0, len(cols))
	for i, c := range cols {
		if !c.Inline {
			bare = append(bare, i)
			continue
		}
		lit, err := dsql.Quote(d, c.Value)
		if err != nil {
			return nil, nil, fmt.Errorf("fluent: column %q: %w", c.Name, err)
		}
		frags[i] = joinSign + lit
	}
	if len(bare) != len(values) {
		return nil, nil, &CountMismatchError{Placeholders: len(bare), Values: len(values)}
	}
	for j, i := range bare {
		if prepared {
			frags[i] = joinSign + "?"
			continue
		}
		lit, err := dsql.Quote(d, values[j])
		if err != nil {
			return nil, nil, fmt.Errorf("fluent: column %q: %w", cols[i].Name, err)
		}
		frags[i] = joinSign + lit
	}
	return names, frags, nil
}

// eqMarkers returns the [start, end) spans of the "= ?" markers of a where
// clause. A marker is a placeholder preceded by "=" and optional whitespace;
// placeholders inside quoted text are not markers.
func eqMarkers(d, where string) [][2]int {
	var spans [][2]int
	for _, pos := range dsql.Placeholders(d, where) {
		j := pos - 1
		for j >= 0 && unicode.IsSpace(rune(where[j])) {
			j--
		}
		if j >= 0 && where[j] == '=' {
			spans = append(spans, [2]int{j, pos + 1})
		}
	}
	return spans
}

// replaceMarkers replaces each marker span with the string returned by fn.
func replaceMarkers(where string, spans [][2]int, fn func(i int) (string, error)) (string, error) {
	var (
		b    strings.Builder
		last int
	)
	for i, span := range spans {
		repl, err := fn(i)
		if err != nil {
			return "", err
		}
		b.WriteString(where[last:span[0]])
		b.WriteString(repl)
		last = span[1]
	}
	b.WriteString(where[last:])
	return b.String(), nil
}

// BindWhere resolves the "= ?" markers of a where clause. In prepared mode
// the markers are normalised to "= ?" and left for the driver to bind.
// Otherwise each marker is replaced, in order, by the quoted value, and the
// number of markers must equal the number of values.
func BindWhere(d, where string, values []any, prepared bool) (string, error) {
	spans := eqMarkers(d, where)
	if prepared {
		return replaceMarkers(where, spans, func(int) (string, error) { return "= ?", nil })
	}
	if len(spans) != len(values) {
		return "", &CountMismatchError{Placeholders: len(spans), Values: len(values)}
	}
	bound, err := replaceMarkers(where, spans, func(i int) (string, error) {
		lit, err := dsql.Quote(d, values[i])
		if err != nil {
			return "", err
		}
		return "= " + lit, nil
	})
	if err != nil {
		return "", fmt.Errorf("fluent: where: %w", err)
	}
	return bound, nil
}

// Condition is a where clause with the values of its "= ?" markers.
type Condition struct {
	Clause string
	Values []any
}

// Where returns a Condition.
func Where(clause string, values ...any) Condition {
	return Condition{Clause: clause, Values: values}
}

// InsertSQL renders an INSERT statement from column names and value fragments.
func InsertSQL(table string, names, frags []string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteByte('(')
	b.WriteString(strings.Join(names, ","))
	b.WriteString(") VALUES(")
	b.WriteString(strings.Join(frags, ","))
	b.WriteByte(')')
	return b.String()
}

// UpdateSQL renders an UPDATE statement. frags must carry the "=" join sign.
// An empty where clause updates every row.
func UpdateSQL(table string, names, frags []string, where string) string {
	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(table)
	b.WriteString(" SET ")
	for i := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(names[i])
		b.WriteString(frags[i])
	}
	writeWhere(&b, where)
	return b.String()
}

// DeleteSQL renders a DELETE statement. An empty where clause deletes every row.
func DeleteSQL(table, where string) string {
	var b strings.Builder
	b.WriteString("DELETE FROM ")
	b.WriteString(table)
	writeWhere(&b, where)
	return b.String()
}

func writeWhere(b *strings.Builder, where string) {
	if where = strings.TrimSpace(where); where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
}
