package sql

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/syssam/fluent/dialect"
)

// scanPlaceholders calls fn with the byte offset of every "?" placeholder in
// query. Quoted strings, quoted identifiers and comments are skipped.
func scanPlaceholders(d, query string, fn func(pos int)) {
	for i := 0; i < len(query); i++ {
		switch c := query[i]; c {
		case '\'':
			i = skipQuoted(query, i, c, backslashEscapes(d, query, i))
		case '"', '`':
			i = skipQuoted(query, i, c, false)
		case '-':
			if i+1 < len(query) && query[i+1] == '-' {
				j := strings.IndexByte(query[i:], '\n')
				if j < 0 {
					return
				}
				i += j
			}
		case '/':
			if i+1 < len(query) && query[i+1] == '*' {
				j := strings.Index(query[i+2:], "*/")
				if j < 0 {
					return
				}
				i += j + 3
			}
		case '?':
			fn(i)
		}
	}
}

// backslashEscapes reports whether the string literal opening at query[i]
// treats backslash as an escape character. MySQL does by default, PostgreSQL
// only in E'...' literals and SQLite never.
func backslashEscapes(d, query string, i int) bool {
	switch d {
	case dialect.Postgres:
		return i > 0 && (query[i-1] == 'E' || query[i-1] == 'e')
	case dialect.SQLite:
		return false
	default:
		return true
	}
}

// skipQuoted returns the offset of the quote closing the one at s[i].
// Doubled quotes, and backslash escapes when enabled, do not close it.
func skipQuoted(s string, i int, q byte, escapes bool) int {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			if escapes {
				j++
			}
		case q:
			if j+1 < len(s) && s[j+1] == q {
				j++
				continue
			}
			return j
		}
	}
	return len(s)
}

// CountPlaceholders returns the number of "?" placeholders in a query written
// for dialect d.
func CountPlaceholders(d, query string) int {
	n := 0
	scanPlaceholders(d, query, func(int) { n++ })
	return n
}

// Placeholders returns the byte offsets of the "?" placeholders in a query
// written for dialect d, skipping quoted text and comments.
func Placeholders(d, query string) []int {
	var pos []int
	scanPlaceholders(d, query, func(i int) { pos = append(pos, i) })
	return pos
}

// Rebind rewrites "?" placeholders into the form expected by the dialect.
// PostgreSQL numbers its placeholders ($1, $2, ...); the other dialects
// take the query unchanged.
func Rebind(d, query string) string {
	if d != dialect.Postgres {
		return query
	}
	var (
		b    strings.Builder
		n    int
		last int
	)
	scanPlaceholders(d, query, func(pos int) {
		b.WriteString(query[last:pos])
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
		last = pos + 1
	})
	if n == 0 {
		return query
	}
	b.WriteString(query[last:])
	return b.String()
}

var returningRe = regexp.MustCompile(`(?i)\bRETURNING\b`)

// rowKeywords are the leading keywords of statements that produce a result set.
var rowKeywords = map[string]bool{
	"SELECT":   true,
	"WITH":     true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
	"PRAGMA":   true,
	"VALUES":   true,
	"TABLE":    true,
	"CALL":     true,
}

// ReturnsRows reports whether the statement produces a result set and must
// be run with Query rather than Exec.
func ReturnsRows(query string) bool {
	kw := leadingKeyword(query)
	if rowKeywords[kw] {
		return true
	}
	switch kw {
	case "INSERT", "UPDATE", "DELETE", "REPLACE":
		return returningRe.MatchString(query)
	}
	return false
}

// leadingKeyword returns the first keyword of query in upper case, ignoring
// whitespace, comments and opening parentheses.
func leadingKeyword(query string) string {
	s := query
	for {
		s = strings.TrimLeft(s, " \t\r\n(")
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s, "*/")
			if i < 0 {
				return ""
			}
			s = s[i+2:]
		default:
			end := strings.IndexFunc(s, func(r rune) bool {
				return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
			})
			if end < 0 {
				end = len(s)
			}
			return strings.ToUpper(s[:end])
		}
	}
}
