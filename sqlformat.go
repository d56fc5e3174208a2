package apischema

import (
	"strings"
	"unicode"
)

// clauses start a new line when SQL is reindented. Longer keywords come
// first so "ORDER BY" wins over "OR".
var clauses = []string{
	"LEFT OUTER JOIN", "RIGHT OUTER JOIN", "INSERT INTO", "DELETE FROM",
	"LEFT JOIN", "RIGHT JOIN", "INNER JOIN", "CROSS JOIN",
	"ORDER BY", "GROUP BY", "UNION ALL", "ON CONFLICT",
	"SELECT", "UPDATE", "VALUES", "RETURNING", "HAVING", "OFFSET",
	"FROM", "WHERE", "LIMIT", "JOIN", "UNION", "SET", "AND", "OR",
}

// FormatSQL collapses whitespace outside quoted literals and, when reindent
// is set, starts each major clause on its own line. AND/OR are indented under
// their clause.
func FormatSQL(sql string, reindent bool) string {
	tokens := tokenizeSQL(sql)
	if !reindent {
		return strings.Join(tokens, " ")
	}

	var b strings.Builder
	for i := 0; i < len(tokens); {
		kw, n := matchClause(tokens[i:])
		if kw != "" && i > 0 {
			b.WriteByte('\n')
			if kw == "AND" || kw == "OR" {
				b.WriteString("  ")
			}
		} else if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.Join(tokens[i:i+max(n, 1)], " "))
		i += max(n, 1)
	}
	return b.String()
}

// matchClause reports the clause keyword starting at tokens[0] and how many
// tokens it spans.
func matchClause(tokens []string) (string, int) {
	for _, c := range clauses {
		words := strings.Fields(c)
		if len(words) > len(tokens) {
			continue
		}
		ok := true
		for j, w := range words {
			if !strings.EqualFold(tokens[j], w) {
				ok = false
				break
			}
		}
		if ok {
			return c, len(words)
		}
	}
	return "", 0
}

// tokenizeSQL splits on whitespace, keeping quoted literals intact.
func tokenizeSQL(sql string) []string {
	var (
		tokens []string
		cur    strings.Builder
		quote  rune
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range sql {
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			cur.WriteRune(r)
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
