package sqlparse

import (
	"regexp"
	"strings"
)

var (
	wherePattern = regexp.MustCompile(`(?is)\bWHERE\s+(.*?)\s*(?:\bRETURNING\b.*|\bORDER\s+BY\b.*|\bLIMIT\b.*|;\s*)?$`)
	bindPattern  = regexp.MustCompile(`\$\d+|\?|@p\d+|:\d+`)
)

// WhereClause returns the predicate text following WHERE, without trailing
// RETURNING/ORDER BY/LIMIT clauses. It returns "" when the statement has no
// WHERE or the predicate references bind parameters, since a predicate with
// binds cannot be replayed standalone.
func WhereClause(sql string) string {
	m := wherePattern.FindStringSubmatch(strings.TrimSpace(sql))
	if len(m) < 2 {
		return ""
	}
	pred := strings.TrimSpace(m[1])
	if pred == "" || bindPattern.MatchString(stringLiteral.ReplaceAllString(pred, "''")) {
		return ""
	}
	return pred
}
