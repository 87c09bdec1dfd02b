package sqlparse

import (
	"regexp"
	"strings"
)

// OperationType is the statement kind derived from the leading keyword.
type OperationType string

const (
	OpSelect OperationType = "SELECT"
	OpInsert OperationType = "INSERT"
	OpUpdate OperationType = "UPDATE"
	OpDelete OperationType = "DELETE"
	OpDDL    OperationType = "DDL"
	OpOther  OperationType = "OTHER"
)

// Category groups operation types.
type Category string

const (
	CategoryDML   Category = "DML"
	CategoryDDL   Category = "DDL"
	CategoryOther Category = "OTHER"
)

// Placeholder replaces literals in normalized SQL.
const Placeholder = "?"

// ParsedSQL is the classifier output for a single statement.
type ParsedSQL struct {
	OperationType     OperationType
	OperationCategory Category

	// MainTable is empty when no FROM/INTO/UPDATE/DELETE FROM target was found.
	MainTable string

	// TablesInvolved starts with MainTable and then JOIN targets, unique, in discovery order.
	TablesInvolved []string

	NormalizedSQL string
}

const identChars = "[a-zA-Z0-9_.\"`\\[\\]]+"

var (
	fromPattern   = regexp.MustCompile(`(?i)\bFROM\s+(` + identChars + `)`)
	intoPattern   = regexp.MustCompile(`(?i)\bINTO\s+(` + identChars + `)`)
	updatePattern = regexp.MustCompile(`(?i)\bUPDATE\s+(` + identChars + `)`)
	deletePattern = regexp.MustCompile(`(?i)\bDELETE\s+FROM\s+(` + identChars + `)`)

	// checked in priority order
	mainTablePatterns = []*regexp.Regexp{fromPattern, intoPattern, updatePattern, deletePattern}

	joinPattern = regexp.MustCompile(`(?i)\b(?:INNER\s+|LEFT\s+|RIGHT\s+|FULL\s+|CROSS\s+)?JOIN\s+(` + identChars + `)`)

	stringLiteral  = regexp.MustCompile(`'[^']*'`)
	numericLiteral = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	whitespace     = regexp.MustCompile(`\s+`)

	quoteStripper = strings.NewReplacer(`"`, "", "`", "", "[", "", "]", "")
)

var dmlKeywords = map[string]OperationType{
	"SELECT": OpSelect,
	"INSERT": OpInsert,
	"UPDATE": OpUpdate,
	"DELETE": OpDelete,
}

var ddlKeywords = map[string]bool{
	"CREATE":   true,
	"ALTER":    true,
	"DROP":     true,
	"TRUNCATE": true,
}

// Classify maps raw SQL text to its operation, tables and normalized form using
// bounded regex heuristics. It never fails: unrecognized input degrades to OTHER
// with no tables.
func Classify(sql string) ParsedSQL {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return ParsedSQL{
			OperationType:     OpOther,
			OperationCategory: CategoryOther,
			TablesInvolved:    []string{},
		}
	}

	op, category := classifyKeyword(strings.Fields(trimmed)[0])

	mainTable := extractMainTable(trimmed)

	tables := make([]string, 0, 4)
	seen := make(map[string]bool)
	if mainTable != "" {
		tables = append(tables, mainTable)
		seen[mainTable] = true
	}
	for _, match := range joinPattern.FindAllStringSubmatch(trimmed, -1) {
		t := cleanIdentifier(match[1])
		if t != "" && !seen[t] {
			tables = append(tables, t)
			seen[t] = true
		}
	}

	return ParsedSQL{
		OperationType:     op,
		OperationCategory: category,
		MainTable:         mainTable,
		TablesInvolved:    tables,
		NormalizedSQL:     Normalize(trimmed),
	}
}

func classifyKeyword(word string) (OperationType, Category) {
	upper := strings.ToUpper(word)
	if op, ok := dmlKeywords[upper]; ok {
		return op, CategoryDML
	}
	if ddlKeywords[upper] {
		return OpDDL, CategoryDDL
	}
	return OpOther, CategoryOther
}

func extractMainTable(query string) string {
	for _, p := range mainTablePatterns {
		if m := p.FindStringSubmatch(query); len(m) > 1 {
			return cleanIdentifier(m[1])
		}
	}
	return ""
}

func cleanIdentifier(id string) string {
	return strings.TrimSpace(quoteStripper.Replace(id))
}

// Normalize replaces string and numeric literals with Placeholder and collapses
// whitespace. The result is meant for grouping and redaction, not re-execution.
func Normalize(sql string) string {
	out := stringLiteral.ReplaceAllString(sql, Placeholder)
	out = numericLiteral.ReplaceAllString(out, Placeholder)
	out = whitespace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
