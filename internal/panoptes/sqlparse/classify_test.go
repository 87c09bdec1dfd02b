package sqlparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		op        OperationType
		category  Category
		mainTable string
		tables    []string
		norm      string
	}{
		{
			name:      "update_with_literals",
			query:     "UPDATE users SET email='x' WHERE id=7",
			op:        OpUpdate,
			category:  CategoryDML,
			mainTable: "users",
			tables:    []string{"users"},
			norm:      "UPDATE users SET email=? WHERE id=?",
		},
		{
			name:      "select_lowercase_leading_whitespace",
			query:     "   \n\tselect id from orders where total > 10.50",
			op:        OpSelect,
			category:  CategoryDML,
			mainTable: "orders",
			tables:    []string{"orders"},
			norm:      "select id from orders where total > ?",
		},
		{
			name:      "insert_into",
			query:     "INSERT INTO audit.events (id, name) VALUES (1, 'John')",
			op:        OpInsert,
			category:  CategoryDML,
			mainTable: "audit.events",
			tables:    []string{"audit.events"},
			norm:      "INSERT INTO audit.events (id, name) VALUES (?, ?)",
		},
		{
			name:      "delete_from",
			query:     "DELETE FROM sessions WHERE expires_at < '2024-01-01'",
			op:        OpDelete,
			category:  CategoryDML,
			mainTable: "sessions",
			tables:    []string{"sessions"},
			norm:      "DELETE FROM sessions WHERE expires_at < ?",
		},
		{
			name:      "joins_deduplicated",
			query:     "SELECT * FROM users u JOIN posts p ON u.id = p.user_id LEFT JOIN posts p2 ON p2.id = p.parent_id CROSS JOIN tags",
			op:        OpSelect,
			category:  CategoryDML,
			mainTable: "users",
			tables:    []string{"users", "posts", "tags"},
			norm:      "SELECT * FROM users u JOIN posts p ON u.id = p.user_id LEFT JOIN posts p2 ON p2.id = p.parent_id CROSS JOIN tags",
		},
		{
			name:      "quoted_identifiers",
			query:     "SELECT * FROM \"Users\" INNER JOIN `orders` ON 1=1 RIGHT JOIN [dbo].[items] ON 1=1",
			op:        OpSelect,
			category:  CategoryDML,
			mainTable: "Users",
			tables:    []string{"Users", "orders", "dbo.items"},
			norm:      "SELECT * FROM \"Users\" INNER JOIN `orders` ON ?=? RIGHT JOIN [dbo].[items] ON ?=?",
		},
		{
			name:      "ddl_create",
			query:     "CREATE TABLE widgets (id INT)",
			op:        OpDDL,
			category:  CategoryDDL,
			mainTable: "",
			tables:    []string{},
			norm:      "CREATE TABLE widgets (id INT)",
		},
		{
			name:      "ddl_truncate",
			query:     "truncate table logs",
			op:        OpDDL,
			category:  CategoryDDL,
			mainTable: "",
			tables:    []string{},
			norm:      "truncate table logs",
		},
		{
			name:      "stored_procedure_call",
			query:     "CALL refresh_stats(42)",
			op:        OpOther,
			category:  CategoryOther,
			mainTable: "",
			tables:    []string{},
			norm:      "CALL refresh_stats(?)",
		},
		{
			name:      "insert_select_prefers_from",
			query:     "INSERT INTO archive SELECT * FROM events",
			op:        OpInsert,
			category:  CategoryDML,
			mainTable: "events",
			tables:    []string{"events"},
			norm:      "INSERT INTO archive SELECT * FROM events",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.query)
			assert.Equal(t, tt.op, got.OperationType)
			assert.Equal(t, tt.category, got.OperationCategory)
			assert.Equal(t, tt.mainTable, got.MainTable)
			assert.Equal(t, tt.tables, got.TablesInvolved)
			assert.Equal(t, tt.norm, got.NormalizedSQL)
		})
	}
}

func TestClassify_EmptyInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t"} {
		got := Classify(in)
		assert.Equal(t, OpOther, got.OperationType)
		assert.Equal(t, CategoryOther, got.OperationCategory)
		assert.Empty(t, got.MainTable)
		assert.NotNil(t, got.TablesInvolved)
		assert.Empty(t, got.TablesInvolved)
		assert.Empty(t, got.NormalizedSQL)
	}
}

func TestClassify_DMLKeywordsAnyCase(t *testing.T) {
	for _, kw := range []string{"select", "Insert", "uPdAtE", "DELETE"} {
		got := Classify("  " + kw + " something")
		assert.Equal(t, CategoryDML, got.OperationCategory, kw)
		assert.Equal(t, OperationType(upper(kw)), got.OperationType, kw)
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}

func TestNormalize_Idempotent(t *testing.T) {
	queries := []string{
		"SELECT * FROM t WHERE id = ?",
		"UPDATE users SET email='x' WHERE id=7",
		"SELECT a,   b FROM t WHERE price = 3.14 AND name = 'o''brien'",
	}
	for _, q := range queries {
		once := Normalize(q)
		assert.Equal(t, once, Normalize(once), q)
	}
	assert.Equal(t, "SELECT * FROM t WHERE id = ?", Normalize("SELECT * FROM t WHERE id = ?"))
}

func TestWhereClause(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"UPDATE users SET name = 'a' WHERE id = 7", "id = 7"},
		{"DELETE FROM sessions WHERE user_id = 3 RETURNING id", "user_id = 3"},
		{"DELETE FROM sessions WHERE user_id = 3;", "user_id = 3"},
		{"UPDATE users SET name = 'a' WHERE id = $1", ""},
		{"UPDATE users SET name = 'a' WHERE id = ?", ""},
		{"UPDATE users SET note = 'why?' WHERE id = 2", "id = 2"},
		{"DELETE FROM sessions", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WhereClause(tt.query), tt.query)
	}
}
