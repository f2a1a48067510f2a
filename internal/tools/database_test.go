package tools

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func stringReader(s string) *strings.Reader {
	return strings.NewReader(s)
}

func TestSQLiteTool(t *testing.T) {
	tool := NewSQLiteTool(filepath.Join(t.TempDir(), "data.db"))
	ctx := context.Background()

	res, err := tool.Execute(ctx, Input{"query": "SELECT 1 AS one"})
	require.NoError(t, err)
	require.Equal(t, "success", res["status"])
	require.Equal(t, "SELECT", res["query_type"])
	require.Equal(t, "SQLite", res["database"])
	rows := res["data"].([]map[string]any)
	require.Len(t, rows, 1)
	require.EqualValues(t, 1, rows[0]["one"])

	res, _ = tool.Execute(ctx, Input{"query": "CREATE TABLE sales (day TEXT, amount INTEGER)"})
	require.Equal(t, "success", res["status"])

	res, _ = tool.Execute(ctx, Input{"query": "INSERT INTO sales VALUES (?, ?), (?, ?)", "params": []any{"mon", 10, "tue", 20}})
	require.Equal(t, "success", res["status"])
	require.EqualValues(t, 2, res["data"].(map[string]any)["affected_rows"])

	res, _ = tool.Execute(ctx, Input{"query": "SELECT day, amount FROM sales ORDER BY day"})
	rows = res["data"].([]map[string]any)
	require.Len(t, rows, 2)
	require.Equal(t, "mon", rows[0]["day"])

	res, _ = tool.Execute(ctx, Input{"query": "VACUUM"})
	require.Equal(t, "failed", res["status"])
	require.Equal(t, "Unsupported query type", res["error"])

	res, _ = tool.Execute(ctx, Input{"query": "SELECT * FROM missing_table"})
	require.Equal(t, "failed", res["status"])
	require.Equal(t, "Database error", res["error"])
}

func TestSchemaTool(t *testing.T) {
	sqlite := NewSQLiteTool(filepath.Join(t.TempDir(), "data.db"))
	ctx := context.Background()
	_, err := sqlite.Execute(ctx, Input{"query": "CREATE TABLE contacts (name TEXT NOT NULL, email TEXT)"})
	require.NoError(t, err)

	schema := NewSchemaTool(sqlite)
	res, _ := schema.Execute(ctx, Input{"database_type": "sqlite"})
	require.Equal(t, "success", res["status"])
	require.Equal(t, "contacts", res["data"].([]map[string]any)[0]["name"])

	res, _ = schema.Execute(ctx, Input{"database_type": "sqlite", "table_name": "contacts"})
	require.Len(t, res["data"].([]map[string]any), 2)

	res, _ = schema.Execute(ctx, Input{"database_type": "oracle"})
	require.Equal(t, "failed", res["status"])
}

func TestServerDatabaseTool(t *testing.T) {
	tool := NewServerDatabaseTool("postgres", "postgres://localhost/db")
	require.Equal(t, "query_postgres_database", tool.Name())

	res, _ := tool.Execute(context.Background(), Input{"query": "SELECT version()"})
	require.Equal(t, "failed", res["status"])
	require.Equal(t, "PostgreSQL driver not available", res["error"])

	res, _ = tool.Execute(context.Background(), Input{"query": "DROP TABLE x"})
	require.Equal(t, "Unsupported query type", res["error"])
}
