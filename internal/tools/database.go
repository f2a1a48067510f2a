package tools

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

var (
	readVerbs    = []string{"SELECT", "WITH", "PRAGMA"}
	writeVerbs   = []string{"INSERT", "UPDATE", "DELETE"}
	sqliteDDL    = []string{"CREATE", "DROP", "ALTER"}
	serverVerbs  = []string{"SELECT", "WITH", "INSERT", "UPDATE", "DELETE"}
	sqliteVerbs  = append(append(append([]string{}, readVerbs...), writeVerbs...), sqliteDDL...)
	databaseName = map[string]string{"sqlite": "SQLite", "postgres": "PostgreSQL", "mysql": "MySQL"}
)

// QueryToolName returns the catalog id for a database type.
func QueryToolName(dbType string) string {
	return fmt.Sprintf("query_%s_database", strings.ToLower(strings.TrimSpace(dbType)))
}

func queryParameters(dbName string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": fmt.Sprintf("SQL query to execute on the %s database", dbName),
			},
			"params": map[string]any{
				"type":        "array",
				"description": "Query parameters for prepared statements",
			},
		},
		"required": []string{"query"},
	}
}

func queryVerb(query string) string {
	fields := strings.Fields(strings.ToUpper(query))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// SQLiteTool runs queries against the configured SQLite database file.
type SQLiteTool struct {
	Path string
}

func NewSQLiteTool(path string) *SQLiteTool {
	return &SQLiteTool{Path: path}
}

func (s *SQLiteTool) Name() string {
	return QueryToolName("sqlite")
}

func (s *SQLiteTool) Description() string {
	return "Execute a SQL query on the SQLite database. Supports SELECT, INSERT, UPDATE, DELETE and DDL."
}

func (s *SQLiteTool) Parameters() map[string]any {
	return queryParameters("SQLite")
}

func (s *SQLiteTool) Execute(ctx context.Context, input Input) (Result, error) {
	return s.run(ctx, input.String("query"), input.List("params"))
}

func (s *SQLiteTool) run(ctx context.Context, query string, params []any) (Result, error) {
	extra := map[string]any{"database": databaseName["sqlite"]}

	verb := queryVerb(query)
	if !contains(sqliteVerbs, verb) {
		return Failed("Unsupported query type", fmt.Sprintf("Query type '%s' is not allowed", verb), extra), nil
	}

	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return Failed("Database error", err.Error(), extra), nil
	}
	defer db.Close()

	var data any
	if contains(readVerbs, verb) {
		rows, err := db.QueryContext(ctx, query, params...)
		if err != nil {
			return Failed("Database error", err.Error(), extra), nil
		}
		defer rows.Close()
		data, err = scanRows(rows)
		if err != nil {
			return Failed("Database error", err.Error(), extra), nil
		}
	} else {
		res, err := db.ExecContext(ctx, query, params...)
		if err != nil {
			return Failed("Database error", err.Error(), extra), nil
		}
		affected, _ := res.RowsAffected()
		data = map[string]any{"affected_rows": affected}
	}

	return Result{
		"status":     "success",
		"data":       data,
		"query_type": verb,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"database":   databaseName["sqlite"],
	}, nil
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ServerDatabaseTool stands in for a client/server database whose driver is
// not linked into this build. It validates the query like a real driver would
// and then reports the missing driver as a failed payload.
type ServerDatabaseTool struct {
	Kind string
	DSN  string
}

func NewServerDatabaseTool(kind, dsn string) *ServerDatabaseTool {
	return &ServerDatabaseTool{Kind: kind, DSN: dsn}
}

func (s *ServerDatabaseTool) Name() string {
	return QueryToolName(s.Kind)
}

func (s *ServerDatabaseTool) Description() string {
	return fmt.Sprintf("Execute a SQL query on a %s database.", databaseName[s.Kind])
}

func (s *ServerDatabaseTool) Parameters() map[string]any {
	return queryParameters(databaseName[s.Kind])
}

func (s *ServerDatabaseTool) Execute(ctx context.Context, input Input) (Result, error) {
	extra := map[string]any{"database": databaseName[s.Kind]}
	verb := queryVerb(input.String("query"))
	if !contains(serverVerbs, verb) {
		return Failed("Unsupported query type", fmt.Sprintf("Query type '%s' is not allowed", verb), extra), nil
	}
	return Failed(
		fmt.Sprintf("%s driver not available", databaseName[s.Kind]),
		"This build only links the SQLite driver",
		extra,
	), nil
}

// SchemaTool lists tables or the columns of one table.
type SchemaTool struct {
	SQLite *SQLiteTool
}

func NewSchemaTool(sqlite *SQLiteTool) *SchemaTool {
	return &SchemaTool{SQLite: sqlite}
}

func (s *SchemaTool) Name() string {
	return ToolDatabaseSchema
}

func (s *SchemaTool) Description() string {
	return "Get database schema information for tables and columns."
}

func (s *SchemaTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"database_type": map[string]any{
				"type":        "string",
				"description": "Database type: 'postgres', 'mysql', or 'sqlite'",
			},
			"table_name": map[string]any{
				"type":        "string",
				"description": "Specific table name (optional)",
			},
		},
		"required": []string{"database_type"},
	}
}

func (s *SchemaTool) Execute(ctx context.Context, input Input) (Result, error) {
	dbType := strings.ToLower(input.String("database_type"))
	table := input.String("table_name")

	switch dbType {
	case "sqlite":
		if table != "" {
			return s.SQLite.run(ctx, "SELECT name, type, \"notnull\", dflt_value FROM pragma_table_info(?)", []any{table})
		}
		return s.SQLite.run(ctx, "SELECT name FROM sqlite_master WHERE type='table' ORDER BY name", nil)
	case "postgres", "mysql":
		return Failed(fmt.Sprintf("%s driver not available", databaseName[dbType]), "This build only links the SQLite driver",
			map[string]any{"database": databaseName[dbType]}), nil
	default:
		return Failed("Unsupported database type", fmt.Sprintf("unknown database type '%s'", dbType), nil), nil
	}
}
