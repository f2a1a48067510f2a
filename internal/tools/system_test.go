package tools

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rahul/workbench/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestIntegrationProbe(t *testing.T) {
	cfg := config.Default()
	cfg.App.Workspace = t.TempDir()
	cfg.Database.SQLitePath = filepath.Join(t.TempDir(), "probe.db")
	registry := NewCatalog(cfg)

	test, _ := registry.Get(ToolTestIntegration)
	res, err := test.Execute(context.Background(), Input{})
	require.NoError(t, err)
	require.Equal(t, "partial", res["overall_status"])

	dbs := res["database_tests"].(map[string]any)
	require.Equal(t, "success", dbs["sqlite"].(Result)["status"])
	require.Equal(t, "PostgreSQL driver not available", dbs["postgres"].(Result)["error"])

	list, _ := registry.Get(ToolListIntegration)
	res, err = list.Execute(context.Background(), Input{})
	require.NoError(t, err)
	require.Equal(t, len(registry.Names()), res["total_tools"])
	categories := res["tool_categories"].(map[string]any)
	require.Equal(t, 6, categories[string(CategoryCRM)])
}
