package tools

import (
	"context"
	"testing"

	"github.com/rahul/workbench/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewDataTool(), CategoryData)
	r.Register(NewEmailTool(config.EmailConfig{}), CategoryEmail)

	tool, ok := r.Get(ToolSendEmail)
	require.True(t, ok)
	require.Equal(t, ToolSendEmail, tool.Name())

	_, ok = r.Get("nope")
	require.False(t, ok)

	require.Equal(t, []string{ToolFetchData, ToolSendEmail}, r.Names())
	require.Equal(t, []string{ToolSendEmail}, r.ByCategory(CategoryEmail))
	require.Equal(t, []string{"to", "subject", "body"}, r.Required(ToolSendEmail))
	require.Empty(t, r.Required(ToolFetchData))
	require.Nil(t, r.Required("nope"))
}

func TestInputAccessors(t *testing.T) {
	in := Input{
		"s":    "text",
		"n":    7.0,
		"ns":   " 12 ",
		"list": []string{"a", "b"},
		"m":    Result{"k": "v"},
		"nil":  nil,
	}
	require.Equal(t, "text", in.String("s"))
	require.Equal(t, "", in.String("missing"))
	require.Equal(t, 7, in.Int("n", 0))
	require.Equal(t, 12, in.Int("ns", 0))
	require.Equal(t, 3, in.Int("missing", 3))
	require.Equal(t, []any{"a", "b"}, in.List("list"))
	require.Equal(t, "v", in.Map("m")["k"])
	require.False(t, in.Has("nil"))
	require.True(t, in.Has("s"))
}

func TestReviewTool(t *testing.T) {
	res, err := NewReviewTool("auto_reviewer", true).Execute(context.Background(), Input{
		"data_summary": map[string]any{"summary": "Total sales: 2650"},
		"recipient":    "x@y.com",
	})
	require.NoError(t, err)
	require.Equal(t, true, res["approved"])
	require.Equal(t, "auto_reviewer", res["reviewer"])
	require.Equal(t, "Total sales: 2650", res["data_summary"])
	require.Equal(t, "x@y.com", res["recipient"])
	require.NotEmpty(t, res["timestamp"])

	res, _ = NewReviewTool("auto_reviewer", false).Execute(context.Background(), Input{})
	require.Equal(t, false, res["approved"])
}

func TestCatalogRegistersEveryTool(t *testing.T) {
	cfg := config.Default()
	cfg.App.Workspace = t.TempDir()
	registry := NewCatalog(cfg)

	for _, name := range []string{
		ToolFetchData, ToolAnalyzeFile, ToolSendEmail, ToolHumanReview,
		"query_sqlite_database", "query_postgres_database", "query_mysql_database", ToolDatabaseSchema,
		"get_salesforce_contacts", "create_salesforce_lead",
		"get_hubspot_contacts", "create_hubspot_contact",
		"get_zendesk_tickets", "create_zendesk_ticket",
		ToolTestIntegration, ToolListIntegration,
	} {
		_, ok := registry.Get(name)
		require.True(t, ok, name)
	}
}
