package tools

import (
	"context"
	"time"
)

// IntegrationProbe tests the integrations a workbench build knows about.
type IntegrationProbe struct {
	Registry *Registry
	CRM      *CRMClient
	SQLite   *SQLiteTool
	Email    *EmailTool
}

// TestTool runs a connectivity check against every database and CRM.
type TestTool struct {
	Probe *IntegrationProbe
}

func NewTestTool(probe *IntegrationProbe) *TestTool {
	return &TestTool{Probe: probe}
}

func (t *TestTool) Name() string {
	return ToolTestIntegration
}

func (t *TestTool) Description() string {
	return "Test all configured integrations to verify connectivity."
}

func (t *TestTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t *TestTool) Execute(ctx context.Context, input Input) (Result, error) {
	dbTests := map[string]any{}
	crmTests := map[string]any{}
	overall := "success"

	for _, dbType := range []string{"postgres", "mysql", "sqlite"} {
		res := t.Probe.testDatabase(ctx, dbType)
		if res["status"] == "failed" {
			overall = "partial"
		}
		dbTests[dbType] = res
	}
	for _, crm := range []string{"salesforce", "hubspot", "zendesk"} {
		var res Result
		if t.Probe.CRM == nil {
			res = Failed("CRM client not configured", crm, nil)
		} else {
			res = t.Probe.CRM.TestConnection(ctx, crm)
		}
		if res["status"] == "failed" {
			overall = "partial"
		}
		crmTests[crm] = res
	}

	return Result{
		"status":         "success",
		"database_tests": dbTests,
		"crm_tests":      crmTests,
		"overall_status": overall,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (p *IntegrationProbe) testDatabase(ctx context.Context, dbType string) Result {
	name := QueryToolName(dbType)
	tool, ok := p.Registry.Get(name)
	if !ok {
		return Failed("Unsupported database type", dbType, nil)
	}
	query := "SELECT 1"
	if dbType == "postgres" {
		query = "SELECT version()"
	}
	res, err := tool.Execute(ctx, Input{"query": query})
	if err != nil {
		return Failed("Unexpected error", err.Error(), nil)
	}
	if res["status"] == "success" {
		return Result{"status": "success", "database": res["database"], "message": "connection ok"}
	}
	return res
}

// Integrations describes what is available and configured.
func (p *IntegrationProbe) Integrations() Result {
	crmConfigured := map[string]bool{}
	if p.CRM != nil {
		crmConfigured = p.CRM.Configured()
	}
	emailEnabled := p.Email != nil && p.Email.Config.Enabled

	categories := map[string]any{}
	for _, c := range []Category{CategoryData, CategoryEmail, CategoryDatabase, CategoryCRM, CategoryReview, CategorySystem} {
		categories[string(c)] = len(p.Registry.ByCategory(c))
	}

	return Result{
		"status": "success",
		"integrations": map[string]any{
			"databases": map[string]any{
				"postgresql": map[string]any{"available": false, "configured": false, "tools": []string{QueryToolName("postgres"), ToolDatabaseSchema}},
				"mysql":      map[string]any{"available": false, "configured": false, "tools": []string{QueryToolName("mysql"), ToolDatabaseSchema}},
				"sqlite":     map[string]any{"available": true, "configured": p.SQLite != nil, "tools": []string{QueryToolName("sqlite"), ToolDatabaseSchema}},
			},
			"crm": map[string]any{
				"salesforce": map[string]any{"available": true, "configured": crmConfigured["salesforce"], "tools": []string{CRMToolName("salesforce", "read"), CRMToolName("salesforce", "create")}},
				"hubspot":    map[string]any{"available": true, "configured": crmConfigured["hubspot"], "tools": []string{CRMToolName("hubspot", "read"), CRMToolName("hubspot", "create")}},
				"zendesk":    map[string]any{"available": true, "configured": crmConfigured["zendesk"], "tools": []string{CRMToolName("zendesk", "read"), CRMToolName("zendesk", "create")}},
			},
			"communication": map[string]any{
				"email": map[string]any{"available": true, "configured": true, "live_delivery": emailEnabled, "tools": []string{ToolSendEmail}},
			},
			"data_processing": map[string]any{
				"file_analysis": map[string]any{"available": true, "configured": true, "tools": []string{ToolFetchData, ToolAnalyzeFile}},
			},
		},
		"total_tools":     len(p.Registry.Names()),
		"tool_categories": categories,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}
}

// ListTool exposes Integrations as a catalog entry.
type ListTool struct {
	Probe *IntegrationProbe
}

func NewListTool(probe *IntegrationProbe) *ListTool {
	return &ListTool{Probe: probe}
}

func (l *ListTool) Name() string {
	return ToolListIntegration
}

func (l *ListTool) Description() string {
	return "List all available integrations and their configuration status."
}

func (l *ListTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (l *ListTool) Execute(ctx context.Context, input Input) (Result, error) {
	return l.Probe.Integrations(), nil
}
