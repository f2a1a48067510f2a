package tools

import (
	"github.com/rahul/workbench/pkg/config"
)

// NewCatalog registers every workbench tool against the given config.
func NewCatalog(cfg *config.Config) *Registry {
	registry := NewRegistry()

	registry.Register(NewDataTool(), CategoryData)
	registry.Register(NewFileAnalysisTool(cfg.App.Workspace), CategoryData)

	email := NewEmailTool(cfg.Email)
	registry.Register(email, CategoryEmail)

	registry.Register(NewReviewTool(cfg.Review.Reviewer, cfg.Review.AutoDecision != "deny"), CategoryReview)

	sqlite := NewSQLiteTool(cfg.Database.SQLitePath)
	registry.Register(sqlite, CategoryDatabase)
	registry.Register(NewServerDatabaseTool("postgres", cfg.Database.PostgresDSN), CategoryDatabase)
	registry.Register(NewServerDatabaseTool("mysql", cfg.Database.MySQLDSN), CategoryDatabase)
	registry.Register(NewSchemaTool(sqlite), CategoryDatabase)

	crm := NewCRMClient(cfg.CRM)
	for _, t := range crm.Tools() {
		registry.Register(t, CategoryCRM)
	}

	probe := &IntegrationProbe{Registry: registry, CRM: crm, SQLite: sqlite, Email: email}
	registry.Register(NewTestTool(probe), CategorySystem)
	registry.Register(NewListTool(probe), CategorySystem)

	return registry
}
