package agent

import (
	"testing"

	"github.com/rahul/workbench/internal/tools"
	"github.com/stretchr/testify/require"
)

var alice = User{Username: "alice", Role: "analyst"}

func TestBuild_DemoDataFirst(t *testing.T) {
	plan := NewBuilder().Build(Request{Recipient: "x@y.com"}, alice)

	require.NotEmpty(t, plan.ID)
	require.Equal(t, OutputAnalysis, plan.Steps[0].Output)
	require.Equal(t, tools.ToolFetchData, plan.Steps[0].ToolID)
	require.Equal(t, []string{tools.ToolFetchData, tools.ToolHumanReview, tools.ToolSendEmail}, plan.ToolIDs())
	require.Equal(t, alice, plan.Owner)
}

func TestBuild_FileAnalysisFirst(t *testing.T) {
	plan := NewBuilder().Build(Request{FilePath: "sales.csv", To: "x@y.com"}, alice)

	first := plan.Steps[0]
	require.Equal(t, tools.ToolAnalyzeFile, first.ToolID)
	require.Equal(t, OutputAnalysis, first.Output)
	v, ok := first.Input("file_path")
	require.True(t, ok)
	require.Equal(t, "sales.csv", v.Raw())
}

func TestBuild_OptionalSteps(t *testing.T) {
	plan := NewBuilder().Build(Request{
		To:                  "x@y.com",
		DatabaseQuery:       "SELECT 1",
		CRMOperation:        "read",
		CRMType:             "hubspot",
		CRMParams:           map[string]any{"limit": 5.0, "search_term": "acme"},
		RunIntegrationTests: true,
	}, alice)

	require.Equal(t, []string{
		tools.ToolFetchData,
		"query_sqlite_database",
		"get_hubspot_contacts",
		tools.ToolTestIntegration,
		tools.ToolHumanReview,
		tools.ToolSendEmail,
	}, plan.ToolIDs())

	limit, _ := plan.Steps[2].Input("limit")
	require.Equal(t, 5, limit.Raw())
	_, ok := plan.Steps[2].Input("status")
	require.False(t, ok)
}

func TestBuild_CreateAndUnknownCRM(t *testing.T) {
	plan := NewBuilder().Build(Request{
		CRMOperation: "create",
		CRMType:      "zendesk",
		CRMParams:    map[string]any{"subject": "Broken", "description": "It broke"},
	}, alice)
	require.Equal(t, "create_zendesk_ticket", plan.Steps[1].ToolID)
	require.Equal(t, "description", plan.Steps[1].Inputs[0].Name)

	plan = NewBuilder().Build(Request{CRMOperation: "read", CRMType: "acme"}, alice)
	require.Equal(t, "get_acme_records", plan.Steps[1].ToolID)

	registry := tools.NewRegistry()
	registry.Register(tools.NewDataTool(), tools.CategoryData)
	registry.Register(tools.NewReviewTool("r", true), tools.CategoryReview)
	require.Equal(t, []string{"get_acme_records", tools.ToolSendEmail}, Unresolved(plan, registry))
}

func TestBuild_OtherCRMOperationKeepsItsParams(t *testing.T) {
	plan := NewBuilder().Build(Request{
		CRMOperation: "Update",
		CRMType:      "hubspot",
		CRMParams:    map[string]any{"email": "x@y.com", "phone": "555"},
	}, alice)

	step := plan.Steps[1]
	require.Equal(t, "update_hubspot_records", step.ToolID)
	require.Equal(t, "update hubspot CRM records", step.Task)
	require.Len(t, step.Inputs, 2)
	require.Equal(t, "email", step.Inputs[0].Name)
	require.Equal(t, "phone", step.Inputs[1].Name)
	_, hasLimit := step.Input("limit")
	require.False(t, hasLimit)
}

func TestBuild_EmailWiring(t *testing.T) {
	plan := NewBuilder().Build(Request{Recipient: "x@y.com"}, alice)
	email := plan.Steps[len(plan.Steps)-1]

	to, _ := email.Input("to")
	require.Equal(t, "x@y.com", to.Raw())
	subject, _ := email.Input("subject")
	require.Equal(t, ReportSubject, subject.Raw())
	body, _ := email.Input("body")
	require.Equal(t, Reference(OutputAnalysis), body)
	approval, _ := email.Input("approval")
	require.Equal(t, Reference(OutputApproval), approval)

	review := plan.Steps[len(plan.Steps)-2]
	summary, _ := review.Input("data_summary")
	require.Equal(t, Reference(OutputAnalysis), summary)
}

func TestBuild_MissingRecipientIsNotValidated(t *testing.T) {
	plan := NewBuilder().Build(Request{}, alice)
	_, ok := plan.Steps[len(plan.Steps)-1].Input("to")
	require.False(t, ok)
	require.Empty(t, plan.Metadata["request_keys"])
}
