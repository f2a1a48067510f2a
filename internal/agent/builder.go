package agent

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rahul/workbench/internal/tools"
)

// Well-known output ids.
const (
	OutputAnalysis    = "data_analysis"
	OutputDatabase    = "database_result"
	OutputCRM         = "crm_result"
	OutputIntegration = "integration_report"
	OutputApproval    = "approval"
	OutputEmail       = "email_result"

	ReportSubject = "Data Analysis Report"
)

// Request is a run request as submitted by a caller.
type Request struct {
	Query               string         `json:"query,omitempty"`
	Recipient           string         `json:"recipient,omitempty"`
	To                  string         `json:"to,omitempty"`
	FilePath            string         `json:"file_path,omitempty"`
	DatabaseQuery       string         `json:"database_query,omitempty"`
	DatabaseType        string         `json:"database_type,omitempty"`
	DatabaseParams      []any          `json:"database_params,omitempty"`
	CRMOperation        string         `json:"crm_operation,omitempty"`
	CRMType             string         `json:"crm_type,omitempty"`
	CRMParams           map[string]any `json:"crm_params,omitempty"`
	RunIntegrationTests bool           `json:"run_integration_tests,omitempty"`
	Description         string         `json:"description,omitempty"`
	Strict              bool           `json:"strict,omitempty"`
}

// RecipientAddress returns recipient, falling back to the "to" alias.
func (r Request) RecipientAddress() string {
	if r.Recipient != "" {
		return r.Recipient
	}
	return r.To
}

func (r Request) keys() []string {
	present := map[string]bool{
		"query":                 r.Query != "",
		"recipient":             r.Recipient != "",
		"to":                    r.To != "",
		"file_path":             r.FilePath != "",
		"database_query":        r.DatabaseQuery != "",
		"database_type":         r.DatabaseType != "",
		"database_params":       len(r.DatabaseParams) > 0,
		"crm_operation":         r.CRMOperation != "",
		"crm_type":              r.CRMType != "",
		"crm_params":            len(r.CRMParams) > 0,
		"run_integration_tests": r.RunIntegrationTests,
		"description":           r.Description != "",
		"strict":                r.Strict,
	}
	var keys []string
	for k, ok := range present {
		if ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Builder turns requests into plans.
type Builder struct {
	NewID func() string
	Now   func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{NewID: uuid.NewString, Now: time.Now}
}

// Build never fails: unknown database or CRM types still produce a step,
// and an absent recipient simply leaves the email step without a "to" input.
func (b *Builder) Build(req Request, user User) *Plan {
	now := b.Now()
	recipient := req.RecipientAddress()

	step := func(task, tool, output, desc string, inputs ...Input) Step {
		return Step{
			Task:        task,
			ToolID:      tool,
			Output:      output,
			Inputs:      inputs,
			Description: desc,
			Status:      "pending",
			CreatedAt:   now,
		}
	}

	var steps []Step
	if req.FilePath != "" {
		steps = append(steps, step("Analyze uploaded file", tools.ToolAnalyzeFile, OutputAnalysis,
			"Analyze "+req.FilePath,
			Input{Name: "file_path", Value: Literal(req.FilePath)}))
	} else {
		steps = append(steps, step("Fetch and summarize data", tools.ToolFetchData, OutputAnalysis,
			"Analyze the demo sales dataset"))
	}

	if req.DatabaseQuery != "" {
		dbType := strings.ToLower(req.DatabaseType)
		if dbType == "" {
			dbType = "sqlite"
		}
		inputs := []Input{{Name: "query", Value: Literal(req.DatabaseQuery)}}
		if len(req.DatabaseParams) > 0 {
			inputs = append(inputs, Input{Name: "params", Value: Literal(req.DatabaseParams)})
		}
		steps = append(steps, step("Query "+dbType+" database", tools.QueryToolName(dbType), OutputDatabase,
			"Run the requested database query", inputs...))
	}

	if req.CRMOperation != "" {
		op := tools.CRMOperation(req.CRMOperation)
		crmType := strings.ToLower(req.CRMType)
		steps = append(steps, step(op+" "+crmType+" CRM records", tools.CRMToolName(crmType, op), OutputCRM,
			"CRM "+op+" operation", crmInputs(op, req.CRMParams)...))
	}

	if req.RunIntegrationTests {
		steps = append(steps, step("Test integrations", tools.ToolTestIntegration, OutputIntegration,
			"Check connectivity of every integration"))
	}

	reviewInputs := []Input{{Name: "data_summary", Value: Reference(OutputAnalysis)}}
	emailInputs := []Input{}
	if recipient != "" {
		reviewInputs = append(reviewInputs, Input{Name: "recipient", Value: Literal(recipient)})
		emailInputs = append(emailInputs, Input{Name: "to", Value: Literal(recipient)})
	}
	emailInputs = append(emailInputs,
		Input{Name: "subject", Value: Literal(ReportSubject)},
		Input{Name: "body", Value: Reference(OutputAnalysis)},
		Input{Name: "approval", Value: Reference(OutputApproval)},
	)

	steps = append(steps,
		step("Human review", tools.ToolHumanReview, OutputApproval,
			"Ask a reviewer to approve the report", reviewInputs...),
		step("Send report email", tools.ToolSendEmail, OutputEmail,
			"Email the analysis report", emailInputs...),
	)

	desc := req.Description
	if desc == "" {
		desc = req.Query
	}
	return &Plan{
		ID:          b.NewID(),
		Steps:       steps,
		Owner:       user,
		Query:       req.Query,
		Description: desc,
		CreatedAt:   now,
		Status:      string(StatusCreated),
		Metadata: map[string]any{
			"supports_clarifications": true,
			"supports_rollback":       true,
			"request_keys":            req.keys(),
		},
	}
}

func crmInputs(op string, params map[string]any) []Input {
	if op == tools.CRMRead {
		p := tools.Input(params)
		inputs := []Input{{Name: "limit", Value: Literal(p.Int("limit", 10))}}
		for _, name := range []string{"search_term", "status"} {
			if p.Has(name) {
				inputs = append(inputs, Input{Name: name, Value: ParseValue(params[name])})
			}
		}
		return inputs
	}

	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	inputs := make([]Input, 0, len(names))
	for _, name := range names {
		inputs = append(inputs, Input{Name: name, Value: ParseValue(params[name])})
	}
	return inputs
}

// Unresolved lists the tools a plan names that the registry does not know.
func Unresolved(plan *Plan, registry *tools.Registry) []string {
	seen := map[string]bool{}
	var missing []string
	for _, id := range plan.ToolIDs() {
		if _, ok := registry.Get(id); !ok && !seen[id] {
			seen[id] = true
			missing = append(missing, id)
		}
	}
	return missing
}
