package tools

import (
	"context"
	"sort"
	"sync"
)

// Input holds the named inputs of a single tool invocation.
type Input map[string]any

// Result is the payload a tool returns. It normally carries a "status" key;
// failures are reported as data, not as Go errors.
type Result map[string]any

// Tool defines the interface for all workbench capabilities.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema for the tool's inputs
	Execute(ctx context.Context, input Input) (Result, error)
}

// Category groups tools for listing.
type Category string

const (
	CategoryData     Category = "data"
	CategoryEmail    Category = "email"
	CategoryDatabase Category = "database"
	CategoryCRM      Category = "crm"
	CategoryReview   Category = "review"
	CategorySystem   Category = "system"
)

// Well-known tool identifiers.
const (
	ToolFetchData       = "fetch_and_summarize_data"
	ToolAnalyzeFile     = "analyze_data_file"
	ToolSendEmail       = "send_email"
	ToolHumanReview     = "human_review_clarification"
	ToolDatabaseSchema  = "get_database_schema"
	ToolTestIntegration = "test_integrations"
	ToolListIntegration = "list_integrations"
)

// Registry manages the set of available tools.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	categories map[string]Category
}

func NewRegistry() *Registry {
	return &Registry{
		tools:      make(map[string]Tool),
		categories: make(map[string]Category),
	}
}

func (r *Registry) Register(t Tool, category Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	r.categories[t.Name()] = category
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns every registered tool id in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ByCategory(c Category) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, cat := range r.categories {
		if cat == c {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Required returns the mandatory input names declared in a tool's schema.
func (r *Registry) Required(name string) []string {
	t, ok := r.Get(name)
	if !ok {
		return nil
	}
	return RequiredParams(t)
}

// RequiredParams reads the "required" list from a tool's JSON schema.
func RequiredParams(t Tool) []string {
	switch req := t.Parameters()["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Failed builds the failure payload shared by every integration.
func Failed(errLabel, message string, extra map[string]any) Result {
	res := Result{
		"error":   errLabel,
		"message": message,
		"status":  "failed",
	}
	for k, v := range extra {
		res[k] = v
	}
	return res
}
