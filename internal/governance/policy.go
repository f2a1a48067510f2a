package governance

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rahul/workbench/pkg/config"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request contains the context of a step dispatch to be evaluated.
type Request struct {
	Tool      string
	Arguments string // resolved inputs, JSON encoded
	User      string
	Role      string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates tool calls against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine is a basic implementation of PolicyEngine.
type DefaultPolicyEngine struct {
	DeniedTools map[string]bool
	DeniedRegex []*regexp.Regexp
	RoleTools   map[string]map[string]bool
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedTools: make(map[string]bool),
		DeniedRegex: make([]*regexp.Regexp, 0),
		RoleTools:   make(map[string]map[string]bool),
	}
}

// FromConfig builds an engine from the policy section of the config.
func FromConfig(cfg config.PolicyConfig) (*DefaultPolicyEngine, error) {
	e := NewDefaultPolicyEngine()
	for _, name := range cfg.DeniedTools {
		e.DenyTool(name)
	}
	for _, pattern := range cfg.DeniedArguments {
		if err := e.DenyArguments(pattern); err != nil {
			return nil, fmt.Errorf("policy pattern %q: %w", pattern, err)
		}
	}
	for tool, roles := range cfg.RoleTools {
		e.RestrictTool(tool, roles...)
	}
	return e, nil
}

func (e *DefaultPolicyEngine) DenyTool(name string) {
	e.DeniedTools[name] = true
}

func (e *DefaultPolicyEngine) DenyArguments(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

// RestrictTool allows a tool only for the given roles.
func (e *DefaultPolicyEngine) RestrictTool(name string, roles ...string) {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	e.RoleTools[name] = allowed
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if e.DeniedTools[req.Tool] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Tool '%s' is restricted by system policy", req.Tool),
		}, nil
	}

	if allowed, ok := e.RoleTools[req.Tool]; ok && !allowed[req.Role] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Tool '%s' is not available to role '%s'", req.Tool, req.Role),
		}, nil
	}

	for _, re := range e.DeniedRegex {
		if re.MatchString(req.Arguments) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Arguments match restricted pattern: %s", re.String()),
			}, nil
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}
