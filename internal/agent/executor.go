package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/rahul/workbench/internal/governance"
	"github.com/rahul/workbench/internal/observability"
	"github.com/rahul/workbench/internal/tools"
)

// Review modes.
const (
	ReviewAuto   = "auto"
	ReviewManual = "manual"
)

// ReviewNotice tells a reviewer that a plan is waiting for them.
type ReviewNotice struct {
	PlanID    string
	Owner     string
	Recipient string
	Summary   string
}

// Notifier delivers review notices to a human.
type Notifier interface {
	NotifyReview(ctx context.Context, notice ReviewNotice) error
}

// RunResult is what a caller gets back from a run.
type RunResult struct {
	PlanID  string   `json:"plan_id"`
	Results []Record `json:"results"`
	Summary string   `json:"summary"`
	Status  Status   `json:"status"`
}

// Executor runs plan steps in order against the tool registry.
type Executor struct {
	Registry   *tools.Registry
	Store      PlanStore
	Policy     governance.PolicyEngine
	Logger     *observability.Logger
	Status     *observability.SystemStatus
	Summarizer Summarizer
	Notifiers  []Notifier
	ReviewMode string
	Now        func() time.Time
}

func NewExecutor(registry *tools.Registry, store PlanStore, logger *observability.Logger) *Executor {
	return &Executor{
		Registry:   registry,
		Store:      store,
		Policy:     governance.NewDefaultPolicyEngine(),
		Logger:     logger,
		Status:     observability.NewSystemStatus(),
		Summarizer: CountSummarizer{},
		ReviewMode: ReviewAuto,
		Now:        time.Now,
	}
}

// Run processes steps from st.Cursor to the end. Tool faults are recorded as
// data; a missing required input or a failed save aborts the run.
func (e *Executor) Run(ctx context.Context, st *State) (*RunResult, error) {
	planID := st.Plan.ID
	st.Status = StatusRunning
	e.Status.RunStarted(planID)
	e.Logger.LogPlan(planID, st.Owner.Username, string(st.Status), map[string]any{"cursor": st.Cursor, "steps": len(st.Plan.Steps)})

	for st.Cursor < len(st.Plan.Steps) {
		idx := st.Cursor
		step := st.Plan.Steps[idx]
		st.AddRollbackPoint(idx, e.Now())

		if step.ToolID == tools.ToolHumanReview && e.ReviewMode == ReviewManual {
			return e.pause(ctx, st, step)
		}

		data, err := e.runStep(ctx, st, idx, step)
		if err != nil {
			return nil, e.abort(ctx, st, err)
		}

		st.Record(step.Output, data)
		st.Cursor++
		e.Logger.LogStep(planID, idx, step.ToolID, step.Output, fmt.Sprint(orNA(data["status"])))
		if err := e.persist(ctx, st); err != nil {
			return nil, e.abort(ctx, st, err)
		}
	}

	st.Summary = e.Summarizer.Summarize(ctx, st)
	st.Status = StatusCompleted
	if err := e.persist(ctx, st); err != nil {
		return nil, e.abort(ctx, st, err)
	}
	e.Status.RunFinished(planID, string(st.Status))
	e.Logger.LogPlan(planID, st.Owner.Username, string(st.Status), map[string]any{"results": len(st.Results)})

	return &RunResult{
		PlanID:  planID,
		Results: st.Results,
		Summary: st.Summary,
		Status:  st.Status,
	}, nil
}

// Resume records a reviewer's decision for a paused run and carries on.
func (e *Executor) Resume(ctx context.Context, st *State, d Decision, source string) (*RunResult, error) {
	if st.Status != StatusAwaitingReview || st.Cursor >= len(st.Plan.Steps) {
		return nil, ErrNotAwaitingReview
	}
	step := st.Plan.Steps[st.Cursor]
	if d.At.IsZero() {
		d.At = e.Now()
	}

	inputs, _ := e.resolve(st, step)
	summary := ""
	if m := inputs.Map("data_summary"); m != nil {
		summary, _ = m["summary"].(string)
	}
	st.Record(step.Output, tools.Result{
		"status":       "success",
		"approved":     d.Approved,
		"reason":       d.Reason,
		"reviewer":     d.Reviewer,
		"timestamp":    d.At.UTC().Format(time.RFC3339),
		"data_summary": summary,
		"recipient":    inputs.String("recipient"),
	})
	st.AddClarification(Clarification{Step: st.Cursor, OutputID: step.Output, Decision: d, Source: source, At: e.Now()})
	st.Cursor++
	st.PendingSince = nil
	e.Logger.LogReview(st.Plan.ID, d.Reviewer, d.Approved, d.Reason)

	return e.Run(ctx, st)
}

func (e *Executor) pause(ctx context.Context, st *State, step Step) (*RunResult, error) {
	now := e.Now()
	st.Status = StatusAwaitingReview
	st.PendingSince = &now
	if err := e.persist(ctx, st); err != nil {
		return nil, e.abort(ctx, st, err)
	}
	e.Status.RunFinished(st.Plan.ID, string(st.Status))
	e.Logger.LogPlan(st.Plan.ID, st.Owner.Username, string(st.Status), map[string]any{"step": st.Cursor})

	inputs, _ := e.resolve(st, step)
	notice := ReviewNotice{
		PlanID:    st.Plan.ID,
		Owner:     st.Owner.Username,
		Recipient: inputs.String("recipient"),
	}
	if m := inputs.Map("data_summary"); m != nil {
		notice.Summary, _ = m["summary"].(string)
	}
	for _, n := range e.Notifiers {
		if err := n.NotifyReview(ctx, notice); err != nil {
			log.Printf("review notification for plan %s failed: %v", st.Plan.ID, err)
		}
	}

	return &RunResult{
		PlanID:  st.Plan.ID,
		Results: st.Results,
		Summary: "plan awaiting review",
		Status:  st.Status,
	}, nil
}

func (e *Executor) runStep(ctx context.Context, st *State, idx int, step Step) (tools.Result, error) {
	tool, ok := e.Registry.Get(step.ToolID)
	if !ok {
		return tools.Result{"error": fmt.Sprintf("%s not found", step.ToolID)}, nil
	}

	if step.ToolID == tools.ToolSendEmail {
		if cancelled := e.approvalGate(st, step); cancelled != nil {
			return cancelled, nil
		}
	}

	inputs, _ := e.resolve(st, step)
	args, _ := json.Marshal(inputs)

	verdict, err := e.Policy.Evaluate(ctx, governance.Request{
		Tool:      step.ToolID,
		Arguments: string(args),
		User:      st.Owner.Username,
		Role:      st.Owner.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("policy check for %s: %w", step.ToolID, err)
	}
	e.Logger.LogPolicyCheck(st.Plan.ID, idx, step.ToolID, string(verdict.Effect), verdict.Reason)
	if verdict.Effect == governance.EffectDeny {
		return tools.Result{"error": "policy denied", "message": verdict.Reason, "status": "denied"}, nil
	}

	for _, name := range tools.RequiredParams(tool) {
		if !inputs.Has(name) {
			return nil, fmt.Errorf("%w: %s needs %q", ErrMissingInput, step.ToolID, name)
		}
	}

	if step.ToolID == tools.ToolSendEmail {
		if failed, ok := isFailure(inputs["body"]); ok {
			inputs["body"] = FormatFailure(failed)
		} else if body, ok := isAnalysis(inputs["body"]); ok {
			inputs["body"] = FormatReport(body)
		}
	}

	e.Logger.LogToolCall(st.Plan.ID, idx, step.ToolID, string(args))
	res, err := tool.Execute(ctx, inputs)
	if err != nil {
		res = tools.Failed("tool execution failed", err.Error(), map[string]any{"tool": step.ToolID})
	}
	if res == nil {
		res = tools.Result{}
	}
	e.Logger.LogToolResult(st.Plan.ID, idx, step.ToolID, res)

	if step.ToolID == tools.ToolHumanReview {
		approved, _ := res["approved"].(bool)
		reason, _ := res["reason"].(string)
		reviewer, _ := res["reviewer"].(string)
		d := Decision{Approved: approved, Reason: reason, Reviewer: reviewer, At: e.Now()}
		st.AddClarification(Clarification{Step: idx, OutputID: step.Output, Decision: d, Source: "auto", At: d.At})
		e.Logger.LogReview(st.Plan.ID, reviewer, approved, reason)
	}
	return res, nil
}

// approvalGate returns a cancelled result when the latest approval says no.
func (e *Executor) approvalGate(st *State, step Step) tools.Result {
	approval, ok := st.Lookup(OutputApproval)
	if !ok {
		return nil
	}
	approved, isBool := approval["approved"].(bool)
	if !isBool || approved {
		return nil
	}

	to := ""
	if v, ok := step.Input("to"); ok {
		if raw, ok := st.Resolve(v); ok {
			to = fmt.Sprint(raw)
		}
	}
	reason, _ := approval["reason"].(string)
	return tools.Result{
		"status": "cancelled",
		"reason": "Email not sent: review was not approved. " + reason,
		"to":     to,
	}
}

// resolve builds the tool input, substituting references with the latest
// recorded value. It returns the names of references that could not be
// resolved; those inputs are left out.
func (e *Executor) resolve(st *State, step Step) (tools.Input, []string) {
	inputs := tools.Input{}
	var unresolved []string
	for _, in := range step.Inputs {
		v, ok := st.Resolve(in.Value)
		if !ok {
			unresolved = append(unresolved, in.Name)
			continue
		}
		inputs[in.Name] = v
	}
	return inputs, unresolved
}

func (e *Executor) persist(ctx context.Context, st *State) error {
	st.UpdatedAt = e.Now()
	st.Plan.Status = string(st.Status)
	rec, err := encodeState(st)
	if err != nil {
		return err
	}
	if err := e.Store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save plan %s: %w", st.Plan.ID, err)
	}
	return nil
}

// abort marks the run failed and saves it on a best-effort basis.
func (e *Executor) abort(ctx context.Context, st *State, cause error) error {
	st.Status = StatusFailed
	st.Error = cause.Error()
	if err := e.persist(ctx, st); err != nil {
		log.Printf("could not save failed plan %s: %v", st.Plan.ID, err)
	}
	e.Status.RunFinished(st.Plan.ID, string(st.Status))
	e.Logger.LogPlan(st.Plan.ID, st.Owner.Username, string(st.Status), map[string]any{"error": st.Error})
	return cause
}
