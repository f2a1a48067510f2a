package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/rahul/workbench/internal/tools"
)

// Review timeout policies.
const (
	TimeoutAutoDeny    = "auto_deny"
	TimeoutAutoApprove = "auto_approve"
	TimeoutFail        = "fail"
)

// Manager is the workbench service: it builds, runs, stores and reviews plans.
type Manager struct {
	Builder       *Builder
	Executor      *Executor
	Store         PlanStore
	Registry      *tools.Registry
	ReviewTimeout time.Duration
	TimeoutPolicy string
	Now           func() time.Time

	// ReviewerRoles, when set, limits reviews to users holding one of these
	// roles. Such users may answer any pending review, not only their own.
	ReviewerRoles []string

	locksMu sync.Mutex
	locks   map[string]*planLock
}

type planLock struct {
	mu   sync.Mutex
	refs int
}

// lockPlan serializes state changes of one plan. The returned func releases it.
func (m *Manager) lockPlan(id string) func() {
	m.locksMu.Lock()
	if m.locks == nil {
		m.locks = make(map[string]*planLock)
	}
	l, ok := m.locks[id]
	if !ok {
		l = &planLock{}
		m.locks[id] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.locksMu.Lock()
		if l.refs--; l.refs == 0 {
			delete(m.locks, id)
		}
		m.locksMu.Unlock()
	}
}

func NewManager(executor *Executor) *Manager {
	return &Manager{
		Builder:       NewBuilder(),
		Executor:      executor,
		Store:         executor.Store,
		Registry:      executor.Registry,
		ReviewTimeout: time.Hour,
		TimeoutPolicy: TimeoutAutoDeny,
		Now:           time.Now,
	}
}

// Preview is a built plan that has not been run.
type Preview struct {
	Plan       *Plan    `json:"plan"`
	Unresolved []string `json:"unresolved_tools"`
}

// RollbackResult describes what a rollback removed.
type RollbackResult struct {
	PlanID  string `json:"plan_id"`
	Step    int    `json:"step"`
	Removed int    `json:"removed"`
	Status  Status `json:"status"`
	Diff    string `json:"diff"`
}

// RunPlan builds a plan for req and runs it for user.
func (m *Manager) RunPlan(ctx context.Context, req Request, user User) (*RunResult, error) {
	plan := m.Builder.Build(req, user)
	if req.Strict {
		if missing := Unresolved(plan, m.Registry); len(missing) > 0 {
			return nil, fmt.Errorf("%w: %v", ErrUnresolvedTools, missing)
		}
	}
	return m.Executor.Run(ctx, NewState(plan, user))
}

func (m *Manager) Preview(req Request, user User) Preview {
	plan := m.Builder.Build(req, user)
	missing := Unresolved(plan, m.Registry)
	if missing == nil {
		missing = []string{}
	}
	return Preview{Plan: plan, Unresolved: missing}
}

// GetPlan returns the state of a plan owned by user. Plans owned by someone
// else are reported as not found.
func (m *Manager) GetPlan(ctx context.Context, id string, user User) (*State, error) {
	rec, ok, err := m.Store.Get(ctx, id, user.Username)
	if err != nil {
		return nil, fmt.Errorf("load plan %s: %w", id, err)
	}
	if !ok {
		return nil, ErrPlanNotFound
	}
	return decodeState(rec)
}

func (m *Manager) ListPlans(ctx context.Context, user User) ([]*State, error) {
	recs, err := m.Store.ListByOwner(ctx, user.Username)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	states := make([]*State, 0, len(recs))
	for _, rec := range recs {
		st, err := decodeState(rec)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}

// Review answers a pending review and resumes the run. Concurrent answers
// for the same plan are serialized; only the first one resumes it.
func (m *Manager) Review(ctx context.Context, id string, user User, d Decision) (*RunResult, error) {
	if len(m.ReviewerRoles) > 0 && !slices.Contains(m.ReviewerRoles, user.Role) {
		return nil, fmt.Errorf("%w: %s has role %q", ErrReviewerNotAllowed, user.Username, user.Role)
	}

	unlock := m.lockPlan(id)
	defer unlock()

	st, err := m.reviewTarget(ctx, id, user)
	if err != nil {
		return nil, err
	}
	if d.Reviewer == "" {
		d.Reviewer = user.Username
	}
	return m.Executor.Resume(ctx, st, d, "reviewer")
}

// reviewTarget loads the plan user is answering. Without reviewer roles that
// is one of their own plans; with them it may be any pending plan.
func (m *Manager) reviewTarget(ctx context.Context, id string, user User) (*State, error) {
	st, err := m.GetPlan(ctx, id, user)
	if len(m.ReviewerRoles) == 0 || !errors.Is(err, ErrPlanNotFound) {
		return st, err
	}

	recs, err := m.Store.ListByStatus(ctx, string(StatusAwaitingReview))
	if err != nil {
		return nil, fmt.Errorf("list pending reviews: %w", err)
	}
	for _, rec := range recs {
		if rec.ID == id {
			return decodeState(rec)
		}
	}
	return nil, ErrPlanNotFound
}

// Continue re-runs a rolled back plan from its cursor.
func (m *Manager) Continue(ctx context.Context, id string, user User) (*RunResult, error) {
	unlock := m.lockPlan(id)
	defer unlock()

	st, err := m.GetPlan(ctx, id, user)
	if err != nil {
		return nil, err
	}
	if st.Status != StatusRolledBack {
		return nil, fmt.Errorf("%w: plan %s is %s", ErrNotRolledBack, id, st.Status)
	}
	return m.Executor.Run(ctx, st)
}

// Rollback drops every result produced at or after step and parks the
// cursor there. The returned diff shows the removed results.
func (m *Manager) Rollback(ctx context.Context, id string, user User, step int) (*RollbackResult, error) {
	unlock := m.lockPlan(id)
	defer unlock()

	st, err := m.GetPlan(ctx, id, user)
	if err != nil {
		return nil, err
	}

	point := -1
	for i, p := range st.RollbackPoints {
		if p.Step == step {
			point = i
		}
	}
	if point < 0 {
		return nil, fmt.Errorf("%w %d", ErrInvalidRollback, step)
	}

	keep := st.RollbackPoints[point].Results
	before := resultLines(st.Results)
	removed := len(st.Results) - keep
	st.Results = st.Results[:keep]

	points := st.RollbackPoints[:0]
	for _, p := range st.RollbackPoints {
		if p.Step < step {
			points = append(points, p)
		}
	}
	st.RollbackPoints = points
	st.Cursor = step
	st.Status = StatusRolledBack
	st.PendingSince = nil
	st.Summary = ""
	st.Error = ""

	if err := m.Executor.persist(ctx, st); err != nil {
		return nil, err
	}
	m.Executor.Logger.LogPlan(st.Plan.ID, user.Username, string(st.Status), map[string]any{"step": step, "removed": removed})

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        before,
		B:        resultLines(st.Results),
		FromFile: "results",
		ToFile:   fmt.Sprintf("results@step%d", step),
		Context:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("diff results: %w", err)
	}

	return &RollbackResult{PlanID: id, Step: step, Removed: removed, Status: st.Status, Diff: diff}, nil
}

func resultLines(results []Record) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		data, _ := json.Marshal(r.Data)
		lines = append(lines, fmt.Sprintf("%s: %s\n", r.OutputID, data))
	}
	return lines
}

// SweepExpiredReviews applies the timeout policy to every review that has
// waited longer than ReviewTimeout. It returns how many plans it settled.
func (m *Manager) SweepExpiredReviews(ctx context.Context, now time.Time) (int, error) {
	recs, err := m.Store.ListByStatus(ctx, string(StatusAwaitingReview))
	if err != nil {
		return 0, fmt.Errorf("list pending reviews: %w", err)
	}

	settled := 0
	for _, rec := range recs {
		ok, err := m.sweepOne(ctx, rec.ID, rec.Owner, now)
		if err != nil {
			return settled, err
		}
		if ok {
			settled++
		}
	}
	return settled, nil
}

// sweepOne settles one expired review. The plan is reloaded under its lock so
// a review answered since the listing is left alone.
func (m *Manager) sweepOne(ctx context.Context, id, owner string, now time.Time) (bool, error) {
	unlock := m.lockPlan(id)
	defer unlock()

	rec, ok, err := m.Store.Get(ctx, id, owner)
	if err != nil {
		return false, fmt.Errorf("load plan %s: %w", id, err)
	}
	if !ok {
		return false, nil
	}
	st, err := decodeState(rec)
	if err != nil {
		log.Printf("skipping unreadable plan %s: %v", id, err)
		return false, nil
	}
	if st.Status != StatusAwaitingReview || st.PendingSince == nil || now.Sub(*st.PendingSince) < m.ReviewTimeout {
		return false, nil
	}

	switch m.TimeoutPolicy {
	case TimeoutFail:
		st.Status = StatusFailed
		st.Error = "review timed out"
		st.PendingSince = nil
		if err := m.Executor.persist(ctx, st); err != nil {
			return false, err
		}
		m.Executor.Status.RunFinished(st.Plan.ID, string(st.Status))
		m.Executor.Logger.LogPlan(st.Plan.ID, st.Owner.Username, string(st.Status), map[string]any{"error": st.Error})
	default:
		d := Decision{
			Approved: m.TimeoutPolicy == TimeoutAutoApprove,
			Reason:   "Review timed out",
			Reviewer: "timeout",
			At:       now,
		}
		if _, err := m.Executor.Resume(ctx, st, d, "timeout"); err != nil {
			log.Printf("resuming timed out plan %s: %v", st.Plan.ID, err)
			return false, nil
		}
	}
	return true, nil
}
