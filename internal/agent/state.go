package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rahul/workbench/internal/store"
	"github.com/rahul/workbench/internal/tools"
)

// Status is the lifecycle label of a run.
type Status string

const (
	StatusCreated        Status = "created"
	StatusRunning        Status = "running"
	StatusAwaitingReview Status = "awaiting_review"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusRolledBack     Status = "rolled_back"
)

// Record is one step result, published under the step's output id.
type Record struct {
	OutputID string       `json:"output_id"`
	Data     tools.Result `json:"data"`
}

// Decision is a reviewer's answer to a pending review.
type Decision struct {
	Approved bool      `json:"approved"`
	Reason   string    `json:"reason"`
	Reviewer string    `json:"reviewer"`
	At       time.Time `json:"timestamp"`
}

type Clarification struct {
	Step     int       `json:"step"`
	OutputID string    `json:"output_id"`
	Decision Decision  `json:"decision"`
	Source   string    `json:"source"` // auto, reviewer, timeout
	At       time.Time `json:"at"`
}

// RollbackPoint remembers how many results existed before a step ran.
type RollbackPoint struct {
	Step    int       `json:"step"`
	Results int       `json:"results"`
	At      time.Time `json:"at"`
}

// State is the execution state of one plan.
type State struct {
	Plan           *Plan           `json:"plan"`
	Owner          User            `json:"owner"`
	Results        []Record        `json:"results"`
	Clarifications []Clarification `json:"clarifications"`
	RollbackPoints []RollbackPoint `json:"rollback_points"`
	Status         Status          `json:"status"`
	Cursor         int             `json:"cursor"`
	PendingSince   *time.Time      `json:"pending_since,omitempty"`
	Summary        string          `json:"summary,omitempty"`
	Error          string          `json:"error,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func NewState(plan *Plan, owner User) *State {
	return &State{
		Plan:           plan,
		Owner:          owner,
		Results:        []Record{},
		Clarifications: []Clarification{},
		RollbackPoints: []RollbackPoint{},
		Status:         StatusCreated,
	}
}

// Record appends a result. Nothing is deduplicated or overwritten.
func (s *State) Record(outputID string, data tools.Result) {
	s.Results = append(s.Results, Record{OutputID: outputID, Data: data})
}

// Lookup returns the most recently recorded result for outputID.
func (s *State) Lookup(outputID string) (tools.Result, bool) {
	for i := len(s.Results) - 1; i >= 0; i-- {
		if s.Results[i].OutputID == outputID {
			return s.Results[i].Data, true
		}
	}
	return nil, false
}

// Resolve returns the concrete value of v. An unresolvable reference
// reports false.
func (s *State) Resolve(v Value) (any, bool) {
	if !v.IsReference() {
		return v.Raw(), true
	}
	res, ok := s.Lookup(v.Ref())
	if !ok {
		return nil, false
	}
	return map[string]any(res), true
}

func (s *State) AddClarification(c Clarification) {
	s.Clarifications = append(s.Clarifications, c)
}

func (s *State) AddRollbackPoint(step int, at time.Time) {
	s.RollbackPoints = append(s.RollbackPoints, RollbackPoint{Step: step, Results: len(s.Results), At: at})
}

// PlanStore persists execution states keyed by plan id.
type PlanStore interface {
	Save(ctx context.Context, rec store.Record) error
	Get(ctx context.Context, id, owner string) (store.Record, bool, error)
	ListByOwner(ctx context.Context, owner string) ([]store.Record, error)
	ListByStatus(ctx context.Context, status string) ([]store.Record, error)
}

func encodeState(s *State) (store.Record, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return store.Record{}, fmt.Errorf("encode state: %w", err)
	}
	return store.Record{
		ID:        s.Plan.ID,
		Owner:     s.Owner.Username,
		Status:    string(s.Status),
		Payload:   payload,
		UpdatedAt: s.UpdatedAt,
	}, nil
}

func decodeState(rec store.Record) (*State, error) {
	var s State
	if err := json.Unmarshal(rec.Payload, &s); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", rec.ID, err)
	}
	if s.Plan == nil {
		return nil, fmt.Errorf("decode state %s: missing plan", rec.ID)
	}
	return &s, nil
}
