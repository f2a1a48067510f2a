package observability

import (
	"sync"
	"time"
)

type Phase string

const (
	PhaseIdle      Phase = "IDLE"
	PhaseRunning   Phase = "RUNNING"
	PhaseReviewing Phase = "REVIEW"
)

// SystemStatus tracks what the workbench is doing for the dashboard and /health.
type SystemStatus struct {
	mu            sync.RWMutex
	CurrentPhase  Phase
	ActivePlan    string
	LastHeartbeat time.Time
	Started       int
	Completed     int
	Failed        int
	Paused        int
}

// Snapshot is a point-in-time copy of SystemStatus.
type Snapshot struct {
	Phase         Phase     `json:"phase"`
	ActivePlan    string    `json:"active_plan,omitempty"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Started       int       `json:"runs_started"`
	Completed     int       `json:"runs_completed"`
	Failed        int       `json:"runs_failed"`
	Paused        int       `json:"runs_awaiting_review"`
}

func NewSystemStatus() *SystemStatus {
	return &SystemStatus{CurrentPhase: PhaseIdle, LastHeartbeat: time.Now()}
}

var globalStatus = NewSystemStatus()

// Global returns the process-wide status.
func Global() *SystemStatus {
	return globalStatus
}

func (s *SystemStatus) RunStarted(planID string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CurrentPhase = PhaseRunning
	s.ActivePlan = planID
	s.Started++
}

// RunFinished records the terminal status of a run: completed, failed, or awaiting_review.
func (s *SystemStatus) RunFinished(planID, status string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch status {
	case "completed":
		s.Completed++
	case "awaiting_review":
		s.Paused++
	default:
		s.Failed++
	}
	if s.ActivePlan == planID {
		s.ActivePlan = ""
		s.CurrentPhase = PhaseIdle
		if status == "awaiting_review" {
			s.CurrentPhase = PhaseReviewing
		}
	}
}

func (s *SystemStatus) Heartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastHeartbeat = time.Now()
}

func (s *SystemStatus) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Phase:         s.CurrentPhase,
		ActivePlan:    s.ActivePlan,
		LastHeartbeat: s.LastHeartbeat,
		Started:       s.Started,
		Completed:     s.Completed,
		Failed:        s.Failed,
		Paused:        s.Paused,
	}
}

// Heartbeat updates the last heartbeat time of the global status.
func Heartbeat() {
	globalStatus.Heartbeat()
}
