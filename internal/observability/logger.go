package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePlan        EventType = "plan"
	EventTypeStep        EventType = "step"
	EventTypeToolCall    EventType = "tool_call"
	EventTypeToolResult  EventType = "tool_result"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypeReview      EventType = "review"
	EventTypeHeartbeat   EventType = "heartbeat"
	EventTypeLLM         EventType = "llm"
	EventTypeHTTP        EventType = "http"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	PlanID    string    `json:"plan_id,omitempty"`
	User      string    `json:"user,omitempty"`
	Step      *int      `json:"step,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	mu         sync.Mutex
	out        io.Writer
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return NewLoggerTo(NewTermWriter(), "logs")
}

// NewLoggerTo writes events to out and LLM transcripts under logDir.
// An empty logDir disables the transcript file.
func NewLoggerTo(out io.Writer, logDir string) *Logger {
	l := &Logger{
		out:     out,
		maxSize: 10 * 1024 * 1024, // 10MB
	}
	if logDir != "" {
		l.llmLogPath = filepath.Join(logDir, "llm.jsonl")
	}
	return l
}

// Log emits a structured JSON event, one per line.
func (l *Logger) Log(evt Event) {
	if l == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		data = []byte(fmt.Sprintf("{\"error\": \"failed to marshal event: %v\"}", err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(data))

	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogPlan(planID, user, status string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["status"] = status
	l.Log(Event{Type: EventTypePlan, PlanID: planID, User: user, Data: data})
}

func (l *Logger) LogStep(planID string, step int, tool, output, status string) {
	l.Log(Event{
		Type:   EventTypeStep,
		PlanID: planID,
		Step:   &step,
		Data: map[string]string{
			"tool":   tool,
			"output": output,
			"status": status,
		},
	})
}

func (l *Logger) LogToolCall(planID string, step int, tool, args string) {
	l.Log(Event{
		Type:   EventTypeToolCall,
		PlanID: planID,
		Step:   &step,
		Data: map[string]string{
			"tool": tool,
			"args": args,
		},
	})
}

func (l *Logger) LogToolResult(planID string, step int, tool string, result any) {
	l.Log(Event{
		Type:   EventTypeToolResult,
		PlanID: planID,
		Step:   &step,
		Data: map[string]any{
			"tool":   tool,
			"result": result,
		},
	})
}

func (l *Logger) LogPolicyCheck(planID string, step int, tool, effect, reason string) {
	l.Log(Event{
		Type:   EventTypePolicyCheck,
		PlanID: planID,
		Step:   &step,
		Data: map[string]string{
			"tool":   tool,
			"effect": effect,
			"reason": reason,
		},
	})
}

func (l *Logger) LogReview(planID, reviewer string, approved bool, reason string) {
	l.Log(Event{
		Type:   EventTypeReview,
		PlanID: planID,
		Data: map[string]any{
			"reviewer": reviewer,
			"approved": approved,
			"reason":   reason,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(planID string, prompt any, response string) {
	l.Log(Event{
		Type:   EventTypeLLM,
		PlanID: planID,
		Data: map[string]any{
			"prompt":   prompt,
			"response": response,
		},
	})
}

func (l *Logger) LogHTTP(user, method, path string, status int, elapsed time.Duration) {
	l.Log(Event{
		Type: EventTypeHTTP,
		User: user,
		Data: map[string]any{
			"method":      method,
			"path":        path,
			"status":      status,
			"duration_ms": elapsed.Milliseconds(),
		},
	})
}
