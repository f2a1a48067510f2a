package agent

import (
	"encoding/json"
	"strings"
	"time"
)

// User is the identity a plan is run for.
type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Value is a step input: either a literal or a reference to an earlier
// step's output. The kind is fixed when the plan is built.
type Value struct {
	raw   any
	ref   string
	isRef bool
}

func Literal(v any) Value {
	return Value{raw: v}
}

func Reference(outputID string) Value {
	return Value{ref: outputID, isRef: true}
}

// ParseValue turns a raw request value into a Value. Only a string of the
// exact form ${name} is a reference; anything else is a literal.
func ParseValue(v any) Value {
	s, ok := v.(string)
	if ok && len(s) > 3 && strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return Reference(s[2 : len(s)-1])
	}
	return Literal(v)
}

func (v Value) IsReference() bool { return v.isRef }

// Ref returns the referenced output id, or "" for a literal.
func (v Value) Ref() string { return v.ref }

// Raw returns the literal value, or nil for a reference.
func (v Value) Raw() any { return v.raw }

func (v Value) String() string {
	if v.isRef {
		return "${" + v.ref + "}"
	}
	b, _ := json.Marshal(v.raw)
	return string(b)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.isRef {
		return json.Marshal("${" + v.ref + "}")
	}
	return json.Marshal(v.raw)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = ParseValue(raw)
	return nil
}

// Input is one named step input.
type Input struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Step is a single unit of work: a tool, its inputs, and the output id its
// result is published under.
type Step struct {
	Task        string    `json:"task"`
	ToolID      string    `json:"tool_id"`
	Output      string    `json:"output"`
	Inputs      []Input   `json:"inputs"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Input returns the named input of the step.
func (s Step) Input(name string) (Value, bool) {
	for _, in := range s.Inputs {
		if in.Name == name {
			return in.Value, true
		}
	}
	return Value{}, false
}

// Plan is the ordered list of steps built for one request.
type Plan struct {
	ID          string         `json:"id"`
	Steps       []Step         `json:"steps"`
	Owner       User           `json:"owner"`
	Query       string         `json:"query,omitempty"`
	Description string         `json:"description,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Status      string         `json:"status"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ToolIDs returns the tool of every step, in order.
func (p *Plan) ToolIDs() []string {
	ids := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		ids[i] = s.ToolID
	}
	return ids
}
