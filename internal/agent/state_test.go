package agent

import (
	"testing"

	"github.com/rahul/workbench/internal/tools"
	"github.com/stretchr/testify/require"
)

func TestState_LookupReturnsMostRecent(t *testing.T) {
	st := NewState(&Plan{ID: "p"}, User{Username: "alice"})
	st.Record("x", tools.Result{"n": 1})
	st.Record("y", tools.Result{"n": 2})
	st.Record("x", tools.Result{"n": 3})

	got, ok := st.Lookup("x")
	require.True(t, ok)
	require.Equal(t, 3, got["n"])
	require.Len(t, st.Results, 3)

	got, ok = st.Lookup("missing")
	require.False(t, ok)
	require.Nil(t, got)
}

func TestState_Resolve(t *testing.T) {
	st := NewState(&Plan{ID: "p"}, User{Username: "alice"})
	st.Record(OutputAnalysis, tools.Result{"summary": "ok"})

	v, ok := st.Resolve(Reference(OutputAnalysis))
	require.True(t, ok)
	require.Equal(t, map[string]any{"summary": "ok"}, v)

	v, ok = st.Resolve(Literal("hello"))
	require.True(t, ok)
	require.Equal(t, "hello", v)

	_, ok = st.Resolve(Reference(OutputApproval))
	require.False(t, ok)
}

func TestStateRecordRoundTrip(t *testing.T) {
	plan := NewBuilder().Build(Request{To: "x@y.com"}, User{Username: "alice"})
	st := NewState(plan, User{Username: "alice", Role: "admin"})
	st.Record(OutputAnalysis, tools.Result{"status": "success"})
	st.Status = StatusCompleted

	rec, err := encodeState(st)
	require.NoError(t, err)
	require.Equal(t, plan.ID, rec.ID)
	require.Equal(t, "alice", rec.Owner)
	require.Equal(t, "completed", rec.Status)

	back, err := decodeState(rec)
	require.NoError(t, err)
	require.Equal(t, plan.ID, back.Plan.ID)
	require.Len(t, back.Plan.Steps, 3)
	body, _ := back.Plan.Steps[2].Input("body")
	require.True(t, body.IsReference())
}
