package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	v := ParseValue("${data_analysis}")
	require.True(t, v.IsReference())
	require.Equal(t, "data_analysis", v.Ref())

	for _, raw := range []any{"plain text", "${}", "prefix ${x}", "${x} suffix", 42, nil} {
		v := ParseValue(raw)
		require.False(t, v.IsReference(), "%v", raw)
		require.Equal(t, raw, v.Raw())
	}
}

func TestStepJSONKeepsReferences(t *testing.T) {
	step := Step{
		ToolID: "send_email",
		Output: OutputEmail,
		Inputs: []Input{
			{Name: "subject", Value: Literal(ReportSubject)},
			{Name: "body", Value: Reference(OutputAnalysis)},
		},
	}

	data, err := json.Marshal(step)
	require.NoError(t, err)
	require.Contains(t, string(data), `"value":"${data_analysis}"`)

	var decoded Step
	require.NoError(t, json.Unmarshal(data, &decoded))
	body, ok := decoded.Input("body")
	require.True(t, ok)
	require.True(t, body.IsReference())
	require.Equal(t, OutputAnalysis, body.Ref())

	subject, _ := decoded.Input("subject")
	require.Equal(t, ReportSubject, subject.Raw())
}
