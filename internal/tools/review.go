package tools

import (
	"context"
	"time"
)

// ReviewTool is the synchronous reviewer used when no human is in the loop.
// It decides every request the same way.
type ReviewTool struct {
	Reviewer string
	Approve  bool
	Now      func() time.Time
}

func NewReviewTool(reviewer string, approve bool) *ReviewTool {
	return &ReviewTool{Reviewer: reviewer, Approve: approve, Now: time.Now}
}

func (r *ReviewTool) Name() string {
	return ToolHumanReview
}

func (r *ReviewTool) Description() string {
	return "Ask a reviewer to approve the analysis before it is emailed."
}

func (r *ReviewTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"data_summary": map[string]any{
				"type":        "object",
				"description": "The analysis result to review",
			},
			"recipient": map[string]any{
				"type":        "string",
				"description": "Who the report will be sent to",
			},
		},
	}
}

func (r *ReviewTool) Execute(ctx context.Context, input Input) (Result, error) {
	reason := "Automatically approved"
	if !r.Approve {
		reason = "Automatically denied"
	}

	summary := ""
	if m := input.Map("data_summary"); m != nil {
		summary, _ = m["summary"].(string)
	} else {
		summary = input.String("data_summary")
	}

	return Result{
		"status":       "success",
		"approved":     r.Approve,
		"reason":       reason,
		"reviewer":     r.Reviewer,
		"timestamp":    r.Now().UTC().Format(time.RFC3339),
		"data_summary": summary,
		"recipient":    input.String("recipient"),
	}, nil
}
