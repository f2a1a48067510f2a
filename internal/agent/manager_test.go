package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rahul/workbench/internal/observability"
	"github.com/rahul/workbench/internal/tools"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

var bob = User{Username: "bob", Role: "analyst"}

func newManager(t *testing.T, approve bool) (*Manager, *fixture) {
	t.Helper()
	f := newFixture(t, approve)
	return NewManager(f.executor), f
}

func TestManager_OwnershipHidesPlans(t *testing.T) {
	m, _ := newManager(t, true)
	ctx := context.Background()

	res, err := m.RunPlan(ctx, Request{To: "x@y.com"}, alice)
	require.NoError(t, err)

	st, err := m.GetPlan(ctx, res.PlanID, alice)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, st.Status)
	require.Len(t, st.Results, 3)

	_, err = m.GetPlan(ctx, res.PlanID, bob)
	require.ErrorIs(t, err, ErrPlanNotFound)
	_, err = m.GetPlan(ctx, "no-such-plan", alice)
	require.ErrorIs(t, err, ErrPlanNotFound)

	plans, err := m.ListPlans(ctx, bob)
	require.NoError(t, err)
	require.Empty(t, plans)

	plans, err = m.ListPlans(ctx, alice)
	require.NoError(t, err)
	require.Len(t, plans, 1)
}

func TestManager_StrictRejectsUnknownTools(t *testing.T) {
	m, f := newManager(t, true)
	req := Request{To: "x@y.com", CRMOperation: "read", CRMType: "acme", Strict: true}

	_, err := m.RunPlan(context.Background(), req, alice)
	require.ErrorIs(t, err, ErrUnresolvedTools)
	require.Equal(t, 0, f.email.count())

	preview := m.Preview(req, alice)
	require.Equal(t, []string{"get_acme_records"}, preview.Unresolved)
	require.Len(t, preview.Plan.Steps, 4)
}

func TestManager_ReviewResumesPausedPlan(t *testing.T) {
	m, f := newManager(t, true)
	f.executor.ReviewMode = ReviewManual
	ctx := context.Background()

	res, err := m.RunPlan(ctx, Request{To: "x@y.com"}, alice)
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingReview, res.Status)

	_, err = m.Review(ctx, res.PlanID, bob, Decision{Approved: true})
	require.ErrorIs(t, err, ErrPlanNotFound)

	done, err := m.Review(ctx, res.PlanID, alice, Decision{Approved: false, Reason: "numbers look off"})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Status)
	require.Equal(t, 0, f.email.count())

	st, err := m.GetPlan(ctx, res.PlanID, alice)
	require.NoError(t, err)
	email, _ := st.Lookup(OutputEmail)
	require.Equal(t, "cancelled", email["status"])
	require.Len(t, st.Clarifications, 1)
	require.Equal(t, "alice", st.Clarifications[0].Decision.Reviewer)
}

func TestManager_ConcurrentReviewsSendOnce(t *testing.T) {
	m, f := newManager(t, true)
	f.executor.ReviewMode = ReviewManual
	ctx := context.Background()

	res, err := m.RunPlan(ctx, Request{To: "x@y.com"}, alice)
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingReview, res.Status)

	const reviewers = 8
	errs := make([]error, reviewers)
	var wg sync.WaitGroup
	for i := range reviewers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = m.Review(ctx, res.PlanID, alice, Decision{Approved: true, Reason: "ok"})
		}()
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		require.ErrorIs(t, err, ErrNotAwaitingReview)
	}
	require.Equal(t, 1, won)
	require.Equal(t, 1, f.email.count())

	st, err := m.GetPlan(ctx, res.PlanID, alice)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, st.Status)
	require.Len(t, st.Clarifications, 1)
}

func TestManager_SweepSkipsAnsweredReview(t *testing.T) {
	m, f := newManager(t, true)
	f.executor.ReviewMode = ReviewManual
	m.TimeoutPolicy = TimeoutAutoDeny
	m.ReviewTimeout = time.Minute
	ctx := context.Background()

	res, err := m.RunPlan(ctx, Request{To: "x@y.com"}, alice)
	require.NoError(t, err)

	_, err = m.Review(ctx, res.PlanID, alice, Decision{Approved: true})
	require.NoError(t, err)
	require.Equal(t, 1, f.email.count())

	n, err := m.SweepExpiredReviews(ctx, time.Now().Add(2*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 0, n)

	_, err = m.Review(ctx, res.PlanID, alice, Decision{Approved: false})
	require.ErrorIs(t, err, ErrNotAwaitingReview)

	st, err := m.GetPlan(ctx, res.PlanID, alice)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, st.Status)
	email, _ := st.Lookup(OutputEmail)
	require.Equal(t, "mocked", email["status"])
	require.Len(t, st.Clarifications, 1)
}

func TestManager_ReviewerRoles(t *testing.T) {
	m, f := newManager(t, true)
	f.executor.ReviewMode = ReviewManual
	m.ReviewerRoles = []string{"reviewer"}
	ctx := context.Background()
	carol := User{Username: "carol", Role: "reviewer"}

	res, err := m.RunPlan(ctx, Request{To: "x@y.com"}, alice)
	require.NoError(t, err)

	_, err = m.Review(ctx, res.PlanID, alice, Decision{Approved: true})
	require.ErrorIs(t, err, ErrReviewerNotAllowed)
	_, err = m.Review(ctx, "no-such-plan", carol, Decision{Approved: true})
	require.ErrorIs(t, err, ErrPlanNotFound)

	done, err := m.Review(ctx, res.PlanID, carol, Decision{Approved: true, Reason: "checked"})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Status)
	require.Equal(t, 1, f.email.count())

	st, err := m.GetPlan(ctx, res.PlanID, alice)
	require.NoError(t, err)
	require.Equal(t, "carol", st.Clarifications[0].Decision.Reviewer)

	_, err = m.Review(ctx, res.PlanID, carol, Decision{Approved: true})
	require.ErrorIs(t, err, ErrPlanNotFound)
}

func TestManager_SweepExpiredReviews(t *testing.T) {
	for _, tc := range []struct {
		policy     string
		wantStatus Status
		wantEmails int
	}{
		{TimeoutAutoDeny, StatusCompleted, 0},
		{TimeoutAutoApprove, StatusCompleted, 1},
		{TimeoutFail, StatusFailed, 0},
	} {
		t.Run(tc.policy, func(t *testing.T) {
			m, f := newManager(t, true)
			f.executor.ReviewMode = ReviewManual
			m.TimeoutPolicy = tc.policy
			m.ReviewTimeout = time.Minute
			ctx := context.Background()

			res, err := m.RunPlan(ctx, Request{To: "x@y.com"}, alice)
			require.NoError(t, err)

			n, err := m.SweepExpiredReviews(ctx, time.Now())
			require.NoError(t, err)
			require.Equal(t, 0, n)

			n, err = m.SweepExpiredReviews(ctx, time.Now().Add(2*time.Minute))
			require.NoError(t, err)
			require.Equal(t, 1, n)

			st, err := m.GetPlan(ctx, res.PlanID, alice)
			require.NoError(t, err)
			require.Equal(t, tc.wantStatus, st.Status)
			require.Equal(t, tc.wantEmails, f.email.count())
		})
	}
}

func TestManager_Rollback(t *testing.T) {
	m, f := newManager(t, true)
	ctx := context.Background()

	res, err := m.RunPlan(ctx, Request{To: "x@y.com"}, alice)
	require.NoError(t, err)

	rb, err := m.Rollback(ctx, res.PlanID, alice, 1)
	require.NoError(t, err)
	require.Equal(t, 2, rb.Removed)
	require.Equal(t, StatusRolledBack, rb.Status)
	require.Contains(t, rb.Diff, "-approval:")
	require.Contains(t, rb.Diff, "-email_result:")

	st, err := m.GetPlan(ctx, res.PlanID, alice)
	require.NoError(t, err)
	require.Len(t, st.Results, 1)
	require.Equal(t, 1, st.Cursor)

	_, err = m.Rollback(ctx, res.PlanID, alice, 2)
	require.ErrorIs(t, err, ErrInvalidRollback)
	_, err = m.Rollback(ctx, res.PlanID, bob, 0)
	require.ErrorIs(t, err, ErrPlanNotFound)

	again, err := m.Continue(ctx, res.PlanID, alice)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, again.Status)
	require.Len(t, again.Results, 3)
	require.Equal(t, 2, f.email.count())
}

type fakeModel struct {
	reply string
	err   error
	seen  string
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, m := range messages {
		for _, p := range m.Parts {
			if text, ok := p.(llms.TextContent); ok {
				f.seen += text.Text
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestLLMSummarizer(t *testing.T) {
	m, f := newManager(t, true)
	model := &fakeModel{reply: "  The report was emailed to x@y.com.  "}
	f.executor.Summarizer = NewLLMSummarizer(model, nil, observability.NewLoggerTo(&strings.Builder{}, ""))

	res, err := m.RunPlan(context.Background(), Request{To: "x@y.com"}, alice)
	require.NoError(t, err)
	require.Equal(t, "The report was emailed to x@y.com.", res.Summary)
	require.Contains(t, model.seen, "email_result: status=mocked")

	model.err = errors.New("rate limited")
	res, err = m.RunPlan(context.Background(), Request{To: "x@y.com"}, alice)
	require.NoError(t, err)
	require.Equal(t, "plan executed with 3 results", res.Summary)
}

func TestFormatReport(t *testing.T) {
	res, err := tools.NewDataTool().Execute(context.Background(), nil)
	require.NoError(t, err)

	report := FormatReport(res)
	for _, section := range []string{"Summary", "Statistics", "Insights", "Source", "Visualizations"} {
		require.Contains(t, report, "\n"+section+"\n")
	}
	require.Contains(t, report, "- sales: sum 2650, mean 1325, min 1200, max 1450")
	require.Contains(t, report, "- source: demo_sales_data")
	require.Less(t, strings.Index(report, "Summary"), strings.Index(report, "Visualizations"))
}
