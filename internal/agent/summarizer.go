package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/rahul/workbench/internal/observability"
	"github.com/tmc/langchaingo/llms"
)

// Summarizer composes the closing summary of a run.
type Summarizer interface {
	Summarize(ctx context.Context, st *State) string
}

// CountSummarizer reports how many results a run produced.
type CountSummarizer struct{}

func (CountSummarizer) Summarize(ctx context.Context, st *State) string {
	return fmt.Sprintf("plan executed with %d results", len(st.Results))
}

// LLMSummarizer asks a language model for the summary and falls back when
// the model fails.
type LLMSummarizer struct {
	Model    llms.Model
	Prompts  *PromptManager
	Logger   *observability.Logger
	Fallback Summarizer
}

func NewLLMSummarizer(model llms.Model, prompts *PromptManager, logger *observability.Logger) *LLMSummarizer {
	return &LLMSummarizer{
		Model:    model,
		Prompts:  prompts,
		Logger:   logger,
		Fallback: CountSummarizer{},
	}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, st *State) string {
	prompt := s.prompt(st)
	out, err := llms.GenerateFromSinglePrompt(ctx, s.Model, prompt)
	if err != nil || strings.TrimSpace(out) == "" {
		log.Printf("summary model unavailable for plan %s: %v", st.Plan.ID, err)
		return s.Fallback.Summarize(ctx, st)
	}
	s.Logger.LogLLM(st.Plan.ID, prompt, out)
	return strings.TrimSpace(out)
}

func (s *LLMSummarizer) prompt(st *State) string {
	var b strings.Builder
	if s.Prompts != nil {
		if system, err := s.Prompts.GetSystemPrompt(); err == nil {
			b.WriteString(system + "\n\n---\n\n")
		}
		b.WriteString(s.Prompts.GetSummaryPrompt())
	} else {
		b.WriteString(defaultSummaryPrompt)
	}

	fmt.Fprintf(&b, "\n\nRequest: %s\nResults:\n", orNA(st.Plan.Description))
	for _, r := range st.Results {
		status, _ := r.Data["status"].(string)
		line := fmt.Sprintf("- %s: status=%s", r.OutputID, orNA(nonEmpty(status)))
		if msg, ok := r.Data["error"]; ok {
			line += fmt.Sprintf(" error=%v", msg)
		}
		if summary, ok := r.Data["summary"].(string); ok {
			line += " summary=" + summary
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func nonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
