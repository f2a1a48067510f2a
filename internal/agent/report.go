package agent

import (
	"fmt"
	"sort"
	"strings"
)

// isAnalysis reports whether v looks like a data analysis payload.
func isAnalysis(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	_, hasSummary := m["summary"]
	_, hasStats := m["statistics"]
	return m, hasSummary || hasStats
}

// isFailure reports whether v is a failed tool payload.
func isFailure(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	_, hasError := m["error"]
	return m, hasError
}

// FormatFailure renders a failed analysis as a plain text email body.
func FormatFailure(res map[string]any) string {
	text := "Analysis failed: " + fmt.Sprint(res["error"])
	if msg, _ := res["message"].(string); msg != "" {
		text += ": " + msg
	}
	return text
}

// FormatReport renders an analysis payload as a plain text email body.
func FormatReport(analysis map[string]any) string {
	var b strings.Builder
	b.WriteString(ReportSubject + "\n")
	b.WriteString(strings.Repeat("=", len(ReportSubject)) + "\n")

	section := func(title string) {
		b.WriteString("\n" + title + "\n" + strings.Repeat("-", len(title)) + "\n")
	}

	section("Summary")
	if s, _ := analysis["summary"].(string); s != "" {
		b.WriteString(s + "\n")
	} else {
		b.WriteString("No summary available.\n")
	}

	if stats, ok := analysis["statistics"].(map[string]any); ok && len(stats) > 0 {
		section("Statistics")
		writeStatistics(&b, stats)
	}

	if insights := stringList(analysis["insights"]); len(insights) > 0 {
		section("Insights")
		for _, in := range insights {
			b.WriteString("- " + in + "\n")
		}
	}

	section("Source")
	b.WriteString("- source: " + fmt.Sprint(orNA(analysis["source"])) + "\n")
	if meta, ok := analysis["metadata"].(map[string]any); ok {
		for _, k := range sortedKeys(meta) {
			fmt.Fprintf(&b, "- %s: %v\n", k, meta[k])
		}
	}

	if charts := mapList(analysis["visualizations"]); len(charts) > 0 {
		section("Visualizations")
		for _, c := range charts {
			fmt.Fprintf(&b, "- %v: %v", orNA(c["type"]), orNA(c["title"]))
			if col, ok := c["column"]; ok {
				fmt.Fprintf(&b, " (%v)", col)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func writeStatistics(b *strings.Builder, stats map[string]any) {
	for _, k := range sortedKeys(stats) {
		switch v := stats[k].(type) {
		case map[string]any:
			if k != "numeric" {
				fmt.Fprintf(b, "- %s: %v\n", k, v)
				continue
			}
			for _, col := range sortedKeys(v) {
				m, ok := v[col].(map[string]any)
				if !ok {
					continue
				}
				fmt.Fprintf(b, "- %s: sum %s, mean %s, min %s, max %s\n",
					col, number(m["sum"]), number(m["mean"]), number(m["min"]), number(m["max"]))
			}
		default:
			if list := stringList(v); list != nil {
				fmt.Fprintf(b, "- %s: %s\n", k, strings.Join(list, ", "))
				continue
			}
			fmt.Fprintf(b, "- %s: %v\n", k, v)
		}
	}
}

func number(v any) string {
	f, ok := v.(float64)
	if !ok {
		return fmt.Sprint(orNA(v))
	}
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.2f", f)
}

// stringList accepts both []string and the []any a JSON round trip produces.
func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

func mapList(v any) []map[string]any {
	switch l := v.(type) {
	case []map[string]any:
		return l
	case []any:
		out := make([]map[string]any, 0, len(l))
		for _, item := range l {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orNA(v any) any {
	if v == nil {
		return "n/a"
	}
	return v
}
