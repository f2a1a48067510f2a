package tools

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

// DemoSource is the source label of the built-in sales dataset.
const DemoSource = "demo_sales_data"

// DataTool summarizes the built-in demo sales dataset.
type DataTool struct{}

func NewDataTool() *DataTool {
	return &DataTool{}
}

func (d *DataTool) Name() string {
	return ToolFetchData
}

func (d *DataTool) Description() string {
	return "Fetch the demo sales dataset and produce a summary with statistics and insights."
}

func (d *DataTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"source": map[string]any{
				"type":        "string",
				"description": "Label of the dataset to analyze (informational)",
			},
		},
	}
}

func (d *DataTool) Execute(ctx context.Context, input Input) (Result, error) {
	rows := []map[string]any{
		{"date": "2025-08-19", "sales": 1200.0},
		{"date": "2025-08-20", "sales": 1450.0},
	}
	res := analyzeRows(rows, []string{"date", "sales"})

	total := 0.0
	for _, row := range rows {
		total += row["sales"].(float64)
	}
	res["summary"] = fmt.Sprintf("Total sales: %s (from %d days)", formatNumber(total), len(rows))
	res["source"] = DemoSource
	res["metadata"] = map[string]any{
		"file_type":   "demo",
		"analyzed_at": time.Now().UTC().Format(time.RFC3339),
	}
	return res, nil
}

// FileAnalysisTool analyzes a data file from the workspace.
type FileAnalysisTool struct {
	Workspace *Workspace
}

func NewFileAnalysisTool(root string) *FileAnalysisTool {
	return &FileAnalysisTool{Workspace: NewWorkspace(root)}
}

func (f *FileAnalysisTool) Name() string {
	return ToolAnalyzeFile
}

func (f *FileAnalysisTool) Description() string {
	return "Analyze an uploaded data file (csv, json, txt, md, html) and summarize its contents."
}

func (f *FileAnalysisTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{
				"type":        "string",
				"description": "Path of the file, absolute or relative to the workspace",
			},
		},
		"required": []string{"file_path"},
	}
}

func (f *FileAnalysisTool) Execute(ctx context.Context, input Input) (Result, error) {
	path := input.String("file_path")
	resolved, err := f.Workspace.Resolve(path)
	if err != nil {
		return withSource(Failed("File not found", err.Error(), nil), path), nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return withSource(Failed("File not found", err.Error(), nil), path), nil
	}

	ext := strings.ToLower(filepath.Ext(resolved))
	if !SupportedExtensions[ext] {
		return withSource(Failed("Unsupported file type", fmt.Sprintf("cannot analyze %q files", ext), nil), path), nil
	}

	var res Result
	switch ext {
	case ".csv":
		res, err = analyzeCSV(resolved)
	case ".json":
		res, err = analyzeJSON(resolved)
	case ".txt", ".md":
		res, err = analyzeText(resolved)
	default:
		res, err = analyzeHTML(resolved)
	}
	if err != nil {
		return withSource(Failed("File analysis failed", err.Error(), nil), path), nil
	}

	res["source"] = path
	res["metadata"] = map[string]any{
		"file_name":   filepath.Base(resolved),
		"file_type":   strings.TrimPrefix(ext, "."),
		"size_bytes":  info.Size(),
		"modified_at": info.ModTime().UTC().Format(time.RFC3339),
		"analyzed_at": time.Now().UTC().Format(time.RFC3339),
	}
	return res, nil
}

func withSource(res Result, path string) Result {
	res["source"] = path
	return res
}

func analyzeCSV(path string) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}

	columns := records[0]
	rows := make([]map[string]any, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if i >= len(rec) {
				break
			}
			if n, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64); err == nil {
				row[col] = n
			} else {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}

	res := analyzeRows(rows, columns)
	res["summary"] = fmt.Sprintf("Analyzed %d rows across %d columns", len(rows), len(columns))
	return res, nil
}

func analyzeJSON(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	var rows []map[string]any
	switch v := doc.(type) {
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				rows = append(rows, obj)
			}
		}
	case map[string]any:
		rows = []map[string]any{v}
	default:
		return nil, fmt.Errorf("json document must be an object or an array of objects")
	}

	columns := columnsOf(rows)
	res := analyzeRows(rows, columns)
	res["summary"] = fmt.Sprintf("Analyzed %d records with %d fields", len(rows), len(columns))
	return res, nil
}

func analyzeText(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return textResult(string(data), ""), nil
}

func analyzeHTML(path string) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	article, err := readability.FromReader(file, &url.URL{Scheme: "file", Path: path})
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	text := bluemonday.StrictPolicy().Sanitize(article.TextContent)
	res := textResult(text, article.Title)
	if article.Excerpt != "" {
		res["insights"] = append(res["insights"].([]string), "Excerpt: "+article.Excerpt)
	}
	return res, nil
}

func textResult(text, title string) Result {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	words := strings.Fields(text)

	summary := fmt.Sprintf("Document with %d lines and %d words", len(lines), len(words))
	if title != "" {
		summary = fmt.Sprintf("%s: %s", title, summary)
	}

	insights := []string{fmt.Sprintf("Average words per line: %.1f", float64(len(words))/math.Max(1, float64(len(lines))))}
	if top := topWords(words, 3); len(top) > 0 {
		insights = append(insights, "Most frequent words: "+strings.Join(top, ", "))
	}

	return Result{
		"status":  "success",
		"summary": summary,
		"statistics": map[string]any{
			"line_count": len(lines),
			"word_count": len(words),
			"char_count": len(text),
		},
		"insights":       insights,
		"visualizations": []map[string]any{},
	}
}

func topWords(words []string, n int) []string {
	counts := map[string]int{}
	for _, w := range words {
		w = strings.ToLower(strings.Trim(w, ".,;:!?\"'()[]"))
		if len(w) < 4 {
			continue
		}
		counts[w]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func columnsOf(rows []map[string]any) []string {
	seen := map[string]bool{}
	var cols []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// analyzeRows computes per-column statistics, insights and chart suggestions
// for a tabular dataset.
func analyzeRows(rows []map[string]any, columns []string) Result {
	numeric := map[string]any{}
	var insights []string
	var charts []map[string]any
	var labelCol string

	for _, col := range columns {
		var vals []float64
		for _, row := range rows {
			if f, ok := row[col].(float64); ok {
				vals = append(vals, f)
			}
		}
		if len(vals) == 0 || len(vals) != len(rows) {
			if labelCol == "" {
				labelCol = col
			}
			continue
		}

		sum, lo, hi := 0.0, vals[0], vals[0]
		for _, v := range vals {
			sum += v
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		mean := sum / float64(len(vals))
		numeric[col] = map[string]any{
			"sum":  sum,
			"mean": mean,
			"min":  lo,
			"max":  hi,
		}

		insights = append(insights, fmt.Sprintf("%s ranges from %s to %s (mean %s)", col, formatNumber(lo), formatNumber(hi), formatNumber(mean)))
		if len(vals) > 1 {
			first, last := vals[0], vals[len(vals)-1]
			if first != 0 {
				change := (last - first) / math.Abs(first) * 100
				insights = append(insights, fmt.Sprintf("%s changed %+.1f%% from first to last record", col, change))
			}
		}
		charts = append(charts, map[string]any{
			"type":   "line",
			"title":  fmt.Sprintf("%s over %s", col, orDefault(labelCol, "index")),
			"column": col,
		})
	}

	if len(charts) > 0 && labelCol != "" {
		charts = append(charts, map[string]any{
			"type":   "bar",
			"title":  fmt.Sprintf("%s by %s", charts[0]["column"], labelCol),
			"column": charts[0]["column"],
		})
	}
	if charts == nil {
		charts = []map[string]any{}
	}
	if insights == nil {
		insights = []string{fmt.Sprintf("No numeric columns found in %d records", len(rows))}
	}

	return Result{
		"status": "success",
		"statistics": map[string]any{
			"row_count": len(rows),
			"columns":   columns,
			"numeric":   numeric,
		},
		"insights":       insights,
		"visualizations": charts,
		"raw":            rows,
	}
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
