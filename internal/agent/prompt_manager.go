package agent

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const defaultSummaryPrompt = `You summarize the outcome of a data workbench run for the person who requested it.
Write two or three plain sentences. Mention whether the report email was sent, cancelled, or failed,
and call out any step that failed. Do not invent numbers that are not in the results.`

type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// GetSystemPrompt joins every markdown file except summary.md, identity
// and context files first.
func (pm *PromptManager) GetSystemPrompt() (string, error) {
	files, err := os.ReadDir(pm.Directory)
	if err != nil {
		return "", fmt.Errorf("failed to read prompts directory: %w", err)
	}

	order := map[string]int{
		"identity.md": 1,
		"context.md":  2,
		"style.md":    3,
		"user.md":     4,
	}

	sort.Slice(files, func(i, j int) bool {
		oi, okI := order[files[i].Name()]
		oj, okJ := order[files[j].Name()]
		if okI && okJ {
			return oi < oj
		}
		if okI {
			return true
		}
		if okJ {
			return false
		}
		return files[i].Name() < files[j].Name()
	})

	var contents []string
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), ".md") && f.Name() != "summary.md" {
			path := filepath.Join(pm.Directory, f.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				log.Printf("Warning: Failed to read prompt file %s: %v", path, err)
				continue
			}
			contents = append(contents, string(data))
		}
	}

	if len(contents) == 0 {
		return "", fmt.Errorf("no prompt files found in %s", pm.Directory)
	}

	return strings.Join(contents, "\n\n---\n\n"), nil
}

// GetSummaryPrompt returns summary.md, or the built-in instructions when it
// does not exist.
func (pm *PromptManager) GetSummaryPrompt() string {
	data, err := os.ReadFile(filepath.Join(pm.Directory, "summary.md"))
	if err != nil {
		return defaultSummaryPrompt
	}
	return string(data)
}
