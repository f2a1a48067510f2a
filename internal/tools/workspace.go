package tools

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// SupportedExtensions are the file types analyze_data_file understands.
var SupportedExtensions = map[string]bool{
	".csv": true, ".json": true, ".txt": true, ".md": true, ".html": true, ".htm": true,
}

// Workspace confines file access to a root directory.
type Workspace struct {
	Root string
}

func NewWorkspace(root string) *Workspace {
	absRoot, _ := filepath.Abs(root)
	return &Workspace{Root: absRoot}
}

// SafePath joins name onto the root and rejects anything that escapes it.
func (w *Workspace) SafePath(name string) (string, error) {
	targetPath := filepath.Join(w.Root, name)

	rel, err := filepath.Rel(w.Root, targetPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe path attempt: %s", name)
	}
	return targetPath, nil
}

// Resolve maps a user supplied path to a file inside the workspace. Relative
// names are joined onto the root; absolute names must already be under it.
func (w *Workspace) Resolve(name string) (string, error) {
	if !filepath.IsAbs(name) {
		return w.SafePath(name)
	}
	rel, err := filepath.Rel(w.Root, filepath.Clean(name))
	if err != nil {
		return "", fmt.Errorf("unsafe path attempt: %s", name)
	}
	return w.SafePath(rel)
}

// Save writes r to dir/name inside the workspace and returns the path
// relative to the root.
func (w *Workspace) Save(dir, name string, r io.Reader) (string, int64, error) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || strings.HasPrefix(base, ".") {
		return "", 0, fmt.Errorf("invalid file name: %q", name)
	}
	if !SupportedExtensions[strings.ToLower(filepath.Ext(base))] {
		return "", 0, fmt.Errorf("unsupported file type: %q", filepath.Ext(base))
	}

	rel := filepath.Join(dir, base)
	targetPath, err := w.SafePath(rel)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(targetPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}
	return rel, n, nil
}
