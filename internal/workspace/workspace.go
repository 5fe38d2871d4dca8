// Package workspace lays out the directories a classification run writes to.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	tempDirName   = "temporaryData"
	outputDirName = "outputData"
)

// Layout holds the directories of a prepared workspace.
type Layout struct {
	Root   string
	Temp   string // intermediate files such as the clipped network
	Output string // classified outputs
}

// Prepare creates root and its temporaryData and outputData directories.
// Existing directories are reused.
func Prepare(root string) (Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("resolve workspace: %w", err)
	}
	l := Layout{
		Root:   abs,
		Temp:   filepath.Join(abs, tempDirName),
		Output: filepath.Join(abs, outputDirName),
	}
	for _, dir := range []string{l.Temp, l.Output} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Layout{}, fmt.Errorf("create workspace directory: %w", err)
		}
	}
	return l, nil
}

// OutputPath returns the path of name in the output directory.
func (l Layout) OutputPath(name string) string { return filepath.Join(l.Output, name) }

// TempPath returns the path of name in the temporary directory.
func (l Layout) TempPath(name string) string { return filepath.Join(l.Temp, name) }
