// Package eval runs batches of intent cases through the full
// plan/validate/execute pipeline concurrently and aggregates the outcomes
// into quality metrics and failure buckets.
package eval

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Case is one evaluation input: an intent plus the dataset binding and an
// optional expected workflow used for task-success scoring.
type Case struct {
	// Intent is the natural-language task description.
	Intent string `json:"intent"`

	// DatasetPath and ExportPath bind the generated plan.
	DatasetPath string `json:"dataset_path"`
	ExportPath  string `json:"export_path"`

	// TextKeys and ImageKey override template field bindings.
	TextKeys []string `json:"text_keys,omitempty"`
	ImageKey string   `json:"image_key,omitempty"`

	// ExpectedWorkflow, when set, is compared against the generated plan's
	// workflow. Empty means the case does not score routing.
	ExpectedWorkflow string `json:"expected_workflow,omitempty"`
}

// LoadCases reads a JSONL case file. Blank lines are skipped; a malformed
// line fails the whole load with its line number.
func LoadCases(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open case file: %w", err)
	}
	defer f.Close()

	var cases []Case
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var c Case
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, fmt.Errorf("invalid case on line %d: %w", lineNo, err)
		}
		if c.Intent == "" {
			return nil, fmt.Errorf("case on line %d has no intent", lineNo)
		}
		cases = append(cases, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read case file: %w", err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("case file %s contains no cases", path)
	}
	return cases, nil
}
