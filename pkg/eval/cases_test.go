package eval

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCaseFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cases.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCases(t *testing.T) {
	path := writeCaseFile(t, `
{"intent": "clean the corpus", "dataset_path": "data.jsonl", "expected_workflow": "text_cleaning"}

{"intent": "dedup images", "dataset_path": "mm.jsonl", "image_key": "image", "expected_workflow": "multimodal_dedup"}
`)

	cases, err := LoadCases(path)
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, "clean the corpus", cases[0].Intent)
	assert.Equal(t, "text_cleaning", cases[0].ExpectedWorkflow)
	assert.Equal(t, "image", cases[1].ImageKey)
}

func TestLoadCases_MalformedLineReportsLineNumber(t *testing.T) {
	path := writeCaseFile(t, `{"intent": "ok", "dataset_path": "d.jsonl"}
{not json}
`)

	_, err := LoadCases(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoadCases_MissingIntent(t *testing.T) {
	path := writeCaseFile(t, `{"dataset_path": "d.jsonl"}`)

	_, err := LoadCases(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no intent")
}

func TestLoadCases_EmptyFile(t *testing.T) {
	path := writeCaseFile(t, "\n\n")

	_, err := LoadCases(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contains no cases")
}

func TestLoadCases_MissingFile(t *testing.T) {
	_, err := LoadCases(filepath.Join(t.TempDir(), "nope.jsonl"))
	require.Error(t, err)
}
