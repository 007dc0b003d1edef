package executor

import (
	"testing"

	"github.com/openjuicer/openjuicer/pkg/trace"
)

func TestClassify_Success(t *testing.T) {
	c := Classify(0, "whatever is on stderr")
	if c.ErrorType != trace.ErrorTypeNone || c.RetryLevel != trace.RetryLevelNone {
		t.Fatalf("exit 0 must classify as none/none, got %s/%s", c.ErrorType, c.RetryLevel)
	}
	if len(c.NextActions) != 0 {
		t.Fatalf("exit 0 must carry no next actions, got %v", c.NextActions)
	}
}

func TestClassify_Taxonomy(t *testing.T) {
	tests := []struct {
		name       string
		stderr     string
		errorType  trace.ErrorType
		retryLevel trace.RetryLevel
	}{
		{
			name:       "missing command",
			stderr:     "sh: dj-process: command not found",
			errorType:  trace.ErrorTypeMissingCommand,
			retryLevel: trace.RetryLevelHigh,
		},
		{
			name:       "missing command windows style",
			stderr:     "'dj-process' is not recognized as an internal or external command",
			errorType:  trace.ErrorTypeMissingCommand,
			retryLevel: trace.RetryLevelHigh,
		},
		{
			name:       "missing path",
			stderr:     "FileNotFoundError: No such file or directory: 'data.jsonl'",
			errorType:  trace.ErrorTypeMissingPath,
			retryLevel: trace.RetryLevelMedium,
		},
		{
			name:       "permission denied",
			stderr:     "PermissionError: Permission denied: '/etc/out.jsonl'",
			errorType:  trace.ErrorTypePermissionDenied,
			retryLevel: trace.RetryLevelHigh,
		},
		{
			name:       "unsupported operator via module registry",
			stderr:     "KeyError in operators.modules lookup",
			errorType:  trace.ErrorTypeUnsupportedOperator,
			retryLevel: trace.RetryLevelHigh,
		},
		{
			name:       "unsupported operator via name suffix",
			stderr:     "KeyError: 'imaginary_text_mapper'",
			errorType:  trace.ErrorTypeUnsupportedOperator,
			retryLevel: trace.RetryLevelHigh,
		},
		{
			name:       "timeout",
			stderr:     "process killed\nTimeout after 300s",
			errorType:  trace.ErrorTypeTimeout,
			retryLevel: trace.RetryLevelMedium,
		},
		{
			name:       "generic failure",
			stderr:     "ValueError: bad ratio",
			errorType:  trace.ErrorTypeCommandFailed,
			retryLevel: trace.RetryLevelLow,
		},
		{
			name:       "empty stderr",
			stderr:     "",
			errorType:  trace.ErrorTypeCommandFailed,
			retryLevel: trace.RetryLevelLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(1, tt.stderr)
			if c.ErrorType != tt.errorType {
				t.Errorf("error type: expected %s, got %s", tt.errorType, c.ErrorType)
			}
			if c.RetryLevel != tt.retryLevel {
				t.Errorf("retry level: expected %s, got %s", tt.retryLevel, c.RetryLevel)
			}
			if len(c.NextActions) == 0 {
				t.Error("failure classifications must carry next actions")
			}
		})
	}
}

func TestClassify_MissingCommandBeatsMissingPath(t *testing.T) {
	// Both markers present: the command check runs first.
	c := Classify(127, "sh: dj-process: command not found\nno such file or directory")
	if c.ErrorType != trace.ErrorTypeMissingCommand {
		t.Fatalf("expected missing_command to win, got %s", c.ErrorType)
	}
}
