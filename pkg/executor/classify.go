package executor

import (
	"strings"

	"github.com/openjuicer/openjuicer/pkg/trace"
)

// Classification is the deterministic triage of one execution outcome.
type Classification struct {
	// ErrorType buckets the failure for trace statistics.
	ErrorType trace.ErrorType

	// RetryLevel is advisory: surfaced to callers, never auto-enforced.
	RetryLevel trace.RetryLevel

	// NextActions are fixed remediation hints for this failure class.
	NextActions []string
}

// Classify maps an exit code and stderr onto the failure taxonomy. Rules
// are tested in priority order against the lower-cased stderr and the first
// match wins. Exit 0 always classifies as none.
func Classify(exitCode int, stderr string) Classification {
	if exitCode == 0 {
		return Classification{
			ErrorType:  trace.ErrorTypeNone,
			RetryLevel: trace.RetryLevelNone,
		}
	}

	msg := strings.ToLower(stderr)

	if strings.Contains(msg, "command not found") || strings.Contains(msg, "not recognized") {
		return Classification{
			ErrorType:  trace.ErrorTypeMissingCommand,
			RetryLevel: trace.RetryLevelHigh,
			NextActions: []string{
				"Install Data-Juicer CLI and verify dj-process is in PATH",
				"Run `which dj-process` to verify environment",
			},
		}
	}

	if strings.Contains(msg, "no such file or directory") {
		return Classification{
			ErrorType:  trace.ErrorTypeMissingPath,
			RetryLevel: trace.RetryLevelMedium,
			NextActions: []string{
				"Check dataset_path and export_path in plan",
				"Ensure recipe file path exists and is readable",
			},
		}
	}

	if strings.Contains(msg, "permission denied") {
		return Classification{
			ErrorType:  trace.ErrorTypePermissionDenied,
			RetryLevel: trace.RetryLevelHigh,
			NextActions: []string{
				"Fix file or directory permissions",
				"Retry with a writable export path",
			},
		}
	}

	if strings.Contains(msg, "keyerror") && strings.Contains(msg, "operators.modules") {
		return Classification{
			ErrorType:  trace.ErrorTypeUnsupportedOperator,
			RetryLevel: trace.RetryLevelHigh,
			NextActions: []string{
				"Check workflow operator names against installed Data-Juicer version",
				"Regenerate plan with supported operators",
			},
		}
	}

	if strings.Contains(msg, "keyerror:") &&
		(strings.Contains(msg, "_mapper") || strings.Contains(msg, "_deduplicator")) {
		return Classification{
			ErrorType:  trace.ErrorTypeUnsupportedOperator,
			RetryLevel: trace.RetryLevelHigh,
			NextActions: []string{
				"Operator missing in current Data-Juicer installation",
				"Replace unsupported operator and retry",
			},
		}
	}

	if strings.Contains(msg, "timeout") {
		return Classification{
			ErrorType:  trace.ErrorTypeTimeout,
			RetryLevel: trace.RetryLevelMedium,
			NextActions: []string{
				"Reduce dataset size and retry",
				"Increase execution timeout",
			},
		}
	}

	return Classification{
		ErrorType:  trace.ErrorTypeCommandFailed,
		RetryLevel: trace.RetryLevelLow,
		NextActions: []string{
			"Inspect stderr details",
			"Adjust operator parameters and retry",
		},
	}
}
