// Package router selects a coarse workflow category for an intent using a
// weighted keyword scorer. It feeds template selection and task-success
// scoring; anything smarter belongs to the external plan generator.
package router

import (
	"fmt"
	"strings"

	"github.com/openjuicer/openjuicer/pkg/plan"
)

// keyword carries one scoring term and its weight.
type keyword struct {
	term   string
	weight int
}

// textCleaningKeywords score toward the text corpus cleaning workflow.
var textCleaningKeywords = []keyword{
	{"rag", 3},
	{"corpus", 2},
	{"retrieval", 2},
	{"clean", 2},
	{"normalize", 1},
	{"filter", 1},
	{"document", 1},
	{"text", 1},
	{"文本", 2},
	{"清洗", 2},
	{"语料", 2},
}

// multimodalKeywords score toward the multimodal dedup workflow.
var multimodalKeywords = []keyword{
	{"image", 3},
	{"multimodal", 3},
	{"visual", 2},
	{"photo", 2},
	{"picture", 2},
	{"dedup", 1},
	{"duplicate", 1},
	{"图", 3},
	{"多模态", 3},
	{"去重", 2},
	{"重复", 1},
}

// Routing explains a workflow selection.
type Routing struct {
	// Workflow is the selected category.
	Workflow plan.Workflow

	// Strategy names the selection mechanism.
	Strategy string

	// Reason is a human-readable scoring summary.
	Reason string
}

// SelectWorkflow scores the intent against both keyword sets and returns
// the winning workflow. Intents matching neither set route to custom.
func SelectWorkflow(intent string) plan.Workflow {
	return Explain(intent).Workflow
}

// Explain returns the selected workflow together with the scoring detail.
func Explain(intent string) Routing {
	lowered := strings.ToLower(intent)

	textScore := score(lowered, textCleaningKeywords)
	multimodalScore := score(lowered, multimodalKeywords)

	workflow := plan.WorkflowCustom
	switch {
	case multimodalScore > textScore:
		workflow = plan.WorkflowMultimodalDedup
	case textScore > 0:
		workflow = plan.WorkflowTextCleaning
	}

	return Routing{
		Workflow: workflow,
		Strategy: "keyword-router",
		Reason: fmt.Sprintf("text_cleaning=%d multimodal_dedup=%d -> %s",
			textScore, multimodalScore, workflow),
	}
}

func score(lowered string, keywords []keyword) int {
	total := 0
	for _, kw := range keywords {
		if strings.Contains(lowered, kw.term) {
			total += kw.weight
		}
	}
	return total
}
