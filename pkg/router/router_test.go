package router

import (
	"strings"
	"testing"

	"github.com/openjuicer/openjuicer/pkg/plan"
)

func TestSelectWorkflow(t *testing.T) {
	tests := []struct {
		intent   string
		expected plan.Workflow
	}{
		{"prepare rag documents: normalize, length filter, deduplicate", plan.WorkflowTextCleaning},
		{"please clean rag corpus and retrieval chunks", plan.WorkflowTextCleaning},
		{"清洗中文语料，去掉太短的文本", plan.WorkflowTextCleaning},
		{"do image duplicate removal for multimodal dataset", plan.WorkflowMultimodalDedup},
		{"图文数据近重复清理，降低训练数据冗余", plan.WorkflowMultimodalDedup},
		{"对多模态数据集做重复样本过滤", plan.WorkflowMultimodalDedup},
		{"translate the dataset into french", plan.WorkflowCustom},
		{"", plan.WorkflowCustom},
	}

	for _, tt := range tests {
		t.Run(tt.intent, func(t *testing.T) {
			if got := SelectWorkflow(tt.intent); got != tt.expected {
				t.Errorf("SelectWorkflow(%q): expected %s, got %s", tt.intent, tt.expected, got)
			}
		})
	}
}

func TestSelectWorkflow_DedupAloneStaysTextual(t *testing.T) {
	// Deduplication language without any visual cue must not flip a text
	// cleaning task into the multimodal workflow.
	if got := SelectWorkflow("clean and dedup the text corpus"); got != plan.WorkflowTextCleaning {
		t.Errorf("expected text_cleaning, got %s", got)
	}
}

func TestExplain(t *testing.T) {
	routing := Explain("clean rag corpus")
	if routing.Workflow != plan.WorkflowTextCleaning {
		t.Errorf("unexpected workflow: %s", routing.Workflow)
	}
	if routing.Strategy != "keyword-router" {
		t.Errorf("unexpected strategy: %s", routing.Strategy)
	}
	if !strings.Contains(routing.Reason, "text_cleaning=") {
		t.Errorf("reason must carry the scores, got %q", routing.Reason)
	}
}
