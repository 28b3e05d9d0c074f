package verify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt_Deterministic(t *testing.T) {
	instr := map[string]any{"z": 1, "a": "first", "m": []any{1, 2}}
	crit := map[string]any{"accuracy": "exact", "completeness": 0.5}
	out := map[string]any{"answer": 8}

	first := BuildPrompt("evaluation", instr, out, crit)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, BuildPrompt("evaluation", instr, out, crit))
	}
}

func TestBuildPrompt_Sections(t *testing.T) {
	p := BuildPrompt("classification",
		map[string]any{"description": "Label the sentiment"},
		"positive",
		map[string]any{"labels": []string{"positive", "negative"}},
	)

	assert.Contains(t, p, "TASK TYPE: classification")
	assert.Contains(t, p, "TASK INSTRUCTIONS:\n{\n  \"description\": \"Label the sentiment\"\n}")
	assert.Contains(t, p, "VERIFICATION CRITERIA (Scoring Rubric):")
	assert.Contains(t, p, "MINER'S SUBMISSION:\npositive\n")
	assert.Contains(t, p, `"is_valid"`)
	assert.Contains(t, p, `"score"`)
	assert.Contains(t, p, `"feedback"`)
	assert.True(t, strings.HasSuffix(p, "Respond ONLY with valid JSON, no additional text."))
}

func TestBuildPrompt_StructuredOutputIsJSON(t *testing.T) {
	p := BuildPrompt("evaluation", nil, map[string]any{"answer": 8, "steps": []int{2, 4, 6, 8}}, nil)
	assert.Contains(t, p, `MINER'S SUBMISSION:`+"\n"+`{"answer":8,"steps":[2,4,6,8]}`)
	// nil maps render as empty objects
	assert.Contains(t, p, "TASK INSTRUCTIONS:\n{}")
}
