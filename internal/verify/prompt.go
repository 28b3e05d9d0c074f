package verify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BuildPrompt renders the judge prompt for one submission. It is pure:
// identical inputs always yield the identical string.
func BuildPrompt(taskType string, instructions map[string]any, minerOutput any, criteria map[string]any) string {
	var b strings.Builder

	b.WriteString("You are an AI verifier for a decentralized mining platform. ")
	b.WriteString("Your job is to evaluate whether a miner's submission correctly completes the assigned task.\n\n")

	fmt.Fprintf(&b, "TASK TYPE: %s\n\n", taskType)

	b.WriteString("TASK INSTRUCTIONS:\n")
	b.WriteString(indentJSON(instructions))
	b.WriteString("\n\n")

	b.WriteString("VERIFICATION CRITERIA (Scoring Rubric):\n")
	b.WriteString(indentJSON(criteria))
	b.WriteString("\n\n")

	b.WriteString("MINER'S SUBMISSION:\n")
	b.WriteString(renderOutput(minerOutput))
	b.WriteString("\n\n")

	b.WriteString(`Evaluate the submission against the task instructions and the verification criteria.

Respond with a JSON object in exactly this format:
{
  "is_valid": true or false,
  "score": a decimal number between 0.0 and 1.0,
  "feedback": "a brief explanation of your evaluation"
}

Guidelines:
- is_valid is true only if the submission meets the minimum requirements of the task
- score reflects overall quality: 0.0 is completely wrong, 1.0 is perfect
- feedback names the specific strengths or problems you found

Respond ONLY with valid JSON, no additional text.`)

	return b.String()
}

// indentJSON renders a mapping as 2-space indented JSON. encoding/json sorts
// map keys, which keeps the output deterministic.
func indentJSON(v map[string]any) string {
	if v == nil {
		v = map[string]any{}
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}

func renderOutput(v any) string {
	switch o := v.(type) {
	case nil:
		return ""
	case string:
		return o
	case []byte:
		return string(o)
	case json.RawMessage:
		return string(o)
	case fmt.Stringer:
		return o.String()
	}
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}
