// CLAUDE:SUMMARY E2E test fixtures — developer and miner wallets, a canonical arithmetic task, submission payloads
package e2e

// --- Fixture wallets ---

var Wallets = struct {
	Developer string
	Alice     string
	Bob       string
}{
	Developer: "0x52908400098527886E0F7030069857D2E4169EE7",
	Alice:     "0xde709f2102306220921060314715629080e2fb77",
	Bob:       "0x27b1fdb04752bbc536007a920d24acb045561c26",
}

// ArithmeticTask is the canonical task used across the suite. A miner
// answering 8 is correct.
func ArithmeticTask(reward float64, maxSubmissions int) map[string]interface{} {
	t := map[string]interface{}{
		"title":                 "Add four twos",
		"description":           "Compute 2+2+2+2 and return the numeric answer.",
		"task_type":             "evaluation",
		"difficulty":            "easy",
		"reward_per_submission": reward,
		"total_budget":          reward * 100,
		"instructions": map[string]interface{}{
			"description": "Calculate 2+2+2+2",
			"format":      "Return the numeric answer",
		},
		"verification_criteria": map[string]interface{}{
			"correct_answer": 8,
		},
	}
	if maxSubmissions > 0 {
		t["max_submissions"] = maxSubmissions
	}
	return t
}

var CorrectAnswer = map[string]interface{}{"answer": 8}
