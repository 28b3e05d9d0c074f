package e2e

import (
	"net/http"
	"testing"
	"time"
)

func TestSubmissionPipeline(t *testing.T) {
	h, db := ensureHarness(t)
	devTok := h.Token(t, Wallets.Developer)
	aliceTok := h.Token(t, Wallets.Alice)

	taskID := h.CreateTask(t, devTok, ArithmeticTask(10, 0))

	resp, out := h.Submit(t, aliceTok, taskID, CorrectAnswer)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d: %v", resp.StatusCode, out)
	}
	sub := out["submission"].(map[string]interface{})
	subID := sub["id"].(string)

	t.Run("Terminal_State_Persisted", func(t *testing.T) {
		db.AssertSubmissionStatus(t, subID, "completed")
		db.AssertTaskCount(t, taskID, 1)
		if n := db.CountReputationEvents(t, subID); n != 1 {
			t.Errorf("reputation events for %s = %d, want 1", subID, n)
		}
	})

	t.Run("Reward_Is_Score_Times_Rate", func(t *testing.T) {
		score, _ := sub["ai_score"].(float64)
		reward, _ := sub["reward_earned"].(float64)
		if diff := reward - 10*score; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("reward %v != 10 * %v", reward, score)
		}
	})

	t.Run("Reverify_Conflicts", func(t *testing.T) {
		resp, err := h.Do("POST", "/submissions/"+subID+"/verify", nil, aliceTok)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		RequireStatus(t, resp, http.StatusConflict)
		if n := db.CountReputationEvents(t, subID); n != 1 {
			t.Errorf("re-verify added reputation events: %d", n)
		}
	})

	t.Run("Audit_Trail", func(t *testing.T) {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if db.CountAudit(t, "submission.completed", subID) == 1 {
				return
			}
			time.Sleep(100 * time.Millisecond)
		}
		t.Errorf("no submission.completed audit entry for %s", subID)
	})

	t.Run("Request_Ledger", func(t *testing.T) {
		if n := db.CountHTTPRequests(t, "POST /tasks/{task_id}/submit"); n == 0 {
			t.Error("submit request missing from metrics.db")
		}
	})
}

func TestReputationEndpoint(t *testing.T) {
	h, _ := ensureHarness(t)
	devTok := h.Token(t, Wallets.Developer)
	bobTok := h.Token(t, Wallets.Bob)

	taskID := h.CreateTask(t, devTok, ArithmeticTask(5, 0))
	resp, out := h.Submit(t, bobTok, taskID, CorrectAnswer)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d: %v", resp.StatusCode, out)
	}

	var rep map[string]interface{}
	resp, err := h.JSON("GET", "/users/"+Wallets.Bob+"/reputation", nil, "", &rep)
	if err != nil {
		t.Fatal(err)
	}
	RequireStatus(t, resp, http.StatusOK)
	if rep["total_tasks_completed"].(float64) != 1 {
		t.Errorf("total_tasks_completed = %v, want 1", rep["total_tasks_completed"])
	}
	score := rep["reputation_score"].(float64)
	if score != 55 && score != 48 {
		t.Errorf("reputation_score = %v, want 55 (accepted) or 48 (rejected)", score)
	}
}

func TestTaskLimits(t *testing.T) {
	h, _ := ensureHarness(t)
	devTok := h.Token(t, Wallets.Developer)
	aliceTok := h.Token(t, Wallets.Alice)

	taskID := h.CreateTask(t, devTok, ArithmeticTask(1, 1))
	resp, _ := h.Submit(t, aliceTok, taskID, CorrectAnswer)
	RequireStatus(t, resp, http.StatusCreated)

	resp, _ = h.Submit(t, aliceTok, taskID, CorrectAnswer)
	RequireStatus(t, resp, http.StatusConflict)

	closed := h.CreateTask(t, devTok, ArithmeticTask(1, 0))
	resp, err := h.Do("POST", "/tasks/"+closed+"/close", nil, aliceTok)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	RequireStatus(t, resp, http.StatusForbidden)

	resp, err = h.Do("POST", "/tasks/"+closed+"/close", nil, devTok)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	RequireStatus(t, resp, http.StatusOK)

	resp, _ = h.Submit(t, aliceTok, closed, CorrectAnswer)
	RequireStatus(t, resp, http.StatusConflict)
}
