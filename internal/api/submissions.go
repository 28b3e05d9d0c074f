// CLAUDE:SUMMARY Submission handlers — submit and verify synchronously, re-drive pending, get and list submissions
package api

import (
	"net/http"

	"github.com/hazyhaar/proofmine/internal/auth"
	"github.com/hazyhaar/proofmine/internal/db"
	"github.com/hazyhaar/proofmine/internal/submission"
	"github.com/hazyhaar/proofmine/internal/verify"
)

type submitRequest struct {
	SubmissionData map[string]any `json:"submission_data"`
}

// submitResponse is returned once the submission reached a terminal state.
type submitResponse struct {
	Submission   *db.Submission      `json:"submission"`
	Verification *verify.Result      `json:"verification,omitempty"`
	Reputation   *db.ReputationEvent `json:"reputation,omitempty"`
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req submitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.SubmissionData) == 0 {
		jsonError(w, "submission_data is required", http.StatusUnprocessableEntity)
		return
	}

	out, err := a.manager.Submit(r.Context(), submission.Input{
		TaskID: r.PathValue("task_id"),
		UserID: id.UserID,
		Data:   req.SubmissionData,
	})
	a.writeOutcome(w, out, err, http.StatusCreated, "task")
}

// handleVerifySubmission drives a submission left pending. Only its miner
// may trigger it.
func (a *API) handleVerifySubmission(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	subID := r.PathValue("submission_id")

	sub, err := a.store.GetSubmission(r.Context(), subID)
	if err != nil {
		storeError(w, err, "submission")
		return
	}
	if sub.UserID != id.UserID {
		jsonError(w, "not your submission", http.StatusForbidden)
		return
	}
	out, err := a.manager.Verify(r.Context(), subID)
	a.writeOutcome(w, out, err, http.StatusOK, "submission")
}

// writeOutcome renders a lifecycle outcome. A failed verification is still
// a terminal state the miner needs to see, so it carries the submission.
func (a *API) writeOutcome(w http.ResponseWriter, out *submission.Outcome, err error, okStatus int, what string) {
	if out == nil {
		storeError(w, err, what)
		return
	}
	if out.Failed() {
		jsonResp(w, http.StatusBadGateway, map[string]interface{}{
			"error":         out.Err.Error(),
			"submission_id": out.Submission.ID,
			"submission":    out.Submission,
			"reputation":    out.Reputation,
		})
		return
	}
	// err with a non-nil outcome means the terminal write landed but the
	// reputation step did not; the submission itself is final.
	jsonResp(w, okStatus, submitResponse{
		Submission:   out.Submission,
		Verification: out.Result,
		Reputation:   out.Reputation,
	})
}

func (a *API) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := a.store.GetSubmission(r.Context(), r.PathValue("submission_id"))
	if err != nil {
		storeError(w, err, "submission")
		return
	}
	if sub.TaskID != r.PathValue("task_id") {
		jsonError(w, "submission not found", http.StatusNotFound)
		return
	}
	jsonResp(w, http.StatusOK, sub)
}

func (a *API) handleListTaskSubmissions(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	if _, err := a.store.GetTask(r.Context(), taskID); err != nil {
		storeError(w, err, "task")
		return
	}
	a.listSubmissions(w, r, db.SubmissionFilter{
		TaskID: taskID,
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	})
}

func (a *API) handleListPending(w http.ResponseWriter, r *http.Request) {
	a.listSubmissions(w, r, db.SubmissionFilter{
		Status: db.SubmissionPending,
		Limit:  queryInt(r, "limit", 50),
	})
}

func (a *API) listSubmissions(w http.ResponseWriter, r *http.Request, f db.SubmissionFilter) {
	subs, err := a.store.ListSubmissions(r.Context(), f)
	if err != nil {
		storeError(w, err, "submissions")
		return
	}
	if subs == nil {
		subs = []*db.Submission{}
	}
	jsonResp(w, http.StatusOK, subs)
}
