// CLAUDE:SUMMARY Task handlers — create with validation, list active, get by id, close by owning developer
package api

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/proofmine/internal/auth"
	"github.com/hazyhaar/proofmine/internal/db"
)

type createTaskRequest struct {
	Title                string         `json:"title"`
	Description          string         `json:"description"`
	TaskType             string         `json:"task_type"`
	Difficulty           string         `json:"difficulty"`
	RewardPerSubmission  float64        `json:"reward_per_submission"`
	TotalBudget          float64        `json:"total_budget"`
	MaxSubmissions       *int           `json:"max_submissions"`
	VerificationCriteria map[string]any `json:"verification_criteria"`
	Instructions         map[string]any `json:"instructions"`
}

var errInvalidTask = errors.New("invalid task")

func (req *createTaskRequest) validate() error {
	req.Title = strings.TrimSpace(req.Title)
	if n := utf8.RuneCountInString(req.Title); n < 5 || n > 200 {
		return fmt.Errorf("%w: title must be between 5 and 200 characters", errInvalidTask)
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.Description)) < 20 {
		return fmt.Errorf("%w: description must be at least 20 characters", errInvalidTask)
	}
	if !slices.Contains(db.TaskTypes, req.TaskType) {
		return fmt.Errorf("%w: task_type must be one of %s", errInvalidTask, strings.Join(db.TaskTypes, ", "))
	}
	if req.Difficulty == "" {
		req.Difficulty = "medium"
	}
	if !slices.Contains(db.Difficulties, req.Difficulty) {
		return fmt.Errorf("%w: difficulty must be one of %s", errInvalidTask, strings.Join(db.Difficulties, ", "))
	}
	if req.RewardPerSubmission <= 0 {
		return fmt.Errorf("%w: reward_per_submission must be positive", errInvalidTask)
	}
	if req.TotalBudget <= 0 {
		return fmt.Errorf("%w: total_budget must be positive", errInvalidTask)
	}
	if req.MaxSubmissions != nil && *req.MaxSubmissions <= 0 {
		return fmt.Errorf("%w: max_submissions must be positive when set", errInvalidTask)
	}
	return nil
}

func (a *API) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req createTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	t := &db.Task{
		DeveloperID:          id.UserID,
		Title:                req.Title,
		Description:          req.Description,
		TaskType:             req.TaskType,
		Difficulty:           req.Difficulty,
		RewardPerSubmission:  req.RewardPerSubmission,
		TotalBudget:          req.TotalBudget,
		MaxSubmissions:       req.MaxSubmissions,
		VerificationCriteria: req.VerificationCriteria,
		Instructions:         req.Instructions,
	}
	if err := a.store.CreateTask(r.Context(), t); err != nil {
		storeError(w, err, "task")
		return
	}
	jsonResp(w, http.StatusCreated, t)
}

func (a *API) handleListTasks(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	tasks, err := a.store.ListActiveTasks(r.Context(), limit, offset)
	if err != nil {
		storeError(w, err, "tasks")
		return
	}
	if tasks == nil {
		tasks = []*db.Task{}
	}
	jsonResp(w, http.StatusOK, tasks)
}

func (a *API) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := a.store.GetTask(r.Context(), r.PathValue("task_id"))
	if err != nil {
		storeError(w, err, "task")
		return
	}
	jsonResp(w, http.StatusOK, t)
}

func (a *API) handleCloseTask(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	taskID := r.PathValue("task_id")

	t, err := a.store.GetTask(r.Context(), taskID)
	if err != nil {
		storeError(w, err, "task")
		return
	}
	if t.DeveloperID != id.UserID {
		jsonError(w, "only the task's developer can close it", http.StatusForbidden)
		return
	}
	if err := a.store.UpdateTaskStatus(r.Context(), taskID, db.TaskStatusClosed); err != nil {
		storeError(w, err, "task")
		return
	}
	t.Status = db.TaskStatusClosed
	jsonResp(w, http.StatusOK, t)
}
