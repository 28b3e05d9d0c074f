// CLAUDE:SUMMARY Domain records — tasks, miners, submissions and reputation events shared by every storage backend
package db

import "time"

const (
	TaskStatusActive = "active"
	TaskStatusClosed = "closed"

	SubmissionPending   = "pending"
	SubmissionCompleted = "completed"
	SubmissionFailed    = "failed"

	EventSubmissionAccepted = "submission_accepted"
	EventSubmissionRejected = "submission_rejected"

	DefaultReputation = 50
	MinReputation     = 0
	MaxReputation     = 100
)

var TaskTypes = []string{"evaluation", "prediction", "code_execution", "classification", "annotation", "human_review"}

var Difficulties = []string{"easy", "medium", "hard"}

// Task is a unit of work posted by a developer.
type Task struct {
	ID                     string         `json:"id"`
	DeveloperID            string         `json:"developer_id"`
	Title                  string         `json:"title"`
	Description            string         `json:"description"`
	TaskType               string         `json:"task_type"`
	Difficulty             string         `json:"difficulty"`
	RewardPerSubmission    float64        `json:"reward_per_submission"`
	TotalBudget            float64        `json:"total_budget"`
	MaxSubmissions         *int           `json:"max_submissions,omitempty"`
	VerificationCriteria   map[string]any `json:"verification_criteria"`
	Instructions           map[string]any `json:"instructions"`
	Status                 string         `json:"status"`
	CurrentSubmissionCount int            `json:"current_submission_count"`
	CreatedAt              time.Time      `json:"created_at"`
}

// User is a miner or developer identified by wallet address.
type User struct {
	ID                  string    `json:"id"`
	WalletAddress       string    `json:"wallet_address"`
	Username            string    `json:"username"`
	ReputationScore     int       `json:"reputation_score"`
	TotalTasksCompleted int       `json:"total_tasks_completed"`
	TotalRewardsEarned  float64   `json:"total_rewards_earned"`
	CreatedAt           time.Time `json:"created_at"`
}

// Submission is one miner's answer to a task. AIScore and IsValid are
// both nil while pending and both set once terminal.
type Submission struct {
	ID                 string         `json:"id"`
	TaskID             string         `json:"task_id"`
	UserID             string         `json:"user_id"`
	SubmissionData     map[string]any `json:"submission_data"`
	Status             string         `json:"status"`
	AIScore            *float64       `json:"ai_score"`
	IsValid            *bool          `json:"is_valid"`
	Feedback           *string        `json:"feedback,omitempty"`
	RewardEarned       float64        `json:"reward_earned"`
	ModelUsed          *string        `json:"model_used,omitempty"`
	VerificationTimeMs *int64         `json:"verification_time_ms,omitempty"`
	VerificationMode   *string        `json:"verification_mode,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	VerifiedAt         *time.Time     `json:"verified_at,omitempty"`
}

func (s *Submission) Terminal() bool { return s.Status != SubmissionPending }

// ReputationEvent is an append-only audit record of one reputation change.
// Delta is the requested change; OldScore and NewScore record its clamped
// effect.
type ReputationEvent struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	SubmissionID string    `json:"submission_id"`
	EventType    string    `json:"event_type"`
	Reason       string    `json:"reason"`
	Delta        int       `json:"delta"`
	OldScore     int       `json:"old_score"`
	NewScore     int       `json:"new_score"`
	CreatedAt    time.Time `json:"created_at"`
}

// SubmissionFilter narrows ListSubmissions. Empty fields match everything.
type SubmissionFilter struct {
	TaskID string
	UserID string
	Status string
	Limit  int
	Offset int
}

// Completion is the terminal write for a successfully verified submission.
type Completion struct {
	SubmissionID       string
	AIScore            float64
	IsValid            bool
	Feedback           string
	RewardEarned       float64
	ModelUsed          string
	VerificationTimeMs int64
	VerificationMode   string
	VerifiedAt         time.Time
}

// Failure is the terminal write for a submission whose verification failed.
type Failure struct {
	SubmissionID     string
	Feedback         string
	VerificationMode string
	VerifiedAt       time.Time
}

// ReputationChange is one requested adjustment. Next maps the current
// score to the new one; callers pass their clamping rule.
type ReputationChange struct {
	UserID       string
	SubmissionID string
	EventType    string
	Reason       string
	Delta        int
	Next         func(old int) int
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func usernameFor(wallet string) string {
	if len(wallet) > 8 {
		wallet = wallet[:8]
	}
	return "miner_" + wallet
}
