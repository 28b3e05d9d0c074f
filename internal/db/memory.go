// CLAUDE:SUMMARY In-memory store — single RWMutex over all collections, used by tests and the "memory" driver
package db

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps everything in process memory. One mutex guards all
// collections so multi-record transitions are atomic.
type MemoryStore struct {
	mu          sync.RWMutex
	tasks       map[string]Task
	taskOrder   []string
	users       map[string]User
	byWallet    map[string]string
	submissions map[string]Submission
	subOrder    []string
	events      []ReputationEvent
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:       make(map[string]Task),
		users:       make(map[string]User),
		byWallet:    make(map[string]string),
		submissions: make(map[string]Submission),
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
func (m *MemoryStore) Close() error                   { return nil }

func (m *MemoryStore) CreateTask(ctx context.Context, t *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = NewID()
	t.Status = TaskStatusActive
	t.CurrentSubmissionCount = 0
	t.CreatedAt = time.Now().UTC()
	m.tasks[t.ID] = cloneTask(*t)
	m.taskOrder = append(m.taskOrder, t.ID)
	return nil
}

func (m *MemoryStore) GetTask(ctx context.Context, id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneTask(t)
	return &out, nil
}

func (m *MemoryStore) ListActiveTasks(ctx context.Context, limit, offset int) ([]*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit = clampLimit(limit, 50, 200)
	var out []*Task
	skipped := 0
	for _, id := range slices.Backward(m.taskOrder) {
		t := m.tasks[id]
		if t.Status != TaskStatusActive {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		c := cloneTask(t)
		out = append(out, &c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateTaskStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	m.tasks[id] = t
	return nil
}

func (m *MemoryStore) GetOrCreateUser(ctx context.Context, wallet string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byWallet[wallet]; ok {
		u := m.users[id]
		return &u, nil
	}
	u := User{
		ID:              NewID(),
		WalletAddress:   wallet,
		Username:        usernameFor(wallet),
		ReputationScore: DefaultReputation,
		CreatedAt:       time.Now().UTC(),
	}
	m.users[u.ID] = u
	m.byWallet[wallet] = u.ID
	return &u, nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) GetUserByWallet(ctx context.Context, wallet string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byWallet[wallet]
	if !ok {
		return nil, ErrNotFound
	}
	u := m.users[id]
	return &u, nil
}

func (m *MemoryStore) CreateSubmission(ctx context.Context, s *Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[s.TaskID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m.users[s.UserID]; !ok {
		return ErrNotFound
	}
	if task.MaxSubmissions != nil && task.CurrentSubmissionCount+m.pendingFor(task.ID) >= *task.MaxSubmissions {
		return ErrTaskFull
	}
	resetPending(s)
	if _, exists := m.submissions[s.ID]; exists {
		return ErrConflict
	}
	m.submissions[s.ID] = cloneSubmission(*s)
	m.subOrder = append(m.subOrder, s.ID)
	return nil
}

// pendingFor counts the task's pending submissions. Callers hold m.mu.
func (m *MemoryStore) pendingFor(taskID string) int {
	n := 0
	for _, sub := range m.submissions {
		if sub.TaskID == taskID && sub.Status == SubmissionPending {
			n++
		}
	}
	return n
}

func (m *MemoryStore) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.submissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneSubmission(s)
	return &out, nil
}

func (m *MemoryStore) ListSubmissions(ctx context.Context, f SubmissionFilter) ([]*Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit := clampLimit(f.Limit, 50, 500)
	var out []*Submission
	skipped := 0
	for _, id := range m.subOrder {
		s := m.submissions[id]
		if (f.TaskID != "" && s.TaskID != f.TaskID) ||
			(f.UserID != "" && s.UserID != f.UserID) ||
			(f.Status != "" && s.Status != f.Status) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		c := cloneSubmission(s)
		out = append(out, &c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) CompleteSubmission(ctx context.Context, c Completion) (*Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.pendingLocked(c.SubmissionID)
	if err != nil {
		return nil, err
	}

	s.Status = SubmissionCompleted
	s.AIScore = ptr(c.AIScore)
	s.IsValid = ptr(c.IsValid)
	s.Feedback = ptr(c.Feedback)
	s.RewardEarned = c.RewardEarned
	s.ModelUsed = ptr(c.ModelUsed)
	s.VerificationTimeMs = ptr(c.VerificationTimeMs)
	s.VerificationMode = ptr(c.VerificationMode)
	s.VerifiedAt = ptr(c.VerifiedAt.UTC())
	m.submissions[s.ID] = s

	if t, ok := m.tasks[s.TaskID]; ok {
		t.CurrentSubmissionCount++
		m.tasks[t.ID] = t
	}
	if u, ok := m.users[s.UserID]; ok {
		u.TotalTasksCompleted++
		u.TotalRewardsEarned += c.RewardEarned
		m.users[u.ID] = u
	}
	out := cloneSubmission(s)
	return &out, nil
}

func (m *MemoryStore) FailSubmission(ctx context.Context, f Failure) (*Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.pendingLocked(f.SubmissionID)
	if err != nil {
		return nil, err
	}

	s.Status = SubmissionFailed
	s.AIScore = ptr(0.0)
	s.IsValid = ptr(false)
	s.Feedback = ptr(f.Feedback)
	s.RewardEarned = 0
	s.VerificationMode = ptr(f.VerificationMode)
	s.VerifiedAt = ptr(f.VerifiedAt.UTC())
	m.submissions[s.ID] = s

	out := cloneSubmission(s)
	return &out, nil
}

func (m *MemoryStore) pendingLocked(id string) (Submission, error) {
	s, ok := m.submissions[id]
	if !ok {
		return Submission{}, ErrNotFound
	}
	if s.Status != SubmissionPending {
		return Submission{}, ErrAlreadyTerminal
	}
	return s, nil
}

func (m *MemoryStore) ApplyReputation(ctx context.Context, c ReputationChange) (*ReputationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[c.UserID]
	if !ok {
		return nil, ErrNotFound
	}
	ev := newEvent(c, u.ReputationScore)
	u.ReputationScore = ev.NewScore
	m.users[u.ID] = u
	m.events = append(m.events, *ev)
	return ev, nil
}

func (m *MemoryStore) ListReputationEvents(ctx context.Context, userID string, limit, offset int) ([]*ReputationEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit = clampLimit(limit, 50, 500)
	var out []*ReputationEvent
	skipped := 0
	for _, ev := range slices.Backward(m.events) {
		if ev.UserID != userID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		e := ev
		out = append(out, &e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func cloneTask(t Task) Task {
	t.VerificationCriteria = maps.Clone(t.VerificationCriteria)
	t.Instructions = maps.Clone(t.Instructions)
	if t.MaxSubmissions != nil {
		t.MaxSubmissions = ptr(*t.MaxSubmissions)
	}
	return t
}

func cloneSubmission(s Submission) Submission {
	s.SubmissionData = maps.Clone(s.SubmissionData)
	return s
}

func ptr[T any](v T) *T { return &v }
