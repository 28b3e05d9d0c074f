package db

// Timestamps are stored as unix milliseconds.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id                     TEXT PRIMARY KEY,
    wallet_address         TEXT UNIQUE NOT NULL,
    username               TEXT NOT NULL,
    reputation_score       INTEGER NOT NULL DEFAULT 50 CHECK(reputation_score BETWEEN 0 AND 100),
    total_tasks_completed  INTEGER NOT NULL DEFAULT 0,
    total_rewards_earned   REAL NOT NULL DEFAULT 0,
    created_at             INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
    id                       TEXT PRIMARY KEY,
    developer_id             TEXT NOT NULL REFERENCES users(id),
    title                    TEXT NOT NULL,
    description              TEXT NOT NULL,
    task_type                TEXT NOT NULL CHECK(task_type IN ('evaluation','prediction','code_execution','classification','annotation','human_review')),
    difficulty               TEXT NOT NULL DEFAULT 'medium' CHECK(difficulty IN ('easy','medium','hard')),
    reward_per_submission    REAL NOT NULL,
    total_budget             REAL NOT NULL,
    max_submissions          INTEGER,
    verification_criteria    TEXT NOT NULL DEFAULT '{}',
    instructions             TEXT NOT NULL DEFAULT '{}',
    status                   TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active','closed')),
    current_submission_count INTEGER NOT NULL DEFAULT 0,
    created_at               INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status, created_at);

CREATE TABLE IF NOT EXISTS submissions (
    id                   TEXT PRIMARY KEY,
    task_id              TEXT NOT NULL REFERENCES tasks(id),
    user_id              TEXT NOT NULL REFERENCES users(id),
    submission_data      TEXT NOT NULL DEFAULT '{}',
    status               TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending','completed','failed')),
    ai_score             REAL,
    is_valid             INTEGER CHECK(is_valid IN (0, 1)),
    feedback             TEXT,
    reward_earned        REAL NOT NULL DEFAULT 0,
    model_used           TEXT,
    verification_time_ms INTEGER,
    verification_mode    TEXT,
    created_at           INTEGER NOT NULL,
    verified_at          INTEGER,
    CHECK ((ai_score IS NULL) = (is_valid IS NULL))
);
CREATE INDEX IF NOT EXISTS idx_submissions_task ON submissions(task_id, created_at);
CREATE INDEX IF NOT EXISTS idx_submissions_user ON submissions(user_id);
CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);

CREATE TABLE IF NOT EXISTS reputation_events (
    id            TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL REFERENCES users(id),
    submission_id TEXT NOT NULL,
    event_type    TEXT NOT NULL CHECK(event_type IN ('submission_accepted','submission_rejected')),
    reason        TEXT NOT NULL DEFAULT '',
    delta         INTEGER NOT NULL,
    old_score     INTEGER NOT NULL,
    new_score     INTEGER NOT NULL,
    created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reputation_events_user ON reputation_events(user_id, created_at);
`
