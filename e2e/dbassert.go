// CLAUDE:SUMMARY Direct SQLite assertion helpers for E2E tests — read-only checks on the proofmine store and metrics ledger
package e2e

import (
	"database/sql"
	"fmt"
	"sync"
	"testing"

	_ "modernc.org/sqlite"
)

// DBAssert provides direct SQLite assertions on the databases.
// It keeps persistent connections to avoid file descriptor exhaustion.
type DBAssert struct {
	storePath   string
	metricsPath string

	mu          sync.Mutex
	storeConn   *sql.DB
	metricsConn *sql.DB
}

func NewDBAssert(storeDB, metricsDB string) *DBAssert {
	return &DBAssert{storePath: storeDB, metricsPath: metricsDB}
}

// Close releases persistent connections.
func (d *DBAssert) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range []*sql.DB{d.storeConn, d.metricsConn} {
		if c != nil {
			c.Close()
		}
	}
	d.storeConn, d.metricsConn = nil, nil
}

func (d *DBAssert) open(conn **sql.DB, path string) (*sql.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if *conn != nil {
		return *conn, nil
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	*conn = db
	return db, nil
}

func (d *DBAssert) store(t *testing.T) *sql.DB {
	t.Helper()
	db, err := d.open(&d.storeConn, d.storePath)
	if err != nil {
		t.Fatalf("opening proofmine.db: %v", err)
	}
	return db
}

// SubmissionField returns one column of a submission row.
func (d *DBAssert) SubmissionField(t *testing.T, submissionID, field string) interface{} {
	t.Helper()
	var v interface{}
	q := fmt.Sprintf(`SELECT %s FROM submissions WHERE id = ?`, field)
	if err := d.store(t).QueryRow(q, submissionID).Scan(&v); err != nil {
		t.Fatalf("querying submission %s field %s: %v", submissionID, field, err)
	}
	return v
}

// AssertSubmissionStatus verifies the stored lifecycle state.
func (d *DBAssert) AssertSubmissionStatus(t *testing.T, submissionID, want string) {
	t.Helper()
	got := fmt.Sprintf("%v", d.SubmissionField(t, submissionID, "status"))
	if got != want {
		t.Errorf("submission %s status = %s, want %s", submissionID, got, want)
	}
}

// AssertTaskCount verifies current_submission_count on a task.
func (d *DBAssert) AssertTaskCount(t *testing.T, taskID string, want int) {
	t.Helper()
	var got int
	if err := d.store(t).QueryRow(`SELECT current_submission_count FROM tasks WHERE id = ?`, taskID).Scan(&got); err != nil {
		t.Fatalf("querying task %s: %v", taskID, err)
	}
	if got != want {
		t.Errorf("task %s current_submission_count = %d, want %d", taskID, got, want)
	}
}

// CountReputationEvents counts the events recorded for a submission.
func (d *DBAssert) CountReputationEvents(t *testing.T, submissionID string) int {
	t.Helper()
	var n int
	if err := d.store(t).QueryRow(`SELECT COUNT(*) FROM reputation_events WHERE submission_id = ?`, submissionID).Scan(&n); err != nil {
		t.Fatalf("counting reputation events: %v", err)
	}
	return n
}

// CountAudit counts audit entries for an action and subject.
func (d *DBAssert) CountAudit(t *testing.T, action, subjectID string) int {
	t.Helper()
	var n int
	err := d.store(t).QueryRow(`SELECT COUNT(*) FROM audit_log WHERE action = ? AND subject_id = ?`, action, subjectID).Scan(&n)
	if err != nil {
		t.Fatalf("counting audit entries: %v", err)
	}
	return n
}

// CountHTTPRequests counts ledger rows for a route pattern.
func (d *DBAssert) CountHTTPRequests(t *testing.T, route string) int {
	t.Helper()
	db, err := d.open(&d.metricsConn, d.metricsPath)
	if err != nil {
		t.Fatalf("opening metrics.db: %v", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM http_requests WHERE path = ?`, route).Scan(&n); err != nil {
		t.Fatalf("counting http requests: %v", err)
	}
	return n
}
