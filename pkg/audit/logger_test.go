package audit

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openLogger(t *testing.T) (*SQLiteLogger, *sql.DB) {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "audit.db")+"?_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	l := NewSQLiteLogger(sqlDB)
	require.NoError(t, l.Init())
	t.Cleanup(func() { sqlDB.Close() })
	return l, sqlDB
}

func TestSQLiteLogger_LogAsyncFlushesOnClose(t *testing.T) {
	l, _ := openLogger(t)

	for i := 0; i < 40; i++ {
		l.LogAsync(&Entry{Action: "submission.completed", SubjectID: "sub-1"})
	}
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "close is idempotent")

	entries, err := l.Recent(context.Background(), "sub-1", 100)
	require.NoError(t, err)
	assert.Len(t, entries, 40)
	assert.Equal(t, "success", entries[0].Status)
	assert.Equal(t, "http", entries[0].Transport)
}

func TestSQLiteLogger_LogAsyncAfterClose(t *testing.T) {
	l, _ := openLogger(t)
	require.NoError(t, l.Close())

	assert.NotPanics(t, func() {
		l.LogAsync(&Entry{Action: "submission.completed", SubjectID: "sub-late"})
	})

	entries, err := l.Recent(context.Background(), "sub-late", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSQLiteLogger_LogAsyncConcurrentWithClose(t *testing.T) {
	l, _ := openLogger(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.LogAsync(&Entry{Action: "submission.completed", SubjectID: "sub-race"})
			}
		}()
	}
	require.NoError(t, l.Close())
	wg.Wait()
}

func TestSQLiteLogger_LogSync(t *testing.T) {
	l, _ := openLogger(t)
	defer l.Close()

	ctx := context.Background()
	require.NoError(t, l.Log(ctx, &Entry{Action: "submission.failed", SubjectID: "sub-2", Error: "judge timeout"}))

	entries, err := l.Recent(ctx, "sub-2", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "error", entries[0].Status)
	assert.Equal(t, "judge timeout", entries[0].Error)
	assert.Contains(t, entries[0].EntryID, "aud_")
}

func TestTrack(t *testing.T) {
	l, _ := openLogger(t)
	ctx := WithTransport(context.Background(), "mcp")

	got, err := Track(ctx, l, "task.get", "u1", "task-9", map[string]string{"task_id": "task-9"},
		func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", got)

	_, err = Track(ctx, l, "task.get", "u1", "task-9", nil,
		func(context.Context) (int, error) { return 0, errors.New("boom") })
	assert.EqualError(t, err, "boom")

	require.NoError(t, l.Close())

	entries, err := l.Recent(context.Background(), "task-9", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	byStatus := map[string]*Entry{}
	for _, e := range entries {
		byStatus[e.Status] = e
		assert.Equal(t, "mcp", e.Transport)
	}
	require.Contains(t, byStatus, "success")
	assert.Equal(t, `{"task_id":"task-9"}`, byStatus["success"].Parameters)
	assert.Equal(t, `"ok"`, byStatus["success"].Result)
	require.Contains(t, byStatus, "error")
	assert.Equal(t, "boom", byStatus["error"].Error)
}

func TestTransportFromDefault(t *testing.T) {
	assert.Equal(t, "http", TransportFrom(context.Background()))
}
