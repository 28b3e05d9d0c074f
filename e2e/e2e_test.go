package e2e

import (
	"os"
	"sync"
	"testing"
)

// harness and dba are shared by all tests and started by the first test
// that calls ensureHarness.
var (
	harness     *TestHarness
	dba         *DBAssert
	harnessOnce sync.Once
)

func ensureHarness(t *testing.T) (*TestHarness, *DBAssert) {
	t.Helper()
	harnessOnce.Do(func() {
		harness = NewHarness(t)
		dba = NewDBAssert(harness.StoreDB, harness.MetricsDB)
	})
	if harness == nil {
		t.Fatal("harness initialization failed")
	}
	return harness, dba
}

func TestMain(m *testing.M) {
	exitCode := m.Run()

	if dba != nil {
		dba.Close()
	}
	if harness != nil {
		harness.Stop()
	}
	os.Exit(exitCode)
}
