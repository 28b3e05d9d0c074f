// CLAUDE:SUMMARY E2E test harness — spawns proofmine serve on a free port with a temp data dir, mock judge and dev tokens
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

// TestHarness manages a proofmine subprocess and provides HTTP helpers.
type TestHarness struct {
	BaseURL   string
	DataDir   string
	StoreDB   string
	MetricsDB string

	cmd    *exec.Cmd
	client *http.Client
}

// NewHarness writes a config, starts proofmine serve, and waits for health.
func NewHarness(t *testing.T) *TestHarness {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	// Manual cleanup: t.TempDir() would vanish when the first test ends,
	// while DBAssert keeps reading the files across tests.
	dataDir, err := os.MkdirTemp("", "proofmine-e2e-*")
	if err != nil {
		t.Fatalf("creating temp dir: %v", err)
	}
	storeDB := filepath.Join(dataDir, "proofmine.db")

	judgeMode := "mock"
	if HasAnthropic() {
		judgeMode = "live"
	}
	config := fmt.Sprintf(`[server]
addr = "127.0.0.1:%d"
submit_rate_limit = 1000

[database]
driver = "sqlite"
path = %q

[auth]
jwt_secret = "e2e-test-secret-key-proofmine"
token_expiry_min = 60
dev_tokens = true

[judge]
mode = %q
timeout_seconds = 60

[log]
level = "debug"
`, port, storeDB, judgeMode)

	configPath := filepath.Join(dataDir, "config.toml")
	if err := os.WriteFile(configPath, []byte(config), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	wd, _ := os.Getwd()
	binary, _ := filepath.Abs(filepath.Join(wd, "..", "proofmine"))
	if _, err := os.Stat(binary); os.IsNotExist(err) {
		t.Fatalf("binary not found at %s — run: CGO_ENABLED=0 go build -o proofmine .", binary)
	}

	cmd := exec.Command(binary, "serve", "--config", configPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Dir = dataDir
	if err := cmd.Start(); err != nil {
		t.Fatalf("starting proofmine: %v", err)
	}

	h := &TestHarness{
		BaseURL:   fmt.Sprintf("http://127.0.0.1:%d", port),
		DataDir:   dataDir,
		StoreDB:   storeDB,
		MetricsDB: filepath.Join(dataDir, "metrics.db"),
		cmd:       cmd,
		client:    &http.Client{Timeout: 90 * time.Second},
	}

	deadline := time.Now().Add(15 * time.Second)
	backoff := 100 * time.Millisecond
	for time.Now().Before(deadline) {
		resp, err := h.client.Get(h.BaseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				t.Logf("proofmine ready on port %d (judge %s)", port, judgeMode)
				return h
			}
		}
		time.Sleep(backoff)
		if backoff < 2*time.Second {
			backoff = backoff * 3 / 2
		}
	}

	h.Stop()
	t.Fatalf("proofmine did not become ready within 15s on port %d", port)
	return nil
}

// Stop sends SIGTERM, waits 5s, then SIGKILL. Cleans up the data directory.
func (h *TestHarness) Stop() {
	if h.cmd == nil || h.cmd.Process == nil {
		return
	}
	h.cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan error, 1)
	go func() { done <- h.cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		h.cmd.Process.Kill()
		<-done
	}

	if h.DataDir != "" {
		os.RemoveAll(h.DataDir)
	}
}

// Do executes an HTTP request and returns the response.
func (h *TestHarness) Do(method, path string, body interface{}, token string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, h.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return h.client.Do(req)
}

// JSON executes a request and decodes the JSON response into dst.
func (h *TestHarness) JSON(method, path string, body interface{}, token string, dst interface{}) (*http.Response, error) {
	resp, err := h.Do(method, path, body, token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, fmt.Errorf("reading body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))

	if dst != nil && len(data) > 0 {
		if err := json.Unmarshal(data, dst); err != nil {
			return resp, fmt.Errorf("decoding JSON (status %d, body: %s): %w", resp.StatusCode, truncate(string(data), 500), err)
		}
	}
	return resp, nil
}

// Token mints a dev token for a wallet.
func (h *TestHarness) Token(t *testing.T, wallet string) string {
	t.Helper()
	var result struct {
		Token string `json:"token"`
	}
	resp, err := h.JSON("POST", "/auth/token", map[string]string{"wallet_address": wallet}, "", &result)
	if err != nil {
		t.Fatalf("token for %s: %v", wallet, err)
	}
	RequireStatus(t, resp, http.StatusOK)
	return result.Token
}

// CreateTask posts a task and returns its ID.
func (h *TestHarness) CreateTask(t *testing.T, token string, task map[string]interface{}) string {
	t.Helper()
	var result map[string]interface{}
	resp, err := h.JSON("POST", "/tasks/create", task, token, &result)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	RequireStatus(t, resp, http.StatusCreated)
	return result["id"].(string)
}

// Submit posts a miner's answer and returns the decoded response.
func (h *TestHarness) Submit(t *testing.T, token, taskID string, data map[string]interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var result map[string]interface{}
	resp, err := h.JSON("POST", "/tasks/"+taskID+"/submit", map[string]interface{}{"submission_data": data}, token, &result)
	if err != nil {
		t.Fatalf("submit to %s: %v", taskID, err)
	}
	return resp, result
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// RequireStatus asserts the HTTP status code matches expected.
func RequireStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", expected, resp.StatusCode, truncate(string(body), 500))
	}
}

// HasAnthropic returns true if the Anthropic API key is set, in which case
// the harness runs the live judge.
func HasAnthropic() bool {
	return os.Getenv("ANTHROPIC_API_KEY") != "" || os.Getenv("CLAUDE_API_KEY") != ""
}
