// Package mcp exposes the mining pipeline as MCP tools so agents can list
// tasks, submit work and read back verdicts and reputation.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/proofmine/internal/auth"
	"github.com/hazyhaar/proofmine/internal/db"
	"github.com/hazyhaar/proofmine/internal/submission"
	"github.com/hazyhaar/proofmine/pkg/audit"
)

type tools struct {
	store    db.Store
	manager  *submission.Manager
	auditLog audit.Logger
}

// NewServer creates an MCPServer with the proofmine tools registered.
func NewServer(store db.Store, manager *submission.Manager, auditLog audit.Logger, version string) *server.MCPServer {
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	srv := server.NewMCPServer(
		"proofmine",
		version,
		server.WithToolCapabilities(true),
	)
	t := &tools{store: store, manager: manager, auditLog: auditLog}

	addTool(srv, "list_tasks", "List active tasks open for submissions", map[string]any{
		"limit":  map[string]any{"type": "integer", "description": "Max results", "default": 50},
		"offset": map[string]any{"type": "integer", "description": "Results to skip", "default": 0},
	}, nil, t.listTasks)

	addTool(srv, "get_task", "Get one task with its instructions and verification criteria", map[string]any{
		"task_id": map[string]string{"type": "string", "description": "Task ID"},
	}, []string{"task_id"}, t.getTask)

	addTool(srv, "submit_work", "Submit work for a task; it is verified by the AI judge before the call returns", map[string]any{
		"wallet_address":  map[string]string{"type": "string", "description": "Miner wallet address"},
		"task_id":         map[string]string{"type": "string", "description": "Task ID"},
		"submission_data": map[string]string{"type": "string", "description": "Submission payload as a JSON object"},
	}, []string{"wallet_address", "task_id", "submission_data"}, t.submitWork)

	addTool(srv, "get_submission", "Get a submission with its verdict, score and reward", map[string]any{
		"submission_id": map[string]string{"type": "string", "description": "Submission ID"},
	}, []string{"submission_id"}, t.getSubmission)

	addTool(srv, "get_reputation", "Get a miner's reputation score and totals", map[string]any{
		"wallet_address": map[string]string{"type": "string", "description": "Miner wallet address"},
	}, []string{"wallet_address"}, t.getReputation)

	return srv
}

type toolFunc func(ctx context.Context, args map[string]any) (any, error)

func addTool(srv *server.MCPServer, name, desc string, props map[string]any, required []string, fn toolFunc) {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	raw, _ := json.Marshal(schema)
	srv.AddTool(mcp.NewToolWithRawSchema(name, desc, raw), handler(name, fn))
}

func handler(name string, fn toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = audit.WithTransport(ctx, "mcp")
		out, err := fn(ctx, req.GetArguments())
		if err != nil {
			slog.Debug("mcp tool failed", "tool", name, "error", err)
			return mcp.NewToolResultError(fmt.Sprintf("%s: %v", name, err)), nil
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s: encoding result: %v", name, err)), nil
		}
		return mcp.NewToolResultText(string(b)), nil
	}
}

func (t *tools) listTasks(ctx context.Context, args map[string]any) (any, error) {
	tasks, err := t.store.ListActiveTasks(ctx, intArg(args, "limit", 50), intArg(args, "offset", 0))
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []*db.Task{}
	}
	return tasks, nil
}

func (t *tools) getTask(ctx context.Context, args map[string]any) (any, error) {
	id := stringArg(args, "task_id")
	if id == "" {
		return nil, errors.New("task_id is required")
	}
	return t.store.GetTask(ctx, id)
}

type submitWorkResult struct {
	Submission *db.Submission      `json:"submission"`
	Reputation *db.ReputationEvent `json:"reputation,omitempty"`
	Error      string              `json:"error,omitempty"`
}

func (t *tools) submitWork(ctx context.Context, args map[string]any) (any, error) {
	wallet, err := auth.NormalizeWallet(stringArg(args, "wallet_address"))
	if err != nil {
		return nil, err
	}
	taskID := stringArg(args, "task_id")
	if taskID == "" {
		return nil, errors.New("task_id is required")
	}
	data, err := objectArg(args, "submission_data")
	if err != nil {
		return nil, err
	}

	user, err := t.store.GetOrCreateUser(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return audit.Track(ctx, t.auditLog, "submit_work", user.ID, taskID, map[string]any{"task_id": taskID},
		func(ctx context.Context) (*submitWorkResult, error) {
			out, err := t.manager.Submit(ctx, submission.Input{TaskID: taskID, UserID: user.ID, Data: data})
			if out == nil {
				return nil, err
			}
			res := &submitWorkResult{Submission: out.Submission, Reputation: out.Reputation}
			if out.Failed() {
				res.Error = out.Err.Error()
			}
			return res, nil
		})
}

func (t *tools) getSubmission(ctx context.Context, args map[string]any) (any, error) {
	id := stringArg(args, "submission_id")
	if id == "" {
		return nil, errors.New("submission_id is required")
	}
	return t.store.GetSubmission(ctx, id)
}

func (t *tools) getReputation(ctx context.Context, args map[string]any) (any, error) {
	wallet, err := auth.NormalizeWallet(stringArg(args, "wallet_address"))
	if err != nil {
		return nil, err
	}
	u, err := t.store.GetUserByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"wallet_address":        u.WalletAddress,
		"reputation_score":      u.ReputationScore,
		"total_tasks_completed": u.TotalTasksCompleted,
		"total_rewards_earned":  u.TotalRewardsEarned,
	}, nil
}

// --- helpers ---

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return def
	}
}

// objectArg accepts either a JSON object or a string holding one.
func objectArg(args map[string]any, key string) (map[string]any, error) {
	switch v := args[key].(type) {
	case map[string]any:
		return v, nil
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("%s must be a JSON object: %w", key, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%s is required", key)
	}
}
