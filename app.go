package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/proofmine/internal/api"
	"github.com/hazyhaar/proofmine/internal/auth"
	"github.com/hazyhaar/proofmine/internal/config"
	"github.com/hazyhaar/proofmine/internal/db"
	"github.com/hazyhaar/proofmine/internal/mcp"
	"github.com/hazyhaar/proofmine/internal/metrics"
	"github.com/hazyhaar/proofmine/internal/reward"
	"github.com/hazyhaar/proofmine/internal/submission"
	"github.com/hazyhaar/proofmine/internal/verify"
	"github.com/hazyhaar/proofmine/pkg/audit"
)

// app holds the process-wide collaborators shared by serve and mcp.
type app struct {
	cfg       *config.Config
	store     db.Store
	metricsDB *db.MetricsDB
	auditLog  audit.Logger
	verifier  verify.Verifier
	manager   *submission.Manager
	closers   []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("shutdown", "error", err)
		}
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	// stdout belongs to the MCP stdio transport
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func loadConfig(path string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, setupLogger(cfg.Log), nil
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg}

	store, err := db.OpenStore(ctx, db.Options{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	a.auditLog = audit.NewSlogLogger(logger.With("component", "audit"))
	if sqliteStore, ok := store.(*db.DB); ok {
		mdb, err := db.OpenMetrics(filepath.Join(filepath.Dir(cfg.Database.Path), "metrics.db"))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.metricsDB = mdb
		a.closers = append(a.closers, mdb.Close)

		if cfg.Audit.Enabled {
			al := audit.NewSQLiteLogger(sqliteStore.DB)
			if err := al.Init(); err != nil {
				_ = al.Close()
				a.Close()
				return nil, fmt.Errorf("initialising audit log: %w", err)
			}
			a.auditLog = al
			a.closers = append(a.closers, al.Close)
		}
	}
	if !cfg.Audit.Enabled {
		a.auditLog = audit.Nop{}
	}

	judgeOpts := []verify.JudgeOption{verify.WithRecorder(metrics.RecordJudgeCall)}
	if a.metricsDB != nil {
		mdb := a.metricsDB
		judgeOpts = append(judgeOpts, verify.WithRecorder(func(ctx context.Context, rec verify.CallRecord) {
			mdb.RecordJudgeCall(ctx, rec.Provider, rec.Model, rec.TokensIn, rec.TokensOut, rec.Elapsed, rec.Err)
		}))
	}
	a.verifier = verify.FromConfig(cfg.Judge, logger.With("component", "verify"), judgeOpts...)

	rewards := reward.NewEngine(store,
		reward.WithScoreClamp(cfg.Reward.ClampScore),
		reward.WithLogger(logger.With("component", "reward")))
	a.manager = submission.NewManager(store, a.verifier, rewards,
		submission.WithAudit(a.auditLog),
		submission.WithObserver(metrics.Pipeline{}),
		submission.WithTimeout(time.Duration(cfg.Judge.TimeoutSeconds)*time.Second),
		submission.WithLogger(logger.With("component", "submission")))

	return a, nil
}

func runServe(ctx context.Context, cfgPath, addr string) error {
	cfg, logger, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(ctx), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if pending, err := a.store.ListSubmissions(ctx, db.SubmissionFilter{Status: db.SubmissionPending, Limit: 1}); err == nil && len(pending) > 0 {
		logger.Warn("pending submissions found at startup; re-drive them with POST /submissions/{id}/verify")
	}

	h := api.New(a.store, auth.New(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiryMin), a.manager, a.verifier)
	h.SetMetricsDB(a.metricsDB)
	h.SetSubmitRateLimit(cfg.Server.SubmitRateLimit, time.Duration(cfg.Server.SubmitRateWindowSec)*time.Second)
	h.SetCORSOrigins(cfg.Server.CORSOrigins)
	h.EnableDevTokens(cfg.Auth.DevTokens)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("proofmine listening", "version", version, "addr", cfg.Server.Addr,
			"database", cfg.Database.Driver, "judge_mode", a.verifier.Mode())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runMCP(ctx context.Context, cfgPath string) error {
	cfg, logger, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	a, err := buildApp(contextOrBackground(ctx), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := mcp.NewServer(a.store, a.manager, a.auditLog, version)
	logger.Info("proofmine MCP server on stdio", "judge_mode", a.verifier.Mode())
	return server.ServeStdio(srv)
}

// verifyTaskFile is the task description accepted by the verify command.
type verifyTaskFile struct {
	TaskType             string         `json:"task_type"`
	Instructions         map[string]any `json:"instructions"`
	VerificationCriteria map[string]any `json:"verification_criteria"`
}

func runVerify(ctx context.Context, cfgPath, taskPath, outputPath string, w io.Writer) error {
	cfg, logger, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	var task verifyTaskFile
	if err := readJSON(taskPath, &task); err != nil {
		return err
	}
	var output any
	if err := readJSON(outputPath, &output); err != nil {
		return err
	}

	v := verify.FromConfig(cfg.Judge, logger)
	res, err := v.Verify(contextOrBackground(ctx), verify.Request{
		SubmissionID: "cli",
		TaskID:       "cli",
		TaskType:     task.TaskType,
		Instructions: task.Instructions,
		MinerOutput:  output,
		Criteria:     task.VerificationCriteria,
		Timeout:      time.Duration(cfg.Judge.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
