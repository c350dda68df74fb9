package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-pos/internal/catalog/importer"
	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// importMaxRetry bounds redelivery when a run cannot be claimed.
const importMaxRetry = 3

// CatalogImportPayload is the body of a catalog:import task.
type CatalogImportPayload struct {
	RunID string          `json:"run_id"`
	Items []importer.Item `json:"items"`
}

// NewCatalogImportTask builds an import task. The run id doubles as the task id so a run is
// queued at most once.
func NewCatalogImportTask(payload CatalogImportPayload) (*asynq.Task, error) {
	if payload.RunID == "" {
		return nil, errors.New("jobs: catalog import: run id required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogImport, body,
		asynq.Queue(QueueImports),
		asynq.TaskID(payload.RunID),
		asynq.MaxRetry(importMaxRetry),
		asynq.Retention(24*time.Hour),
	), nil
}

// ImportRunner executes an import run.
type ImportRunner interface {
	Run(ctx context.Context, runID string, items []importer.Item) (importer.Summary, error)
}

// RunGuard claims run ids so a redelivered task does not import twice.
type RunGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// RunFailer marks a run as aborted.
type RunFailer interface {
	Fail(ctx context.Context, runID string, cause error) error
}

// CatalogImportConfig wires a CatalogImportJob.
type CatalogImportConfig struct {
	Runner   ImportRunner
	Guard    RunGuard
	Progress RunFailer
	Metrics  *jobmetrics.Metrics
	Logger   *slog.Logger
}

// CatalogImportJob handles catalog:import tasks.
type CatalogImportJob struct {
	runner   ImportRunner
	guard    RunGuard
	progress RunFailer
	metrics  *jobmetrics.Metrics
	logger   *slog.Logger
}

// NewCatalogImportJob initialises the import handler.
func NewCatalogImportJob(cfg CatalogImportConfig) *CatalogImportJob {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogImportJob{
		runner:   cfg.Runner,
		guard:    cfg.Guard,
		progress: cfg.Progress,
		metrics:  cfg.Metrics,
		logger:   logger,
	}
}

// Handle executes one import run.
func (j *CatalogImportJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.runner == nil {
		return errors.New("catalog import: handler not configured")
	}
	var payload CatalogImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("catalog import: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.RunID == "" {
		return fmt.Errorf("catalog import: missing run id: %w", asynq.SkipRetry)
	}
	logger := j.logger.With(slog.String("run_id", payload.RunID), slog.Int("items", len(payload.Items)))

	if j.guard != nil {
		if err := j.guard.CheckAndInsert(ctx, payload.RunID, importIdempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				logger.Info("catalog import already processed")
				return nil
			}
			return err
		}
	}

	tracker := j.metrics.Track(TaskCatalogImport)
	logger.Info("starting catalog import")
	summary, err := j.runner.Run(ctx, payload.RunID, payload.Items)
	j.metrics.AddImportedItems(summary.Succeeded, summary.Failed)
	if err != nil {
		logger.Error("catalog import aborted", slog.Any("error", err))
		if j.progress != nil {
			if ferr := j.progress.Fail(context.WithoutCancel(ctx), payload.RunID, err); ferr != nil {
				logger.Warn("mark import failed", slog.Any("error", ferr))
			}
		}
		// Rows before the abort are committed; replaying the run would duplicate them.
		return tracker.End(fmt.Errorf("catalog import: %w: %w", err, asynq.SkipRetry))
	}
	return tracker.End(nil)
}
