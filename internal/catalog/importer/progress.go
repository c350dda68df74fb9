package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Run statuses stored in the progress hash.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// maxStoredFailures caps the failure list kept per run.
const maxStoredFailures = 500

// ErrRunNotFound is returned when no progress exists for a run id.
var ErrRunNotFound = errors.New("importer: run not found")

// Progress is a snapshot of an import run.
type Progress struct {
	RunID      string     `json:"run_id"`
	Status     string     `json:"status"`
	Total      int        `json:"total"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	Failures   []Failure  `json:"failures,omitempty"`
	QueuedAt   *time.Time `json:"queued_at,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Tracker keeps run progress in a redis hash plus a failure list.
type Tracker struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewTracker builds a Tracker whose keys expire after ttl.
func NewTracker(client *redis.Client, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tracker{client: client, ttl: ttl, now: time.Now}
}

// Queue marks a run as accepted but not yet picked up.
func (t *Tracker) Queue(ctx context.Context, runID string, total int) error {
	return t.set(ctx, runID, "status", StatusQueued, "total", total, "queued_at", t.stamp())
}

// Start marks a run as running.
func (t *Tracker) Start(ctx context.Context, runID string, total int) error {
	key := shared.ImportProgressKey(runID)
	pipe := t.client.TxPipeline()
	pipe.HSet(ctx, key, "status", StatusRunning, "total", total, "succeeded", 0, "failed", 0, "started_at", t.stamp())
	pipe.Del(ctx, shared.ImportFailuresKey(runID))
	pipe.Expire(ctx, key, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("importer: start progress: %w", err)
	}
	return nil
}

// Record counts one row outcome.
func (t *Tracker) Record(ctx context.Context, runID string, result ItemResult) error {
	key := shared.ImportProgressKey(runID)
	failuresKey := shared.ImportFailuresKey(runID)
	pipe := t.client.TxPipeline()
	if result.Err == nil {
		pipe.HIncrBy(ctx, key, "succeeded", 1)
	} else {
		pipe.HIncrBy(ctx, key, "failed", 1)
		entry, err := json.Marshal(Failure{Index: result.Index, Name: result.Name, Reason: reason(result.Err)})
		if err != nil {
			return fmt.Errorf("importer: encode failure: %w", err)
		}
		pipe.RPush(ctx, failuresKey, entry)
		pipe.LTrim(ctx, failuresKey, 0, maxStoredFailures-1)
		pipe.Expire(ctx, failuresKey, t.ttl)
	}
	pipe.Expire(ctx, key, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("importer: record progress: %w", err)
	}
	return nil
}

// Finish marks a run as completed with final counters.
func (t *Tracker) Finish(ctx context.Context, runID string, summary Summary) error {
	return t.set(ctx, runID,
		"status", StatusCompleted,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"finished_at", t.stamp())
}

// Fail marks a run as aborted.
func (t *Tracker) Fail(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = reason(cause)
	}
	return t.set(ctx, runID, "status", StatusFailed, "error", msg, "finished_at", t.stamp())
}

// Get loads the progress of a run.
func (t *Tracker) Get(ctx context.Context, runID string) (Progress, error) {
	fields, err := t.client.HGetAll(ctx, shared.ImportProgressKey(runID)).Result()
	if err != nil {
		return Progress{}, fmt.Errorf("importer: load progress: %w", err)
	}
	if len(fields) == 0 {
		return Progress{}, ErrRunNotFound
	}
	progress := Progress{
		RunID:      runID,
		Status:     fields["status"],
		Total:      atoi(fields["total"]),
		Succeeded:  atoi(fields["succeeded"]),
		Failed:     atoi(fields["failed"]),
		Error:      fields["error"],
		QueuedAt:   parseStamp(fields["queued_at"]),
		StartedAt:  parseStamp(fields["started_at"]),
		FinishedAt: parseStamp(fields["finished_at"]),
	}
	entries, err := t.client.LRange(ctx, shared.ImportFailuresKey(runID), 0, -1).Result()
	if err != nil {
		return Progress{}, fmt.Errorf("importer: load failures: %w", err)
	}
	for _, entry := range entries {
		var failure Failure
		if err := json.Unmarshal([]byte(entry), &failure); err != nil {
			continue
		}
		progress.Failures = append(progress.Failures, failure)
	}
	return progress, nil
}

func (t *Tracker) set(ctx context.Context, runID string, values ...any) error {
	key := shared.ImportProgressKey(runID)
	pipe := t.client.TxPipeline()
	pipe.HSet(ctx, key, values...)
	pipe.Expire(ctx, key, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("importer: update progress: %w", err)
	}
	return nil
}

func (t *Tracker) stamp() string {
	return t.now().UTC().Format(time.RFC3339Nano)
}

func atoi(raw string) int {
	n, _ := strconv.Atoi(raw)
	return n
}

func parseStamp(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil
	}
	return &ts
}
