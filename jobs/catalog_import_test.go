package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/catalog/importer"
	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

type stubRunner struct {
	calls   int
	runID   string
	items   []importer.Item
	summary importer.Summary
	err     error
}

func (s *stubRunner) Run(_ context.Context, runID string, items []importer.Item) (importer.Summary, error) {
	s.calls++
	s.runID = runID
	s.items = items
	return s.summary, s.err
}

type stubFailer struct {
	runID string
	cause error
}

func (s *stubFailer) Fail(_ context.Context, runID string, cause error) error {
	s.runID = runID
	s.cause = cause
	return nil
}

func newIdempotencyStore(t *testing.T) *shared.IdempotencyStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return shared.NewIdempotencyStore(client, time.Hour)
}

func importTask(t *testing.T, runID string, names ...string) *asynq.Task {
	t.Helper()
	items := make([]importer.Item, 0, len(names))
	for _, n := range names {
		items = append(items, importer.Item{Name: n})
	}
	task, err := NewCatalogImportTask(CatalogImportPayload{RunID: runID, Items: items})
	require.NoError(t, err)
	return task
}

func TestNewCatalogImportTask(t *testing.T) {
	task := importTask(t, "run-1", "Tea", "Milk")
	require.Equal(t, TaskCatalogImport, task.Type())

	var payload CatalogImportPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, "run-1", payload.RunID)
	require.Len(t, payload.Items, 2)

	_, err := NewCatalogImportTask(CatalogImportPayload{})
	require.Error(t, err)
}

func TestCatalogImportJobRunsOnce(t *testing.T) {
	runner := &stubRunner{summary: importer.Summary{Total: 2, Succeeded: 1, Failed: 1}}
	job := NewCatalogImportJob(CatalogImportConfig{
		Runner:  runner,
		Guard:   newIdempotencyStore(t),
		Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry()),
	})
	task := importTask(t, "run-1", "Tea", "Milk")

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, runner.calls)
	require.Equal(t, "run-1", runner.runID)
	require.Len(t, runner.items, 2)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, runner.calls)
}

func TestCatalogImportJobRejectsBadPayload(t *testing.T) {
	runner := &stubRunner{}
	job := NewCatalogImportJob(CatalogImportConfig{Runner: runner})

	err := job.Handle(context.Background(), asynq.NewTask(TaskCatalogImport, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskCatalogImport, []byte(`{"items":[]}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, runner.calls)
}

func TestCatalogImportJobAbortIsNotRetried(t *testing.T) {
	runner := &stubRunner{err: context.Canceled}
	failer := &stubFailer{}
	job := NewCatalogImportJob(CatalogImportConfig{Runner: runner, Guard: newIdempotencyStore(t), Progress: failer})

	err := job.Handle(context.Background(), importTask(t, "run-9", "Tea"))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, "run-9", failer.runID)
	require.ErrorIs(t, failer.cause, context.Canceled)
}

func TestCatalogImportJobNotConfigured(t *testing.T) {
	var job *CatalogImportJob
	require.Error(t, job.Handle(context.Background(), importTask(t, "run-1")))
}

func TestCatalogImportJobGuardError(t *testing.T) {
	runner := &stubRunner{}
	guardErr := errors.New("redis down")
	job := NewCatalogImportJob(CatalogImportConfig{Runner: runner, Guard: failingGuard{err: guardErr}})

	err := job.Handle(context.Background(), importTask(t, "run-1", "Tea"))
	require.ErrorIs(t, err, guardErr)
	require.NotErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, runner.calls)
}

type failingGuard struct{ err error }

func (g failingGuard) CheckAndInsert(context.Context, string, string) error { return g.err }
