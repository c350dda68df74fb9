package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
)

type fakeCreator struct {
	mu    sync.Mutex
	names []string
}

func (f *fakeCreator) CreateProductFromNames(_ context.Context, in catalog.NamedCreateInput) (catalog.Product, error) {
	f.mu.Lock()
	f.names = append(f.names, in.Name)
	f.mu.Unlock()
	if strings.HasPrefix(in.Name, "bad") {
		return catalog.Product{}, fmt.Errorf("catalog: create: %w", catalog.ErrDuplicateSKU)
	}
	return catalog.Product{ID: uuid.New(), SKU: strings.ToUpper(in.Name)}, nil
}

type recordingSink struct {
	mu       sync.Mutex
	started  int
	results  []ItemResult
	finished *Summary
	err      error
}

func (s *recordingSink) Start(_ context.Context, _ string, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = total
	return s.err
}

func (s *recordingSink) Record(_ context.Context, _ string, result ItemResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return s.err
}

func (s *recordingSink) Finish(_ context.Context, _ string, summary Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = &summary
	return s.err
}

func TestImporterRunContinuesPastFailures(t *testing.T) {
	creator := &fakeCreator{}
	sink := &recordingSink{}
	im := New(creator, nil, Config{Workers: 3, Progress: sink})

	items := []Item{{Name: "tea"}, {Name: "bad-one"}, {Name: "milk"}, {Name: "bad-two"}, {Name: "rice"}}
	summary, err := im.Run(context.Background(), "run-1", items)
	require.NoError(t, err)
	require.Equal(t, "run-1", summary.RunID)
	require.Equal(t, 5, summary.Total)
	require.Equal(t, 3, summary.Succeeded)
	require.Equal(t, 2, summary.Failed)
	require.Len(t, summary.Failures, 2)
	require.Equal(t, 1, summary.Failures[0].Index)
	require.Equal(t, "bad-one", summary.Failures[0].Name)
	require.Contains(t, summary.Failures[0].Reason, "duplicate")
	require.Equal(t, 3, summary.Failures[1].Index)
	require.False(t, summary.FinishedAt.Before(summary.StartedAt))

	require.Len(t, creator.names, 5)
	require.Equal(t, 5, sink.started)
	require.Len(t, sink.results, 5)
	require.NotNil(t, sink.finished)
	require.Equal(t, 3, sink.finished.Succeeded)
	for _, res := range sink.results {
		if res.Err == nil {
			require.NotEmpty(t, res.ProductID)
			require.NotEmpty(t, res.SKU)
		}
	}
}

func TestImporterRunIgnoresSinkErrors(t *testing.T) {
	sink := &recordingSink{err: errors.New("redis down")}
	im := New(&fakeCreator{}, nil, Config{Progress: sink})

	summary, err := im.Run(context.Background(), "run-2", []Item{{Name: "tea"}})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded)
}

func TestImporterRunWithoutSink(t *testing.T) {
	im := New(&fakeCreator{}, nil, Config{})
	summary, err := im.Run(context.Background(), "run-3", nil)
	require.NoError(t, err)
	require.Zero(t, summary.Total)
	require.Empty(t, summary.Failures)
}

func TestImporterRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	creator := &fakeCreator{}
	sink := &recordingSink{}
	im := New(creator, nil, Config{Progress: sink})

	_, err := im.Run(ctx, "run-4", []Item{{Name: "tea"}, {Name: "milk"}})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, creator.names)
	require.Nil(t, sink.finished)
}
