package importer

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
)

// maxReasonLen truncates stored failure reasons.
const maxReasonLen = 255

// ProductCreator is the catalog operation every row goes through.
type ProductCreator interface {
	CreateProductFromNames(ctx context.Context, input catalog.NamedCreateInput) (catalog.Product, error)
}

// ProgressSink receives run progress. Sink errors are logged, never fatal.
type ProgressSink interface {
	Start(ctx context.Context, runID string, total int) error
	Record(ctx context.Context, runID string, result ItemResult) error
	Finish(ctx context.Context, runID string, summary Summary) error
}

// ItemResult is the outcome of one row.
type ItemResult struct {
	Index     int
	Name      string
	ProductID string
	SKU       string
	Err       error
}

// Failure describes a row that could not be imported.
type Failure struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Summary reports a finished run.
type Summary struct {
	RunID      string    `json:"run_id"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Failures   []Failure `json:"failures,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Config groups optional settings.
type Config struct {
	Workers  int
	Progress ProgressSink
}

// Importer runs rows through the catalog, continuing past failed rows.
type Importer struct {
	creator  ProductCreator
	progress ProgressSink
	workers  int
	logger   *slog.Logger
}

// New builds an Importer.
func New(creator ProductCreator, logger *slog.Logger, cfg Config) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Importer{creator: creator, progress: cfg.Progress, workers: workers, logger: logger}
}

// Run imports items. Row failures are collected in the summary; only context cancellation
// aborts the run.
func (im *Importer) Run(ctx context.Context, runID string, items []Item) (Summary, error) {
	summary := Summary{RunID: runID, Total: len(items), StartedAt: time.Now().UTC()}
	im.sink(ctx, "start", func() error { return im.progressStart(ctx, runID, len(items)) })

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(im.workers)
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		i, item := i, item
		g.Go(func() error {
			result := im.importOne(ctx, i, item)
			mu.Lock()
			if result.Err != nil {
				summary.Failed++
				summary.Failures = append(summary.Failures, Failure{Index: i, Name: item.Name, Reason: reason(result.Err)})
			} else {
				summary.Succeeded++
			}
			mu.Unlock()
			im.sink(ctx, "record", func() error { return im.progressRecord(ctx, runID, result) })
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Failures, func(a, b int) bool { return summary.Failures[a].Index < summary.Failures[b].Index })
	summary.FinishedAt = time.Now().UTC()
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	im.sink(ctx, "finish", func() error { return im.progressFinish(ctx, runID, summary) })
	im.logger.InfoContext(ctx, "catalog import finished",
		slog.String("run_id", runID),
		slog.Int("total", summary.Total),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed))
	return summary, nil
}

func (im *Importer) importOne(ctx context.Context, index int, item Item) ItemResult {
	result := ItemResult{Index: index, Name: item.Name}
	product, err := im.creator.CreateProductFromNames(ctx, item.Input())
	if err != nil {
		im.logger.WarnContext(ctx, "catalog import row failed",
			slog.Int("index", index),
			slog.String("name", item.Name),
			slog.Any("error", err))
		result.Err = err
		return result
	}
	result.ProductID = product.ID.String()
	result.SKU = product.SKU
	return result
}

func (im *Importer) progressStart(ctx context.Context, runID string, total int) error {
	if im.progress == nil {
		return nil
	}
	return im.progress.Start(ctx, runID, total)
}

func (im *Importer) progressRecord(ctx context.Context, runID string, result ItemResult) error {
	if im.progress == nil {
		return nil
	}
	return im.progress.Record(ctx, runID, result)
}

func (im *Importer) progressFinish(ctx context.Context, runID string, summary Summary) error {
	if im.progress == nil {
		return nil
	}
	return im.progress.Finish(ctx, runID, summary)
}

func (im *Importer) sink(ctx context.Context, stage string, fn func() error) {
	if err := fn(); err != nil {
		im.logger.WarnContext(ctx, "import progress update failed", slog.String("stage", stage), slog.Any("error", err))
	}
}

func reason(err error) string {
	msg := err.Error()
	if len(msg) <= maxReasonLen {
		return msg
	}
	cut := maxReasonLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
