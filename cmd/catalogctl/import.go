package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-pos/internal/app"
	"github.com/odyssey-erp/odyssey-pos/internal/catalog/importer"
	"github.com/odyssey-erp/odyssey-pos/jobs"
)

type importOptions struct {
	file    string
	format  string
	enqueue bool
	workers int
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import products from a JSON, YAML or CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readItems(opts.file, opts.format)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return fmt.Errorf("no items in %s", opts.file)
			}
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.Close()
			if opts.enqueue {
				return enqueueImport(cmd, e, items)
			}
			return runImport(cmd, e, items, opts.workers)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Items file (required)")
	cmd.Flags().StringVar(&opts.format, "format", "", "json, yaml or csv (default: from file extension)")
	cmd.Flags().BoolVar(&opts.enqueue, "enqueue", false, "Queue the run for the worker instead of importing inline")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent rows for inline imports (default: IMPORT_WORKERS)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readItems(path, format string) ([]importer.Item, error) {
	if format == "" {
		format = path
	}
	parsed, err := importer.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return importer.Decode(f, parsed)
}

func runImport(cmd *cobra.Command, e *env, items []importer.Item, workers int) error {
	ctx := cmd.Context()
	pool, err := e.postgres(ctx)
	if err != nil {
		return err
	}
	if workers <= 0 {
		workers = e.cfg.ImportWorkers
	}
	cfg := importer.Config{Workers: workers}
	client, err := e.redisClient(ctx)
	if err == nil {
		cfg.Progress = importer.NewTracker(client, e.cfg.ImportProgressTTL)
	} else {
		e.logger.Warn("import progress and cache invalidation disabled", slog.Any("error", err))
	}
	service, err := app.NewCatalogService(pool, client, e.cfg, e.logger, nil)
	if err != nil {
		return err
	}

	summary, err := importer.New(service, e.logger, cfg).Run(ctx, uuid.NewString(), items)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), summary)
}

func enqueueImport(cmd *cobra.Command, e *env, items []importer.Item) error {
	ctx := cmd.Context()
	client, err := e.redisClient(ctx)
	if err != nil {
		return err
	}
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: e.cfg.RedisAddr})
	if err != nil {
		return err
	}
	defer jobClient.Close()

	runID := uuid.NewString()
	if err := importer.NewTracker(client, e.cfg.ImportProgressTTL).Queue(ctx, runID, len(items)); err != nil {
		return err
	}
	if err := jobClient.EnqueueImport(ctx, runID, items); err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), map[string]any{"run_id": runID, "status": importer.StatusQueued, "items": len(items)})
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show progress of an import run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.Close()
			client, err := e.redisClient(cmd.Context())
			if err != nil {
				return err
			}
			progress, err := importer.NewTracker(client, e.cfg.ImportProgressTTL).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), progress)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
