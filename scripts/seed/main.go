package main

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/app"
	"github.com/odyssey-erp/odyssey-pos/internal/catalog/importer"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/migrations"
)

//go:embed catalog.yaml
var sampleCatalog []byte

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolConfig("odyssey-seed"))
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	fmt.Println("→ Applying schema...")
	if _, err := migrations.Up(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	items, err := importer.Decode(bytes.NewReader(sampleCatalog), importer.FormatYAML)
	if err != nil {
		log.Fatalf("decode sample catalog: %v", err)
	}

	service, err := app.NewCatalogService(pool, nil, cfg, logger, nil)
	if err != nil {
		log.Fatalf("init catalog service: %v", err)
	}

	fmt.Printf("→ Seeding %d products...\n", len(items))
	summary, err := importer.New(service, logger, importer.Config{Workers: 1}).Run(ctx, uuid.NewString(), items)
	if err != nil {
		log.Fatalf("seed catalog: %v", err)
	}
	for _, f := range summary.Failures {
		fmt.Fprintf(os.Stderr, "  ✗ row %d %q: %s\n", f.Index, f.Name, f.Reason)
	}

	fmt.Printf("✓ Seed complete at %s (%d created, %d failed)\n", time.Now().Format(time.RFC3339), summary.Succeeded, summary.Failed)
}
