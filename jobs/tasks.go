package jobs

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueImports carries catalog import runs.
	QueueImports = "imports"
	// TaskCatalogImport is the task type for bulk catalog imports.
	TaskCatalogImport = "catalog:import"
)

// importIdempotencyModule scopes run ids in the idempotency store.
const importIdempotencyModule = "catalog_import"
