package shared

import "fmt"

// ImportProgressKey builds the redis key holding progress of an import run.
func ImportProgressKey(runID string) string {
	return fmt.Sprintf("catalog:import:%s:progress", runID)
}

// IdempotencyKey builds the redis key guarding a processed unit of work.
func IdempotencyKey(module, key string) string {
	return fmt.Sprintf("idempotency:%s:%s", module, key)
}

// ImportFailuresKey builds the redis key listing failed rows of an import run.
func ImportFailuresKey(runID string) string {
	return fmt.Sprintf("catalog:import:%s:failures", runID)
}
