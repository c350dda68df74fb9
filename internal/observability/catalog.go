package observability

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/odyssey-pos/internal/catalog"
)

// CatalogMetrics counts product writes and reference side effects.
type CatalogMetrics struct {
	writes      *prometheus.CounterVec
	created     *prometheus.CounterVec
	substituted *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

// NewCatalogMetrics registers catalog collectors on registerer.
func NewCatalogMetrics(registerer prometheus.Registerer) *CatalogMetrics {
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_catalog_product_writes_total",
		Help: "Committed product writes by operation.",
	}, []string{"op"})
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_catalog_references_created_total",
		Help: "Reference entities auto-created during product writes, by dimension.",
	}, []string{"dimension"})
	substituted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_catalog_reference_substitutions_total",
		Help: "Stale reference ids replaced by the Unknown placeholder, by dimension.",
	}, []string{"dimension"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_catalog_write_failures_total",
		Help: "Failed product writes by operation and reason.",
	}, []string{"op", "reason"})
	registerer.MustRegister(writes, created, substituted, failures)
	return &CatalogMetrics{writes: writes, created: created, substituted: substituted, failures: failures}
}

// ProductWritten records a committed write.
func (m *CatalogMetrics) ProductWritten(op string, report catalog.WriteReport) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(op).Inc()
	for _, dim := range report.Created {
		m.created.WithLabelValues(string(dim)).Inc()
	}
	for _, dim := range report.Substituted {
		m.substituted.WithLabelValues(string(dim)).Inc()
	}
}

// WriteFailed records a rolled back write.
func (m *CatalogMetrics) WriteFailed(op string, err error) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(op, failureReason(err)).Inc()
}

var failureReasons = []struct {
	err    error
	reason string
}{
	{catalog.ErrNotFound, "not_found"},
	{catalog.ErrDuplicateSKU, "duplicate_sku"},
	{catalog.ErrDuplicateCode, "duplicate_code"},
	{catalog.ErrImmutableSKU, "immutable_sku"},
	{catalog.ErrStaleReference, "stale_reference"},
	{catalog.ErrReferenceConflict, "reference_conflict"},
	{catalog.ErrValidation, "validation"},
}

func failureReason(err error) string {
	for _, r := range failureReasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "internal"
}
