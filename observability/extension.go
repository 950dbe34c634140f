// Package observability provides a metrics extension for the
// reconciliation engine that records event counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/reconcile/hook"
	"github.com/xraph/reconcile/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ hook.Hook              = (*MetricsExtension)(nil)
	_ hook.OnInit            = (*MetricsExtension)(nil)
	_ hook.OnCreditApplied   = (*MetricsExtension)(nil)
	_ hook.OnRequestResolved = (*MetricsExtension)(nil)
	_ hook.OnStatusNoted     = (*MetricsExtension)(nil)
	_ hook.OnBatchApplied    = (*MetricsExtension)(nil)
	_ hook.OnMirrorSynced    = (*MetricsExtension)(nil)
	_ hook.OnMirrorDegraded  = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide reconciliation metrics.
// Register it as an engine hook to automatically track reply handling.
type MetricsExtension struct {
	factory MetricFactory

	// Credit metrics
	CreditsApplied Counter
	CreditAmount   Histogram

	// Request metrics
	RequestsResolved Counter
	StatusesNoted    Counter

	// Batch metrics
	BatchesApplied Counter
	BatchSize      Histogram
	BatchLatency   Histogram

	// Mirror metrics
	MirrorSynced   Counter
	MirrorDegraded Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Credit metrics
		CreditsApplied: factory.Counter("reconcile.credit.applied"),
		CreditAmount:   factory.Histogram("reconcile.credit.amount"),

		// Request metrics
		RequestsResolved: factory.Counter("reconcile.request.resolved"),
		StatusesNoted:    factory.Counter("reconcile.status.noted"),

		// Batch metrics
		BatchesApplied: factory.Counter("reconcile.batch.applied"),
		BatchSize:      factory.Histogram("reconcile.batch.size"),
		BatchLatency:   factory.Histogram("reconcile.batch.latency_ms"),

		// Mirror metrics
		MirrorSynced:   factory.Counter("reconcile.mirror.synced"),
		MirrorDegraded: factory.Counter("reconcile.mirror.degraded"),
	}
}

// Name implements hook.Hook.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements hook.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// OnCreditApplied implements hook.OnCreditApplied.
func (m *MetricsExtension) OnCreditApplied(_ context.Context, _ string, amount, _ types.Money) error {
	m.CreditsApplied.Inc()
	m.CreditAmount.Observe(float64(amount.Amount))
	return nil
}

// OnRequestResolved implements hook.OnRequestResolved.
func (m *MetricsExtension) OnRequestResolved(_ context.Context, _, _, _, _ string) error {
	m.RequestsResolved.Inc()
	return nil
}

// OnStatusNoted implements hook.OnStatusNoted.
func (m *MetricsExtension) OnStatusNoted(_ context.Context, _, _, _ string) error {
	m.StatusesNoted.Inc()
	return nil
}

// OnBatchApplied implements hook.OnBatchApplied.
func (m *MetricsExtension) OnBatchApplied(_ context.Context, _ string, applied int, elapsed time.Duration) error {
	m.BatchesApplied.Inc()
	m.BatchSize.Observe(float64(applied))
	m.BatchLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// OnMirrorSynced implements hook.OnMirrorSynced.
func (m *MetricsExtension) OnMirrorSynced(_ context.Context, _ string, _ types.Money) error {
	m.MirrorSynced.Inc()
	return nil
}

// OnMirrorDegraded implements hook.OnMirrorDegraded.
func (m *MetricsExtension) OnMirrorDegraded(_ context.Context, _ string, _ types.Money, _ error) error {
	m.MirrorDegraded.Inc()
	return nil
}
