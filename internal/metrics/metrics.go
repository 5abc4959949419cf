package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricsOnce sync.Once

var instance *LifecycleMetrics

// LifecycleMetrics holds the Prometheus metrics of the lifecycle engine.
type LifecycleMetrics struct {
	FilesCreated       prometheus.Counter     // panstore_files_created_total
	VersionsCreated    prometheus.Counter     // panstore_versions_created_total
	VersionsEvicted    prometheus.Counter     // panstore_versions_evicted_total
	ItemsRecycled      *prometheus.CounterVec // panstore_items_recycled_total{item_type}
	ItemsRestored      *prometheus.CounterVec // panstore_items_restored_total{item_type}
	ItemsPurged        *prometheus.CounterVec // panstore_items_purged_total{item_type,reason}
	QuotaRejections    prometheus.Counter     // panstore_quota_rejections_total
	BlobDeleteFailures *prometheus.CounterVec // panstore_blob_delete_failures_total{stage}
	LastSweepPurged    prometheus.Gauge       // panstore_last_sweep_purged
}

// Init registers the metrics once; later calls return the same instance.
func Init(registry prometheus.Registerer) *LifecycleMetrics {
	metricsOnce.Do(func() {
		if registry == nil {
			registry = prometheus.DefaultRegisterer
		}
		factory := promauto.With(registry)
		instance = &LifecycleMetrics{
			FilesCreated: factory.NewCounter(prometheus.CounterOpts{
				Name: "panstore_files_created_total",
				Help: "File records created by upload confirmation",
			}),
			VersionsCreated: factory.NewCounter(prometheus.CounterOpts{
				Name: "panstore_versions_created_total",
				Help: "Version records created, including first versions and restores",
			}),
			VersionsEvicted: factory.NewCounter(prometheus.CounterOpts{
				Name: "panstore_versions_evicted_total",
				Help: "Oldest versions removed to honor the version ceiling",
			}),
			ItemsRecycled: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "panstore_items_recycled_total",
				Help: "Files and folders moved to the recycle bin",
			}, []string{"item_type"}),
			ItemsRestored: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "panstore_items_restored_total",
				Help: "Files and folders restored from the recycle bin",
			}, []string{"item_type"}),
			ItemsPurged: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "panstore_items_purged_total",
				Help: "Recycle entries permanently erased",
			}, []string{"item_type", "reason"}),
			QuotaRejections: factory.NewCounter(prometheus.CounterOpts{
				Name: "panstore_quota_rejections_total",
				Help: "Mutations rejected because the owner quota would be exceeded",
			}),
			BlobDeleteFailures: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "panstore_blob_delete_failures_total",
				Help: "Best-effort blob deletions that failed and left an orphan",
			}, []string{"stage"}),
			LastSweepPurged: factory.NewGauge(prometheus.GaugeOpts{
				Name: "panstore_last_sweep_purged",
				Help: "Entries purged by the most recent expiry sweep",
			}),
		}
	})
	return instance
}

// Get returns the metrics, registering them on the default registerer if needed.
func Get() *LifecycleMetrics {
	return Init(nil)
}
