// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop stages for NotificationsDropped.
const (
	StagePersist = "persist"
	StageRender  = "render"
	StageBulk    = "bulk"
)

var (
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total number of notifications persisted",
		},
		[]string{"type"},
	)

	NotificationsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Total number of notifications that were not persisted",
		},
		[]string{"type", "stage"},
	)

	NotificationEmails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_emails_total",
			Help: "Total number of notification emails by outcome",
		},
		[]string{"type", "status"},
	)

	NotificationBulkItems = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notification_bulk_items",
			Help:    "Number of items per bulk send",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	FeedEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_feed_events_total",
			Help: "Total number of change feed events by outcome",
		},
		[]string{"table", "event", "status"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)
)
