package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_orders_created_total",
		Help: "Total number of orders created",
	})

	OrderMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_order_mutations_total",
		Help: "Total number of committed order mutations",
	}, []string{"operation"})

	OrderOperationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_order_operations_failed_total",
		Help: "Total number of rejected or failed order operations",
	}, []string{"operation", "reason"})

	StatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_status_transitions_total",
		Help: "Total number of order status transitions",
	}, []string{"from", "to"})

	AuditEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_audit_entries_total",
		Help: "Total number of audit log entries written",
	}, []string{"action"})

	AuditEntriesSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_audit_entries_suppressed_total",
		Help: "Total number of audit writes skipped because nothing changed",
	})

	PermissionDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_permission_denied_total",
		Help: "Total number of operations rejected by the permission gate",
	}, []string{"resource", "action"})

	DocumentsGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_documents_generated_total",
		Help: "Total number of quote documents generated",
	}, []string{"result"})

	DocumentGenerationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quote_document_generation_latency_seconds",
		Help:    "Latency of rendering and storing a quote document",
		Buckets: prometheus.DefBuckets,
	})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_notifications_total",
		Help: "Total number of notification dispatch attempts",
	}, []string{"mode", "result"})

	NotificationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quote_notification_latency_seconds",
		Help:    "Latency of notification dispatch",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
