package metrics

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "EasyTrip"

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	SearchRequestsTotal    metric.Int64Counter
	SearchFallbacksTotal   metric.Int64Counter
	ImageUploadsTotal      metric.Int64Counter
	ReviewSubmissionsTotal metric.Int64Counter
	CacheLookupsTotal      metric.Int64Counter
	DbQueryDurationSeconds metric.Float64Histogram
	DbQueryErrorsTotal     metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the instruments once, from the global
// MeterProvider. Call it after the provider is installed.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter(meterName)
		m := &AppMetrics{}
		var err error

		m.SearchRequestsTotal, err = meter.Int64Counter(
			"place_search_requests_total",
			metric.WithDescription("Total number of place searches"),
			metric.WithUnit("{request}"),
		)
		must(err, "place_search_requests_total")

		m.SearchFallbacksTotal, err = meter.Int64Counter(
			"place_search_fallbacks_total",
			metric.WithDescription("Searches answered by the in-process filter after the database query failed"),
			metric.WithUnit("{request}"),
		)
		must(err, "place_search_fallbacks_total")

		m.ImageUploadsTotal, err = meter.Int64Counter(
			"image_uploads_total",
			metric.WithDescription("Image uploads by outcome"),
			metric.WithUnit("{upload}"),
		)
		must(err, "image_uploads_total")

		m.ReviewSubmissionsTotal, err = meter.Int64Counter(
			"review_submissions_total",
			metric.WithDescription("Stored place reviews"),
			metric.WithUnit("{review}"),
		)
		must(err, "review_submissions_total")

		m.CacheLookupsTotal, err = meter.Int64Counter(
			"response_cache_lookups_total",
			metric.WithDescription("Response cache lookups by result"),
			metric.WithUnit("{lookup}"),
		)
		must(err, "response_cache_lookups_total")

		m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		must(err, "db_query_duration_seconds")

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		must(err, "db_query_errors_total")

		appMetrics = m
	})
}

func must(err error, name string) {
	if err != nil {
		log.Fatalf("Metrics: Failed to create %s: %v", name, err)
	}
}

// Get returns the instruments, initializing them against the current global
// provider on first use.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}

// ObserveQuery records the duration and outcome of a repository call.
func (m *AppMetrics) ObserveQuery(ctx context.Context, operation string, start time.Time, err error) {
	attrs := metric.WithAttributes(attribute.String("db.operation", operation))
	m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		m.DbQueryErrorsTotal.Add(ctx, 1, attrs)
	}
}

// CountImageUpload records an image upload outcome such as "success" or "failed".
func (m *AppMetrics) CountImageUpload(ctx context.Context, provider, outcome string) {
	m.ImageUploadsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}
