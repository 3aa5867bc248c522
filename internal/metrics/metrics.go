// Package metrics exposes the latest aggregate of every watch target to
// Prometheus:
//
//   - condorlog_jobs{target,category}            jobs per category (gauge)
//   - condorlog_files_reparsed_total{target}     logs parsed instead of read from cache
//   - condorlog_files_cached_total{target}       logs served from their cache
//   - condorlog_files_retired_total{target}      logs moved to the inactive list
//   - condorlog_files_inactive{target}           size of the inactive list
//   - condorlog_poll_duration_seconds{target}    poll latency
//   - condorlog_poll_errors_total{target}        failed polls
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/SteelMorgan/condorlog/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "condorlog"

// Collector holds the Prometheus metrics of the poller
type Collector struct {
	jobs          *prometheus.GaugeVec
	filesReparsed *prometheus.CounterVec
	filesCached   *prometheus.CounterVec
	filesRetired  *prometheus.CounterVec
	filesInactive *prometheus.GaugeVec
	pollDuration  *prometheus.HistogramVec
	pollErrors    *prometheus.CounterVec
	lastPoll      *prometheus.GaugeVec
}

// NewCollector creates the metrics and registers them with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		jobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs",
			Help:      "Jobs per category in the latest aggregate",
		}, []string{"target", "category"}),
		filesReparsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_reparsed_total",
			Help:      "Log files parsed because their cache was stale",
		}, []string{"target"}),
		filesCached: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_cached_total",
			Help:      "Log files served from their cache",
		}, []string{"target"}),
		filesRetired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_retired_total",
			Help:      "Log files added to the inactive list",
		}, []string{"target"}),
		filesInactive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "files_inactive",
			Help:      "Log files on the inactive list",
		}, []string{"target"}),
		pollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Time to load and aggregate one target",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target"}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_errors_total",
			Help:      "Polls that failed",
		}, []string{"target"}),
		lastPoll: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_poll_timestamp_seconds",
			Help:      "Unix time of the last successful poll",
		}, []string{"target"}),
	}

	reg.MustRegister(
		c.jobs,
		c.filesReparsed,
		c.filesCached,
		c.filesRetired,
		c.filesInactive,
		c.pollDuration,
		c.pollErrors,
		c.lastPoll,
	)
	return c
}

// Observe records a successful poll
func (c *Collector) Observe(m domain.PollMetrics) {
	for _, cat := range domain.Categories {
		c.jobs.WithLabelValues(m.Target, string(cat)).Set(float64(m.Counts[cat]))
	}

	reparsed := float64(m.FilesReparsed)
	c.filesReparsed.WithLabelValues(m.Target).Add(reparsed)
	c.filesCached.WithLabelValues(m.Target).Add(float64(m.FilesScanned) - reparsed)
	c.filesRetired.WithLabelValues(m.Target).Add(float64(m.FilesNewlyRetired))
	c.filesInactive.WithLabelValues(m.Target).Set(float64(m.FilesInactive))
	c.pollDuration.WithLabelValues(m.Target).Observe(float64(m.DurationMs) / 1000)
	c.lastPoll.WithLabelValues(m.Target).Set(float64(m.EndTime.Unix()))
}

// RecordError counts a failed poll
func (c *Collector) RecordError(target string) {
	c.pollErrors.WithLabelValues(target).Inc()
}

// Serve exposes /metrics on port until ctx is done
func Serve(ctx context.Context, port int, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Int("port", port).Msg("Starting metrics server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
