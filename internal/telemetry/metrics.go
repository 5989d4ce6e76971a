// Package telemetry exposes the audio subsystem's prometheus metrics, a
// console-command HTTP API, and a WebSocket hub that fans out whatever is
// passed to Hub.Broadcast to connected clients (spec §6, adapted from this
// codebase's observability and websocket layers).
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiostage_cache_hits_total",
		Help: "SampleCache hits recorded via RecordCacheHit",
	})

	cacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiostage_cache_evictions_total",
		Help: "Samples evicted by age or size purge passes",
	})

	channelAllocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiostage_channel_allocations_total",
		Help: "Channels successfully selected and started by channel selection",
	})

	channelDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audiostage_channel_drops_total",
		Help: "Addition events dropped during channel selection, by reason",
	}, []string{"reason"}) // bounded: busy, volume, range, cache, cap, no_channel

	refreshCycleSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "audiostage_refresh_cycle_seconds",
		Help:    "Time spent in one refresh worker tick",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})

	activeChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "audiostage_active_channels",
		Help: "Channels currently in the Playing state",
	})

	cacheBytesInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "audiostage_cache_bytes_in_use",
		Help: "SampleCache's current total byte footprint",
	})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "audiostage_console_connections_active",
		Help: "Currently connected console WebSocket clients",
	})
)

// RecordCacheHit increments the cache-hit counter.
func RecordCacheHit() { cacheHitsTotal.Inc() }

// RecordCacheEviction increments the cache-eviction counter.
func RecordCacheEviction() { cacheEvictionsTotal.Inc() }

// RecordChannelAllocation increments the channel-allocation counter.
func RecordChannelAllocation() { channelAllocationsTotal.Inc() }

// RecordChannelDrop increments the drop counter for reason, one of:
// "busy", "volume", "range", "cache", "cap", "no_channel".
func RecordChannelDrop(reason string) { channelDropsTotal.WithLabelValues(reason).Inc() }

// RecordRefreshCycle records one refresh worker tick's duration.
func RecordRefreshCycle(d time.Duration) { refreshCycleSeconds.Observe(d.Seconds()) }

// SetActiveChannels updates the active-channel gauge.
func SetActiveChannels(n int) { activeChannels.Set(float64(n)) }

// SetCacheBytesInUse updates the cache-footprint gauge.
func SetCacheBytesInUse(n int) { cacheBytesInUse.Set(float64(n)) }

// SetConsoleConnections updates the active console-connection gauge.
func SetConsoleConnections(n int) { wsConnectionsActive.Set(float64(n)) }

// MetricsHandler returns the promhttp handler for /metrics.
func MetricsHandler() http.Handler { return promhttp.Handler() }
