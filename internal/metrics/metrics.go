// Package metrics exposes delivery metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the hub and the session loop report into.
type Recorder interface {
	ConnectionOpened()
	ConnectionClosed()
	Evicted()
	FrameReceived(frameType string)
	MessageRouted(path string)
	OfflineEnqueued(kind string)
	SendFailed(frameType string)
	ObserveStore(op string, d time.Duration)
}

type Collector struct {
	connections     prometheus.Gauge
	evictions       prometheus.Counter
	framesReceived  *prometheus.CounterVec
	messagesRouted  *prometheus.CounterVec
	offlineEnqueued *prometheus.CounterVec
	sendFailures    *prometheus.CounterVec
	storeLatency    *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dmchat_connections_active",
			Help: "Number of users with a live channel.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dmchat_evictions_total",
			Help: "Channels replaced by a newer connection for the same user.",
		}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmchat_frames_received_total",
			Help: "Inbound frames by type.",
		}, []string{"type"}),
		messagesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmchat_messages_routed_total",
			Help: "Persisted chat messages by delivery path.",
		}, []string{"path"}),
		offlineEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmchat_offline_enqueued_total",
			Help: "Payloads pushed to the offline queue by kind.",
		}, []string{"kind"}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dmchat_send_failures_total",
			Help: "Outbound frame writes that failed, by frame type.",
		}, []string{"frame"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dmchat_store_latency_seconds",
			Help:    "Latency of store calls made by the delivery manager.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}

	reg.MustRegister(
		c.connections,
		c.evictions,
		c.framesReceived,
		c.messagesRouted,
		c.offlineEnqueued,
		c.sendFailures,
		c.storeLatency,
	)

	return c
}

func (c *Collector) ConnectionOpened() { c.connections.Inc() }
func (c *Collector) ConnectionClosed() { c.connections.Dec() }
func (c *Collector) Evicted()          { c.evictions.Inc() }

func (c *Collector) FrameReceived(frameType string) {
	c.framesReceived.WithLabelValues(frameType).Inc()
}

func (c *Collector) MessageRouted(path string) {
	c.messagesRouted.WithLabelValues(path).Inc()
}

func (c *Collector) OfflineEnqueued(kind string) {
	c.offlineEnqueued.WithLabelValues(kind).Inc()
}

func (c *Collector) SendFailed(frameType string) {
	c.sendFailures.WithLabelValues(frameType).Inc()
}

func (c *Collector) ObserveStore(op string, d time.Duration) {
	c.storeLatency.WithLabelValues(op).Observe(d.Seconds())
}

// Nop discards everything.
type Nop struct{}

func (Nop) ConnectionOpened()                  {}
func (Nop) ConnectionClosed()                  {}
func (Nop) Evicted()                           {}
func (Nop) FrameReceived(string)               {}
func (Nop) MessageRouted(string)               {}
func (Nop) OfflineEnqueued(string)             {}
func (Nop) SendFailed(string)                  {}
func (Nop) ObserveStore(string, time.Duration) {}

// Handler serves the gatherer's metrics in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
