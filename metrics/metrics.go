package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cuecam"

// Collector holds the process counters. It satisfies link.Counters.
type Collector struct {
	registry *prometheus.Registry

	framesReceived prometheus.Counter
	framesDropped  prometheus.Counter
	framesScanned  prometheus.Counter
	scanErrors     prometheus.Counter
	cuesPlayed     *prometheus.CounterVec
	peers          prometheus.Gauge
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Frames received over the data channel.",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames dropped by the scan rate limit.",
		}),
		framesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_scanned_total",
			Help:      "Frames decoded and scanned for colors.",
		}),
		scanErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_scan_errors_total",
			Help:      "Frames that could not be decoded.",
		}),
		cuesPlayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cues_played_total",
			Help:      "Cues started, by color category.",
		}, []string{"category"}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peers_connected",
			Help:      "Phones currently connected.",
		}),
	}

	c.registry.MustRegister(
		c.framesReceived,
		c.framesDropped,
		c.framesScanned,
		c.scanErrors,
		c.cuesPlayed,
		c.peers,
	)
	return c
}

func (c *Collector) FrameReceived()    { c.framesReceived.Inc() }
func (c *Collector) FrameDropped()     { c.framesDropped.Inc() }
func (c *Collector) FrameScanned()     { c.framesScanned.Inc() }
func (c *Collector) ScanFailed()       { c.scanErrors.Inc() }
func (c *Collector) PeerConnected()    { c.peers.Inc() }
func (c *Collector) PeerDisconnected() { c.peers.Dec() }

func (c *Collector) CuePlayed(category string) {
	c.cuesPlayed.WithLabelValues(category).Inc()
}

// Handler serves the registry in the prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
