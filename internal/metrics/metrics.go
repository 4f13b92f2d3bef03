// Package metrics holds the Prometheus collectors for the command channel and
// for subnet sweeps. All methods are safe to call on a nil *Collectors, so
// components can take an optional collector set without nil checks.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lanlink"

// Collectors groups every metric exported by lanlink.
type Collectors struct {
	commandsEnqueued prometheus.Counter
	commandsRejected prometheus.Counter
	commandsWritten  prometheus.Counter
	commandsFailed   prometheus.Counter
	commandsDropped  prometheus.Counter
	queueDepth       prometheus.Gauge
	inboundBytes     prometheus.Counter

	sweeps        prometheus.Counter
	sweepDuration prometheus.Histogram
	hostsAlive    prometheus.Gauge
	hostsResolved prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		commandsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "dispatch", Name: "commands_enqueued_total",
			Help: "Commands accepted into the dispatch queue.",
		}),
		commandsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "dispatch", Name: "commands_rejected_total",
			Help: "Commands refused because the connection was not sendable.",
		}),
		commandsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "dispatch", Name: "commands_written_total",
			Help: "Commands written to the socket.",
		}),
		commandsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "dispatch", Name: "commands_failed_total",
			Help: "Commands whose write failed and were dropped.",
		}),
		commandsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "dispatch", Name: "commands_discarded_total",
			Help: "Pending commands discarded at connection teardown.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "dispatch", Name: "queue_depth",
			Help: "Commands currently waiting in the dispatch queue.",
		}),
		inboundBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "link", Name: "inbound_bytes_total",
			Help: "Bytes received from the device.",
		}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "discovery", Name: "sweeps_total",
			Help: "Completed subnet sweeps.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "discovery", Name: "sweep_duration_seconds",
			Help:    "Wall time of a subnet sweep.",
			Buckets: []float64{0.5, 1, 1.5, 2, 3, 5, 10},
		}),
		hostsAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "discovery", Name: "hosts_alive",
			Help: "Hosts that answered the last sweep's probes.",
		}),
		hostsResolved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "discovery", Name: "hosts_resolved",
			Help: "Responsive hosts with a resolved hardware address in the last sweep.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			c.commandsEnqueued, c.commandsRejected, c.commandsWritten, c.commandsFailed,
			c.commandsDropped, c.queueDepth, c.inboundBytes,
			c.sweeps, c.sweepDuration, c.hostsAlive, c.hostsResolved,
		)
	}
	return c
}

// CommandEnqueued records an accepted command and the resulting queue depth.
func (c *Collectors) CommandEnqueued(depth int) {
	if c == nil {
		return
	}
	c.commandsEnqueued.Inc()
	c.queueDepth.Set(float64(depth))
}

// CommandRejected records a command refused at admission.
func (c *Collectors) CommandRejected() {
	if c == nil {
		return
	}
	c.commandsRejected.Inc()
}

// CommandWritten records the outcome of one write.
func (c *Collectors) CommandWritten(depth int, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.commandsFailed.Inc()
	} else {
		c.commandsWritten.Inc()
	}
	c.queueDepth.Set(float64(depth))
}

// QueueCleared records commands discarded at teardown.
func (c *Collectors) QueueCleared(discarded int) {
	if c == nil {
		return
	}
	c.commandsDropped.Add(float64(discarded))
	c.queueDepth.Set(0)
}

// Inbound records a received chunk.
func (c *Collectors) Inbound(n int) {
	if c == nil {
		return
	}
	c.inboundBytes.Add(float64(n))
}

// SweepCompleted records a finished sweep.
func (c *Collectors) SweepCompleted(elapsed time.Duration, alive, resolved int) {
	if c == nil {
		return
	}
	c.sweeps.Inc()
	c.sweepDuration.Observe(elapsed.Seconds())
	c.hostsAlive.Set(float64(alive))
	c.hostsResolved.Set(float64(resolved))
}
