package mqttsn

import (
	"time"
)

// MetricType is the kind of a series.
type MetricType int

const (
	MetricTypeCounter MetricType = iota
	MetricTypeGauge
	MetricTypeHistogram
)

var metricTypeNames = [...]string{
	MetricTypeCounter:   "counter",
	MetricTypeGauge:     "gauge",
	MetricTypeHistogram: "histogram",
}

func (t MetricType) String() string {
	if t >= 0 && int(t) < len(metricTypeNames) {
		return metricTypeNames[t]
	}
	return "unknown"
}

// MetricLabels are the label names and values of one series.
type MetricLabels map[string]string

// Metrics is the collector the client reports to. Implementations must be
// safe for concurrent use: the read loop and the caller record in parallel.
type Metrics interface {
	Counter(name string, labels MetricLabels) Counter
	Gauge(name string, labels MetricLabels) Gauge
	Histogram(name string, labels MetricLabels) Histogram
}

// Counter only goes up.
type Counter interface {
	Inc()
	Add(delta float64)
	Value() float64
}

// Gauge holds a value that is set or moved in both directions.
type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
	Add(delta float64)
	Sub(delta float64)
	Value() float64
}

// Histogram accumulates observations.
type Histogram interface {
	Observe(value float64)

	// ObserveDuration records d in seconds.
	ObserveDuration(d time.Duration)

	Count() uint64
	Sum() float64
}

// NoOpMetrics discards every sample. It is the client default.
type NoOpMetrics struct{}

func (*NoOpMetrics) Counter(string, MetricLabels) Counter     { return discard{} }
func (*NoOpMetrics) Gauge(string, MetricLabels) Gauge         { return discard{} }
func (*NoOpMetrics) Histogram(string, MetricLabels) Histogram { return discard{} }

// discard satisfies Counter, Gauge and Histogram.
type discard struct{}

func (discard) Inc()                          {}
func (discard) Dec()                          {}
func (discard) Set(float64)                   {}
func (discard) Add(float64)                   {}
func (discard) Sub(float64)                   {}
func (discard) Value() float64                { return 0 }
func (discard) Observe(float64)               {}
func (discard) ObserveDuration(time.Duration) {}
func (discard) Count() uint64                 { return 0 }
func (discard) Sum() float64                  { return 0 }

// Series recorded by ClientMetrics. Counters carry the _total suffix.
const (
	MetricPacketsSent     = "mqttsn_packets_sent_total"     // by msg_type
	MetricPacketsReceived = "mqttsn_packets_received_total" // by msg_type
	MetricPacketsDropped  = "mqttsn_packets_dropped_total"  // by reason
	MetricBytesSent       = "mqttsn_bytes_sent_total"
	MetricBytesReceived   = "mqttsn_bytes_received_total"
	MetricRetransmissions = "mqttsn_retransmissions_total" // by msg_type
	MetricTimeouts        = "mqttsn_timeouts_total"        // by msg_type
	MetricQueueDepth      = "mqttsn_queue_depth"
	MetricAckLatency      = "mqttsn_ack_latency_seconds" // by msg_type
	MetricEventsDropped   = "mqttsn_events_dropped_total"
)

// Label names.
const (
	LabelMsgType = "msg_type"
	LabelReason  = "reason"
)

// Drop reasons for MetricPacketsDropped.
const (
	dropReasonPort       = "port"
	dropReasonState      = "state"
	dropReasonMalformed  = "malformed"
	dropReasonUnexpected = "unexpected"
	dropReasonNoMatch    = "no_match"
)

// ClientMetrics provides convenience methods for the client's metrics.
type ClientMetrics struct {
	metrics Metrics
}

// NewClientMetrics creates a new ClientMetrics instance.
func NewClientMetrics(m Metrics) *ClientMetrics {
	if m == nil {
		m = &NoOpMetrics{}
	}
	return &ClientMetrics{metrics: m}
}

// PacketSent records a datagram handed to the transport.
func (c *ClientMetrics) PacketSent(t MsgType, n int) {
	c.metrics.Counter(MetricPacketsSent, MetricLabels{LabelMsgType: t.String()}).Inc()
	c.metrics.Counter(MetricBytesSent, nil).Add(float64(n))
}

// PacketReceived records an accepted inbound datagram.
func (c *ClientMetrics) PacketReceived(t MsgType, n int) {
	c.metrics.Counter(MetricPacketsReceived, MetricLabels{LabelMsgType: t.String()}).Inc()
	c.metrics.Counter(MetricBytesReceived, nil).Add(float64(n))
}

// PacketDropped records a discarded inbound datagram.
func (c *ClientMetrics) PacketDropped(reason string) {
	c.metrics.Counter(MetricPacketsDropped, MetricLabels{LabelReason: reason}).Inc()
}

// Retransmission records a resent request.
func (c *ClientMetrics) Retransmission(t MsgType) {
	c.metrics.Counter(MetricRetransmissions, MetricLabels{LabelMsgType: t.String()}).Inc()
}

// Timeout records a request that ran out of retries or was rejected.
func (c *ClientMetrics) Timeout(t MsgType) {
	c.metrics.Counter(MetricTimeouts, MetricLabels{LabelMsgType: t.String()}).Inc()
}

// QueueDepth records the number of in-flight packets.
func (c *ClientMetrics) QueueDepth(n int) {
	c.metrics.Gauge(MetricQueueDepth, nil).Set(float64(n))
}

// AckLatency records the round trip of an acknowledged request.
func (c *ClientMetrics) AckLatency(t MsgType, d time.Duration) {
	c.metrics.Histogram(MetricAckLatency, MetricLabels{LabelMsgType: t.String()}).ObserveDuration(d)
}

// EventDropped records an event the dispatcher could not buffer.
func (c *ClientMetrics) EventDropped() {
	c.metrics.Counter(MetricEventsDropped, nil).Inc()
}
