package monitoring

import (
	"watchparty/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements the MetricsRecorder port on top of
// promauto-registered collectors.
type PrometheusCollector struct {
	reconciliations   *prometheus.CounterVec
	suppressedEvents  prometheus.Counter
	playbackPublishes prometheus.Counter
	signalingStates   *prometheus.CounterVec
	heartbeats        prometheus.Counter
	candidatesWritten *prometheus.CounterVec
	chatMessages      prometheus.Counter

	gatewayConnections prometheus.Gauge
	watchedRooms       prometheus.Gauge
}

var _ ports.MetricsRecorder = (*PrometheusCollector)(nil)

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		reconciliations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "watchparty_playback_reconciliations_total",
			Help: "Playback snapshots applied to the local player",
		}, []string{"status"}),

		suppressedEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "watchparty_playback_suppressed_events_total",
			Help: "Local player transitions dropped inside the sync window",
		}),

		playbackPublishes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "watchparty_playback_publishes_total",
			Help: "Host playback transitions written to the store",
		}),

		signalingStates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "watchparty_voice_state_transitions_total",
			Help: "Voice session state machine transitions",
		}, []string{"state"}),

		heartbeats: promauto.NewCounter(prometheus.CounterOpts{
			Name: "watchparty_presence_heartbeats_total",
			Help: "Participant presence heartbeats written",
		}),

		candidatesWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "watchparty_ice_candidates_written_total",
			Help: "ICE candidates published per signaling role",
		}, []string{"role"}),

		chatMessages: promauto.NewCounter(prometheus.CounterOpts{
			Name: "watchparty_chat_messages_total",
			Help: "Chat messages accepted",
		}),

		gatewayConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "watchparty_gateway_connections",
			Help: "Currently open gateway WebSocket connections",
		}),

		watchedRooms: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "watchparty_gateway_watched_rooms",
			Help: "Distinct rooms with at least one gateway connection",
		}),
	}
}

func (c *PrometheusCollector) RecordReconciliation(play bool) {
	status := "pause"
	if play {
		status = "play"
	}
	c.reconciliations.WithLabelValues(status).Inc()
}

func (c *PrometheusCollector) RecordSuppressedEvent() {
	c.suppressedEvents.Inc()
}

func (c *PrometheusCollector) RecordPlaybackPublish() {
	c.playbackPublishes.Inc()
}

func (c *PrometheusCollector) RecordSignalingState(state string) {
	c.signalingStates.WithLabelValues(state).Inc()
}

func (c *PrometheusCollector) RecordHeartbeat() {
	c.heartbeats.Inc()
}

func (c *PrometheusCollector) RecordCandidateWritten(role string) {
	c.candidatesWritten.WithLabelValues(role).Inc()
}

func (c *PrometheusCollector) RecordChatMessage() {
	c.chatMessages.Inc()
}

// UpdateGatewayStats refreshes the connection gauges.
func (c *PrometheusCollector) UpdateGatewayStats(connections, rooms int) {
	c.gatewayConnections.Set(float64(connections))
	c.watchedRooms.Set(float64(rooms))
}
