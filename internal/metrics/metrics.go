package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	streamFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_console_stream_frames_total",
		Help: "Frames received on the live event stream grouped by category and outcome",
	}, []string{"category", "outcome"})

	streamReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_console_stream_reconnects_total",
		Help: "Reconnect attempts made by the live event stream client",
	})

	streamState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "game_console_stream_state",
		Help: "Current connection state of the live event stream client (1 for the active state)",
	}, []string{"state"})

	relayClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_console_relay_clients",
		Help: "Number of SSE clients connected to the relay",
	})

	relayPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_console_relay_published_total",
		Help: "Envelopes published through the relay grouped by category",
	}, []string{"category"})

	relayReplayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_console_relay_replayed_total",
		Help: "Deployment frames replayed to reconnecting clients",
	})

	relayTrimmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_console_relay_log_trimmed_total",
		Help: "Event log entries removed by the maintenance worker",
	})
)

// ObserveFrame records the outcome of processing one stream frame.
func ObserveFrame(category, outcome string) {
	if category == "" {
		category = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	streamFrames.WithLabelValues(category, outcome).Inc()
}

// ObserveReconnect counts one reconnect attempt.
func ObserveReconnect() {
	streamReconnects.Inc()
}

// SetStreamState marks state as the active connection state.
func SetStreamState(state string, all []string) {
	for _, s := range all {
		if s == state {
			streamState.WithLabelValues(s).Set(1)
			continue
		}
		streamState.WithLabelValues(s).Set(0)
	}
}

// RelayClientConnected adjusts the connected client gauge.
func RelayClientConnected(delta int) {
	relayClients.Add(float64(delta))
}

// ObservePublish counts a published envelope.
func ObservePublish(category string) {
	relayPublished.WithLabelValues(category).Inc()
}

// ObserveReplay counts replayed frames.
func ObserveReplay(n int) {
	if n > 0 {
		relayReplayed.Add(float64(n))
	}
}

// ObserveTrim counts log entries removed by maintenance.
func ObserveTrim(n int64) {
	if n > 0 {
		relayTrimmed.Add(float64(n))
	}
}
