// Package metrics exposes session-layer counters to Prometheus and keeps a
// small traffic tally for the periodic terminal report.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "matchlink"

// Metrics groups every collector the session layer updates. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	messagesSent     prometheus.Counter
	messagesReceived prometheus.Counter
	malformedFrames  prometheus.Counter
	reconnects       prometheus.Counter
	connectionState  prometheus.Gauge
	matchesStarted   prometheus.Counter
	peerStates       *prometheus.CounterVec
	results          *prometheus.CounterVec

	bytesSent atomic.Int64
	bytesRecv atomic.Int64
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		messagesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "socket", Name: "messages_sent_total",
			Help: "Messages written to the server socket.",
		}),
		messagesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "socket", Name: "messages_received_total",
			Help: "Well-formed messages read from the server socket.",
		}),
		malformedFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "socket", Name: "malformed_frames_total",
			Help: "Inbound frames dropped because they were not valid messages.",
		}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "socket", Name: "reconnects_scheduled_total",
			Help: "Reconnect attempts scheduled after an abnormal close.",
		}),
		connectionState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "socket", Name: "connection_state",
			Help: "0=disconnected 1=connecting 2=connected 3=reconnecting.",
		}),
		matchesStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "match", Name: "started_total",
			Help: "Matches started from match_found.",
		}),
		peerStates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "peer", Name: "state_transitions_total",
			Help: "Peer session state transitions by target state.",
		}, []string{"state"}),
		results: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "match", Name: "results_total",
			Help: "report_result_response messages by result kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) MessageSent(n int) {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
	m.bytesSent.Add(int64(n))
}

func (m *Metrics) MessageReceived(n int) {
	if m == nil {
		return
	}
	m.messagesReceived.Inc()
	m.bytesRecv.Add(int64(n))
}

func (m *Metrics) MalformedFrame() {
	if m == nil {
		return
	}
	m.malformedFrames.Inc()
}

func (m *Metrics) ReconnectScheduled() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) ConnectionState(v int) {
	if m == nil {
		return
	}
	m.connectionState.Set(float64(v))
}

func (m *Metrics) MatchStarted() {
	if m == nil {
		return
	}
	m.matchesStarted.Inc()
}

func (m *Metrics) PeerState(state string) {
	if m == nil {
		return
	}
	m.peerStates.WithLabelValues(state).Inc()
}

// OtherResult is the kind label for result responses outside the known set.
const OtherResult = "other"

func (m *Metrics) Result(kind string) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(kind).Inc()
}

// Serve exposes g on addr under /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
