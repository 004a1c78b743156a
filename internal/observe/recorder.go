// Package observe records authentication events. The auth core reports what
// happened; recorders decide whether that becomes a log line, a counter or both.
package observe

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type EventKind string

const (
	EventRegistered        EventKind = "registered"
	EventLoginSucceeded    EventKind = "login_succeeded"
	EventLoginFailed       EventKind = "login_failed"
	EventExternalLogin     EventKind = "external_login"
	EventLogout            EventKind = "logout"
	EventTokenRejected     EventKind = "token_rejected"
	EventRefreshRotated    EventKind = "refresh_rotated"
	EventRefreshReuse      EventKind = "refresh_reuse_detected"
	EventSessionRevoked    EventKind = "session_revoked"
	EventDeviceTrusted     EventKind = "device_trusted"
	EventDeviceBlocked     EventKind = "device_blocked"
	EventAccountRestricted EventKind = "account_restricted"
	EventRoleChanged       EventKind = "role_changed"
	EventRateLimited       EventKind = "rate_limited"
)

type Event struct {
	Kind      EventKind
	UserID    string
	SessionID string
	DeviceID  string
	IP        string
	Reason    string
}

type Recorder interface {
	Record(ctx context.Context, event Event)
}

type nop struct{}

func (nop) Record(context.Context, Event) {}

// Nop discards every event.
func Nop() Recorder { return nop{} }

type multi []Recorder

func (m multi) Record(ctx context.Context, event Event) {
	for _, r := range m {
		r.Record(ctx, event)
	}
}

func Multi(recorders ...Recorder) Recorder {
	out := make(multi, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type LogRecorder struct {
	logger zerolog.Logger
}

func NewLogRecorder(logger zerolog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger.With().Str("component", "auth").Logger()}
}

func (r *LogRecorder) Record(_ context.Context, event Event) {
	var ev *zerolog.Event
	switch event.Kind {
	case EventRefreshReuse, EventDeviceBlocked, EventAccountRestricted:
		ev = r.logger.Warn()
	case EventLoginFailed, EventTokenRejected, EventRateLimited:
		ev = r.logger.Info()
	default:
		ev = r.logger.Debug()
	}

	ev = ev.Str("event", string(event.Kind))
	if event.UserID != "" {
		ev = ev.Str("user_id", event.UserID)
	}
	if event.SessionID != "" {
		ev = ev.Str("session_id", event.SessionID)
	}
	if event.DeviceID != "" {
		ev = ev.Str("device_id", event.DeviceID)
	}
	if event.IP != "" {
		ev = ev.Str("ip", event.IP)
	}
	if event.Reason != "" {
		ev = ev.Str("reason", event.Reason)
	}
	ev.Msg("auth event")
}

type MetricsRecorder struct {
	events *prometheus.CounterVec
}

func NewMetricsRecorder(reg prometheus.Registerer) (*MetricsRecorder, error) {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boomscore",
		Subsystem: "identity",
		Name:      "auth_events_total",
		Help:      "Authentication events by kind.",
	}, []string{"kind"})

	if err := reg.Register(events); err != nil {
		return nil, err
	}
	return &MetricsRecorder{events: events}, nil
}

func (r *MetricsRecorder) Record(_ context.Context, event Event) {
	r.events.WithLabelValues(string(event.Kind)).Inc()
}
