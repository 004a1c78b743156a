package observe

import (
	"bytes"
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	rec := NewLogRecorder(zerolog.New(&buf))

	rec.Record(context.Background(), Event{Kind: EventRefreshReuse, UserID: "u1", Reason: "used token presented"})

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"event":"refresh_reuse_detected"`)
	assert.Contains(t, out, `"user_id":"u1"`)
	assert.NotContains(t, out, "session_id")
}

func TestMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewMetricsRecorder(reg)
	require.NoError(t, err)

	ctx := context.Background()
	rec.Record(ctx, Event{Kind: EventLoginFailed})
	rec.Record(ctx, Event{Kind: EventLoginFailed})
	rec.Record(ctx, Event{Kind: EventLogout})

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.events.WithLabelValues(string(EventLoginFailed))))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.events.WithLabelValues(string(EventLogout))))

	_, err = NewMetricsRecorder(reg)
	assert.Error(t, err, "registering twice on one registry fails")
}

func TestMulti(t *testing.T) {
	var a, b bytes.Buffer
	rec := Multi(NewLogRecorder(zerolog.New(&a)), nil, NewLogRecorder(zerolog.New(&b)))
	rec.Record(context.Background(), Event{Kind: EventLoginFailed})

	assert.NotEmpty(t, a.String())
	assert.NotEmpty(t, b.String())
	Nop().Record(context.Background(), Event{Kind: EventLogout})
}
