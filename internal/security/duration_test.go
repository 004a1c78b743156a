package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"15m", 15 * time.Minute},
		{"7d", 7 * 24 * time.Hour},
		{"2h", 2 * time.Hour},
		{"30s", 30 * time.Second},
		{"1w", 7 * 24 * time.Hour},
		{"500ms", 500 * time.Millisecond},
		{"3600", time.Hour},
		{" 10M ", 10 * time.Minute},
		{"", DefaultTTL},
		{"fifteen minutes", DefaultTTL},
		{"-5m", DefaultTTL},
		{"0d", DefaultTTL},
		{"1y", DefaultTTL},
		{"1h30m", DefaultTTL},
		{"9223372036854775807", DefaultTTL},
		{"99999999999999999999", DefaultTTL},
		{"200000w", DefaultTTL},
		{"999999999999d", DefaultTTL},
		{"106751d", 106751 * 24 * time.Hour},
		{"106752d", DefaultTTL},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTTL(tt.in, 0))
		})
	}
}

func TestParseTTL_Fallback(t *testing.T) {
	assert.Equal(t, time.Hour, ParseTTL("bogus", time.Hour))
	assert.Equal(t, time.Hour, ParseTTL("200000w", time.Hour), "overflow never turns negative")
}
