package pcap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScaleTicks(t *testing.T) {
	tests := []struct {
		name  string
		ticks int64
		units int64
		want  int64
	}{
		{"unknown resolution", 12345, 0, NoTimestamp},
		{"microseconds passthrough", 1_500_000, 1_000_000, 1_500_000},
		{"nanoseconds", 1_500_000_000, 1_000_000_000, 1_500_000},
		{"milliseconds", 1500, 1000, 1_500_000},
		{"seconds", 3, 1, 3_000_000},
		{"power of two", 1 << 20, 1 << 10, 1_024_000_000},
		{"odd divisor", 1024, 1 << 20, 976}, // 1024 * 1e6 / 2^20
		{"zero ticks", 0, 1 << 20, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scaleTicks(tt.ticks, tt.units))
		})
	}
}

func TestScaleTicksOverflow(t *testing.T) {
	// Nanoseconds since 1970 for a 2020-era date overflow when first
	// multiplied by 1e6. With an odd resolution this takes the
	// floating-point fallback and must stay close to the exact value.
	ticks := int64(1_600_000_000_000_000_000)
	units := int64(999_999_937) // prime, forces the generic path
	got := scaleTicks(ticks, units)
	want := int64(float64(ticks) / float64(units) * 1_000_000)
	assert.InDelta(t, want, got, 1_000) // within a millisecond
	assert.Greater(t, got, int64(0))
	assert.Less(t, got, int64(math.MaxInt64))
}

func TestClassicTimestamp(t *testing.T) {
	assert.Equal(t, int64(1_500_000), classicTimestamp(1, 500_000, 1_000_000))
	assert.Equal(t, int64(1_500_000), classicTimestamp(1, 500_000_000, 1_000_000_000))
	assert.Equal(t, int64(0), classicTimestamp(0, 0, 1_000_000))
}

func TestToTime(t *testing.T) {
	assert.True(t, ToTime(NoTimestamp).IsZero())
	assert.Equal(t, int64(1_700_000_000), ToTime(1_700_000_000_000_000).Unix())
}
