package shottimer

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestRMS(t *testing.T) {
	assert.Zero(t, RMS(nil))

	silence := make([]byte, 128)
	for i := range silence {
		silence[i] = 128
	}
	assert.Zero(t, RMS(silence))

	square := make([]byte, 128)
	for i := range square {
		if i%2 == 0 {
			square[i] = 128 + 64
		} else {
			square[i] = 128 - 64
		}
	}
	assert.InDelta(t, 64.0, RMS(square), 1e-9)
}

func TestSettings_Defaults(t *testing.T) {
	s := NewSettings()
	assert.Equal(t, 5, s.TotalSeconds())
	assert.Equal(t, 5*time.Second, s.Duration())
	assert.Equal(t, 3, s.ExpectedShots())
	assert.Equal(t, 30.0, s.Threshold())
	assert.Equal(t, ms(100), s.Debounce())
	assert.Zero(t, s.Offset())
	assert.False(t, s.BeepOnShot())
}

func TestSettings_IgnoreInvalid(t *testing.T) {
	s := NewSettings()
	s.SetTotalSeconds(0)
	s.SetExpectedShots(-1)
	s.SetDebounce(-time.Millisecond)
	assert.Equal(t, 5, s.TotalSeconds())
	assert.Equal(t, 3, s.ExpectedShots())
	assert.Equal(t, ms(100), s.Debounce())

	s.SetExpectedShots(0)
	assert.Equal(t, 0, s.ExpectedShots())

	s.SetThreshold(500)
	assert.Equal(t, 127.0, s.Threshold())
	s.SetThreshold(-3)
	assert.Equal(t, 0.0, s.Threshold())
	s.SetThreshold(42)
	s.SetThreshold(math.NaN())
	assert.Equal(t, 42.0, s.Threshold())
}

func TestDetector_FirstSampleAlwaysEligible(t *testing.T) {
	d := NewDetector(NewSettings())
	var got []Shot
	d.SetHandler(func(s Shot) { got = append(got, s) })

	assert.True(t, d.Sample(0, 50))
	require.Len(t, got, 1)
	assert.Equal(t, Shot{At: 0, RMS: 50}, got[0])
}

func TestDetector_Debounce(t *testing.T) {
	tests := []struct {
		name string
		gap  time.Duration
		want int
	}{
		{"inside window", ms(50), 1},
		{"at window edge", ms(100), 1},
		{"outside window", ms(150), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(NewSettings())
			n := 0
			d.SetHandler(func(Shot) { n++ })
			d.Sample(ms(1000), 60)
			d.Sample(ms(1000)+tt.gap, 60)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestDetector_Threshold(t *testing.T) {
	d := NewDetector(NewSettings())
	n := 0
	d.SetHandler(func(Shot) { n++ })

	assert.False(t, d.Sample(ms(10), 30), "energy equal to the threshold is not a shot")
	assert.False(t, d.Sample(ms(500), 12))
	assert.Equal(t, 12.0, d.Level())
	assert.Zero(t, n)
}

func TestDetector_ListenModeAdvancesDebounce(t *testing.T) {
	d := NewDetector(NewSettings())
	var got []Shot
	d.SetHandler(func(s Shot) { got = append(got, s) })

	d.SetListenMode(true)
	assert.True(t, d.Sample(ms(1000), 80))
	assert.Empty(t, got)
	assert.Equal(t, 80.0, d.Level())

	d.SetListenMode(false)
	assert.False(t, d.Sample(ms(1050), 80), "listen-mode peak still holds the debounce window")
	assert.True(t, d.Sample(ms(1200), 80))
	require.Len(t, got, 1)
	assert.Equal(t, ms(1200), got[0].At)
}

func TestDetector_SetHandlerReturnsPrevious(t *testing.T) {
	d := NewDetector(NewSettings())
	first := 0
	d.SetHandler(func(Shot) { first++ })

	prev := d.SetHandler(func(Shot) {})
	require.NotNil(t, prev)
	prev(Shot{})
	assert.Equal(t, 1, first)
}

func TestDetector_Release(t *testing.T) {
	d := NewDetector(NewSettings())
	n := 0
	d.SetHandler(func(Shot) { n++ })
	d.SetListenMode(true)
	d.Sample(ms(1000), 80)

	d.Release()
	assert.False(t, d.ListenMode())
	assert.Zero(t, d.Level())
	assert.True(t, d.Sample(ms(1010), 80), "release clears the debounce window")
	assert.Equal(t, 1, n)
}
