package shottimer

import (
	"math"
	"sync"
	"time"
)

const (
	DefaultTotalSeconds  = 5
	DefaultExpectedShots = 3
	DefaultThreshold     = 30.0
	DefaultDebounce      = 100 * time.Millisecond

	MaxThreshold = 127.0
)

// Settings holds the user-tunable timer parameters. The setters ignore
// invalid input and leave the previous value in place.
type Settings struct {
	mu            sync.RWMutex
	totalSeconds  int
	expectedShots int
	threshold     float64
	debounce      time.Duration
	offset        time.Duration
	beepOnShot    bool
}

func NewSettings() *Settings {
	return &Settings{
		totalSeconds:  DefaultTotalSeconds,
		expectedShots: DefaultExpectedShots,
		threshold:     DefaultThreshold,
		debounce:      DefaultDebounce,
	}
}

func (s *Settings) TotalSeconds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalSeconds
}

// Duration is the stage length.
func (s *Settings) Duration() time.Duration {
	return time.Duration(s.TotalSeconds()) * time.Second
}

func (s *Settings) SetTotalSeconds(n int) {
	if n < 1 {
		return
	}
	s.mu.Lock()
	s.totalSeconds = n
	s.mu.Unlock()
}

func (s *Settings) ExpectedShots() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expectedShots
}

func (s *Settings) SetExpectedShots(n int) {
	if n < 0 {
		return
	}
	s.mu.Lock()
	s.expectedShots = n
	s.mu.Unlock()
}

func (s *Settings) Threshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold
}

// SetThreshold clamps v to the 0-127 energy scale.
func (s *Settings) SetThreshold(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	s.mu.Lock()
	s.threshold = math.Min(MaxThreshold, math.Max(0, v))
	s.mu.Unlock()
}

func (s *Settings) Debounce() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.debounce
}

func (s *Settings) SetDebounce(d time.Duration) {
	if d < 0 {
		return
	}
	s.mu.Lock()
	s.debounce = d.Round(time.Millisecond)
	s.mu.Unlock()
}

// Offset is the measured detection latency subtracted from raw shot times.
func (s *Settings) Offset() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

func (s *Settings) SetOffset(d time.Duration) {
	s.mu.Lock()
	s.offset = d.Round(time.Millisecond)
	s.mu.Unlock()
}

func (s *Settings) BeepOnShot() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.beepOnShot
}

func (s *Settings) SetBeepOnShot(on bool) {
	s.mu.Lock()
	s.beepOnShot = on
	s.mu.Unlock()
}
