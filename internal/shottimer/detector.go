package shottimer

import (
	"sync"
	"time"
)

// Shot is a detected peak. At is measured on the timer's clock.
type Shot struct {
	At  time.Duration
	RMS float64
}

type ShotHandler func(Shot)

// Detector turns a stream of energy samples into shots. A sample above the
// threshold is accepted when no shot has been accepted yet or the debounce
// window since the last one has passed.
type Detector struct {
	settings *Settings

	mu      sync.Mutex
	handler ShotHandler
	listen  bool
	primed  bool
	last    time.Duration
	level   float64
}

func NewDetector(settings *Settings) *Detector {
	return &Detector{settings: settings}
}

// Sample feeds one energy reading taken at now and reports whether it was
// accepted as a shot. In listen mode accepted peaks still advance the
// debounce window but are not handed to the handler.
func (d *Detector) Sample(now time.Duration, energy float64) bool {
	threshold := d.settings.Threshold()
	debounce := d.settings.Debounce()

	d.mu.Lock()
	d.level = energy
	if energy <= threshold || (d.primed && now-d.last <= debounce) {
		d.mu.Unlock()
		return false
	}
	d.primed = true
	d.last = now
	h := d.handler
	if d.listen {
		h = nil
	}
	d.mu.Unlock()

	if h != nil {
		h(Shot{At: now, RMS: energy})
	}
	return true
}

// SetHandler installs h and returns the handler it replaced.
func (d *Detector) SetHandler(h ShotHandler) ShotHandler {
	d.mu.Lock()
	defer d.mu.Unlock()
	prev := d.handler
	d.handler = h
	return prev
}

func (d *Detector) SetListenMode(on bool) {
	d.mu.Lock()
	d.listen = on
	d.mu.Unlock()
}

func (d *Detector) ListenMode() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listen
}

// Level is the most recent energy reading.
func (d *Detector) Level() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.level
}

// Release forgets the debounce state and leaves listen mode. Call it when
// the input device is closed.
func (d *Detector) Release() {
	d.mu.Lock()
	d.primed = false
	d.last = 0
	d.listen = false
	d.level = 0
	d.mu.Unlock()
}
