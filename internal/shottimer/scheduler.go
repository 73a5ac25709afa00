package shottimer

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rpsp/internal/events"
	"rpsp/internal/logging"
)

const (
	PrestartMin = 1000 * time.Millisecond
	PrestartMax = 3000 * time.Millisecond
	GracePeriod = 2000 * time.Millisecond
)

var ErrTimerActive = errors.New("timer already active")

type Phase int

const (
	PhaseIdle Phase = iota
	PhasePrestart
	PhaseRunning
	PhaseGrace
)

func (p Phase) String() string {
	switch p {
	case PhasePrestart:
		return "prestart"
	case PhaseRunning:
		return "running"
	case PhaseGrace:
		return "grace"
	}
	return "idle"
}

// Cue is an audible signal.
type Cue int

const (
	CueStart Cue = iota
	CueEnd
	CueShot
	CueCalibrate
)

// CuePlayer plays cues. Play must not block for the length of the tone.
type CuePlayer interface {
	Play(Cue)
}

// Display is what the clock shows after a tick.
type Display struct {
	Phase     Phase
	Remaining time.Duration
}

// SchedulerOptions customise a Scheduler. Zero values use the defaults.
type SchedulerOptions struct {
	// Prestart picks the random delay before the start cue.
	Prestart func() time.Duration
	// OnShot is called for every recorded shot.
	OnShot func(ShotRecord)
}

// RandomPrestart returns a uniform delay in [PrestartMin, PrestartMax] at
// millisecond resolution.
func RandomPrestart() time.Duration {
	span := int64((PrestartMax - PrestartMin) / time.Millisecond)
	return PrestartMin + time.Duration(rand.Int64N(span+1))*time.Millisecond
}

// Scheduler runs a stage: a random prestart delay, the timed run and a
// grace period for trailing shots. It only moves when Tick is called, so
// the caller's clock drives both the countdown and the detector.
type Scheduler struct {
	settings *Settings
	detector *Detector
	cues     CuePlayer
	bus      *events.Bus
	shots    *ShotLog
	prestart func() time.Duration
	onShot   func(ShotRecord)
	log      zerolog.Logger

	mu         sync.Mutex
	phase      Phase
	phaseStart time.Duration
	delay      time.Duration
	duration   time.Duration
	startedAt  time.Duration
	stopped    bool
}

func NewScheduler(settings *Settings, detector *Detector, cues CuePlayer, bus *events.Bus, shots *ShotLog, opts SchedulerOptions) *Scheduler {
	s := &Scheduler{
		settings: settings,
		detector: detector,
		cues:     cues,
		bus:      bus,
		shots:    shots,
		prestart: opts.Prestart,
		onShot:   opts.OnShot,
		log:      logging.Component("shottimer"),
	}
	if s.prestart == nil {
		s.prestart = RandomPrestart
	}
	detector.SetHandler(s.record)
	return s
}

func (s *Scheduler) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Start begins the prestart countdown and clears the stage log. Starting
// again after a Stop counts as a new attempt at the same stage.
func (s *Scheduler) Start(now time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseIdle {
		return ErrTimerActive
	}
	if s.stopped {
		s.shots.NextAttempt()
		s.stopped = false
	}
	s.shots.ClearStage()
	s.phase = PhasePrestart
	s.phaseStart = now
	s.delay = s.prestart()
	s.duration = s.settings.Duration()
	s.log.Debug().Dur("prestart", s.delay).Dur("duration", s.duration).Msg("stage armed")
	return nil
}

// Stop ends the stage early. Recorded shots are kept.
func (s *Scheduler) Stop(now time.Duration) bool {
	s.mu.Lock()
	if s.phase == PhaseIdle {
		s.mu.Unlock()
		return false
	}
	s.phase = PhaseIdle
	s.stopped = true
	s.mu.Unlock()

	s.publish(events.TimerStopped, now)
	return true
}

// Reset returns to idle and clears the stage's shots without emitting any
// lifecycle event.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.phase = PhaseIdle
	s.stopped = false
	s.mu.Unlock()
	s.shots.ClearStage()
}

// Tick advances the phases to now, then samples the detector with energy.
func (s *Scheduler) Tick(now time.Duration, energy float64) Display {
	s.mu.Lock()
	var fired []events.TimerEvent
	for {
		ev, ok := s.advanceLocked(now)
		if !ok {
			break
		}
		fired = append(fired, ev)
	}
	s.mu.Unlock()

	for _, ev := range fired {
		switch ev.Phase {
		case events.TimerStarted:
			s.cues.Play(CueStart)
		case events.TimerFinished:
			s.cues.Play(CueEnd)
		}
		s.publish(ev.Phase, ev.At)
	}

	s.detector.Sample(now, energy)
	return s.display(now)
}

// advanceLocked performs at most one transition. Transitions happen at
// their exact boundary so a coarse tick does not stretch a phase.
func (s *Scheduler) advanceLocked(now time.Duration) (events.TimerEvent, bool) {
	switch s.phase {
	case PhasePrestart:
		at := s.phaseStart + s.delay
		if now < at {
			return events.TimerEvent{}, false
		}
		s.phase = PhaseRunning
		s.phaseStart = at
		s.startedAt = at
		return events.TimerEvent{Phase: events.TimerStarted, At: at}, true
	case PhaseRunning:
		at := s.startedAt + s.duration
		if now < at {
			return events.TimerEvent{}, false
		}
		s.phase = PhaseGrace
		s.phaseStart = at
		return events.TimerEvent{Phase: events.TimerFinished, At: at}, true
	case PhaseGrace:
		at := s.phaseStart + GracePeriod
		if now < at {
			return events.TimerEvent{}, false
		}
		s.phase = PhaseIdle
		return events.TimerEvent{Phase: events.TimerStopped, At: at}, true
	}
	return events.TimerEvent{}, false
}

func (s *Scheduler) display(now time.Duration) Display {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := Display{Phase: s.phase}
	switch s.phase {
	case PhasePrestart:
		d.Remaining = s.delay - (now - s.phaseStart)
	case PhaseRunning:
		d.Remaining = s.duration - (now - s.startedAt)
	case PhaseGrace:
		d.Remaining = GracePeriod - (now - s.phaseStart)
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	return d
}

func (s *Scheduler) record(shot Shot) {
	s.mu.Lock()
	if s.phase != PhaseRunning && s.phase != PhaseGrace {
		s.mu.Unlock()
		return
	}
	at := shot.At - s.settings.Offset()
	if at < 0 {
		at = 0
	}
	rec := s.shots.add(shot.At, at, at-s.startedAt, shot.RMS, s.duration, s.settings.ExpectedShots())
	s.mu.Unlock()

	s.log.Debug().Int("idx", rec.Index).Dur("elapsed", rec.Elapsed).Float64("rms", rec.RMS).Msg("shot recorded")
	if s.settings.BeepOnShot() {
		s.cues.Play(CueShot)
	}
	if s.onShot != nil {
		s.onShot(rec)
	}
}

func (s *Scheduler) publish(phase events.TimerPhase, at time.Duration) {
	s.log.Debug().Str("phase", string(phase)).Dur("at", at).Msg("timer event")
	if s.bus == nil {
		return
	}
	if !s.bus.PublishTimer(events.TimerEvent{Phase: phase, At: at}) {
		s.log.Warn().Str("phase", string(phase)).Msg("timer event queue full, dropping event")
	}
}
