package shottimer

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpsp/internal/events"
)

type recordedCues struct {
	played []Cue
}

func (r *recordedCues) Play(c Cue) { r.played = append(r.played, c) }

type rig struct {
	settings *Settings
	detector *Detector
	cues     *recordedCues
	bus      *events.Bus
	shots    *ShotLog
	sched    *Scheduler
	recorded []ShotRecord
}

// newRig builds a scheduler with a 1.5s prestart, a 2s stage and two
// expected shots.
func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		settings: NewSettings(),
		cues:     &recordedCues{},
		bus:      events.NewBus(),
		shots:    NewShotLog(),
	}
	r.settings.SetTotalSeconds(2)
	r.settings.SetExpectedShots(2)
	r.detector = NewDetector(r.settings)
	r.sched = NewScheduler(r.settings, r.detector, r.cues, r.bus, r.shots, SchedulerOptions{
		Prestart: func() time.Duration { return ms(1500) },
		OnShot:   func(s ShotRecord) { r.recorded = append(r.recorded, s) },
	})
	return r
}

func (r *rig) drainEvents() []events.TimerEvent {
	var out []events.TimerEvent
	for {
		select {
		case ev := <-r.bus.Timer:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestRandomPrestart(t *testing.T) {
	for i := 0; i < 200; i++ {
		d := RandomPrestart()
		require.GreaterOrEqual(t, d, PrestartMin)
		require.LessOrEqual(t, d, PrestartMax)
		require.Zero(t, d%time.Millisecond)
	}
}

func TestScheduler_FullStage(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.sched.Start(0))
	assert.Equal(t, PhasePrestart, r.sched.Phase())

	disp := r.sched.Tick(ms(1000), 80)
	assert.Equal(t, Display{Phase: PhasePrestart, Remaining: ms(500)}, disp)
	assert.Empty(t, r.shots.Stage(), "no shots before the start cue")

	disp = r.sched.Tick(ms(1500), 0)
	assert.Equal(t, Display{Phase: PhaseRunning, Remaining: ms(2000)}, disp)

	r.sched.Tick(ms(2000), 60)
	r.sched.Tick(ms(2050), 60)
	r.sched.Tick(ms(2600), 60)

	disp = r.sched.Tick(ms(3500), 0)
	assert.Equal(t, Display{Phase: PhaseGrace, Remaining: GracePeriod}, disp)

	r.sched.Tick(ms(4000), 60)
	disp = r.sched.Tick(ms(5500), 0)
	assert.Equal(t, PhaseIdle, disp.Phase)
	r.sched.Tick(ms(5800), 60)

	want := []ShotRecord{
		{Index: 0, At: ms(2000), Raw: ms(2000), Elapsed: ms(500), Delta: ms(500), RMS: 60},
		{Index: 1, At: ms(2600), Raw: ms(2600), Elapsed: ms(1100), Delta: ms(600), RMS: 60},
		{Index: 2, At: ms(4000), Raw: ms(4000), Elapsed: ms(2500), Delta: ms(1400), RMS: 60, Late: true, OverCount: true},
	}
	if diff := cmp.Diff(want, r.shots.Stage()); diff != "" {
		t.Errorf("stage shots mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, r.recorded, 3)

	wantEvents := []events.TimerEvent{
		{Phase: events.TimerStarted, At: ms(1500)},
		{Phase: events.TimerFinished, At: ms(3500)},
		{Phase: events.TimerStopped, At: ms(5500)},
	}
	if diff := cmp.Diff(wantEvents, r.drainEvents()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []Cue{CueStart, CueEnd}, r.cues.played)
}

func TestScheduler_CoarseTickCrossesPhases(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.sched.Start(ms(100)))

	disp := r.sched.Tick(ms(10_000), 0)
	assert.Equal(t, PhaseIdle, disp.Phase)

	wantEvents := []events.TimerEvent{
		{Phase: events.TimerStarted, At: ms(1600)},
		{Phase: events.TimerFinished, At: ms(3600)},
		{Phase: events.TimerStopped, At: ms(5600)},
	}
	if diff := cmp.Diff(wantEvents, r.drainEvents()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestScheduler_StartWhileActive(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.sched.Start(0))
	assert.ErrorIs(t, r.sched.Start(ms(10)), ErrTimerActive)
}

func TestScheduler_StopKeepsShots(t *testing.T) {
	r := newRig(t)
	r.shots.SetStage("fbi", 2)
	require.NoError(t, r.sched.Start(0))
	r.sched.Tick(ms(1500), 0)
	r.sched.Tick(ms(1800), 70)

	assert.True(t, r.sched.Stop(ms(1900)))
	assert.False(t, r.sched.Stop(ms(1950)), "stopping an idle timer is a no-op")
	assert.Equal(t, PhaseIdle, r.sched.Phase())
	assert.Len(t, r.shots.Stage(), 1)

	r.sched.Tick(ms(2500), 70)
	assert.Len(t, r.shots.Stage(), 1, "no shots are recorded after a stop")

	wantEvents := []events.TimerEvent{
		{Phase: events.TimerStarted, At: ms(1500)},
		{Phase: events.TimerStopped, At: ms(1900)},
	}
	if diff := cmp.Diff(wantEvents, r.drainEvents()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, r.sched.Start(ms(3000)))
	assert.Equal(t, "2a", r.shots.AttemptLabel(), "a restart after a stop is a repeat attempt")
	assert.Empty(t, r.shots.Stage(), "a new run starts with an empty stage log")
}

func TestScheduler_ResetClearsSilently(t *testing.T) {
	r := newRig(t)
	r.shots.SetStage("fbi", 3)
	require.NoError(t, r.sched.Start(0))
	r.sched.Tick(ms(1500), 0)
	r.sched.Tick(ms(1800), 70)
	r.drainEvents()

	r.sched.Reset()
	assert.Equal(t, PhaseIdle, r.sched.Phase())
	assert.Empty(t, r.shots.Stage())
	assert.Empty(t, r.drainEvents())

	require.NoError(t, r.sched.Start(ms(5000)))
	assert.Equal(t, "3", r.shots.AttemptLabel())
}

func TestScheduler_OffsetAppliedAtRecord(t *testing.T) {
	r := newRig(t)
	r.settings.SetOffset(ms(40))
	require.NoError(t, r.sched.Start(0))
	r.sched.Tick(ms(1500), 0)
	r.sched.Tick(ms(2000), 90)

	shots := r.shots.Stage()
	require.Len(t, shots, 1)
	assert.Equal(t, ms(2000), shots[0].Raw)
	assert.Equal(t, ms(1960), shots[0].At)
	assert.Equal(t, ms(460), shots[0].Elapsed)
}

func TestScheduler_BeepOnShot(t *testing.T) {
	r := newRig(t)
	r.settings.SetBeepOnShot(true)
	require.NoError(t, r.sched.Start(0))
	r.sched.Tick(ms(1500), 0)
	r.sched.Tick(ms(1700), 90)

	assert.Equal(t, []Cue{CueStart, CueShot}, r.cues.played)
}

func TestScheduler_ListenModeRecordsNothing(t *testing.T) {
	r := newRig(t)
	r.detector.SetListenMode(true)
	require.NoError(t, r.sched.Start(0))
	r.sched.Tick(ms(1500), 0)
	r.sched.Tick(ms(1700), 90)

	assert.Empty(t, r.shots.Stage())
	assert.Equal(t, 90.0, r.detector.Level())
}
