package shottimer

import (
	"strconv"
	"sync"
	"time"

	"rpsp/internal/metrics"
)

// ShotRecord is one shot in the current stage. At is the calibrated time
// (Raw minus the offset) and Elapsed is measured from the start cue. Late
// and OverCount are advisory and never cause a shot to be dropped.
type ShotRecord struct {
	Index     int
	At        time.Duration
	Raw       time.Duration
	Elapsed   time.Duration
	Delta     time.Duration
	RMS       float64
	Late      bool
	OverCount bool
}

// ArchivedShot is a stage shot moved into the participant log.
type ArchivedShot struct {
	ShotRecord
	ParticipantIndex int
	CourseID         string
	CourseName       string
	StageID          string
}

// ShotLog keeps the current stage's shots and every shot archived for the
// current participant.
type ShotLog struct {
	mu          sync.Mutex
	stage       []ShotRecord
	participant []ArchivedShot
	attempts    map[string]int
	key         string
	stageID     string
}

func NewShotLog() *ShotLog {
	return &ShotLog{attempts: make(map[string]int)}
}

func (l *ShotLog) add(raw, at, elapsed time.Duration, rms float64, duration time.Duration, expected int) ShotRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := ShotRecord{
		Index:     len(l.stage),
		At:        at,
		Raw:       raw,
		Elapsed:   elapsed,
		Delta:     elapsed,
		RMS:       rms,
		Late:      elapsed > duration,
		OverCount: len(l.stage) >= expected,
	}
	if n := len(l.stage); n > 0 {
		rec.Delta = at - l.stage[n-1].At
	}
	l.stage = append(l.stage, rec)
	metrics.ShotsRecorded.Inc()
	return rec
}

// Stage returns a copy of the current stage's shots.
func (l *ShotLog) Stage() []ShotRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ShotRecord, len(l.stage))
	copy(out, l.stage)
	return out
}

// Participant returns a copy of every archived shot.
func (l *ShotLog) Participant() []ArchivedShot {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ArchivedShot, len(l.participant))
	copy(out, l.participant)
	return out
}

func (l *ShotLog) ClearStage() {
	l.mu.Lock()
	l.stage = nil
	l.mu.Unlock()
}

// ClearParticipant starts a new participant.
func (l *ShotLog) ClearParticipant() {
	l.mu.Lock()
	l.participant = nil
	l.mu.Unlock()
}

// SetStage makes stage the context for attempt labels.
func (l *ShotLog) SetStage(courseID string, stageID int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stageID = strconv.Itoa(stageID)
	l.key = courseID + ":" + l.stageID
	if l.attempts[l.key] == 0 {
		l.attempts[l.key] = 1
	}
}

// NextAttempt marks the current stage as repeated.
func (l *ShotLog) NextAttempt() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.key == "" {
		return
	}
	l.attempts[l.key]++
}

// AttemptLabel names the current stage attempt: "2" for the first run,
// then "2a" to "2z" for repeats and "2-28" onwards after that.
func (l *ShotLog) AttemptLabel() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.labelLocked()
}

func (l *ShotLog) labelLocked() string {
	n := l.attempts[l.key]
	switch {
	case l.key == "" || n <= 1:
		return l.stageID
	case n <= 27:
		return l.stageID + string(rune('a'+n-2))
	}
	return l.stageID + "-" + strconv.Itoa(n)
}

// Archive moves the stage shots into the participant log under the current
// attempt label and returns how many were moved.
func (l *ShotLog) Archive(course Course) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	label := l.labelLocked()
	for _, s := range l.stage {
		l.participant = append(l.participant, ArchivedShot{
			ShotRecord:       s,
			ParticipantIndex: len(l.participant),
			CourseID:         course.ID,
			CourseName:       course.Name,
			StageID:          label,
		})
	}
	n := len(l.stage)
	l.stage = nil
	return n
}
