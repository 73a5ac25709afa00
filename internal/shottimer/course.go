package shottimer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	ErrNoStages     = errors.New("course has no stages")
	ErrUnknownStage = errors.New("unknown stage")
)

type Stage struct {
	ID            int     `json:"id"`
	Shots         int     `json:"shots"`
	TimeSec       int     `json:"timeSec"`
	Distance      float64 `json:"distance,omitempty"`
	StartPosition string  `json:"startPosition,omitempty"`
	Notes         string  `json:"notes,omitempty"`
}

type Scoring struct {
	Rules        []string `json:"rules"`
	Rounds       int      `json:"rounds"`
	TotalTimeSec int      `json:"totalTimeSec"`
}

// Course is a fixed sequence of stages.
type Course struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Notes   string  `json:"notes,omitempty"`
	Stages  []Stage `json:"stages"`
	Scoring Scoring `json:"scoring"`
}

func LoadCourse(r io.Reader) (Course, error) {
	var c Course
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return Course{}, fmt.Errorf("decoding course: %w", err)
	}
	if len(c.Stages) == 0 {
		return Course{}, ErrNoStages
	}
	return c, nil
}

func LoadCourseFile(path string) (Course, error) {
	f, err := os.Open(path)
	if err != nil {
		return Course{}, err
	}
	defer f.Close()
	return LoadCourse(f)
}

// Session walks a participant through a course.
type Session struct {
	course    Course
	idx       int
	settings  *Settings
	scheduler *Scheduler
	shots     *ShotLog
}

// NewSession applies the first stage of course.
func NewSession(course Course, settings *Settings, scheduler *Scheduler, shots *ShotLog) (*Session, error) {
	if len(course.Stages) == 0 {
		return nil, ErrNoStages
	}
	s := &Session{course: course, settings: settings, scheduler: scheduler, shots: shots}
	s.apply(0)
	return s, nil
}

func (s *Session) Course() Course { return s.course }

func (s *Session) Stage() Stage { return s.course.Stages[s.idx] }

// IsLast reports whether the current stage is the course's final stage.
func (s *Session) IsLast() bool { return s.idx == len(s.course.Stages)-1 }

// Select applies the stage with the given id.
func (s *Session) Select(id int) error {
	for i, st := range s.course.Stages {
		if st.ID == id {
			s.scheduler.Reset()
			s.apply(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrUnknownStage, id)
}

// Next archives the current stage's shots, resets the timer and applies
// the following stage, wrapping to the first after the last. It returns
// the number of shots archived.
func (s *Session) Next() int {
	n := s.shots.Archive(s.course)
	s.scheduler.Reset()
	s.apply((s.idx + 1) % len(s.course.Stages))
	return n
}

// Finish archives the current stage without moving on.
func (s *Session) Finish() int {
	return s.shots.Archive(s.course)
}

func (s *Session) apply(i int) {
	s.idx = i
	st := s.course.Stages[i]
	s.settings.SetTotalSeconds(st.TimeSec)
	s.settings.SetExpectedShots(st.Shots)
	s.shots.SetStage(s.course.ID, st.ID)
}
