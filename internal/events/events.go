package events

import "time"

type TimerPhase string

const (
	TimerStarted  = TimerPhase("started")
	TimerFinished = TimerPhase("finished")
	TimerStopped  = TimerPhase("stopped")
)

// TimerEvent marks a shot timer lifecycle transition. At is measured on the
// timer's clock.
type TimerEvent struct {
	Phase TimerPhase
	At    time.Duration
}

// RoundEvent is published once per resolved round.
type RoundEvent struct {
	RoomCode string
	MatchID  string
	Round    int
	Verdict  string
	Tag      string
	Choices  map[string]string
	Winners  []string
	Scores   map[string]int
	Finished bool
	WinnerID string
	At       time.Time
}

type Bus struct {
	Timer  chan TimerEvent
	Rounds chan RoundEvent
}

func NewBus() *Bus {
	return &Bus{
		Timer:  make(chan TimerEvent, 10),
		Rounds: make(chan RoundEvent, 100),
	}
}

// PublishTimer queues a timer transition without blocking. It reports false
// when the queue is full.
func (b *Bus) PublishTimer(ev TimerEvent) bool {
	select {
	case b.Timer <- ev:
		return true
	default:
		return false
	}
}

// PublishRound queues a round without blocking. It reports false when the
// queue is full.
func (b *Bus) PublishRound(ev RoundEvent) bool {
	select {
	case b.Rounds <- ev:
		return true
	default:
		return false
	}
}
