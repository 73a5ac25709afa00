package shottimer

import (
	"io"
	"sync"
)

func (c Cue) String() string {
	switch c {
	case CueStart:
		return "start"
	case CueEnd:
		return "end"
	case CueShot:
		return "shot"
	}
	return "calibrate"
}

// BellCues rings the terminal bell on W for every cue.
type BellCues struct {
	mu sync.Mutex
	W  io.Writer
}

func (b *BellCues) Play(Cue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.W.Write([]byte{'\a'})
}

// NopCues plays nothing.
type NopCues struct{}

func (NopCues) Play(Cue) {}
