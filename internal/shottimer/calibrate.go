package shottimer

import (
	"context"
	"errors"
	"io"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rpsp/internal/logging"
)

const (
	CalibrationAttempts = 5
	CalibrationTimeout  = 2000 * time.Millisecond
	CalibrationPause    = 250 * time.Millisecond

	LoopbackAttempts  = 5
	LoopbackTimeout   = 800 * time.Millisecond
	LoopbackPause     = 150 * time.Millisecond
	LoopbackThreshold = 5.0
	LoopbackFrequency = 1200.0
)

var (
	ErrCalibrationFailed = errors.New("calibration failed: no detections")
	errNoPeak            = errors.New("no peak before timeout")
)

type CalibrationSource string

const (
	SourceAcoustic = CalibrationSource("acoustic")
	// SourceLoopback measures the in-process pipeline only, not the
	// speaker to microphone path.
	SourceLoopback = CalibrationSource("loopback")
)

type Calibration struct {
	Offset  time.Duration
	Source  CalibrationSource
	Samples []time.Duration
}

// LoopbackProbe measures one pass of a generated tone through an analysis
// pipeline.
type LoopbackProbe interface {
	Probe(ctx context.Context, timeout time.Duration) (time.Duration, error)
}

// Calibrator measures the delay between playing a cue and detecting it.
type Calibrator struct {
	Detector *Detector
	Settings *Settings
	Cues     CuePlayer
	Loopback LoopbackProbe

	// Clock must be the clock the detector is sampled on. Cue timeouts and
	// pauses are measured on it.
	Clock Clock

	Attempts         int
	Timeout          time.Duration
	Pause            time.Duration
	LoopbackAttempts int
	LoopbackTimeout  time.Duration
	LoopbackPause    time.Duration

	log zerolog.Logger
}

func NewCalibrator(detector *Detector, settings *Settings, cues CuePlayer, clock Clock) *Calibrator {
	return &Calibrator{
		Detector:         detector,
		Settings:         settings,
		Cues:             cues,
		Loopback:         NewTonePipeline(8000, 128),
		Clock:            clock,
		Attempts:         CalibrationAttempts,
		Timeout:          CalibrationTimeout,
		Pause:            CalibrationPause,
		LoopbackAttempts: LoopbackAttempts,
		LoopbackTimeout:  LoopbackTimeout,
		LoopbackPause:    LoopbackPause,
		log:              logging.Component("calibrate"),
	}
}

// Run measures the latency and stores the median as the settings offset.
// The detector must keep being sampled by another goroutine while Run
// waits. The loopback fallback runs on wall time. When neither the acoustic nor the loopback measurement produces
// a sample the previous offset is kept and ErrCalibrationFailed returned.
func (c *Calibrator) Run(ctx context.Context) (Calibration, error) {
	samples, err := c.acoustic(ctx)
	if err != nil {
		return Calibration{}, err
	}
	source := SourceAcoustic
	if len(samples) == 0 {
		c.log.Warn().Msg("no acoustic detections, falling back to internal loopback")
		if samples, err = c.loopback(ctx); err != nil {
			return Calibration{}, err
		}
		source = SourceLoopback
	}
	if len(samples) == 0 {
		return Calibration{}, ErrCalibrationFailed
	}

	cal := Calibration{Offset: Median(samples).Round(time.Millisecond), Source: source, Samples: samples}
	c.Settings.SetOffset(cal.Offset)
	c.log.Info().Str("source", string(source)).Dur("offset", cal.Offset).Int("samples", len(samples)).Msg("calibration complete")
	return cal, nil
}

func (c *Calibrator) acoustic(ctx context.Context) ([]time.Duration, error) {
	var (
		mu     sync.Mutex
		armed  bool
		played time.Duration
		cancel func()
	)
	hits := make(chan Shot, 1)
	prev := c.Detector.SetHandler(func(s Shot) {
		mu.Lock()
		defer mu.Unlock()
		if !armed || s.At < played || s.At-played >= c.Timeout {
			return
		}
		armed = false
		cancel()
		select {
		case hits <- s:
		default:
		}
	})
	defer c.Detector.SetHandler(prev)

	disarm := func() {
		mu.Lock()
		armed = false
		mu.Unlock()
	}

	var samples []time.Duration
	for i := 0; i < c.Attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		select {
		case <-hits:
		default:
		}
		at := c.Clock.Now()
		deadline, stop := c.Clock.Until(at + c.Timeout)
		mu.Lock()
		armed, played, cancel = true, at, stop
		mu.Unlock()
		c.Cues.Play(CueCalibrate)

		hit, err := waitHit(ctx, hits, deadline)
		disarm()
		stop()
		if err != nil {
			return nil, err
		}
		if hit == nil {
			c.log.Debug().Int("attempt", i).Msg("no detection")
			continue
		}
		latency := hit.At - at
		samples = append(samples, latency)
		c.log.Debug().Int("attempt", i).Dur("latency", latency).Msg("calibration sample")
		if err := c.pause(ctx, hit.At+c.Pause); err != nil {
			return nil, err
		}
	}
	return samples, nil
}

// waitHit waits for the armed detection or the deadline. A detection is
// always delivered before the deadline it beat closes.
func waitHit(ctx context.Context, hits <-chan Shot, deadline <-chan struct{}) (*Shot, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case s := <-hits:
		return &s, nil
	case <-deadline:
		select {
		case s := <-hits:
			return &s, nil
		default:
			return nil, nil
		}
	}
}

func (c *Calibrator) pause(ctx context.Context, until time.Duration) error {
	if c.Pause <= 0 {
		return ctx.Err()
	}
	ch, stop := c.Clock.Until(until)
	defer stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}

func (c *Calibrator) loopback(ctx context.Context) ([]time.Duration, error) {
	if c.Loopback == nil {
		return nil, nil
	}
	var samples []time.Duration
	for i := 0; i < c.LoopbackAttempts; i++ {
		latency, err := c.Loopback.Probe(ctx, c.LoopbackTimeout)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			c.log.Debug().Int("attempt", i).Err(err).Msg("no loopback detection")
		default:
			samples = append(samples, latency)
			c.log.Debug().Int("attempt", i).Dur("latency", latency).Msg("loopback sample")
		}
		if err := sleep(ctx, c.LoopbackPause); err != nil {
			return nil, err
		}
	}
	return samples, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Median returns the middle value, or the mean of the two middle values
// for an even count. It does not modify samples.
func Median(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// TonePipeline plays a decaying sine tone as 8-bit PCM through an in-memory
// pipe and detects it on the reading side.
type TonePipeline struct {
	SampleRate int
	BufferSize int
}

func NewTonePipeline(sampleRate, bufferSize int) *TonePipeline {
	return &TonePipeline{SampleRate: sampleRate, BufferSize: bufferSize}
}

// Tone renders n samples of a 1200 Hz tone starting at gain 0.5 and
// decaying to 0.001 over 120ms.
func (p *TonePipeline) Tone(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		t := float64(i) / float64(p.SampleRate)
		gain := 0.5 * math.Pow(0.001/0.5, t/0.12)
		v := 128 + 127*gain*math.Sin(2*math.Pi*LoopbackFrequency*t)
		out[i] = byte(math.Round(math.Max(0, math.Min(255, v))))
	}
	return out
}

func (p *TonePipeline) Probe(ctx context.Context, timeout time.Duration) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pr, pw := io.Pipe()
	tone := p.Tone(p.SampleRate * 120 / 1000)

	played := time.Now()
	go func() {
		for off := 0; off < len(tone); off += p.BufferSize {
			end := min(off+p.BufferSize, len(tone))
			if _, err := pw.Write(tone[off:end]); err != nil {
				return
			}
		}
		pw.Close()
	}()

	stop := context.AfterFunc(ctx, func() { pr.CloseWithError(ctx.Err()) })
	defer stop()
	defer pr.Close()

	buf := make([]byte, p.BufferSize)
	for {
		n, err := io.ReadFull(pr, buf)
		if n > 0 && RMS(buf[:n]) > LoopbackThreshold {
			return time.Since(played), nil
		}
		if err != nil {
			return 0, errNoPeak
		}
	}
}
