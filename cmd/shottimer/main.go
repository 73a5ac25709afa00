package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog/log"

	"rpsp/internal/config"
	"rpsp/internal/db"
	"rpsp/internal/events"
	"rpsp/internal/logging"
	"rpsp/internal/metrics"
	"rpsp/internal/shottimer"
)

type options struct {
	course    string
	stage     int
	seconds   int
	shots     int
	threshold float64
	debounce  time.Duration
	rate      int
	buffer    int
	calibrate bool
	listen    bool
	out       string
	shooter   string

	set      map[string]bool // flags given on the command line
	prestart time.Duration   // fixed prestart delay, random when zero
}

var errInputEnded = errors.New("input ended during calibration")

func main() {
	var o options
	flag.StringVar(&o.course, "course", "", "course JSON file")
	flag.IntVar(&o.stage, "stage", 0, "stage id to run (default: first stage)")
	flag.IntVar(&o.seconds, "seconds", shottimer.DefaultTotalSeconds, "stage length in seconds")
	flag.IntVar(&o.shots, "shots", shottimer.DefaultExpectedShots, "expected shot count")
	flag.Float64Var(&o.threshold, "threshold", shottimer.DefaultThreshold, "detection threshold (0-127)")
	flag.DurationVar(&o.debounce, "debounce", shottimer.DefaultDebounce, "minimum gap between shots")
	flag.IntVar(&o.rate, "rate", 8000, "input sample rate in Hz")
	flag.IntVar(&o.buffer, "buffer", 128, "samples per analysis buffer")
	flag.BoolVar(&o.calibrate, "calibrate", false, "measure detection latency on the start of the input before the stage")
	flag.BoolVar(&o.listen, "listen", false, "print input levels without recording shots")
	flag.StringVar(&o.out, "out", "shots.csv", "participant CSV path, - for stdout")
	flag.StringVar(&o.shooter, "shooter", "", "shooter name stored with the session")
	flag.Parse()

	o.set = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	cfg := config.Load()
	logging.SetupTo(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, o, cfg, os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		log.Fatal().Err(err).Msg("shot timer failed")
	}
}

// run times one stage from 8-bit PCM read from in. All timing, calibration
// included, is measured in samples read, so a recording replays exactly.
func run(ctx context.Context, o options, cfg config.Config, in io.Reader, out, bell io.Writer) error {
	if o.rate <= 0 || o.buffer <= 0 {
		return errors.New("rate and buffer must be positive")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	settings := shottimer.NewSettings()
	settings.SetThreshold(o.threshold)
	settings.SetDebounce(o.debounce)

	clock := shottimer.NewStreamClock(o.rate)
	bus := events.NewBus()
	shots := shottimer.NewShotLog()
	detector := shottimer.NewDetector(settings)
	cues := &shottimer.BellCues{W: bell}
	opts := shottimer.SchedulerOptions{
		OnShot: func(s shottimer.ShotRecord) { printShot(out, s) },
	}
	if o.prestart > 0 {
		opts.Prestart = func() time.Duration { return o.prestart }
	}
	sched := shottimer.NewScheduler(settings, detector, cues, bus, shots, opts)
	defer detector.Release()

	course := shottimer.Course{ID: "adhoc", Name: "Ad hoc", Stages: []shottimer.Stage{{ID: 1, Shots: o.shots, TimeSec: o.seconds}}}
	if o.course != "" {
		c, err := shottimer.LoadCourseFile(o.course)
		if err != nil {
			return fmt.Errorf("loading course: %w", err)
		}
		course = c
	}
	session, err := shottimer.NewSession(course, settings, sched, shots)
	if err != nil {
		return err
	}
	if o.stage != 0 {
		if err := session.Select(o.stage); err != nil {
			return err
		}
	}
	if o.set["seconds"] {
		settings.SetTotalSeconds(o.seconds)
	}
	if o.set["shots"] {
		settings.SetExpectedShots(o.shots)
	}

	levels := make(chan float64, 64)
	go func() {
		if err := readLevels(ctx, in, o.buffer, levels); err != nil {
			log.Error().Err(err).Msg("reading input")
		}
	}()
	tick := func(energy float64) shottimer.Display {
		d := sched.Tick(clock.Advance(o.buffer), energy)
		printTimer(out, bus)
		return d
	}

	if o.listen {
		detector.SetListenMode(true)
		perSecond := max(1, o.rate/o.buffer)
		n := 0
		pump(ctx, levels, func(e float64) bool {
			tick(e)
			if n++; n%perSecond == 0 {
				fmt.Fprintf(out, "level %6.2f  threshold %5.1f\n", detector.Level(), settings.Threshold())
			}
			return true
		})
		return nil
	}

	if o.calibrate {
		cal := shottimer.NewCalibrator(detector, settings, cues, clock)
		if err := calibrate(ctx, cal, clock, levels, tick); err != nil {
			return err
		}
	}

	st := session.Stage()
	log.Info().Str("course", course.Name).Int("stage", st.ID).Int("seconds", settings.TotalSeconds()).Int("shots", settings.ExpectedShots()).Msg("stage armed")
	if err := sched.Start(clock.Now()); err != nil {
		return err
	}
	pump(ctx, levels, func(e float64) bool {
		return tick(e).Phase != shottimer.PhaseIdle
	})
	sched.Stop(clock.Now())
	printTimer(out, bus)

	n := session.Finish()
	log.Info().Int("shots", n).Msg("stage archived")

	if err := writeCSV(o.out, out, shots.Participant()); err != nil {
		return err
	}
	if cfg.PushgatewayURL != "" {
		if err := pushMetrics(cfg.PushgatewayURL); err != nil {
			log.Warn().Err(err).Msg("pushing metrics")
		}
	}
	if cfg.DatabaseURL != "" {
		return save(cfg.DatabaseURL, o.shooter, course, settings.Offset(), shots.Participant())
	}
	return nil
}

// calibrate reads input only while the calibrator waits on the stream
// clock, so cue latencies are measured on the same time base as shots and
// the stage starts right after the last calibration buffer.
func calibrate(ctx context.Context, cal *shottimer.Calibrator, clock *shottimer.StreamClock, levels <-chan float64, tick func(float64) shottimer.Display) error {
	calCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		res shottimer.Calibration
		err error
	)
	done := make(chan struct{})
	clock.Hold()
	go func() {
		defer clock.Release()
		defer close(done)
		res, err = cal.Run(calCtx)
	}()

loop:
	for {
		clock.Gate()
		select {
		case <-done:
			break loop
		default:
		}
		select {
		case <-calCtx.Done():
			<-done
			break loop
		case e, ok := <-levels:
			if !ok {
				cancel()
				<-done
				return errInputEnded
			}
			tick(e)
		}
	}

	switch {
	case errors.Is(err, shottimer.ErrCalibrationFailed):
		log.Warn().Msg("calibration failed, keeping the previous offset")
		return nil
	case err != nil:
		return err
	}
	if res.Source == shottimer.SourceLoopback {
		log.Warn().Dur("offset", res.Offset).Msg("calibrated from the internal loopback only, acoustic latency not measured")
	}
	return nil
}

func readLevels(ctx context.Context, r io.Reader, size int, out chan<- float64) error {
	defer close(out)
	buf := make([]byte, size)
	for {
		_, err := io.ReadFull(r, buf)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case out <- shottimer.RMS(buf):
		case <-ctx.Done():
			return nil
		}
	}
}

func pump(ctx context.Context, levels <-chan float64, fn func(float64) bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-levels:
			if !ok || !fn(e) {
				return
			}
		}
	}
}

func printTimer(w io.Writer, bus *events.Bus) {
	for {
		select {
		case ev := <-bus.Timer:
			fmt.Fprintf(w, "%-8s %8.3fs\n", ev.Phase, ev.At.Seconds())
		default:
			return
		}
	}
}

func printShot(w io.Writer, s shottimer.ShotRecord) {
	flags := ""
	if s.Late {
		flags += " late"
	}
	if s.OverCount {
		flags += " over"
	}
	fmt.Fprintf(w, "shot %-3d %8.3fs  split %6.3fs  rms %6.2f%s\n", s.Index+1, s.Elapsed.Seconds(), s.Delta.Seconds(), s.RMS, flags)
}

func writeCSV(path string, stdout io.Writer, shots []shottimer.ArchivedShot) error {
	if path == "-" {
		return shottimer.WriteParticipantCSV(stdout, shots)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := shottimer.WriteParticipantCSV(f, shots); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("shots", len(shots)).Msg("participant CSV written")
	return f.Close()
}

// pushMetrics sends the shot counter to a Prometheus Pushgateway, since the
// process exits before anything could scrape it.
func pushMetrics(url string) error {
	return push.New(url, "shottimer").Collector(metrics.ShotsRecorded).Push()
}

func save(dsn, shooter string, course shottimer.Course, offset time.Duration, shots []shottimer.ArchivedShot) error {
	database, err := db.Connect(dsn)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := database.Migrate(); err != nil {
		return err
	}

	rows := make([]db.ShotRow, 0, len(shots))
	for _, s := range shots {
		rows = append(rows, db.ShotRow{
			Pidx:         s.ParticipantIndex,
			StageID:      s.StageID,
			ElapsedMs:    millis(s.Elapsed),
			DeltaMs:      millis(s.Delta),
			RawMs:        millis(s.Raw),
			CalibratedMs: millis(s.At),
			RMS:          s.RMS,
		})
	}
	id, err := database.SaveShotSession(db.ShotSession{
		Shooter:    shooter,
		CourseID:   course.ID,
		CourseName: course.Name,
		OffsetMs:   int(offset / time.Millisecond),
	}, rows)
	if err != nil {
		return err
	}
	log.Info().Str("session", id).Int("shots", len(rows)).Msg("shot session saved")
	return nil
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
