// Package scan implements the tune-measure-decide loop that drives a
// remotely controlled receiver over a channel table or a frequency
// range, holding or recording when a signal is detected and tracking
// per-frequency signal history.
package scan

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hamtools/rigscan/internal/chanlist"
)

// BackendDownLevel is the sentinel floor: a reading at or below it
// almost always means the receiver's DSP backend is not running, so
// the engine warns but keeps scanning.
const BackendDownLevel = -200.0

const (
	defaultSettle       = 500 * time.Millisecond
	defaultPollInterval = 500 * time.Millisecond
)

// Radio is the receiver control surface the engine drives. Timeouts
// from any of these calls are soft: the engine degrades the affected
// reading and continues.
type Radio interface {
	SetFrequency(hz int64) error
	SetMode(mode string) error
	QueryLevel() (float64, error)
	QueryFrequency() (int64, error)
	StartRecording() error
	StopRecording() error
}

// Report is one evaluated target, handed to the reporter as a line.
type Report struct {
	Target    chanlist.Target
	HaveLevel bool
	Level     float64
	HaveBest  bool
	Best      float64
	NewMax    bool
	Skipped   bool
}

// Summary is emitted when a lap over the channel source completes, and
// once more on shutdown.
type Summary struct {
	Laps          int
	TunedLastLap  int
	Elapsed       time.Duration
	Recorded      time.Duration
	MostActive    int64
	ActivityCount int
}

// Reporter consumes per-target lines and periodic summaries.
type Reporter interface {
	Line(Report)
	Summary(Summary)
}

type nopReporter struct{}

func (nopReporter) Line(Report)     {}
func (nopReporter) Summary(Summary) {}

// RunLog persists the run's readings and recording sessions. Failures
// are logged, never escalated.
type RunLog interface {
	Reading(ctx context.Context, t chanlist.Target, level *float64, newMax bool) error
	RecordingStarted(ctx context.Context, freq int64, at time.Time) (int64, error)
	RecordingStopped(ctx context.Context, id int64, at time.Time) error
}

// NopLog discards everything; used when run logging is disabled.
type NopLog struct{}

func (NopLog) Reading(context.Context, chanlist.Target, *float64, bool) error { return nil }
func (NopLog) RecordingStarted(context.Context, int64, time.Time) (int64, error) {
	return 0, nil
}
func (NopLog) RecordingStopped(context.Context, int64, time.Time) error { return nil }

// Config carries the scan policy knobs.
type Config struct {
	LevelStop bool    // hold when the level exceeds Threshold
	Threshold float64 // hold threshold, dBFS-like units
	Record    bool    // start a recording while holding

	Settle       time.Duration // wait after tuning before a reading counts
	Pause        time.Duration // inter-target pause
	Dwell        time.Duration // quiet time ending a clear-wait hold
	PollInterval time.Duration // pause gate polling interval

	Hold    HoldPolicy
	Monitor bool // single-target repeated measurement, no retuning

	// SkipUntilCurrent suppresses tuning until the table reaches the
	// frequency the receiver is already on. Cleared on the first
	// frequency match, or unconditionally when Monitor is set; those
	// are two distinct policies and are kept that way.
	SkipUntilCurrent bool
}

// Recording is the single recording session, at most one per engine.
type Recording struct {
	Freq      int64
	StartedAt time.Time
	logID     int64
}

// Stats accumulates run counters, mutated only by the scan loop.
type Stats struct {
	StartedAt    time.Time
	Laps         int
	Recorded     time.Duration
	TunedThisLap int
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) func(*Engine) {
	return func(e *Engine) {
		e.logger = logger.With(slog.String("component", "scan"))
	}
}

// WithReporter sets the per-target line consumer.
func WithReporter(r Reporter) func(*Engine) {
	return func(e *Engine) {
		e.reporter = r
	}
}

// WithRunLog sets the run log store.
func WithRunLog(l RunLog) func(*Engine) {
	return func(e *Engine) {
		e.runLog = l
	}
}

// WithGate sets the pause gate checked between targets.
func WithGate(g Gate) func(*Engine) {
	return func(e *Engine) {
		e.gate = g
	}
}

// Engine owns all scan state and drives the radio through the
// tune-measure-decide cycle. It runs a single cooperative control
// loop; nothing here is shared with other goroutines.
type Engine struct {
	radio   Radio
	source  chanlist.Source
	cfg     Config
	tracker *Tracker

	gate     Gate
	reporter Reporter
	runLog   RunLog
	logger   *slog.Logger

	stats     Stats
	recording *Recording

	tuned         bool
	monitorTarget *chanlist.Target

	skipUntil    bool
	resumeFreq   int64
	pausedLogged bool

	// monitor-mode recording bookkeeping
	lastAbove  time.Time
	lossLogged bool
}

// New creates a scan engine over the given radio and channel source.
func New(radio Radio, source chanlist.Source, cfg Config, options ...func(*Engine)) *Engine {
	if cfg.Settle <= 0 {
		cfg.Settle = defaultSettle
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	e := Engine{
		radio:    radio,
		source:   source,
		cfg:      cfg,
		tracker:  NewTracker(),
		reporter: nopReporter{},
		runLog:   NopLog{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&e)
	}

	return &e
}

// Tracker exposes the engine's signal history.
func (e *Engine) Tracker() *Tracker { return e.tracker }

// Stats returns a copy of the run counters.
func (e *Engine) Stats() Stats { return e.stats }

// Run drives the scan until the context is cancelled. Before
// returning it stops any active recording and emits a final summary.
func (e *Engine) Run(ctx context.Context) error {
	e.stats.StartedAt = time.Now()

	if e.cfg.SkipUntilCurrent {
		if e.cfg.Monitor {
			// Monitor clears the skip flag before the first target.
			e.logger.Info("monitor mode active, ignoring resume request")
		} else if hz, err := e.radio.QueryFrequency(); err != nil {
			e.logger.Warn(fmt.Sprintf("cannot read receiver frequency, resume disabled: %s", err.Error()))
		} else {
			e.resumeFreq = hz
			e.skipUntil = true
			e.logger.Info("resuming at receiver frequency",
				slog.String("freq", chanlist.FormatFreq(hz)))
		}
	}

	defer e.shutdown()

	for {
		if err := e.waitGate(ctx); err != nil {
			return nil
		}

		target, wrapped := e.nextTarget()
		if wrapped {
			e.lapComplete()
		}

		if done := e.iterate(ctx, target); done {
			return nil
		}
	}
}

// iterate runs one tune-measure-decide cycle. It returns true when the
// context has been cancelled.
func (e *Engine) iterate(ctx context.Context, t chanlist.Target) bool {
	if !t.Eligible {
		e.reporter.Line(Report{Target: t, Skipped: true})
		return false
	}

	if e.skipUntil {
		if t.Freq != e.resumeFreq {
			e.reporter.Line(Report{Target: t, Skipped: true})
			return false
		}
		e.skipUntil = false
	}

	// Tuning. Best effort: a timed-out acknowledgement is logged and
	// the cycle proceeds.
	if !(e.cfg.Monitor && e.tuned) {
		if err := e.radio.SetFrequency(t.Freq); err != nil {
			e.logger.Warn(fmt.Sprintf("tuning %s: %s", chanlist.FormatFreq(t.Freq), err.Error()))
		}
		if err := e.radio.SetMode(t.Mode.String()); err != nil {
			e.logger.Warn(fmt.Sprintf("setting mode %s: %s", t.Mode, err.Error()))
		}
		e.tuned = true
	}
	if e.cfg.Monitor && e.monitorTarget == nil {
		mt := t
		e.monitorTarget = &mt
	}
	e.stats.TunedThisLap++

	// Measuring.
	var (
		level     float64
		haveLevel bool
		newMax    bool
		consumed  time.Duration
	)
	if e.cfg.LevelStop || e.cfg.Monitor {
		if err := sleepCtx(ctx, e.cfg.Settle); err != nil {
			return true
		}
		consumed = e.cfg.Settle

		l, err := e.radio.QueryLevel()
		if err != nil {
			e.logger.Warn(fmt.Sprintf("level unavailable at %s: %s", chanlist.FormatFreq(t.Freq), err.Error()))
		} else {
			level, haveLevel = l, true
			if level <= BackendDownLevel {
				e.logger.Warn("level at sentinel floor, receiver backend likely not running",
					slog.Float64("level", level))
			}
			newMax = e.tracker.Update(t.Freq, level)
		}
	}

	best, haveBest := e.tracker.Best(t.Freq)
	e.reporter.Line(Report{
		Target:    t,
		HaveLevel: haveLevel,
		Level:     level,
		HaveBest:  haveBest,
		Best:      best,
		NewMax:    newMax,
	})

	var levelPtr *float64
	if haveLevel {
		levelPtr = &level
	}
	if err := e.runLog.Reading(ctx, t, levelPtr, newMax); err != nil {
		e.logger.Warn(fmt.Sprintf("recording reading: %s", err.Error()))
	}

	// Decision.
	switch {
	case e.cfg.Monitor:
		e.monitorRecording(ctx, t, level, haveLevel)
	case e.cfg.LevelStop && haveLevel && level > e.cfg.Threshold:
		e.hold(ctx, t)
	}

	// Advancing. The settle delay already spent counts against the
	// inter-target pause, which never drops below the settle delay.
	pause := e.cfg.Pause
	if pause < e.cfg.Settle {
		pause = e.cfg.Settle
	}
	return sleepCtx(ctx, pause-consumed) != nil
}

// hold keeps the engine on the target according to the hold policy,
// recording while held when configured.
func (e *Engine) hold(ctx context.Context, t chanlist.Target) {
	e.tracker.AddActivity(t.Freq)
	e.logger.Info("signal hold",
		slog.String("freq", chanlist.FormatFreq(t.Freq)),
		slog.String("name", t.Name))

	if e.cfg.Record {
		e.startRecording(ctx, t.Freq)
	}

	if e.cfg.Hold != nil {
		if err := e.cfg.Hold.Wait(ctx, e, t); err != nil {
			return // cancelled; shutdown stops the recording
		}
	}

	e.stopRecording(ctx)
}

// monitorRecording manages the continuous recording session in monitor
// mode: it starts when the level first exceeds the threshold and ends
// only after the level has stayed at or below it for the dwell
// duration, so one session can span many measure iterations.
func (e *Engine) monitorRecording(ctx context.Context, t chanlist.Target, level float64, haveLevel bool) {
	if !e.cfg.LevelStop {
		return
	}

	if haveLevel && level > e.cfg.Threshold {
		e.lastAbove = time.Now()
		e.lossLogged = false
		if e.recording == nil && e.cfg.Record {
			e.tracker.AddActivity(t.Freq)
			e.startRecording(ctx, t.Freq)
		}
		return
	}

	if e.recording == nil {
		return
	}
	if !e.lossLogged {
		e.logger.Info("signal lost, recording continues until clear",
			slog.String("freq", chanlist.FormatFreq(t.Freq)),
			slog.Duration("dwell", e.cfg.Dwell))
		e.lossLogged = true
	}
	if time.Since(e.lastAbove) >= e.cfg.Dwell {
		e.stopRecording(ctx)
	}
}

func (e *Engine) startRecording(ctx context.Context, freq int64) {
	if e.recording != nil {
		return
	}

	if err := e.radio.StartRecording(); err != nil {
		e.logger.Warn(fmt.Sprintf("starting recording: %s", err.Error()))
		return
	}

	now := time.Now()
	rec := Recording{Freq: freq, StartedAt: now}
	if id, err := e.runLog.RecordingStarted(ctx, freq, now); err != nil {
		e.logger.Warn(fmt.Sprintf("logging recording start: %s", err.Error()))
	} else {
		rec.logID = id
	}

	e.recording = &rec
	e.logger.Info("recording started", slog.String("freq", chanlist.FormatFreq(freq)))
}

func (e *Engine) stopRecording(ctx context.Context) {
	if e.recording == nil {
		return
	}

	if err := e.radio.StopRecording(); err != nil {
		e.logger.Warn(fmt.Sprintf("stopping recording: %s", err.Error()))
	}

	now := time.Now()
	duration := now.Sub(e.recording.StartedAt)
	e.stats.Recorded += duration

	if err := e.runLog.RecordingStopped(ctx, e.recording.logID, now); err != nil {
		e.logger.Warn(fmt.Sprintf("logging recording stop: %s", err.Error()))
	}

	e.logger.Info("recording stopped",
		slog.String("freq", chanlist.FormatFreq(e.recording.Freq)),
		slog.Duration("duration", duration))

	e.recording = nil
}

// nextTarget pulls the next target, except in monitor mode where the
// single selected target is re-measured without advancing the source.
func (e *Engine) nextTarget() (chanlist.Target, bool) {
	if e.cfg.Monitor && e.monitorTarget != nil {
		return *e.monitorTarget, false
	}
	return e.source.Next()
}

func (e *Engine) lapComplete() {
	e.stats.Laps++
	e.emitSummary()

	if e.stats.Laps > 1 && e.stats.TunedThisLap == 0 {
		e.logger.Warn("no targets tuned during the last lap, check filters")
	}
	e.stats.TunedThisLap = 0
}

func (e *Engine) emitSummary() {
	freq, count := e.tracker.MostActive()
	e.reporter.Summary(Summary{
		Laps:          e.stats.Laps,
		TunedLastLap:  e.stats.TunedThisLap,
		Elapsed:       time.Since(e.stats.StartedAt),
		Recorded:      e.stats.Recorded,
		MostActive:    freq,
		ActivityCount: count,
	})
}

// waitGate busy-waits at the target boundary while the pause gate is
// closed, polling at the configured interval.
func (e *Engine) waitGate(ctx context.Context) error {
	for e.gate != nil && e.gate.Paused() {
		if !e.pausedLogged {
			e.logger.Info("scan paused")
			e.pausedLogged = true
		}
		if err := sleepCtx(ctx, e.cfg.PollInterval); err != nil {
			return err
		}
	}
	if e.pausedLogged {
		e.logger.Info("scan resumed")
		e.pausedLogged = false
	}
	return ctx.Err()
}

// shutdown stops any active recording and flushes the final summary.
func (e *Engine) shutdown() {
	ctx := context.Background()
	e.stopRecording(ctx)
	e.emitSummary()

	e.logger.Info("scan stopped",
		slog.Int("laps", e.stats.Laps),
		slog.Duration("elapsed", time.Since(e.stats.StartedAt)),
		slog.Duration("recorded", e.stats.Recorded))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
