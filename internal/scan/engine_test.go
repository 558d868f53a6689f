package scan

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamtools/rigscan/internal/chanlist"
)

type fakeRadio struct {
	setFreqCalls []int64
	setModeCalls []string

	levels      []float64 // consumed one per QueryLevel, last repeats
	levelCalls  int
	currentFreq int64

	started int
	stopped int
}

func (r *fakeRadio) SetFrequency(hz int64) error {
	r.setFreqCalls = append(r.setFreqCalls, hz)
	return nil
}

func (r *fakeRadio) SetMode(mode string) error {
	r.setModeCalls = append(r.setModeCalls, mode)
	return nil
}

func (r *fakeRadio) QueryLevel() (float64, error) {
	i := r.levelCalls
	r.levelCalls++
	if i >= len(r.levels) {
		i = len(r.levels) - 1
	}
	return r.levels[i], nil
}

func (r *fakeRadio) QueryFrequency() (int64, error) { return r.currentFreq, nil }

func (r *fakeRadio) StartRecording() error {
	r.started++
	return nil
}

func (r *fakeRadio) StopRecording() error {
	r.stopped++
	return nil
}

type captureReporter struct {
	lines     []Report
	summaries []Summary
}

func (c *captureReporter) Line(r Report)     { c.lines = append(c.lines, r) }
func (c *captureReporter) Summary(s Summary) { c.summaries = append(c.summaries, s) }

func tableSource(t *testing.T, entries ...chanlist.Entry) chanlist.Source {
	t.Helper()

	src, err := chanlist.NewTableSource(entries, nil, nil)
	require.NoError(t, err)
	return src
}

func runFor(t *testing.T, e *Engine, d time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, e.Run(ctx))
}

func TestEngineTunesTableEntry(t *testing.T) {
	radio := &fakeRadio{levels: []float64{-80}}
	rep := &captureReporter{}

	e := New(radio, tableSource(t, chanlist.Entry{Freq: 28400000, Mode: chanlist.ModeUSB, Name: "Test"}),
		Config{Settle: time.Millisecond, Pause: time.Millisecond},
		WithReporter(rep))

	runFor(t, e, 50*time.Millisecond)

	require.NotEmpty(t, radio.setFreqCalls)
	assert.Equal(t, int64(28400000), radio.setFreqCalls[0])
	assert.Equal(t, "USB", radio.setModeCalls[0])

	require.NotEmpty(t, rep.lines)
	line := rep.lines[0]
	assert.Equal(t, "Test", line.Target.Name)
	assert.Equal(t, chanlist.ModeUSB, line.Target.Mode)
	assert.Equal(t, "28.400 400", chanlist.FormatFreq(line.Target.Freq))

	assert.Greater(t, e.Stats().Laps, 0, "single-entry table should complete laps")
	require.NotEmpty(t, rep.summaries, "lap completion emits a summary")
}

func TestEngineMonitorTunesOnce(t *testing.T) {
	radio := &fakeRadio{levels: []float64{-70}}

	e := New(radio, tableSource(t, chanlist.Entry{Freq: 145500000, Mode: chanlist.ModeFM}),
		Config{
			LevelStop: true,
			Threshold: -50,
			Monitor:   true,
			Settle:    time.Millisecond,
			Pause:     time.Millisecond,
		})

	runFor(t, e, 80*time.Millisecond)

	assert.Len(t, radio.setFreqCalls, 1, "monitor mode tunes at most once")
	assert.Len(t, radio.setModeCalls, 1)
	assert.Greater(t, radio.levelCalls, 2, "monitor keeps measuring the same target")
}

func TestEngineSentinelLevelWarnsAndContinues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	radio := &fakeRadio{levels: []float64{-210}}

	e := New(radio, tableSource(t, chanlist.Entry{Freq: 28400000, Mode: chanlist.ModeUSB}),
		Config{LevelStop: true, Threshold: -50, Settle: time.Millisecond, Pause: time.Millisecond},
		WithLogger(logger))

	runFor(t, e, 50*time.Millisecond)

	assert.Contains(t, buf.String(), "backend likely not running")
	assert.Greater(t, radio.levelCalls, 1, "scan continues past the sentinel reading")
}

func TestEngineClearWaitRecordsOnePair(t *testing.T) {
	// Signal present on the first reading, gone afterwards: exactly one
	// recording session, ended after the dwell has elapsed.
	radio := &fakeRadio{levels: []float64{-10, -80}}

	e := New(radio, tableSource(t, chanlist.Entry{Freq: 28400000, Mode: chanlist.ModeUSB, Name: "Test"}),
		Config{
			LevelStop: true,
			Threshold: -50,
			Record:    true,
			Hold:      ClearWait{},
			Dwell:     20 * time.Millisecond,
			Settle:    time.Millisecond,
			Pause:     time.Millisecond,
		})

	start := time.Now()
	runFor(t, e, 200*time.Millisecond)

	assert.Equal(t, 1, radio.started, "exactly one recording start")
	assert.Equal(t, 1, radio.stopped, "exactly one recording stop")
	assert.GreaterOrEqual(t, e.Stats().Recorded, 20*time.Millisecond,
		"session spans at least the dwell")
	assert.LessOrEqual(t, e.Stats().Recorded, time.Since(start))

	freq, count := e.Tracker().MostActive()
	assert.Equal(t, int64(28400000), freq)
	assert.Equal(t, 1, count)
}

// timedRadio timestamps level readings and the recording stop so dwell
// behavior can be checked against the moment of re-detection.
type timedRadio struct {
	fakeRadio
	levelAt []time.Time
	stopAt  time.Time
}

func (r *timedRadio) QueryLevel() (float64, error) {
	r.levelAt = append(r.levelAt, time.Now())
	return r.fakeRadio.QueryLevel()
}

func (r *timedRadio) StopRecording() error {
	r.stopAt = time.Now()
	return r.fakeRadio.StopRecording()
}

func TestEngineClearWaitDwellRestartsOnRedetection(t *testing.T) {
	// Signal, brief loss, signal again, then silence. The third reading
	// is the re-detection; the quiet window must restart there, and the
	// hold must still end in a single recording session.
	radio := &timedRadio{fakeRadio: fakeRadio{levels: []float64{-10, -80, -10, -80}}}

	const dwell = 25 * time.Millisecond

	e := New(radio, tableSource(t, chanlist.Entry{Freq: 28400000, Mode: chanlist.ModeUSB}),
		Config{
			LevelStop: true,
			Threshold: -50,
			Record:    true,
			Hold:      ClearWait{},
			Dwell:     dwell,
			Settle:    2 * time.Millisecond,
			Pause:     time.Millisecond,
		})

	runFor(t, e, 400*time.Millisecond)

	assert.Equal(t, 1, radio.started, "exactly one recording start")
	assert.Equal(t, 1, radio.stopped, "exactly one recording stop")

	require.GreaterOrEqual(t, len(radio.levelAt), 3)
	reDetect := radio.levelAt[2]
	assert.GreaterOrEqual(t, radio.stopAt.Sub(reDetect), dwell,
		"quiet window restarts at the re-detection")
	assert.Less(t, radio.stopAt.Sub(reDetect), 300*time.Millisecond,
		"hold ends once the frequency stays clear, not at shutdown")
}

func TestEngineMonitorRecordingSurvivesBriefLoss(t *testing.T) {
	// Same shape in monitor mode: the session must ride out a loss
	// shorter than the dwell and end one quiet window after the last
	// above-threshold reading.
	radio := &timedRadio{fakeRadio: fakeRadio{levels: []float64{-10, -80, -10, -80}}}

	const dwell = 25 * time.Millisecond

	e := New(radio, tableSource(t, chanlist.Entry{Freq: 28400000, Mode: chanlist.ModeUSB}),
		Config{
			LevelStop: true,
			Threshold: -50,
			Monitor:   true,
			Record:    true,
			Dwell:     dwell,
			Settle:    2 * time.Millisecond,
			Pause:     time.Millisecond,
		})

	runFor(t, e, 400*time.Millisecond)

	assert.Equal(t, 1, radio.started, "one session spanning the brief loss")
	assert.Equal(t, 1, radio.stopped)

	require.GreaterOrEqual(t, len(radio.levelAt), 3)
	reDetect := radio.levelAt[2]
	assert.GreaterOrEqual(t, radio.stopAt.Sub(reDetect), dwell,
		"quiet window restarts at the re-detection")
	assert.Less(t, radio.stopAt.Sub(reDetect), 300*time.Millisecond,
		"session ends once the dwell elapses, not at shutdown")
}

func TestEngineHoldFixedDelay(t *testing.T) {
	radio := &fakeRadio{levels: []float64{-10, -80}}

	e := New(radio, tableSource(t, chanlist.Entry{Freq: 28400000, Mode: chanlist.ModeUSB}),
		Config{
			LevelStop: true,
			Threshold: -50,
			Hold:      FixedDelay{D: 10 * time.Millisecond},
			Settle:    time.Millisecond,
			Pause:     time.Millisecond,
		})

	runFor(t, e, 100*time.Millisecond)

	_, count := e.Tracker().MostActive()
	assert.Equal(t, 1, count, "one hold event counted")
	assert.Zero(t, radio.started, "no recording without the record flag")
}

func TestEnginePauseGateBlocks(t *testing.T) {
	var gate Manual
	gate.Set(true)

	radio := &fakeRadio{levels: []float64{-80}}

	e := New(radio, tableSource(t, chanlist.Entry{Freq: 28400000, Mode: chanlist.ModeUSB}),
		Config{Settle: time.Millisecond, Pause: time.Millisecond, PollInterval: time.Millisecond},
		WithGate(&gate))

	runFor(t, e, 50*time.Millisecond)

	assert.Empty(t, radio.setFreqCalls, "paused gate suspends iteration")
}

func TestEngineSkipUntilCurrentFrequency(t *testing.T) {
	radio := &fakeRadio{levels: []float64{-80}, currentFreq: 145500000}
	rep := &captureReporter{}

	e := New(radio, tableSource(t,
		chanlist.Entry{Freq: 28400000, Mode: chanlist.ModeUSB, Name: "First"},
		chanlist.Entry{Freq: 145500000, Mode: chanlist.ModeFM, Name: "Second"},
	), Config{
		SkipUntilCurrent: true,
		Settle:           time.Millisecond,
		Pause:            time.Millisecond,
	}, WithReporter(rep))

	runFor(t, e, 50*time.Millisecond)

	require.NotEmpty(t, radio.setFreqCalls)
	assert.Equal(t, int64(145500000), radio.setFreqCalls[0],
		"tuning starts at the receiver's current frequency")

	require.NotEmpty(t, rep.lines)
	assert.True(t, rep.lines[0].Skipped, "entries before the match are shown as skipped")
}

func TestEngineMonitorRecordingSpansIterations(t *testing.T) {
	// Above threshold for several iterations, then silence: the session
	// survives the busy iterations and ends once the dwell elapses.
	radio := &fakeRadio{levels: []float64{-10, -10, -10, -80}}

	e := New(radio, tableSource(t, chanlist.Entry{Freq: 28400000, Mode: chanlist.ModeUSB}),
		Config{
			LevelStop: true,
			Threshold: -50,
			Monitor:   true,
			Record:    true,
			Dwell:     15 * time.Millisecond,
			Settle:    time.Millisecond,
			Pause:     time.Millisecond,
		})

	runFor(t, e, 200*time.Millisecond)

	assert.Equal(t, 1, radio.started)
	assert.Equal(t, 1, radio.stopped)
	assert.Greater(t, radio.levelCalls, 4)
}

func TestEngineConfirmHold(t *testing.T) {
	confirm := make(chan struct{}, 1)
	confirm <- struct{}{} // operator confirms immediately

	radio := &fakeRadio{levels: []float64{-10, -80}}

	e := New(radio, tableSource(t, chanlist.Entry{Freq: 28400000, Mode: chanlist.ModeUSB}),
		Config{
			LevelStop: true,
			Threshold: -50,
			Hold:      Confirm{C: confirm},
			Settle:    time.Millisecond,
			Pause:     time.Millisecond,
		})

	runFor(t, e, 50*time.Millisecond)

	_, count := e.Tracker().MostActive()
	assert.Equal(t, 1, count)
}

func TestEngineSummaryContent(t *testing.T) {
	radio := &fakeRadio{levels: []float64{-10, -80}}
	rep := &captureReporter{}

	e := New(radio, tableSource(t, chanlist.Entry{Freq: 28400000, Mode: chanlist.ModeUSB}),
		Config{
			LevelStop: true,
			Threshold: -50,
			Hold:      FixedDelay{D: time.Millisecond},
			Settle:    time.Millisecond,
			Pause:     time.Millisecond,
		}, WithReporter(rep))

	runFor(t, e, 100*time.Millisecond)

	require.NotEmpty(t, rep.summaries)
	last := rep.summaries[len(rep.summaries)-1]
	assert.Equal(t, int64(28400000), last.MostActive)
	assert.Equal(t, 1, last.ActivityCount)
	assert.Greater(t, last.Elapsed, time.Duration(0))
}

func TestEngineUnavailableLevelIsNonFatal(t *testing.T) {
	radio := &errLevelRadio{fakeRadio: fakeRadio{levels: []float64{-80}}}

	e := New(radio, tableSource(t, chanlist.Entry{Freq: 28400000, Mode: chanlist.ModeUSB}),
		Config{LevelStop: true, Threshold: -50, Settle: time.Millisecond, Pause: time.Millisecond})

	runFor(t, e, 50*time.Millisecond)

	assert.Greater(t, radio.levelCalls, 1, "loop keeps going on degraded readings")
	_, ok := e.Tracker().Best(28400000)
	assert.False(t, ok, "unavailable readings never reach the tracker")
}

type errLevelRadio struct {
	fakeRadio
}

func (r *errLevelRadio) QueryLevel() (float64, error) {
	r.levelCalls++
	return 0, context.DeadlineExceeded
}
