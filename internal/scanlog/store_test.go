package scanlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamtools/rigscan/internal/chanlist"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	s := New(filepath.Join(t.TempDir(), "rigscan.sqlite"))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	run, err := store.BeginRun(ctx, "localhost:7356", "file", map[string]any{"level": -50.0})
	require.NoError(t, err)

	target := chanlist.Target{Freq: 28400000, Mode: chanlist.ModeUSB, Name: "Test", Eligible: true}
	level := -12.5
	require.NoError(t, run.Reading(ctx, target, &level, true))
	require.NoError(t, run.Reading(ctx, target, nil, false))
	require.NoError(t, run.Flush(ctx))

	started := time.Now().Add(-time.Minute)
	id, err := run.RecordingStarted(ctx, target.Freq, started)
	require.NoError(t, err)
	require.NoError(t, run.RecordingStopped(ctx, id, started.Add(30*time.Second)))

	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "localhost:7356", sessions[0].Host)
	assert.Equal(t, "file", sessions[0].Kind)
	require.NotNil(t, sessions[0].Config)
	assert.Contains(t, *sessions[0].Config, "-50")

	recordings, err := store.Recordings(ctx, run.SessionID())
	require.NoError(t, err)
	require.Len(t, recordings, 1)
	assert.Equal(t, int64(28400000), recordings[0].Frequency)
	require.NotNil(t, recordings[0].EndedAt)
	assert.Equal(t, 30*time.Second, recordings[0].EndedAt.Sub(recordings[0].StartedAt))
}

func TestRunBatchFlush(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	run, err := store.BeginRun(ctx, "localhost:7356", "range", nil, WithMaxBatchSize(3))
	require.NoError(t, err)

	target := chanlist.Target{Freq: 28400000, Mode: chanlist.ModeUSB, Eligible: true}
	for i := 0; i < 7; i++ {
		level := float64(-40 - i)
		require.NoError(t, run.Reading(ctx, target, &level, false))
	}
	require.NoError(t, run.Close(ctx))

	db, err := store.getReadDB()
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM readings WHERE session_id = ?", run.SessionID()).Scan(&count))
	assert.Equal(t, 7, count)
}

func TestStoreCloseIdempotent(t *testing.T) {
	store := testStore(t)

	_, err := store.BeginRun(context.Background(), "localhost:7356", "file", nil)
	require.NoError(t, err)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
