package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFileMode(t *testing.T) {
	cfg, err := LoadConfig([]string{
		"-type", "file",
		"-file", "channels.csv",
		"-level", "-55",
		"-hold", "clear",
		"-dwell", "3s",
	})
	require.NoError(t, err)

	assert.Equal(t, "localhost:7356", cfg.Addr())
	assert.Equal(t, KindFile, cfg.Kind)
	assert.True(t, cfg.LevelStop())
	assert.Equal(t, -55.0, cfg.Level)
	assert.Equal(t, 3*time.Second, cfg.Dwell)
	assert.Equal(t, 2*time.Second, cfg.Delay)
}

func TestLoadConfigRangeMode(t *testing.T) {
	cfg, err := LoadConfig([]string{
		"-type", "range",
		"-min", "28400000",
		"-max", "28500000",
		"-step", "1000",
		"-mode", "USB",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(28400000), cfg.Min)
	assert.Equal(t, int64(1000), cfg.Step)
}

func TestLoadConfigRepeatableExcludes(t *testing.T) {
	cfg, err := LoadConfig([]string{
		"-type", "file",
		"-file", "channels.csv",
		"-exclude", "145500000",
		"-exclude", "Pager.*",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"145500000", "Pager.*"}, cfg.Excludes)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no source selected", nil},
		{"file mode without table", []string{"-type", "file"}},
		{"unknown type", []string{"-type", "band"}},
		{"range end below start", []string{"-type", "range", "-min", "28500000", "-max", "28400000", "-step", "1000"}},
		{"zero step", []string{"-type", "range", "-min", "28400000", "-max", "28500000", "-step", "0"}},
		{"bad range mode", []string{"-type", "range", "-min", "28400000", "-max", "28500000", "-step", "1000", "-mode", "XPM"}},
		{"positive level", []string{"-type", "file", "-file", "channels.csv", "-level", "55"}},
		{"record without level", []string{"-type", "file", "-file", "channels.csv", "-record"}},
		{"unknown hold", []string{"-type", "file", "-file", "channels.csv", "-hold", "forever"}},
		{"dwell below settle", []string{"-type", "file", "-file", "channels.csv", "-dwell", "100ms", "-settle", "1s"}},
		{"sessions without db", []string{"-sessions"}},
		{"unknown log level", []string{"-type", "file", "-file", "channels.csv", "-log-level", "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFileMergeFlagsWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rigscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
host: rig.local
port: 7357
type: file
file: /etc/rigscan/channels.csv
level: -60
delay: 1.5
hold: confirm
palette: mono
`), 0o644))

	cfg, err := LoadConfig([]string{"-c", path, "-level", "-45"})
	require.NoError(t, err)

	assert.Equal(t, "rig.local:7357", cfg.Addr())
	assert.Equal(t, "/etc/rigscan/channels.csv", cfg.File)
	assert.Equal(t, -45.0, cfg.Level, "flag must override the file")
	assert.Equal(t, 1500*time.Millisecond, cfg.Delay)
	assert.Equal(t, "confirm", cfg.Hold)
	assert.Equal(t, "mono", cfg.Palette)
}

func TestSlogLevel(t *testing.T) {
	cfg := Config{LogLevel: "warn"}
	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	cfg.LogLevel = "verbose"
	_, err = cfg.SlogLevel()
	assert.Error(t, err)
}
