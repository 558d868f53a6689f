package app

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hamtools/rigscan/internal/chanlist"
)

// Scan source kinds.
const (
	KindFile  = "file"
	KindRange = "range"
)

// Config is the fully merged scanner configuration: defaults, then the
// optional YAML file, then command line flags, highest last.
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration

	Kind string
	File string
	Min  int64
	Max  int64
	Step int64
	Mode string

	Includes string
	Pattern  string
	Excludes []string

	Delay    time.Duration
	Settle   time.Duration
	Level    float64 // 0 disables level-stop; must be negative otherwise
	Hold     string  // fixed | confirm | clear
	HoldTime time.Duration
	Dwell    time.Duration

	Monitor     bool
	Record      bool
	Resume      bool
	Dump        bool
	ShowSkipped bool

	PauseFile string
	LogDB     string
	Sessions  bool

	Palette  string
	LogLevel string
}

// fileConfig mirrors Config for the YAML file. Durations are seconds.
type fileConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Timeout  float64  `yaml:"timeout"`
	Type     string   `yaml:"type"`
	File     string   `yaml:"file"`
	Min      int64    `yaml:"min"`
	Max      int64    `yaml:"max"`
	Step     int64    `yaml:"step"`
	Mode     string   `yaml:"mode"`
	Includes string   `yaml:"includes"`
	Pattern  string   `yaml:"pattern"`
	Excludes []string `yaml:"excludes"`
	Delay    float64  `yaml:"delay"`
	Settle   float64  `yaml:"settle"`
	Level    float64  `yaml:"level"`
	Hold     string   `yaml:"hold"`
	HoldTime float64  `yaml:"holdTime"`
	Dwell    float64  `yaml:"dwell"`
	Monitor  bool     `yaml:"monitor"`
	Record   bool     `yaml:"record"`

	ShowSkipped bool   `yaml:"showSkipped"`
	PauseFile   string `yaml:"pauseFile"`
	LogDB       string `yaml:"logDB"`
	Palette     string `yaml:"palette"`
	LogLevel    string `yaml:"logLevel"`
}

func defaultConfig() Config {
	return Config{
		Host:     "localhost",
		Port:     7356,
		Timeout:  5 * time.Second,
		Mode:     "FM",
		Delay:    2 * time.Second,
		Settle:   500 * time.Millisecond,
		Hold:     "fixed",
		HoldTime: 5 * time.Second,
		Dwell:    2 * time.Second,
		Palette:  "default",
		LogLevel: "info",
	}
}

// LoadConfig parses the command line, merges the optional YAML config
// file underneath it, and validates the result.
func LoadConfig(args []string) (*Config, error) {
	cfg := defaultConfig()

	var configPath string
	var excludes excludeList

	fs := flag.NewFlagSet("rigscan", flag.ContinueOnError)
	fs.StringVar(&configPath, "c", "", "path to a YAML configuration file")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "receiver remote control host")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "receiver remote control port")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "protocol reply timeout")
	fs.StringVar(&cfg.Kind, "type", cfg.Kind, "scan source: file or range")
	fs.StringVar(&cfg.File, "file", cfg.File, "channel table path (file mode)")
	fs.Int64Var(&cfg.Min, "min", cfg.Min, "range start frequency, Hz")
	fs.Int64Var(&cfg.Max, "max", cfg.Max, "range end frequency, Hz")
	fs.Int64Var(&cfg.Step, "step", cfg.Step, "range step, Hz")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "demodulation mode for range mode")
	fs.StringVar(&cfg.Includes, "includes", cfg.Includes, "table index allow-list, e.g. 1,3,5-7")
	fs.StringVar(&cfg.Pattern, "pattern", cfg.Pattern, "include entries matching this pattern")
	fs.Var(&excludes, "exclude", "exclude a frequency or name pattern (repeatable)")
	fs.DurationVar(&cfg.Delay, "delay", cfg.Delay, "inter-target pause")
	fs.DurationVar(&cfg.Settle, "settle", cfg.Settle, "settle delay before reading the level")
	fs.Float64Var(&cfg.Level, "level", cfg.Level, "hold threshold in dBFS, negative; enables level-stop")
	fs.StringVar(&cfg.Hold, "hold", cfg.Hold, "hold policy: fixed, confirm or clear")
	fs.DurationVar(&cfg.HoldTime, "hold-time", cfg.HoldTime, "hold duration for the fixed policy")
	fs.DurationVar(&cfg.Dwell, "dwell", cfg.Dwell, "quiet time ending a clear-wait hold")
	fs.BoolVar(&cfg.Monitor, "monitor", cfg.Monitor, "monitor the single selected target without retuning")
	fs.BoolVar(&cfg.Record, "record", cfg.Record, "record while holding")
	fs.BoolVar(&cfg.Resume, "resume", cfg.Resume, "resume from the receiver's current frequency")
	fs.BoolVar(&cfg.Dump, "dump", cfg.Dump, "list the channel table and exit without tuning")
	fs.BoolVar(&cfg.ShowSkipped, "show-skipped", cfg.ShowSkipped, "print lines for skipped targets")
	fs.StringVar(&cfg.PauseFile, "pause-file", cfg.PauseFile, "pause the scan while this file exists")
	fs.StringVar(&cfg.LogDB, "log-db", cfg.LogDB, "record the run into this SQLite database")
	fs.BoolVar(&cfg.Sessions, "sessions", cfg.Sessions, "list recorded sessions from the log database and exit")
	fs.StringVar(&cfg.Palette, "palette", cfg.Palette, "output palette: default, bright or mono")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Excludes = excludes

	if configPath != "" {
		set := make(map[string]bool)
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

		if err := cfg.mergeFile(configPath, set); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		fs.Usage()
		return nil, err
	}
	return &cfg, nil
}

// mergeFile fills in config file values for everything the command
// line did not set explicitly.
func (c *Config) mergeFile(path string, set map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading configuration file: %w", err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing configuration file: %w", err)
	}

	seconds := func(v float64) time.Duration {
		return time.Duration(v * float64(time.Second))
	}

	merge := []struct {
		flag  string
		apply func()
		skip  bool
	}{
		{"host", func() { c.Host = f.Host }, f.Host == ""},
		{"port", func() { c.Port = f.Port }, f.Port == 0},
		{"timeout", func() { c.Timeout = seconds(f.Timeout) }, f.Timeout == 0},
		{"type", func() { c.Kind = f.Type }, f.Type == ""},
		{"file", func() { c.File = f.File }, f.File == ""},
		{"min", func() { c.Min = f.Min }, f.Min == 0},
		{"max", func() { c.Max = f.Max }, f.Max == 0},
		{"step", func() { c.Step = f.Step }, f.Step == 0},
		{"mode", func() { c.Mode = f.Mode }, f.Mode == ""},
		{"includes", func() { c.Includes = f.Includes }, f.Includes == ""},
		{"pattern", func() { c.Pattern = f.Pattern }, f.Pattern == ""},
		{"exclude", func() { c.Excludes = f.Excludes }, len(f.Excludes) == 0},
		{"delay", func() { c.Delay = seconds(f.Delay) }, f.Delay == 0},
		{"settle", func() { c.Settle = seconds(f.Settle) }, f.Settle == 0},
		{"level", func() { c.Level = f.Level }, f.Level == 0},
		{"hold", func() { c.Hold = f.Hold }, f.Hold == ""},
		{"hold-time", func() { c.HoldTime = seconds(f.HoldTime) }, f.HoldTime == 0},
		{"dwell", func() { c.Dwell = seconds(f.Dwell) }, f.Dwell == 0},
		{"monitor", func() { c.Monitor = f.Monitor }, !f.Monitor},
		{"record", func() { c.Record = f.Record }, !f.Record},
		{"show-skipped", func() { c.ShowSkipped = f.ShowSkipped }, !f.ShowSkipped},
		{"pause-file", func() { c.PauseFile = f.PauseFile }, f.PauseFile == ""},
		{"log-db", func() { c.LogDB = f.LogDB }, f.LogDB == ""},
		{"palette", func() { c.Palette = f.Palette }, f.Palette == ""},
		{"log-level", func() { c.LogLevel = f.LogLevel }, f.LogLevel == ""},
	}

	for _, m := range merge {
		if !m.skip && !set[m.flag] {
			m.apply()
		}
	}
	return nil
}

// Validate checks the startup parameters. Any error here is fatal and
// printed with usage guidance.
func (c *Config) Validate() error {
	if c.Sessions {
		if c.LogDB == "" {
			return errors.New("-sessions requires -log-db")
		}
		return nil
	}

	switch c.Kind {
	case KindFile:
		if c.File == "" {
			return errors.New("file mode requires a channel table (-file)")
		}
	case KindRange:
		if c.Min <= 0 {
			return errors.New("range mode requires a start frequency (-min)")
		}
		if c.Max < c.Min {
			return fmt.Errorf("range end %d is below start %d", c.Max, c.Min)
		}
		if c.Step <= 0 {
			return fmt.Errorf("invalid range step %d", c.Step)
		}
		if _, err := chanlist.ParseMode(c.Mode); err != nil {
			return err
		}
	case "":
		return errors.New("no channel table or frequency range selected (-type)")
	default:
		return fmt.Errorf("unknown scan type %q", c.Kind)
	}

	if c.Dump && c.Kind != KindFile {
		return errors.New("-dump only applies to channel tables (-type file)")
	}

	if c.Level > 0 {
		return errors.New("hold threshold (-level) must be negative")
	}
	if c.Record && !c.LevelStop() {
		return errors.New("-record requires a hold threshold (-level)")
	}

	switch c.Hold {
	case "fixed", "confirm", "clear":
	default:
		return fmt.Errorf("unknown hold policy %q", c.Hold)
	}

	if c.Dwell < c.Settle {
		return fmt.Errorf("dwell %s is shorter than the settle delay %s", c.Dwell, c.Settle)
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Addr returns the receiver control address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LevelStop reports whether a hold threshold has been configured.
func (c *Config) LevelStop() bool {
	return c.Level != 0
}

// SlogLevel maps the configured log level name.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
}

// excludeList collects repeatable -exclude flags.
type excludeList []string

func (l *excludeList) String() string { return strings.Join(*l, ",") }

func (l *excludeList) Set(v string) error {
	*l = append(*l, v)
	return nil
}
