package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hamtools/rigscan/internal/chanlist"
	"github.com/hamtools/rigscan/internal/console"
	"github.com/hamtools/rigscan/internal/rigctl"
	"github.com/hamtools/rigscan/internal/scan"
	"github.com/hamtools/rigscan/internal/scanlog"
)

// Run wires the receiver client, the channel source, the reporter and
// the run log together and drives the scan until ctx is cancelled.
func Run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	if cfg.Sessions {
		return listSessions(ctx, cfg.LogDB)
	}

	pal, err := console.PaletteByName(cfg.Palette)
	if err != nil {
		return err
	}

	excludes, err := chanlist.ParseExcludes(cfg.Excludes)
	if err != nil {
		return err
	}

	radio, err := rigctl.Dial(cfg.Addr(),
		rigctl.WithTimeout(cfg.Timeout),
		rigctl.WithLogger(logger))
	if err != nil {
		return err
	}
	defer radio.Close()

	printerOpts := make([]func(*console.Printer), 0, 2)
	if cfg.ShowSkipped {
		printerOpts = append(printerOpts, console.WithShowSkipped())
	}

	var source chanlist.Source
	switch cfg.Kind {
	case KindFile:
		entries, err := chanlist.LoadTable(cfg.File, logger)
		if err != nil {
			return err
		}

		var include chanlist.Matcher
		switch {
		case cfg.Includes != "":
			if include, err = chanlist.ParseIndexSet(cfg.Includes); err != nil {
				return err
			}
		case cfg.Pattern != "":
			if include, err = chanlist.NewPattern(cfg.Pattern); err != nil {
				return err
			}
		}

		table, err := chanlist.NewTableSource(entries, include, excludes)
		if err != nil {
			return err
		}
		if cfg.Dump {
			console.New(os.Stdout, pal, printerOpts...).Dump(table)
			return nil
		}
		source = table

	case KindRange:
		mode, err := chanlist.ParseMode(cfg.Mode)
		if err != nil {
			return err
		}

		var rangeOpts []func(*chanlist.RangeSource)
		if cfg.Resume {
			if hz, err := radio.QueryFrequency(); err != nil {
				logger.Warn("cannot read current frequency, starting from the range start",
					slog.Any("error", err))
			} else {
				rangeOpts = append(rangeOpts, chanlist.WithResumeFrom(hz))
			}
		}

		rs, err := chanlist.NewRangeSource(cfg.Min, cfg.Max, cfg.Step, mode, excludes, rangeOpts...)
		if err != nil {
			return err
		}
		source = rs
		printerOpts = append(printerOpts, console.WithRangeBounds(cfg.Min, cfg.Max))
	}

	runLog := scan.RunLog(scan.NopLog{})
	if cfg.LogDB != "" {
		store := scanlog.New(cfg.LogDB)
		defer store.Close()

		run, err := store.BeginRun(ctx, cfg.Addr(), cfg.Kind, cfg)
		if err != nil {
			return fmt.Errorf("opening run log: %w", err)
		}
		defer func() {
			if err := run.Close(context.Background()); err != nil {
				logger.Error("closing run log", slog.Any("error", err))
			}
		}()

		logger.Info("logging this run", slog.String("db", cfg.LogDB),
			slog.Int64("session", run.SessionID()))
		runLog = run
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	confirm := make(chan struct{}, 1)
	var manual scan.Manual
	if closeKeys, err := listenKeys(cancel, &manual, confirm, logger); err != nil {
		logger.Warn("keyboard unavailable, operator keys disabled", slog.Any("error", err))
	} else {
		defer closeKeys()
	}

	engine := scan.New(radio, source, scan.Config{
		LevelStop:        cfg.LevelStop(),
		Threshold:        cfg.Level,
		Record:           cfg.Record,
		Settle:           cfg.Settle,
		Pause:            cfg.Delay,
		Dwell:            cfg.Dwell,
		Hold:             holdPolicy(cfg, confirm),
		Monitor:          cfg.Monitor,
		SkipUntilCurrent: cfg.Resume && cfg.Kind == KindFile,
	},
		scan.WithLogger(logger),
		scan.WithReporter(console.New(os.Stdout, pal, printerOpts...)),
		scan.WithRunLog(runLog),
		scan.WithGate(scan.Any(scan.MarkerFile{Path: cfg.PauseFile}, &manual)),
	)

	return engine.Run(ctx)
}

func holdPolicy(cfg *Config, confirm <-chan struct{}) scan.HoldPolicy {
	switch cfg.Hold {
	case "confirm":
		return scan.Confirm{C: confirm}
	case "clear":
		return scan.ClearWait{}
	default:
		return scan.FixedDelay{D: cfg.HoldTime}
	}
}

// listSessions prints the sessions stored in the run log database,
// with their recordings, and exits.
func listSessions(ctx context.Context, dbPath string) error {
	store := scanlog.New(dbPath)
	defer store.Close()

	sessions, err := store.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions recorded")
		return nil
	}

	for _, s := range sessions {
		fmt.Printf("session %d: %s %s scan on %s (%s)\n", s.ID,
			s.StartedAt.Local().Format(time.DateTime), s.Kind, s.Host,
			humanize.Time(s.StartedAt))

		recs, err := store.Recordings(ctx, s.ID)
		if err != nil {
			return err
		}
		for _, r := range recs {
			switch {
			case r.EndedAt != nil:
				fmt.Printf("  recording %s for %s\n", chanlist.FormatFreq(r.Frequency),
					r.EndedAt.Sub(r.StartedAt).Round(time.Second))
			default:
				fmt.Printf("  recording %s (never closed)\n", chanlist.FormatFreq(r.Frequency))
			}
		}
	}
	return nil
}
