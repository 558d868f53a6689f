package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/hamtools/rigscan/internal/chanlist"
)

// HoldPolicy decides how long the engine stays on a target once a
// signal above the threshold has been detected. Exactly one policy is
// active per run.
type HoldPolicy interface {
	Wait(ctx context.Context, e *Engine, t chanlist.Target) error
}

// FixedDelay holds for a configured duration, then resumes scanning.
type FixedDelay struct {
	D time.Duration
}

func (p FixedDelay) Wait(ctx context.Context, e *Engine, _ chanlist.Target) error {
	return sleepCtx(ctx, p.D)
}

// Confirm holds until the operator sends a confirmation signal.
type Confirm struct {
	C <-chan struct{}
}

func (p Confirm) Wait(ctx context.Context, e *Engine, t chanlist.Target) error {
	e.logger.Info("holding, waiting for confirmation",
		slog.String("freq", chanlist.FormatFreq(t.Freq)))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.C:
		return nil
	}
}

// ClearWait polls the level at the settle interval and resumes only
// after it has stayed at or below the threshold for the configured
// dwell duration. Any excursion back above the threshold restarts the
// dwell timer.
type ClearWait struct{}

func (p ClearWait) Wait(ctx context.Context, e *Engine, t chanlist.Target) error {
	lastAbove := time.Now()
	lossLogged := false

	for {
		if err := sleepCtx(ctx, e.cfg.Settle); err != nil {
			return err
		}

		level, err := e.radio.QueryLevel()
		if err == nil {
			e.tracker.Update(t.Freq, level)

			if level > e.cfg.Threshold {
				lastAbove = time.Now()
				lossLogged = false
				continue
			}
		}

		// Below threshold, or reading unavailable: both count toward
		// a clear frequency.
		if !lossLogged {
			e.logger.Info("signal lost, waiting for clear frequency",
				slog.String("freq", chanlist.FormatFreq(t.Freq)),
				slog.Duration("dwell", e.cfg.Dwell))
			lossLogged = true
		}

		if time.Since(lastAbove) >= e.cfg.Dwell {
			return nil
		}
	}
}
