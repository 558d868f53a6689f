// Package console renders scan output: one line per evaluated target,
// periodic lap summaries, and channel table listings.
package console

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hamtools/rigscan/internal/chanlist"
	"github.com/hamtools/rigscan/internal/scan"
)

func humanizeRounding(d time.Duration) time.Duration {
	if d >= time.Minute {
		return time.Second
	}
	return time.Millisecond
}

// WithRangeBounds switches the printer to range mode: lines show the
// scan bounds instead of a channel name and table index.
func WithRangeBounds(start, end int64) func(*Printer) {
	return func(p *Printer) {
		p.rangeMode = true
		p.start = start
		p.end = end
	}
}

// WithShowSkipped enables lines for targets ruled out by filters.
func WithShowSkipped() func(*Printer) {
	return func(p *Printer) {
		p.showSkipped = true
	}
}

// Printer implements the scan reporter on a writer.
type Printer struct {
	out io.Writer
	pal Palette

	rangeMode   bool
	start, end  int64
	showSkipped bool
}

func New(out io.Writer, pal Palette, options ...func(*Printer)) *Printer {
	p := Printer{out: out, pal: pal}
	for _, option := range options {
		option(&p)
	}
	return &p
}

// Line prints one evaluated target: formatted frequency, name or range
// bounds, mode, current level, best level (highlighted on a new
// maximum), and the table index or scan bounds.
func (p *Printer) Line(r scan.Report) {
	if r.Skipped {
		if p.showSkipped {
			fmt.Fprintf(p.out, "%s  %-20s %-6s %s\n",
				p.pal.Freq.Sprint(chanlist.FormatFreq(r.Target.Freq)),
				r.Target.Name,
				r.Target.Mode,
				p.pal.Skip.Sprint("Skipped"))
		}
		return
	}

	level := "  ---  "
	if r.HaveLevel {
		level = fmt.Sprintf("%7.1f", r.Level)
	}

	best := "  ---  "
	if r.HaveBest {
		best = fmt.Sprintf("%7.1f", r.Best)
	}
	bestCol := p.pal.Best
	if r.NewMax {
		bestCol = p.pal.NewMax
	}

	fmt.Fprintf(p.out, "%s  %-20s %-6s level: %s  best: %s  %s\n",
		p.pal.Freq.Sprint(chanlist.FormatFreq(r.Target.Freq)),
		p.label(r.Target),
		p.pal.Mode.Sprint(r.Target.Mode),
		p.pal.Level.Sprint(level),
		bestCol.Sprint(best),
		p.position(r.Target))
}

// Summary prints the lap summary line.
func (p *Printer) Summary(s scan.Summary) {
	line := fmt.Sprintf("lap %d complete: %s targets, elapsed %s, recorded %s",
		s.Laps,
		humanize.Comma(int64(s.TunedLastLap)),
		s.Elapsed.Round(humanizeRounding(s.Elapsed)),
		s.Recorded.Round(humanizeRounding(s.Recorded)))

	if s.ActivityCount > 0 {
		line += fmt.Sprintf(", most active %s (%d hits)",
			chanlist.FormatFreq(s.MostActive), s.ActivityCount)
	}

	fmt.Fprintln(p.out, p.pal.Summary.Sprint(line))
}

// Dump lists a channel table with per-entry eligibility, used by the
// listing mode that iterates once without tuning.
func (p *Printer) Dump(src *chanlist.TableSource) {
	for i, e := range src.Entries() {
		marker := " "
		if !src.Eligible(i) {
			marker = p.pal.Skip.Sprint("x")
		}
		fmt.Fprintf(p.out, "%s [%3d] %s  %-20s %s\n",
			marker,
			i,
			p.pal.Freq.Sprint(chanlist.FormatFreq(e.Freq)),
			e.Name,
			p.pal.Mode.Sprint(e.Mode))
	}
}

func (p *Printer) label(t chanlist.Target) string {
	if p.rangeMode {
		return fmt.Sprintf("%s - %s", chanlist.FormatFreq(p.start), chanlist.FormatFreq(p.end))
	}
	return t.Name
}

func (p *Printer) position(t chanlist.Target) string {
	if p.rangeMode {
		return fmt.Sprintf("[%s Hz - %s Hz]", humanize.Comma(p.start), humanize.Comma(p.end))
	}
	return fmt.Sprintf("[%3d]", t.Index)
}
