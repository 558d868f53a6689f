package chanlist

import "fmt"

// Source produces the cyclic sequence of scan targets. Next reports,
// along with the target, whether the sequence has just wrapped back to
// its start (a lap boundary). The first target of a run is never a
// wrap.
type Source interface {
	Next() (Target, bool)
	Reset()
}

// TableSource iterates over a loaded channel table. Ineligible entries
// are still emitted, flagged so the caller can show them as skipped.
type TableSource struct {
	entries []Entry
	include Matcher
	exclude *Excludes

	pos     int
	started bool
}

// NewTableSource builds a cyclic source over the table. include may be
// nil, which selects every entry.
func NewTableSource(entries []Entry, include Matcher, exclude *Excludes) (*TableSource, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTable
	}
	if include == nil {
		include = MatchAll{}
	}
	return &TableSource{entries: entries, include: include, exclude: exclude}, nil
}

func (s *TableSource) Next() (Target, bool) {
	var wrapped bool
	if s.started {
		s.pos++
		if s.pos >= len(s.entries) {
			s.pos = 0
			wrapped = true
		}
	}
	s.started = true

	e := s.entries[s.pos]
	return Target{
		Freq:     e.Freq,
		Mode:     e.Mode,
		Name:     e.Name,
		Index:    s.pos,
		Eligible: s.Eligible(s.pos),
	}, wrapped
}

func (s *TableSource) Reset() {
	s.pos = 0
	s.started = false
}

// Eligible applies the selection policy to one table index: the
// inclusion rule first, then exclusion, which vetoes unconditionally.
func (s *TableSource) Eligible(index int) bool {
	e := s.entries[index]
	return s.include.Match(e, index) && !s.exclude.Veto(e)
}

// Len returns the number of table entries.
func (s *TableSource) Len() int { return len(s.entries) }

// Entries returns the loaded table, for listing.
func (s *TableSource) Entries() []Entry { return s.entries }

// WithResumeFrom starts the first lap at the given frequency instead
// of the range start, when it falls inside the range. Used to resume a
// range scan from wherever the receiver is currently tuned.
func WithResumeFrom(freq int64) func(*RangeSource) {
	return func(s *RangeSource) {
		s.resumeFrom = freq
	}
}

// RangeSource synthesizes frequency = start, start+step, ..., end and
// then wraps to start. It never emits a frequency outside [start, end].
type RangeSource struct {
	start, end, step int64
	mode             Mode
	exclude          *Excludes

	cur        int64
	index      int
	started    bool
	resumeFrom int64
}

// NewRangeSource validates the bounds and builds the cyclic source.
func NewRangeSource(start, end, step int64, mode Mode, exclude *Excludes, options ...func(*RangeSource)) (*RangeSource, error) {
	if start <= 0 || end < start {
		return nil, fmt.Errorf("%w: start %d, end %d", ErrInvalidRange, start, end)
	}
	if step <= 0 {
		return nil, fmt.Errorf("%w: step %d", ErrInvalidRange, step)
	}

	s := RangeSource{start: start, end: end, step: step, mode: mode, exclude: exclude}
	for _, option := range options {
		option(&s)
	}

	if s.resumeFrom < s.start || s.resumeFrom > s.end {
		s.resumeFrom = 0
	}
	return &s, nil
}

func (s *RangeSource) Next() (Target, bool) {
	var wrapped bool
	switch {
	case !s.started:
		s.started = true
		s.cur = s.start
		if s.resumeFrom != 0 {
			s.cur = s.resumeFrom
			s.index = int((s.cur - s.start) / s.step)
		}
	case s.cur+s.step > s.end:
		s.cur = s.start
		s.index = 0
		wrapped = true
	default:
		s.cur += s.step
		s.index++
	}

	return Target{
		Freq:     s.cur,
		Mode:     s.mode,
		Index:    s.index,
		Eligible: !s.exclude.VetoFreq(s.cur),
	}, wrapped
}

func (s *RangeSource) Reset() {
	s.started = false
	s.cur = 0
	s.index = 0
}

// Bounds returns the scan range bounds in Hz.
func (s *RangeSource) Bounds() (int64, int64) { return s.start, s.end }
