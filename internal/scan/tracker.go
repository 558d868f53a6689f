package scan

// Tracker keeps per-frequency signal bookkeeping for one run: the best
// level ever observed and how many times a frequency triggered a hold
// or recording. It is owned and mutated by the scan loop only.
type Tracker struct {
	best     map[int64]float64
	activity map[int64]int
}

func NewTracker() *Tracker {
	return &Tracker{
		best:     make(map[int64]float64),
		activity: make(map[int64]int),
	}
}

// Update records a level sample for freq and reports whether it set a
// new per-frequency maximum. The first sample for a frequency always
// does. The stored best is monotonically non-decreasing.
func (t *Tracker) Update(freq int64, level float64) bool {
	best, ok := t.best[freq]
	if !ok || level > best {
		t.best[freq] = level
		return true
	}
	return false
}

// Best returns the highest level observed for freq, if any.
func (t *Tracker) Best(freq int64) (float64, bool) {
	best, ok := t.best[freq]
	return best, ok
}

// AddActivity counts one hold/recording event against freq.
func (t *Tracker) AddActivity(freq int64) {
	t.activity[freq]++
}

// MostActive returns the frequency with the highest activity count, or
// (0, 0) when nothing has been active. Ties resolve to the lowest
// frequency so the result is deterministic.
func (t *Tracker) MostActive() (int64, int) {
	var freq int64
	var count int
	for f, c := range t.activity {
		if c > count || (c == count && count > 0 && f < freq) {
			freq = f
			count = c
		}
	}
	return freq, count
}
