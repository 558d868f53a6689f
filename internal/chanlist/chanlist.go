// Package chanlist produces the ordered, cyclic sequence of tunable
// targets a scan iterates over: either a channel table loaded from a
// text file and filtered by inclusion/exclusion rules, or an arithmetic
// sequence over a frequency range.
package chanlist

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrEmptyTable is returned when a channel table yields no entries.
	ErrEmptyTable = errors.New("channel table has no usable entries")

	// ErrInvalidRange is returned for a range whose bounds or step make
	// no arithmetic sequence.
	ErrInvalidRange = errors.New("invalid frequency range")
)

// malformedLineDelay is the pause after reporting an unparsable table
// line, giving the operator a chance to notice it during startup.
const malformedLineDelay = 250 * time.Millisecond

var (
	freqStrip = regexp.MustCompile(`[^0-9]`)
	modeStrip = regexp.MustCompile(`[^A-Z_]`)
	nameStrip = regexp.MustCompile(`[^a-zA-Z0-9 ]`)
)

// Entry is a single channel table line. Entries are immutable once
// loaded.
type Entry struct {
	Freq int64  // Hz
	Mode Mode   // demodulation mode
	Name string // cleaned display name
}

// Target is the value the scan engine acts on for one iteration. In
// table mode it carries the table entry and its line index; in range
// mode it is synthesized from the range position.
type Target struct {
	Freq     int64
	Mode     Mode
	Name     string
	Index    int
	Eligible bool // false when a filter rules the target out
}

// FormatFreq renders a frequency the way scan output and pattern
// matching expect it: megahertz to three decimals followed by the
// kilohertz group, e.g. 28400000 Hz -> "28.400 400". Sub-kilohertz
// digits truncate, so the two kilohertz groups always agree.
func FormatFreq(hz int64) string {
	khz := (hz / 1000) % 1000
	return fmt.Sprintf("%d.%03d %03d", hz/1000000, khz, khz)
}

// LoadTable reads a channel table of "frequencyHz,MODE,name" lines.
// Fields are cleaned before parsing: the frequency keeps digits only,
// the mode keeps uppercase letters and underscores, the name keeps
// alphanumerics and spaces. A line with an empty frequency or mode
// after cleaning is reported and skipped; it does not abort loading.
func LoadTable(path string, logger *slog.Logger) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening channel table: %w", err)
	}
	defer f.Close()

	var entries []Entry

	scanner := bufio.NewScanner(f)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, err := parseLine(line)
		if err != nil {
			logger.Warn(fmt.Sprintf("skipping channel table line %d: %s", lineNo, err.Error()),
				slog.String("line", line))
			time.Sleep(malformedLineDelay)
			continue
		}

		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading channel table: %w", err)
	}

	if len(entries) == 0 {
		return nil, ErrEmptyTable
	}
	return entries, nil
}

func parseLine(line string) (Entry, error) {
	fields := strings.SplitN(line, ",", 3)

	freqField := freqStrip.ReplaceAllString(fields[0], "")
	if freqField == "" {
		return Entry{}, errors.New("empty frequency field")
	}
	freq, err := strconv.ParseInt(freqField, 10, 64)
	if err != nil || freq <= 0 {
		return Entry{}, fmt.Errorf("invalid frequency %q", fields[0])
	}

	if len(fields) < 2 {
		return Entry{}, errors.New("empty mode field")
	}
	modeField := modeStrip.ReplaceAllString(strings.ToUpper(fields[1]), "")
	if modeField == "" {
		return Entry{}, errors.New("empty mode field")
	}
	mode, err := ParseMode(modeField)
	if err != nil {
		return Entry{}, err
	}

	var name string
	if len(fields) == 3 {
		name = strings.TrimSpace(nameStrip.ReplaceAllString(fields[2], ""))
	}

	return Entry{Freq: freq, Mode: mode, Name: name}, nil
}
