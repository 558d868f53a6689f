package chanlist

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Matcher decides whether a table entry is eligible for tuning. The
// concrete strategies are composed in a fixed precedence order: an
// explicit index allow-list wins over a pattern, which wins over
// matching everything. Exclusion is applied separately and always wins.
type Matcher interface {
	Match(e Entry, index int) bool
}

// MatchAll makes every entry eligible.
type MatchAll struct{}

func (MatchAll) Match(Entry, int) bool { return true }

// IndexSet is an explicit allow-list of table line indices.
type IndexSet map[int]struct{}

func (s IndexSet) Match(_ Entry, index int) bool {
	_, ok := s[index]
	return ok
}

// ParseIndexSet expands an index list such as "1,3,5-7" into the set
// {1,3,5,6,7}. Ranges are inclusive and expanded once at load time.
func ParseIndexSet(spec string) (IndexSet, error) {
	set := make(IndexSet)

	for _, chunk := range strings.Split(spec, ",") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}

		if from, to, ok := strings.Cut(chunk, "-"); ok {
			lo, err := strconv.Atoi(strings.TrimSpace(from))
			if err != nil {
				return nil, fmt.Errorf("invalid index range %q", chunk)
			}
			hi, err := strconv.Atoi(strings.TrimSpace(to))
			if err != nil {
				return nil, fmt.Errorf("invalid index range %q", chunk)
			}
			if lo < 0 || hi < lo {
				return nil, fmt.Errorf("invalid index range %q", chunk)
			}
			for i := lo; i <= hi; i++ {
				set[i] = struct{}{}
			}
			continue
		}

		i, err := strconv.Atoi(chunk)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("invalid index %q", chunk)
		}
		set[i] = struct{}{}
	}

	if len(set) == 0 {
		return nil, fmt.Errorf("empty index list %q", spec)
	}
	return set, nil
}

// Pattern matches an entry when its formatted frequency or cleaned
// name matches the expression.
type Pattern struct {
	re *regexp.Regexp
}

func NewPattern(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("invalid channel pattern: %w", err)
	}
	return Pattern{re: re}, nil
}

func (p Pattern) Match(e Entry, _ int) bool {
	return p.re.MatchString(FormatFreq(e.Freq)) || p.re.MatchString(e.Name)
}

// Excludes vetoes entries after inclusion, unconditionally: a literal
// rule excludes an exact frequency, anything else is compiled as a
// regular expression over the entry name.
type Excludes struct {
	freqs map[int64]struct{}
	names []*regexp.Regexp
}

// ParseExcludes builds the exclusion rules from raw specs. A spec made
// of digits only is an exact frequency in Hz.
func ParseExcludes(specs []string) (*Excludes, error) {
	x := Excludes{freqs: make(map[int64]struct{})}

	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}

		if freq, err := strconv.ParseInt(spec, 10, 64); err == nil {
			x.freqs[freq] = struct{}{}
			continue
		}

		re, err := regexp.Compile(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", spec, err)
		}
		x.names = append(x.names, re)
	}

	return &x, nil
}

// Veto reports whether the entry is excluded.
func (x *Excludes) Veto(e Entry) bool {
	if x == nil {
		return false
	}
	if _, ok := x.freqs[e.Freq]; ok {
		return true
	}
	for _, re := range x.names {
		if re.MatchString(e.Name) {
			return true
		}
	}
	return false
}

// VetoFreq reports whether a bare frequency is excluded. Range mode
// has no names to match, only exact frequencies.
func (x *Excludes) VetoFreq(freq int64) bool {
	if x == nil {
		return false
	}
	_, ok := x.freqs[freq]
	return ok
}
