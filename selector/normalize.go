package selector

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrInvalidDate          = errors.New("cannot parse date")
	ErrInvalidSortDirection = errors.New("cannot parse sort direction")
)

// Normalizer converts textual inputs into selector-ready values. The
// location is explicit on purpose: date evolution must not depend on
// ambient process state.
type Normalizer struct {
	Location    *time.Location
	DateLayouts []string
	TimeLayouts []string
}

var defaultDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
}

var defaultTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

func (n Normalizer) location() *time.Location {
	if n.Location == nil {
		return time.UTC
	}
	return n.Location
}

// EvolveDate parses a calendar date into midnight of the configured
// location, expressed as a UTC instant. Blank input is an upstream
// "no date" sentinel and propagates as ok=false rather than an error.
func (n Normalizer) EvolveDate(in string) (out time.Time, ok bool, err error) {
	in = strings.TrimSpace(in)
	if in == "" {
		return time.Time{}, false, nil
	}
	layouts := n.DateLayouts
	if layouts == nil {
		layouts = defaultDateLayouts
	}
	loc := n.location()
	for _, layout := range layouts {
		t, perr := time.ParseInLocation(layout, in, loc)
		if perr != nil {
			continue
		}
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		return midnight.UTC(), true, nil
	}
	return time.Time{}, false, fmt.Errorf("%w: %q", ErrInvalidDate, in)
}

// EvolveTime parses a timestamp with the location's wall-clock reading.
// It never attempts a time parse when the date evolution yields no value.
func (n Normalizer) EvolveTime(in string) (out time.Time, ok bool, err error) {
	if strings.TrimSpace(in) == "" {
		return time.Time{}, false, nil
	}
	layouts := n.TimeLayouts
	if layouts == nil {
		layouts = defaultTimeLayouts
	}
	loc := n.location()
	for _, layout := range layouts {
		t, perr := time.ParseInLocation(layout, strings.TrimSpace(in), loc)
		if perr != nil {
			continue
		}
		return t.In(loc).UTC(), true, nil
	}
	// a bare calendar date is still a valid timestamp at midnight
	return n.EvolveDate(in)
}

const (
	Ascending  = 1
	Descending = -1
)

type SortKey struct {
	Path string
	Dir  int
}

type SortSpec []SortKey

var sortDirections = map[string]int{
	"asc":        Ascending,
	"a":          Ascending,
	"ascending":  Ascending,
	"1":          Ascending,
	"desc":       Descending,
	"d":          Descending,
	"descending": Descending,
	"-1":         Descending,
}

// ParseSort turns "name asc, age desc" into a sort spec. A segment with
// no direction token sorts ascending.
func ParseSort(in string) (SortSpec, error) {
	spec := SortSpec{}
	for _, segment := range strings.Split(in, ",") {
		fields := strings.Fields(segment)
		switch len(fields) {
		case 0:
			continue
		case 1:
			spec = append(spec, SortKey{Path: fields[0], Dir: Ascending})
		case 2:
			dir, ok := sortDirections[strings.ToLower(fields[1])]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrInvalidSortDirection, fields[1])
			}
			spec = append(spec, SortKey{Path: fields[0], Dir: dir})
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidSortDirection, segment)
		}
	}
	return spec, nil
}

// SortSpecFrom accepts a pre-built ordered mapping of path to direction.
func SortSpecFrom(doc Selector) (SortSpec, error) {
	spec := SortSpec{}
	for _, path := range doc.Keys() {
		raw, _ := doc.Get(path)
		dir := Ascending
		switch v := raw.(type) {
		case int:
			if v < 0 {
				dir = Descending
			}
		case float64:
			if v < 0 {
				dir = Descending
			}
		case string:
			d, ok := sortDirections[strings.ToLower(v)]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrInvalidSortDirection, v)
			}
			dir = d
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidSortDirection, raw)
		}
		spec = append(spec, SortKey{Path: path, Dir: dir})
	}
	return spec, nil
}

// Negate builds {field: value}, or its negation: $not for pattern values,
// $ne for everything else. Pattern detection is a capability test on the
// value type, never a string heuristic.
func Negate(field string, value any, negate bool) Selector {
	if !negate {
		return D(field, value)
	}
	if regexLike(value) {
		return D(field, D(Not, value))
	}
	return D(field, D(Ne, value))
}

func regexLike(value any) bool {
	switch value.(type) {
	case *regexp.Regexp, Regex:
		return true
	}
	return false
}

// Operator promotes a short name to an operator key, leaving already
// prefixed names alone.
func Operator(name string) string {
	if IsOperator(name) {
		return name
	}
	return Sigil + name
}
