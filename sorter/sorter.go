package sorter

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Slice sorts s stably with a per-record comparable, so records equal on
// every key keep their original relative order.
func Slice(s interface{}, fn func(int) Cmp) {
	sort.SliceStable(s, func(i, j int) bool {
		return fn(i).Less(fn(j))
	})
}

type Cmp interface {
	Less(o Cmp) bool
}

// Asc orders by the natural ordering of Compare.
type Asc struct{ V any }

func (a Asc) Less(o Cmp) bool {
	return Compare(a.V, o.(Asc).V) < 0
}

// Desc reverses it.
type Desc struct{ V any }

func (d Desc) Less(o Cmp) bool {
	return Compare(d.V, o.(Desc).V) > 0
}

// Key orders by Compare under an explicit direction (+1 or -1).
type Key struct {
	V   any
	Dir int
}

func (k Key) Less(o Cmp) bool {
	return k.Dir*Compare(k.V, o.(Key).V) < 0
}

// Chain compares key by key and takes the first decisive one.
type Chain []Cmp

func (c Chain) Less(other Cmp) bool {
	o := other.(Chain)
	for i := range c {
		if i >= len(o) {
			break
		}
		if c[i].Less(o[i]) {
			return true
		}
		if o[i].Less(c[i]) {
			break
		}
	}
	return false
}

// Compare is a total order over heterogeneous values: -1, 0 or +1.
// Nil compares greater than anything, so nil sorts last ascending.
// Booleans normalize to 0/1, so false sorts before true.
func Compare(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return 1
	}
	if b == nil {
		return -1
	}
	a, b = normalize(a), normalize(b)
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return compareFloat(af, bf)
		}
	}
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			}
			return 0
		}
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return strings.Compare(as, bs)
		}
	}
	// mixed types fall back to their printed form
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func normalize(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case time.Duration:
		return int64(x)
	}
	return v
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
