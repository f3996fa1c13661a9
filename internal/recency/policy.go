// Package recency defines the recency windows a company can report a problem
// in, their tightest-to-broadest order, and the cumulative hierarchy used to
// answer "reported within window W" queries.
package recency

// Window is a recency bucket label such as "30-days".
type Window string

// Windows in the fixed order, tightest first.
const (
	ThirtyDays Window = "30-days"
	SixtyDays  Window = "60-days"
	NinetyDays Window = "90-days"
	AllTime    Window = "all-time"
)

// SixMonths is produced by ingestion for "six-months" files but is not part
// of the fixed order. Pairs seen only in it fall back to AllTime for
// lastSeen and match no specific window query. Kept as observed until the
// intended placement is confirmed.
const SixMonths Window = "180-days"

var order = []Window{ThirtyDays, SixtyDays, NinetyDays, AllTime}

var rank = func() map[Window]int {
	m := make(map[Window]int, len(order))
	for i, w := range order {
		m[w] = i
	}
	return m
}()

// tokens maps externally requested range codes to internal windows.
var tokens = map[string]Window{
	"30":  ThirtyDays,
	"60":  SixtyDays,
	"90":  NinetyDays,
	"all": AllTime,
}

// Broadest returns the widest window in the fixed order.
func Broadest() Window {
	return order[len(order)-1]
}

// Set is a set of windows.
type Set map[Window]struct{}

// NewSet builds a set from the given windows.
func NewSet(windows ...Window) Set {
	s := make(Set, len(windows))
	for _, w := range windows {
		s[w] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(w Window) bool {
	_, ok := s[w]
	return ok
}

// Intersects reports whether s and other share a window.
func (s Set) Intersects(other Set) bool {
	if len(other) < len(s) {
		s, other = other, s
	}
	for w := range s {
		if other.Has(w) {
			return true
		}
	}
	return false
}

// Sorted returns the members in policy order; labels outside the fixed order
// follow, ordered by label.
func (s Set) Sorted() []Window {
	out := make([]Window, 0, len(s))
	for w := range s {
		out = append(out, w)
	}
	SortWindows(out)
	return out
}

// Tightest returns the first window of the fixed order present in seen, or
// the broadest window when none is.
func Tightest(seen Set) Window {
	for _, w := range order {
		if seen.Has(w) {
			return w
		}
	}
	return Broadest()
}

// Included returns the cumulative inclusion set for a requested window: the
// window itself plus every tighter one. The broadest window and any
// unrecognized label include the whole fixed order.
func Included(requested Window) Set {
	r, ok := rank[requested]
	if !ok {
		r = len(order) - 1
	}
	return NewSet(order[:r+1]...)
}

// ResolveToken maps an external range token ("30", "60", "90", "all") to an
// internal window. Unmapped tokens pass through unchanged.
func ResolveToken(token string) Window {
	if w, ok := tokens[token]; ok {
		return w
	}
	return Window(token)
}
