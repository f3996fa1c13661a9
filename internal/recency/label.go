package recency

import (
	"sort"
	"strings"
)

// fileLabels maps source file stems to window labels. Sources name their
// files inconsistently; unknown stems are used as-is (lower-cased).
var fileLabels = map[string]Window{
	"thirty-days":             ThirtyDays,
	"30-days":                 ThirtyDays,
	"1.-thirty-days":          ThirtyDays,
	"sixty-days":              SixtyDays,
	"60-days":                 SixtyDays,
	"two-months":              SixtyDays,
	"three-months":            NinetyDays,
	"90-days":                 NinetyDays,
	"2.-three-months":         NinetyDays,
	"six-months":              SixMonths,
	"180-days":                SixMonths,
	"3.-six-months":           SixMonths,
	"more-than-six-months":    AllTime,
	"4.-more-than-six-months": AllTime,
	"all":                     AllTime,
	"all-time":                AllTime,
	"5.-all":                  AllTime,
}

// LabelForFile derives a window label from a file stem such as
// "thirty-days" or "Three Months".
func LabelForFile(stem string) Window {
	key := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(stem))), "-")
	key = strings.ReplaceAll(key, "_", "-")
	if w, ok := fileLabels[key]; ok {
		return w
	}
	return Window(key)
}

// SortWindows orders windows by policy rank; labels outside the fixed order
// follow, ordered by label.
func SortWindows(ws []Window) {
	sort.SliceStable(ws, func(i, j int) bool {
		ri, oki := rank[ws[i]]
		rj, okj := rank[ws[j]]
		switch {
		case oki && okj:
			return ri < rj
		case oki != okj:
			return oki
		default:
			return ws[i] < ws[j]
		}
	})
}
