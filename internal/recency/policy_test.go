package recency

import (
	"reflect"
	"testing"
)

func TestTightest(t *testing.T) {
	tests := []struct {
		name string
		seen Set
		want Window
	}{
		{"single", NewSet(NinetyDays), NinetyDays},
		{"picks tightest", NewSet(AllTime, ThirtyDays, NinetyDays), ThirtyDays},
		{"empty falls back", NewSet(), AllTime},
		{"off-order label falls back", NewSet(SixMonths), AllTime},
		{"off-order ignored when ordered present", NewSet(SixMonths, NinetyDays), NinetyDays},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Tightest(tt.seen); got != tt.want {
				t.Errorf("Tightest = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIncludedIsCumulative(t *testing.T) {
	tests := []struct {
		requested Window
		want      []Window
	}{
		{ThirtyDays, []Window{ThirtyDays}},
		{SixtyDays, []Window{ThirtyDays, SixtyDays}},
		{NinetyDays, []Window{ThirtyDays, SixtyDays, NinetyDays}},
		{AllTime, []Window{ThirtyDays, SixtyDays, NinetyDays, AllTime}},
		{SixMonths, []Window{ThirtyDays, SixtyDays, NinetyDays, AllTime}},
		{"bogus", []Window{ThirtyDays, SixtyDays, NinetyDays, AllTime}},
	}
	for _, tt := range tests {
		if got := Included(tt.requested).Sorted(); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Included(%q) = %v, want %v", tt.requested, got, tt.want)
		}
	}
}

func TestResolveToken(t *testing.T) {
	tests := map[string]Window{
		"30":      ThirtyDays,
		"60":      SixtyDays,
		"90":      NinetyDays,
		"all":     AllTime,
		"90-days": NinetyDays,
		"365":     "365",
	}
	for token, want := range tests {
		if got := ResolveToken(token); got != want {
			t.Errorf("ResolveToken(%q) = %q, want %q", token, got, want)
		}
	}
	if !reflect.DeepEqual(Included(ResolveToken("365")), Included(Broadest())) {
		t.Error("unrecognized tokens must fall back to the broadest inclusion set")
	}
}

func TestWindowQueriesForThirtyAndNinetyDays(t *testing.T) {
	seen := NewSet(ThirtyDays, NinetyDays)
	for _, requested := range []Window{ThirtyDays, NinetyDays, AllTime} {
		if !seen.Intersects(Included(requested)) {
			t.Errorf("company seen in 30/90 days should match %q", requested)
		}
	}
	onlyNinety := NewSet(NinetyDays)
	if onlyNinety.Intersects(Included(ThirtyDays)) {
		t.Error("company seen only in 90 days must not match the 30-day window")
	}
}

func TestLabelForFile(t *testing.T) {
	tests := map[string]Window{
		"thirty-days":          ThirtyDays,
		"Three Months":         NinetyDays,
		"six_months":           SixMonths,
		"more-than-six-months": AllTime,
		"all":                  AllTime,
		"Weekly":               "weekly",
	}
	for stem, want := range tests {
		if got := LabelForFile(stem); got != want {
			t.Errorf("LabelForFile(%q) = %q, want %q", stem, got, want)
		}
	}
}

func TestSortWindows(t *testing.T) {
	ws := []Window{"weekly", AllTime, SixMonths, ThirtyDays, NinetyDays}
	SortWindows(ws)
	want := []Window{ThirtyDays, NinetyDays, AllTime, SixMonths, "weekly"}
	if !reflect.DeepEqual(ws, want) {
		t.Errorf("SortWindows = %v, want %v", ws, want)
	}
}
