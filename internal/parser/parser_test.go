package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/recency"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/source"
)

func TestParseTableWithHeader(t *testing.T) {
	content := "Difficulty,Title,Frequency,Acceptance Rate,Link\n" +
		"EASY,Two Sum,100.0,0.55,https://leetcode.com/problems/two-sum\n" +
		"MEDIUM,\"LRU Cache\",42.5%,0.44,https://leetcode.com/problems/lru-cache\n"
	records, err := ParseTable(content)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Title != "Two Sum" || records[0].Frequency != 100 || records[0].Difficulty != "Easy" {
		t.Errorf("unexpected first record %+v", records[0])
	}
	if records[1].Frequency != 43 {
		t.Errorf("expected fractional percent rounded up to 43, got %d", records[1].Frequency)
	}
	if records[1].Link != "https://leetcode.com/problems/lru-cache" {
		t.Errorf("unexpected link %q", records[1].Link)
	}
}

func TestParseTableHeaderVariants(t *testing.T) {
	tests := []struct {
		name    string
		content string
		title   string
		freq    int
	}{
		{"problem name", "Problem Name,Times Asked\nWord Ladder,7\n", "Word Ladder", 7},
		{"question", "ID,Question,Occurrences\n127,Word Ladder,3\n", "Word Ladder", 3},
		{"no frequency column", "Title\nWord Ladder\n", "Word Ladder", 1},
		{"no title column", "ID,Frequency\n127,4\nWord Ladder,2\n", "Word Ladder", 2},
		{"bom", "\ufeffTitle,Frequency\nWord Ladder,5\n", "Word Ladder", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ParseTable(tt.content)
			if err != nil {
				t.Fatalf("ParseTable: %v", err)
			}
			last := records[len(records)-1]
			if last.Title != tt.title || last.Frequency != tt.freq {
				t.Errorf("got %+v, want title %q freq %d", last, tt.title, tt.freq)
			}
		})
	}
}

func TestParseTableHeaderless(t *testing.T) {
	records, err := ParseTable("1,Two Sum,Easy,55%,https://leetcode.com/problems/two-sum\n\n2,Add Two Numbers\n")
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected blank rows skipped, got %d records", len(records))
	}
	first := records[0]
	if first.Title != "Two Sum" || first.Frequency != 1 || first.Difficulty != "Easy" || first.Link == "" {
		t.Errorf("unexpected record %+v", first)
	}
}

func TestParseTableHeaderlessWordTitles(t *testing.T) {
	records, err := ParseTable("7,Infinity,Hard\n3,NaN\n")
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %+v", records)
	}
	if records[0].Title != "Infinity" || records[0].Frequency != 7 {
		t.Errorf("unexpected first record %+v", records[0])
	}
	if records[1].Title != "NaN" || records[1].Frequency != 3 {
		t.Errorf("unexpected second record %+v", records[1])
	}
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 1},
		{"abc", 1},
		{"-4", 1},
		{"0", 1},
		{"0%", 1},
		{"0.0", 1},
		{"0.2", 1},
		{"3", 3},
		{"2.1", 3},
		{" 87.5% ", 88},
		{"NaN", 1},
	}
	for _, tt := range tests {
		if got := ParseFrequency(tt.in); got != tt.want {
			t.Errorf("ParseFrequency(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParserParse(t *testing.T) {
	raw := source.Raw{
		"Acme": {
			recency.ThirtyDays: {"Title,Frequency\nTwo Sum,5\n"},
			recency.AllTime:    {"Title,Frequency\nTwo Sum,9\nLRU Cache,2\n"},
		},
		"Beta": {
			recency.NinetyDays: {"Title,Frequency\ntwo   sum,2\n"},
		},
	}
	data, stats, err := New(2).Parse(context.Background(), raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if stats.Companies != 2 || stats.Files != 3 || stats.Records != 4 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if len(data["Acme"][recency.AllTime]) != 2 {
		t.Errorf("expected 2 all-time records for Acme")
	}
}

func TestParserParseMergesDocumentsOfOneWindow(t *testing.T) {
	raw := source.Raw{
		"Acme": {recency.ThirtyDays: {
			"Title,Frequency\nTwo Sum,5\n",
			"Problem,Count\nLRU Cache,3\nTwo Sum,7\n",
		}},
	}
	data, stats, err := New(1).Parse(context.Background(), raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if stats.Files != 2 || stats.Records != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
	got := data["Acme"][recency.ThirtyDays]
	want := []string{"Two Sum", "LRU Cache", "Two Sum"}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %+v", len(want), got)
	}
	for i, title := range want {
		if got[i].Title != title {
			t.Errorf("record %d title = %q, want %q", i, got[i].Title, title)
		}
	}
}

func TestParserParseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	raw := source.Raw{"Acme": {recency.ThirtyDays: {"Title\nTwo Sum\n"}}}
	if _, _, err := New(1).Parse(ctx, raw); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
