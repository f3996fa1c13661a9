package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/catalog"
)

type column int

const (
	colTitle column = iota
	colFrequency
	colDifficulty
	colLink
)

var headerNames = map[string]column{
	"title":         colTitle,
	"problem":       colTitle,
	"problem name":  colTitle,
	"name":          colTitle,
	"question":      colTitle,
	"frequency":     colFrequency,
	"frequency %":   colFrequency,
	"count":         colFrequency,
	"times asked":   colFrequency,
	"occurrences":   colFrequency,
	"difficulty":    colDifficulty,
	"level":         colDifficulty,
	"link":          colLink,
	"url":           colLink,
	"leetcode link": colLink,
	"problem link":  colLink,
}

var difficulties = map[string]struct{}{
	"easy":   {},
	"medium": {},
	"hard":   {},
}

type layout map[column]int

// ParseTable decodes one company/window CSV body into records. A first row
// naming at least one known column is treated as a header; otherwise every
// row is data and fields are classified by shape.
func ParseTable(content string) ([]catalog.RawRecord, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(content, "\ufeff")))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var (
		records []catalog.RawRecord
		cols    layout
		first   = true
	)
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		if blank(row) {
			continue
		}
		if first {
			first = false
			if l, ok := detectHeader(row); ok {
				cols = l
				continue
			}
		}
		var rec catalog.RawRecord
		if cols != nil {
			rec = fromLayout(row, cols)
		} else {
			rec = fromShape(row)
		}
		records = append(records, rec)
	}
	return records, nil
}

func detectHeader(row []string) (layout, bool) {
	l := make(layout)
	for i, cell := range row {
		name := strings.Join(strings.Fields(strings.ToLower(cell)), " ")
		if c, ok := headerNames[name]; ok {
			if _, dup := l[c]; !dup {
				l[c] = i
			}
		}
	}
	return l, len(l) > 0
}

func fromLayout(row []string, l layout) catalog.RawRecord {
	rec := catalog.RawRecord{Frequency: 1}
	if i, ok := l[colTitle]; ok {
		rec.Title = cell(row, i)
	} else {
		rec.Title = guessTitle(row)
	}
	if i, ok := l[colFrequency]; ok {
		rec.Frequency = ParseFrequency(cell(row, i))
	}
	if i, ok := l[colDifficulty]; ok {
		rec.Difficulty = normalizeDifficulty(cell(row, i))
	}
	if i, ok := l[colLink]; ok {
		rec.Link = cell(row, i)
	}
	return rec
}

func fromShape(row []string) catalog.RawRecord {
	rec := catalog.RawRecord{Title: guessTitle(row), Frequency: 1}
	freqSet := false
	for _, raw := range row {
		v := strings.TrimSpace(raw)
		switch {
		case v == "":
		case isURL(v):
			if rec.Link == "" {
				rec.Link = v
			}
		case isNumeric(v):
			if !freqSet {
				rec.Frequency = ParseFrequency(v)
				freqSet = true
			}
		default:
			if _, ok := difficulties[strings.ToLower(v)]; ok && rec.Difficulty == "" {
				rec.Difficulty = normalizeDifficulty(v)
			}
		}
	}
	return rec
}

// guessTitle picks the first field that is neither numeric nor a URL.
func guessTitle(row []string) string {
	for _, raw := range row {
		v := strings.TrimSpace(raw)
		if v == "" || isNumeric(v) || isURL(v) {
			continue
		}
		if _, ok := difficulties[strings.ToLower(v)]; ok {
			continue
		}
		return v
	}
	return ""
}

// ParseFrequency turns a frequency cell into a positive count. A trailing
// percent sign is ignored and fractional values round up. Absent,
// unparseable, zero or negative values count as 1.
func ParseFrequency(raw string) int {
	v := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if v == "" {
		return 1
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 1
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Ceil(f))
}

func normalizeDifficulty(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return ""
	}
	return strings.ToUpper(v[:1]) + v[1:]
}

// isNumeric reports whether v is a plain decimal number, optionally followed
// by a percent sign. Words such as "Infinity" are titles, not numbers.
func isNumeric(v string) bool {
	v = strings.TrimSuffix(v, "%")
	digits, dot := 0, false
	for i, r := range v {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' && !dot:
			dot = true
		case (r == '-' || r == '+') && i == 0:
		default:
			return false
		}
	}
	return digits > 0
}

func isURL(v string) bool {
	lower := strings.ToLower(v)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
