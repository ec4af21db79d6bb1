package judge

import (
	"slices"
	"strconv"
	"strings"
)

// outputsMatch compares one rendered result against the expected literal.
// With anyOrder, two sequences are compared as multisets; anything that does
// not parse as a sequence falls back to exact comparison.
func outputsMatch(actual, expected string, anyOrder bool) bool {
	actual = strings.TrimRight(actual, " \t\r")
	expected = strings.TrimSpace(expected)
	if actual == expected {
		return true
	}
	if !anyOrder {
		return false
	}
	a, err := ParseLiteral(actual)
	if err != nil || !a.IsSequence() {
		return false
	}
	e, err := ParseLiteral(expected)
	if err != nil || !e.IsSequence() {
		return false
	}
	return slices.Equal(a.sortedItems(), e.sortedItems())
}

// run is the driver output split by markers.
type run struct {
	results []string
	console []string
	elapsed int
	timed   bool
}

func parseRun(stdout string, h harness) (run, bool) {
	var r run
	lines := strings.Split(strings.ReplaceAll(stdout, "\r\n", "\n"), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	for i := 0; i < len(lines); i++ {
		switch lines[i] {
		case h.ResultMarker:
			if i+1 >= len(lines) {
				return r, false
			}
			i++
			r.results = append(r.results, lines[i])
		case h.TimeMarker:
			if i+1 >= len(lines) {
				return r, false
			}
			i++
			ms, err := strconv.Atoi(strings.TrimSpace(lines[i]))
			if err != nil {
				return r, false
			}
			r.elapsed, r.timed = ms, true
		default:
			r.console = append(r.console, lines[i])
		}
	}
	return r, r.timed
}
