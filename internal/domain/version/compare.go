// Package version implements the natural ordering used for installed-package
// version strings.
//
// The ordering is a best-effort heuristic, not a semantic-versioning
// comparator: dotted components are compared token by token, digit runs
// numerically and everything else lexically, with newer-looking versions
// sorting first. It is deterministic and total, which is all the read-side
// aggregation requires.
package version

import (
	"sort"
	"strings"
)

// Compare orders two version strings so that newer-looking versions come
// first. It returns a negative value when a sorts before b, a positive value
// when b sorts before a, and zero only when the strings are identical.
func Compare(a, b string) int {
	if a == b {
		return 0
	}

	ta := strings.Split(a, ".")
	tb := strings.Split(b, ".")

	n := len(ta)
	if len(tb) < n {
		n = len(tb)
	}

	for i := 0; i < n; i++ {
		if c := compareLogical(ta[i], tb[i]); c != 0 {
			// Reversed: the larger-looking component sorts first.
			return -c
		}
	}

	// All shared components tie. The shorter split sorts after the longer
	// one, so "1.2" comes after "1.2.0".
	if len(ta) != len(tb) {
		return len(tb) - len(ta)
	}

	// Fully tied components (e.g. "1.02" vs "1.2"): reverse lexical
	// comparison of the whole strings keeps the ordering total.
	return -strings.Compare(a, b)
}

// Sort orders version strings in place, newest-looking first.
func Sort(versions []string) {
	sort.Slice(versions, func(i, j int) bool {
		return Compare(versions[i], versions[j]) < 0
	})
}

// compareLogical compares two component tokens, treating digit runs as
// numbers so "10" compares greater than "9". Tokens are consumed run by run;
// a token with leftover runs compares greater than its exhausted counterpart.
func compareLogical(x, y string) int {
	for x != "" && y != "" {
		xr, xd := nextRun(x)
		yr, yd := nextRun(y)

		switch {
		case xd && yd:
			if c := compareNumeric(xr, yr); c != 0 {
				return c
			}
		case xd != yd:
			// Digit runs order before non-digit runs.
			if xd {
				return -1
			}
			return 1
		default:
			if c := strings.Compare(xr, yr); c != 0 {
				return c
			}
		}

		x = x[len(xr):]
		y = y[len(yr):]
	}

	switch {
	case x == "" && y == "":
		return 0
	case x == "":
		return -1
	default:
		return 1
	}
}

// compareNumeric compares two digit runs as unbounded integers.
func compareNumeric(x, y string) int {
	x = strings.TrimLeft(x, "0")
	y = strings.TrimLeft(y, "0")
	if len(x) != len(y) {
		if len(x) < len(y) {
			return -1
		}
		return 1
	}
	return strings.Compare(x, y)
}

// nextRun returns the leading run of s and whether it consists of digits.
func nextRun(s string) (string, bool) {
	digit := isDigit(s[0])
	for i := 1; i < len(s); i++ {
		if isDigit(s[i]) != digit {
			return s[:i], digit
		}
	}
	return s, digit
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
