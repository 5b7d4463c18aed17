package album

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// CodePrefix and the two-digit minimum width are read by the web renderer.
	CodePrefix = "a"

	DefaultCounterKey = "_album_sequence"
)

func FormatCode(n int64) string {
	return fmt.Sprintf("%s%02d", CodePrefix, n)
}

// ParseCode accepts only canonical codes, so "a7" and "a007" are rejected
// while "a07" and "a100" parse.
func ParseCode(code string) (int64, bool) {
	code = strings.TrimSpace(code)
	digits, ok := strings.CutPrefix(code, CodePrefix)
	if !ok || len(digits) < 2 {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	if FormatCode(n) != code {
		return 0, false
	}
	return n, true
}
