package util

import (
	"strconv"
	"strings"
)

// ParseLooseInt parses user or service supplied numbers permissively.
// Every non-digit character is stripped ("30g" -> 30, "1,280 kcal" -> 1280)
// and an empty or unparsable result is zero. A leading minus sign is kept.
func ParseLooseInt(s string) int {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "-")
	var digits strings.Builder
	for _, r := range s {
		if r == '.' {
			// "5.1" parses as 5, matching integer macro display
			break
		}
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	if negative {
		return -n
	}
	return n
}
