package study

import "strings"

// MaxListItems caps issue and recommendation lists coming from AI responses
const MaxListItems = 5

// Clamp01 bounds v to [0, 1]
func Clamp01(v float64) float64 {
	if v != v { // NaN
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// CapStrings trims entries, drops empty ones and keeps at most n
func CapStrings(in []string, n int) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if len(out) == n {
			break
		}
		out = append(out, s)
	}
	return out
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
