// Package mbti defines the MBTI value object and the compatibility tables
// used by the match domain. An MBTI is one of the sixteen four-letter
// personality codes; values are validated at the boundary so the rest of
// the system can treat them as trusted.
package mbti

import (
	"fmt"
	"strings"
)

// MBTI is a validated four-letter personality code.
type MBTI string

// All sixteen MBTI codes, in the canonical ordering used by the
// compatibility tables.
var All = []MBTI{
	"INFP", "ENFP", "INFJ", "ENFJ", "INTJ", "ENTJ", "INTP", "ENTP",
	"ISFP", "ESFP", "ISTP", "ESTP", "ISFJ", "ESFJ", "ISTJ", "ESTJ",
}

var valid = func() map[MBTI]bool {
	m := make(map[MBTI]bool, len(All))
	for _, v := range All {
		m[v] = true
	}
	return m
}()

// Parse validates a raw string (case-insensitive) and returns the MBTI
// value. It returns an error for anything outside the sixteen-code set.
func Parse(s string) (MBTI, error) {
	m := MBTI(strings.ToUpper(strings.TrimSpace(s)))
	if !valid[m] {
		return "", fmt.Errorf("mbti: invalid MBTI %q", s)
	}
	return m, nil
}

// String returns the four-letter code.
func (m MBTI) String() string { return string(m) }

// IsValid reports whether m is one of the sixteen codes.
func (m MBTI) IsValid() bool { return valid[m] }
