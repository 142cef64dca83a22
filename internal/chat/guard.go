package chat

import (
	"strings"
	"unicode/utf8"
)

// Thresholds for the noise predicate. A destructive RESET is overridden when
// the triggering input trips either of these.
const (
	minMeaningfulRunes  = 3
	maxUnspacedTokenLen = 24
)

// NoisePredicate reports whether user input is too ambiguous to justify a
// destructive action. Pluggable so the thresholds can be tuned and tested
// independently of the router.
type NoisePredicate func(text string) bool

// LooksLikeNoise is the default predicate: extremely short replies, or a
// single long run of characters with no whitespace at all.
func LooksLikeNoise(text string) bool {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < minMeaningfulRunes {
		return true
	}
	if !strings.ContainsAny(trimmed, " \t\n") && utf8.RuneCountInString(trimmed) > maxUnspacedTokenLen {
		return true
	}
	return false
}
