package services

import (
	"math"
	"strings"
)

// MaskQuestion hides most of a secret question so it can be shown before
// the user proves who they are.
//
// With more than two words the first and last are kept and the middle is
// replaced by max(3, words-2)*4 asterisks. Otherwise the leading 30% and
// the trailing runes from the 70% mark are kept.
func MaskQuestion(question string) string {
	words := strings.Fields(question)
	if len(words) > 2 {
		n := len(words) - 2
		if n < 3 {
			n = 3
		}
		return words[0] + " " + strings.Repeat("*", n*4) + " " + words[len(words)-1]
	}

	runes := []rune(question)
	head := int(math.Floor(float64(len(runes)) * 0.3))
	tail := int(math.Ceil(float64(len(runes)) * 0.7))
	if tail < head {
		tail = head
	}
	return string(runes[:head]) + strings.Repeat("*", tail-head) + string(runes[tail:])
}
