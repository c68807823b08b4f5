package report

import (
	"strings"
	"unicode"

	"github.com/01walid/goarabic"
)

func strongLTR(r rune) bool {
	if unicode.IsDigit(r) {
		return true
	}
	return unicode.IsLetter(r) && !isRTL(r)
}

func isRTL(r rune) bool {
	return unicode.Is(unicode.Arabic, r) || unicode.Is(unicode.Hebrew, r)
}

var mirror = strings.NewReplacer("(", ")", ")", "(", "[", "]", "]", "[", "{", "}", "}", "{", "<", ">", ">", "<")

// visualOrder lays out a right-to-left line for a left-to-right renderer.
// Runs of left-to-right text (latin words, numbers, timestamps) keep their
// internal order; everything else is reversed.
func visualOrder(s string) string {
	rs := []rune(s)
	ltr := make([]bool, len(rs))
	for i, r := range rs {
		ltr[i] = strongLTR(r)
	}
	// neutrals between two left-to-right characters join that run
	for i := 0; i < len(rs); i++ {
		if ltr[i] || isRTL(rs[i]) {
			continue
		}
		j := i
		for j < len(rs) && !strongLTR(rs[j]) && !isRTL(rs[j]) {
			j++
		}
		if i > 0 && ltr[i-1] && j < len(rs) && ltr[j] {
			for k := i; k < j; k++ {
				ltr[k] = true
			}
		}
		i = j - 1
	}

	var b strings.Builder
	for end := len(rs); end > 0; {
		start := end - 1
		for start > 0 && ltr[start-1] == ltr[end-1] {
			start--
		}
		run := string(rs[start:end])
		if ltr[start] {
			b.WriteString(run)
		} else {
			b.WriteString(goarabic.Reverse(mirror.Replace(run)))
		}
		end = start
	}
	return b.String()
}

// Visual shapes and reorders s for display in a left-to-right renderer.
func Visual(s string) string {
	return visualOrder(goarabic.ToGlyph(strings.TrimSpace(s)))
}
