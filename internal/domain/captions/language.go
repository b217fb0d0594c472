package captions

import "github.com/eklimov/capvid/internal/types"

// HasDevanagari reports whether the text contains Devanagari script.
func HasDevanagari(s string) bool {
	for _, r := range s {
		if r >= 0x0900 && r <= 0x097F {
			return true
		}
	}
	return false
}

// DetectLanguage guesses the caption language from script usage:
// "hi" for Devanagari-dominant text, "en" otherwise, "mixed" when both
// scripts appear.
func DetectLanguage(caps []types.Caption) string {
	devanagari := 0
	english := 0
	for _, c := range caps {
		if HasDevanagari(c.Text) {
			devanagari++
		}
		if hasLatinLetter(c.Text) {
			english++
		}
	}
	switch {
	case devanagari > 0 && english > 0:
		return "mixed"
	case devanagari > english:
		return "hi"
	}
	return "en"
}

func hasLatinLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}
