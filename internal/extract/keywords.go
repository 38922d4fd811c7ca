// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"regexp"
	"strings"
)

// Keywords is the known intervention vocabulary in canonical form. Two-word
// phrases come first so that "caloric restriction" wins over "caloric" at
// the same position.
var Keywords = []string{
	"Caloric restriction",
	"Intermittent fasting",
	"Metformin",
	"Rapamycin",
	"Resveratrol",
	"Nicotinamide",
	"NAD",
	"Senolytic",
	"Senescence",
	"Supplement",
	"Drug",
	"Diet",
	"Exercise",
	"Fasting",
	"Caloric",
}

var (
	keywordRe = buildKeywordRe(Keywords)

	// canonical maps a lower-cased keyword to its canonical form.
	canonical = buildCanonical(Keywords)
)

func buildKeywordRe(words []string) *regexp.Regexp {
	alts := make([]string, len(words))
	for i, w := range words {
		alts[i] = strings.ReplaceAll(regexp.QuoteMeta(strings.ToLower(w)), " ", `\s+`)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
}

func buildCanonical(words []string) map[string]string {
	m := make(map[string]string, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = w
	}
	return m
}

// FindKeyword returns the canonical form of the earliest keyword in text.
// At equal positions the earlier entry of Keywords wins.
func FindKeyword(text string) (string, bool) {
	m := keywordRe.FindString(text)
	if m == "" {
		return "", false
	}
	return canonical[strings.ToLower(strings.Join(strings.Fields(m), " "))], true
}

// HasKeyword reports whether text mentions any known keyword.
func HasKeyword(text string) bool {
	return keywordRe.MatchString(text)
}
