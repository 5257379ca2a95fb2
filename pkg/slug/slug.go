// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package slug derives canonical lookup keys from free-form Unicode labels.
//
// # Usage
//
// Tag names typed by users ("Jazz ", "post_rock", "Rock 'n' Roll") are folded
// into a single comparable key so that equivalent spellings resolve to the same
// stored row. Unlike a URL slug, the key keeps non-ASCII letters and accents.
package slug

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	// separatorRun matches any run of Unicode whitespace or separator punctuation.
	// RE2's \s is ASCII only, so \v, NEL and the Z categories are listed too.
	separatorRun = regexp.MustCompile("[\\s\\v\\x{85}\\p{Z}_,'`]+")
	// multiHyphen collapses multiple consecutive hyphens into one.
	multiHyphen = regexp.MustCompile(`-{2,}`)

	lower = cases.Lower(language.Und)
)

// Key converts a label into its canonical key.
//
// # Transformation Pipeline
//
// 1. Normalizes to NFC so composed and decomposed accents compare equal.
// 2. Converts to lowercase.
// 3. Trims surrounding whitespace.
// 4. Replaces each run of whitespace, '_', ',', '\'' or '`' with one hyphen.
// 5. Collapses repeated hyphens.
//
// Key is idempotent: Key(Key(s)) == Key(s).
func Key(s string) string {
	result := norm.NFC.String(s)
	result = lower.String(result)
	result = strings.TrimSpace(result)
	result = separatorRun.ReplaceAllString(result, "-")
	result = multiHyphen.ReplaceAllString(result, "-")

	return result
}
