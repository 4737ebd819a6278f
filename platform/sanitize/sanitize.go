// Package sanitize provides text sanitization utilities for untrusted input.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// htmlTagRegex matches HTML tags
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
)

// StripHTML removes all HTML tags from a string, making it safe for text-only display.
func StripHTML(s string) string {
	// Remove HTML tags
	result := htmlTagRegex.ReplaceAllString(s, "")
	// Decode common HTML entities
	result = strings.ReplaceAll(result, "&lt;", "<")
	result = strings.ReplaceAll(result, "&gt;", ">")
	result = strings.ReplaceAll(result, "&amp;", "&")
	result = strings.ReplaceAll(result, "&quot;", "\"")
	result = strings.ReplaceAll(result, "&#39;", "'")
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text sanitizes a string for safe text storage by stripping HTML.
// Use for operator-provided text fields like playbooks and greetings.
func Text(s string) string {
	return StripHTML(s)
}

// TextPtr is a helper for optional string pointers
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	return &result
}

// Message prepares untrusted chat text for inclusion in a model prompt: control
// characters other than newline and tab are dropped and the result is truncated
// to maxRunes runes. maxRunes <= 0 disables truncation.
func Message(s string, maxRunes int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, s)
	cleaned = strings.TrimSpace(cleaned)
	if maxRunes > 0 && utf8.RuneCountInString(cleaned) > maxRunes {
		runes := []rune(cleaned)
		cleaned = string(runes[:maxRunes]) + "..."
	}
	return cleaned
}
