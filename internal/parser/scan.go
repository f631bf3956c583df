// Package parser provides the marker-based text scanning used to pull links
// out of yande.re pages. It deliberately does not build a DOM: every value is
// located by a literal prefix and terminated by the next double quote.
package parser

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// ScanAll returns every value that follows marker in text, in document order.
// A value runs from the end of the marker up to, but not including, the next
// '"'. A marker with no closing quote ends the scan.
func ScanAll(text, marker string) []string {
	if marker == "" {
		return []string{}
	}

	values := []string{}
	for {
		start := strings.Index(text, marker)
		if start < 0 {
			return values
		}
		text = text[start+len(marker):]

		end := strings.IndexByte(text, '"')
		if end < 0 {
			return values
		}
		values = append(values, text[:end])
	}
}

// ScanFirst returns the first value that follows marker in text.
func ScanFirst(text, marker string) (string, bool) {
	if marker == "" {
		return "", false
	}

	start := strings.Index(text, marker)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(marker):]

	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// DigitsBefore scans backwards from pos and returns the nearest run of
// decimal digits. On a paginated listing the last numbered page link sits
// right before the next-page anchor, so this yields the page count.
func DigitsBefore(text string, pos int) (int, bool) {
	if pos > len(text) {
		pos = len(text)
	}

	end := -1
	i := pos - 1
	for ; i >= 0; i-- {
		isDigit := text[i] >= '0' && text[i] <= '9'
		if isDigit && end < 0 {
			end = i + 1
		} else if !isDigit && end >= 0 {
			break
		}
	}
	if end < 0 {
		return 0, false
	}

	n, err := strconv.Atoi(text[i+1 : end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// LeadingDigits parses the decimal digits at the start of s.
func LeadingDigits(s string) (int, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Unescape decodes HTML character references in an attribute value,
// e.g. "/post?page=2&amp;tags=x" becomes "/post?page=2&tags=x".
func Unescape(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return html.UnescapeString(s)
}
