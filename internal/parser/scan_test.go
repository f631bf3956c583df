package parser

import (
	"reflect"
	"testing"
)

const imageMarker = `"file_url":"`

func TestScanAll(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		marker   string
		expected []string
	}{
		{
			name:     "no markers",
			text:     "<html><body>nothing here</body></html>",
			marker:   imageMarker,
			expected: []string{},
		},
		{
			name:     "single marker",
			text:     `{"id":1,"file_url":"https://files.yande.re/image/a.jpg","width":10}`,
			marker:   imageMarker,
			expected: []string{"https://files.yande.re/image/a.jpg"},
		},
		{
			name:     "document order preserved",
			text:     `"file_url":"http://a/2.jpg" x "file_url":"http://a/1.jpg" y "file_url":"http://a/2.jpg"`,
			marker:   imageMarker,
			expected: []string{"http://a/2.jpg", "http://a/1.jpg", "http://a/2.jpg"},
		},
		{
			name:     "empty value",
			text:     `"file_url":""`,
			marker:   imageMarker,
			expected: []string{""},
		},
		{
			name:     "unterminated value stops scan",
			text:     `"file_url":"http://a/1.jpg" "file_url":"http://a/2.jpg`,
			marker:   imageMarker,
			expected: []string{"http://a/1.jpg"},
		},
		{
			name:     "pool anchors",
			text:     `<a href="/pool/show/42">A</a><a href="/pool/show/43">B</a>`,
			marker:   `<a href="/pool/show`,
			expected: []string{"/42", "/43"},
		},
		{
			name:     "empty marker",
			text:     "anything",
			marker:   "",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScanAll(tt.text, tt.marker)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ScanAll() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestScanAllIdempotent(t *testing.T) {
	text := `"file_url":"http://a/1.jpg" "file_url":"http://a/2.jpg"`
	first := ScanAll(text, imageMarker)
	second := ScanAll(text, imageMarker)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("ScanAll is not stable: %q vs %q", first, second)
	}
}

func TestScanFirst(t *testing.T) {
	marker := `<a class="next_page" rel="next" href="`

	got, ok := ScanFirst(`<a class="next_page" rel="next" href="/post?page=3">Next</a>`, marker)
	if !ok || got != "/post?page=3" {
		t.Errorf("ScanFirst() = %q, %v; want /post?page=3, true", got, ok)
	}

	if _, ok := ScanFirst("<a>no pagination</a>", marker); ok {
		t.Error("ScanFirst() found a value in text without the marker")
	}

	if _, ok := ScanFirst(marker+"/post?page=3", marker); ok {
		t.Error("ScanFirst() accepted an unterminated value")
	}
}

func TestDigitsBefore(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		pos    int
		want   int
		wantOK bool
	}{
		{"last page link", `<a href="/post?page=412">412</a> <a class="next_page"`, 35, 412, true},
		{"nearest run wins", `page 3 of 17 <next>`, 13, 17, true},
		{"no digits", `<a class="next_page"`, 5, 0, false},
		{"position past end", `page 9`, 100, 9, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DigitsBefore(tt.text, tt.pos)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("DigitsBefore() = %d, %v; want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLeadingDigits(t *testing.T) {
	if n, ok := LeadingDigits("27&tags=x"); !ok || n != 27 {
		t.Errorf("LeadingDigits() = %d, %v; want 27, true", n, ok)
	}
	if _, ok := LeadingDigits("x27"); ok {
		t.Error("LeadingDigits() accepted a non-digit prefix")
	}
	if _, ok := LeadingDigits(""); ok {
		t.Error("LeadingDigits() accepted an empty string")
	}
}

func TestUnescape(t *testing.T) {
	if got := Unescape("/post?page=2&amp;tags=rating%3As"); got != "/post?page=2&tags=rating%3As" {
		t.Errorf("Unescape() = %q", got)
	}
	if got := Unescape("/post?page=2"); got != "/post?page=2" {
		t.Errorf("Unescape() changed a plain value: %q", got)
	}
}
