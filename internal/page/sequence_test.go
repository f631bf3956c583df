package page

import (
	"context"
	"testing"
)

func seriesFetcher() *fakeFetcher {
	return newFakeFetcher(map[string]string{
		ListingRoot + "?page=2": `<a class="next_page" rel="next" href="/post?page=3">Next</a>` +
			`"file_url":"https://files.yande.re/2.jpg"`,
		ListingRoot + "?page=3": `"file_url":"https://files.yande.re/3.jpg"`,
	})
}

func TestSequenceWalk(t *testing.T) {
	f := seriesFetcher()
	start, err := NewWithText(ListingRoot,
		`<a class="next_page" rel="next" href="/post?page=2">Next</a>`, WithFetcher(f))
	if err != nil {
		t.Fatalf("NewWithText() error: %v", err)
	}

	seq := NewSequence(start)
	if seq.Page() != nil {
		t.Error("Expected no page before the first Next")
	}

	var links []string
	for seq.Next() {
		links = append(links, seq.Page().Link())
	}
	if err := seq.Err(); err != nil {
		t.Fatalf("Sequence error: %v", err)
	}

	want := []string{ListingRoot, ListingRoot + "?page=2", ListingRoot + "?page=3"}
	if len(links) != len(want) {
		t.Fatalf("Expected %d pages, got %v", len(want), links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("Page %d: expected %s, got %s", i, want[i], links[i])
		}
	}
	if seq.Next() {
		t.Error("Expected Next to stay false at the end")
	}

	// The walk closed pages behind it but never the start page.
	if start.Err() != nil {
		t.Errorf("Start page must stay open, got %v", start.Err())
	}

	seq.Reset()
	if !seq.Next() || seq.Page() != start {
		t.Error("Expected Reset to restart from the start page")
	}
}

func TestSequenceLazy(t *testing.T) {
	f := seriesFetcher()
	start, err := New(context.Background(), ListingRoot+"?page=2", f)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer func() { _ = start.Close() }()

	seq := NewSequence(start)
	if !seq.Next() {
		t.Fatal("Expected the start page")
	}
	if got := f.callCount(ListingRoot + "?page=3"); got != 0 {
		t.Errorf("Expected no fetch of page 3 before advancing, got %d", got)
	}
}

func TestAllStopsEarly(t *testing.T) {
	f := seriesFetcher()
	start, err := New(context.Background(), ListingRoot+"?page=2", f)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer func() { _ = start.Close() }()

	var images []string
	for p := range start.All() {
		images = append(images, p.ImageLinks()...)
	}
	if len(images) != 2 {
		t.Errorf("Expected 2 images across the series, got %v", images)
	}

	count := 0
	for range start.All() {
		count++
		break
	}
	if count != 1 {
		t.Errorf("Expected loop to stop after one page, got %d", count)
	}
	if start.Err() != nil {
		t.Errorf("Start page must stay open after iteration, got %v", start.Err())
	}
}

func TestSequenceNilStart(t *testing.T) {
	seq := NewSequence(nil)
	if seq.Next() {
		t.Error("Expected empty sequence for nil start")
	}
}
