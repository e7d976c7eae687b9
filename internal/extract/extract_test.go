package extract

import (
	"reflect"
	"testing"
)

func TestExtract(t *testing.T) {
	html := "Visit https://example.com/path/to/page and http://a.org too"
	want := []string{"https://example.com", "http://a.org"}

	got := Extract(html)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %v, want %v", got, want)
	}
}

func TestExtractPreservesDuplicates(t *testing.T) {
	html := "http://a.com http://a.com"
	got := Extract(html)
	if len(got) != 2 {
		t.Errorf("expected 2 matches (duplicates preserved), got %d: %v", len(got), got)
	}
}

func TestExtractConcatenation(t *testing.T) {
	a := "see http://a.com for details"
	b := "also https://b.org works"
	separator := " | "

	combined := Extract(a)
	combined = append(combined, Extract(b)...)

	concatenated := Extract(a + separator + b)

	if !reflect.DeepEqual(combined, concatenated) {
		t.Errorf("Extract(a)++Extract(b) = %v, Extract(a+sep+b) = %v", combined, concatenated)
	}
}

func TestExtractNoMatches(t *testing.T) {
	got := Extract("no links here")
	if len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}
}
