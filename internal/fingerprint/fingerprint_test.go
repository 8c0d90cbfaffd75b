package fingerprint

import (
	"testing"

	"github.com/newsradar-io/newsradar/internal/domain"
)

func TestNormalizeURLStripsTracking(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "utm params removed",
			in:   "https://Example.com/story/?utm_source=rss&utm_medium=feed",
			want: "https://example.com/story",
		},
		{
			name: "gclid removed, real params kept",
			in:   "https://news.example.com/a?id=42&gclid=xyz",
			want: "https://news.example.com/a?id=42",
		},
		{
			name: "fragment dropped",
			in:   "https://example.com/a#comments",
			want: "https://example.com/a",
		},
		{
			name: "host lowercased",
			in:   "HTTPS://NEWS.Example.COM/Story",
			want: "https://news.example.com/Story",
		},
		{
			name: "param order irrelevant",
			in:   "https://example.com/a?b=2&a=1",
			want: "https://example.com/a?a=1&b=2",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeURL(tc.in); got != tc.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFingerprintStableAcrossProviders(t *testing.T) {
	a := Fingerprint("Big Story", "https://example.com/big-story?utm_source=serpapi", "")
	b := Fingerprint("Big story!", "https://EXAMPLE.com/big-story/", "")
	if a != b {
		t.Errorf("same logical article produced different fingerprints: %s vs %s", a, b)
	}
}

func TestFingerprintFallbackWithoutURL(t *testing.T) {
	a := Fingerprint("Markets  Rally   Today", "", "Example Wire")
	b := Fingerprint("markets rally today", "", "example wire")
	if a != b {
		t.Errorf("title+domain fallback is not normalization-stable: %s vs %s", a, b)
	}

	c := Fingerprint("markets rally today", "", "other wire")
	if a == c {
		t.Error("different source domains must not collide")
	}
}

func articleList() []domain.Article {
	return []domain.Article{
		{Fingerprint: "f1", Title: "one"},
		{Fingerprint: "f2", Title: "two"},
		{Fingerprint: "f1", Title: "one again"},
		{Fingerprint: "f3", Title: "three"},
		{Fingerprint: "f2", Title: "two again"},
	}
}

func TestDedupeFirstSeenWins(t *testing.T) {
	out := Dedupe(articleList())
	if len(out) != 3 {
		t.Fatalf("expected 3 unique articles, got %d", len(out))
	}
	want := []string{"one", "two", "three"}
	for i, title := range want {
		if out[i].Title != title {
			t.Errorf("position %d: got %q, want %q", i, out[i].Title, title)
		}
	}
}

func TestDedupeIdempotent(t *testing.T) {
	once := Dedupe(articleList())
	twice := Dedupe(once)
	if len(once) != len(twice) {
		t.Fatalf("dedupe not idempotent: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Fingerprint != twice[i].Fingerprint {
			t.Errorf("position %d changed between passes", i)
		}
	}
}

func TestDedupeComputesMissingFingerprints(t *testing.T) {
	in := []domain.Article{
		{Title: "dup", URL: "https://example.com/x?utm_source=a"},
		{Title: "dup", URL: "https://example.com/x"},
	}
	out := Dedupe(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 article after dedupe, got %d", len(out))
	}
}
