package search

import (
	"reflect"
	"testing"
)

func TestMerge_FirstSeenWins(t *testing.T) {
	pages := []PageResults{
		{Page: 1, Results: []Result{
			{Title: "A", URL: "https://a.example/x"},
			{Title: "B", URL: "https://b.example/y"},
		}},
		{Page: 2, Results: []Result{
			{Title: "A again", URL: "https://a.example/x"},
			{Title: "C", URL: "https://c.example/z"},
		}},
	}

	merged := Merge(pages)
	if len(merged) != 3 {
		t.Fatalf("expected 3 results, got %d", len(merged))
	}
	if merged[0].Title != "A" || merged[0].Page != 1 {
		t.Errorf("first occurrence must win: %+v", merged[0])
	}
	if merged[2].Title != "C" || merged[2].Page != 2 {
		t.Errorf("expected C from page 2, got %+v", merged[2])
	}
}

func TestMerge_Idempotent(t *testing.T) {
	pages := []PageResults{
		{Page: 1, Results: []Result{
			{Title: "A", URL: "https://a.example/1"},
			{Title: "B", URL: "https://b.example/2"},
		}},
		{Page: 2, Results: []Result{
			{Title: "B dup", URL: "https://b.example/2"},
			{Title: "C", URL: "https://c.example/3"},
		}},
	}

	first := Merge(pages)
	second := Merge(pages)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("merge must be idempotent:\n%+v\n%+v", first, second)
	}
}

func TestMerge_OrderInvariant(t *testing.T) {
	pages := []PageResults{
		{Page: 1, Results: []Result{{Title: "p1a", URL: "https://e.example/1a"}, {Title: "p1b", URL: "https://e.example/1b"}}},
		{Page: 2, Results: []Result{{Title: "p2a", URL: "https://e.example/2a"}}},
		{Page: 3, Results: []Result{{Title: "p3a", URL: "https://e.example/3a"}}},
	}

	merged := Merge(pages)
	for i := 1; i < len(merged); i++ {
		if merged[i].Page < merged[i-1].Page {
			t.Fatalf("result from page %d precedes result from page %d", merged[i-1].Page, merged[i].Page)
		}
	}
}

func TestAggregator_EmptyPagesCount(t *testing.T) {
	agg := newAggregator()
	agg.addPage(1, []Result{{Title: "A", URL: "https://a.example/"}})
	agg.addPage(2, nil)

	if agg.pages() != 2 {
		t.Errorf("empty pages still count as fetched, got %d", agg.pages())
	}
	if agg.count() != 1 {
		t.Errorf("expected 1 result, got %d", agg.count())
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{"query ignored", "https://e.example/p?utm=1", "https://e.example/p?utm=2", true},
		{"fragment ignored", "https://e.example/p#a", "https://e.example/p#b", true},
		{"host case ignored", "https://E.EXAMPLE/p", "https://e.example/p", true},
		{"path case significant", "https://e.example/P", "https://e.example/p", false},
		{"different path", "https://e.example/p1", "https://e.example/p2", false},
		{"different host", "https://a.example/p", "https://b.example/p", false},
	}

	for _, tt := range tests {
		got := normalizeURL(tt.a) == normalizeURL(tt.b)
		if got != tt.same {
			t.Errorf("%s: normalize(%q) vs normalize(%q): same=%v, want %v",
				tt.name, tt.a, tt.b, got, tt.same)
		}
	}
}
