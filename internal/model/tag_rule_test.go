package model

import "testing"

func TestTagRulesMatch(t *testing.T) {
	rules := DefaultTagRules()

	cases := []struct {
		category, name string
		tag            string
		ok, tagged     bool
	}{
		{"Work", "Office day", "marker-purple", true, true},
		{"Work", "Remote", "marker-red-outline", true, true},
		{"shift", "Overnight", "marker-purple", true, true},
		{"Work", "Meeting", "", false, true},
		{"Work", "office", "", false, true},
		{"Holiday", "Rome", "", false, false},
	}
	for _, tc := range cases {
		tag, ok := rules.Match(tc.category, tc.name)
		if tag != tc.tag || ok != tc.ok {
			t.Errorf("Match(%q, %q) = %q, %v; want %q, %v", tc.category, tc.name, tag, ok, tc.tag, tc.ok)
		}
		if got := rules.Tagged(tc.category); got != tc.tagged {
			t.Errorf("Tagged(%q) = %v, want %v", tc.category, got, tc.tagged)
		}
	}
}

func TestEmptyPrefixMatchesAll(t *testing.T) {
	rules := TagRules{{Category: "Holiday", Tag: "marker-green"}}
	if tag, ok := rules.Match("Holiday", "anything"); !ok || tag != "marker-green" {
		t.Fatalf("Match = %q, %v", tag, ok)
	}
}
