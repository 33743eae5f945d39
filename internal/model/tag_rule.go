package model

import "strings"

// TagRule maps events of a category whose name starts with Prefix to a
// visual tag. An empty Prefix matches every event of the category.
type TagRule struct {
	Category string `yaml:"category" json:"category"`
	Prefix   string `yaml:"prefix" json:"prefix"`
	Tag      string `yaml:"tag" json:"tag"`
}

// TagRules is an ordered rule table; the first matching rule wins.
type TagRules []TagRule

// DefaultTagRules returns the built-in Work/Shift marker table.
func DefaultTagRules() TagRules {
	return TagRules{
		{Category: "Work", Prefix: "O", Tag: "marker-purple"},
		{Category: "Work", Prefix: "R", Tag: "marker-red-outline"},
		{Category: "Shift", Prefix: "O", Tag: "marker-purple"},
		{Category: "Shift", Prefix: "R", Tag: "marker-red-outline"},
	}
}

// Tagged reports whether the category takes part in tagging at all.
func (r TagRules) Tagged(category string) bool {
	for _, rule := range r {
		if strings.EqualFold(rule.Category, category) {
			return true
		}
	}
	return false
}

// Match returns the tag for an event of the given category and name.
// ok is false when no rule matches.
func (r TagRules) Match(category, eventName string) (tag string, ok bool) {
	for _, rule := range r {
		if !strings.EqualFold(rule.Category, category) {
			continue
		}
		if strings.HasPrefix(eventName, rule.Prefix) {
			return rule.Tag, true
		}
	}
	return "", false
}
