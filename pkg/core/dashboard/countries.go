// Package dashboard holds the input state and view shaping behind the
// analysis dashboard: the editable country list, chart ordering and the
// workspace that ties an analysis to its chat session.
package dashboard

import "strings"

// DefaultCountries is the initial selection: the twenty largest economies by GDP.
var DefaultCountries = []string{
	"United States", "China", "Germany", "Japan", "India", "United Kingdom",
	"France", "Italy", "Brazil", "Canada", "Russia", "Mexico", "Australia",
	"South Korea", "Spain", "Indonesia", "Netherlands", "Saudi Arabia", "Turkey", "Switzerland",
}

// ExamplePrompts are offered as starting points for the topic field.
var ExamplePrompts = []string{
	"Analyze national AI strategies, highlighting approaches to ethics and public investment.",
	"Compare renewable energy policies, focusing on solar and wind incentives.",
	"What are the differences in data privacy laws like GDPR across various non-EU countries?",
	"Examine public healthcare funding models and their outcomes in developed nations.",
}

// CountryList is an ordered, case-insensitively unique list of country names.
type CountryList struct {
	names []string
}

func NewCountryList(names ...string) *CountryList {
	l := &CountryList{}
	for _, n := range names {
		l.Add(n)
	}
	return l
}

// DefaultCountryList returns a list seeded with DefaultCountries.
func DefaultCountryList() *CountryList {
	return NewCountryList(DefaultCountries...)
}

// Add appends name unless it is blank or already present ignoring case.
func (l *CountryList) Add(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || l.Contains(name) {
		return false
	}
	l.names = append(l.names, name)
	return true
}

// Remove deletes exactly one entry equal to name.
func (l *CountryList) Remove(name string) bool {
	for i, n := range l.names {
		if n == name {
			l.names = append(l.names[:i], l.names[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether name is present, ignoring case.
func (l *CountryList) Contains(name string) bool {
	for _, n := range l.names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Names returns a copy of the list in insertion order.
func (l *CountryList) Names() []string {
	return append([]string(nil), l.names...)
}

func (l *CountryList) Len() int { return len(l.names) }

func (l *CountryList) Clear() { l.names = nil }
