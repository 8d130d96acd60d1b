package catalog

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Order selects the sort direction.
type Order int

const (
	Descending Order = iota
	Ascending
)

// FilterByCategory keeps entries whose category equals category exactly.
// An empty category keeps everything.
func FilterByCategory(entries []Entry, category string) []Entry {
	if category == "" {
		return cloneEntries(entries)
	}
	return filter(entries, func(e Entry) bool { return e.Category == category })
}

// FilterByDecade keeps entries released in the decade starting at decade,
// e.g. 1980 for 1980-1989. Entries without a year never match.
// A zero decade keeps everything.
func FilterByDecade(entries []Entry, decade int) []Entry {
	if decade == 0 {
		return cloneEntries(entries)
	}
	return filter(entries, func(e Entry) bool {
		year := e.YearOrZero()
		return year != 0 && year/10*10 == decade
	})
}

// FilterByTag keeps entries carrying tag, ignoring case.
// An empty tag keeps everything.
func FilterByTag(entries []Entry, tag string) []Entry {
	if tag == "" {
		return cloneEntries(entries)
	}
	fold := cases.Fold()
	want := fold.String(tag)
	return filter(entries, func(e Entry) bool {
		for _, t := range e.Tags {
			if fold.String(t) == want {
				return true
			}
		}
		return false
	})
}

// Search matches keyword, ignoring case, as a substring of the title, English
// title, director, any tag or the description. A blank keyword matches nothing.
func Search(entries []Entry, keyword string) []Entry {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(keyword))
	if needle == "" {
		return []Entry{}
	}

	contains := func(s string) bool {
		return s != "" && strings.Contains(fold.String(s), needle)
	}
	return filter(entries, func(e Entry) bool {
		if contains(e.Title) || contains(e.EnglishTitle) || contains(e.Director) || contains(e.Description) {
			return true
		}
		for _, t := range e.Tags {
			if contains(t) {
				return true
			}
		}
		return false
	})
}

// SortByRating orders entries by rating; unrated entries count as 0.
func SortByRating(entries []Entry, order Order) []Entry {
	return sortBy(entries, order, func(e Entry) float64 { return e.RatingOrZero() })
}

// SortByYear orders entries by year; entries without a year count as 0.
func SortByYear(entries []Entry, order Order) []Entry {
	return sortBy(entries, order, func(e Entry) float64 { return float64(e.YearOrZero()) })
}

// Categories lists the distinct categories in first-seen order.
func Categories(entries []Entry) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		if e.Category != "" && !seen[e.Category] {
			seen[e.Category] = true
			out = append(out, e.Category)
		}
	}
	return out
}

func filter(entries []Entry, keep func(Entry) bool) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func sortBy(entries []Entry, order Order, key func(Entry) float64) []Entry {
	sorted := cloneEntries(entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if order == Ascending {
			return key(sorted[i]) < key(sorted[j])
		}
		return key(sorted[i]) > key(sorted[j])
	})
	return sorted
}
