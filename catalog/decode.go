package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrNotArray is returned when the catalog resource is not a JSON array.
var ErrNotArray = errors.New("catalog resource is not a JSON array")

const (
	minYear   = 1900
	maxYear   = 2100
	minRating = 0
	maxRating = 10
)

// ValidationError describes a catalog record that was dropped.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("record %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("record %d: %s: %s", e.Index, e.Field, e.Reason)
}

// Decode parses a catalog resource. Records that fail validation are left out
// of entries and reported in rejected; the remaining records are kept in order.
func Decode(body []byte) (entries []Entry, rejected []error, err error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, nil, ErrNotArray
	}

	var records []json.RawMessage
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	entries = make([]Entry, 0, len(records))
	seen := make(map[EntryID]bool, len(records))
	for i, raw := range records {
		entry, err := decodeEntry(i, raw)
		if err != nil {
			rejected = append(rejected, err)
			continue
		}
		if seen[entry.ID] {
			rejected = append(rejected, &ValidationError{Index: i, Field: "id", Reason: fmt.Sprintf("duplicate id %d", entry.ID)})
			continue
		}
		seen[entry.ID] = true
		entries = append(entries, entry)
	}
	return entries, rejected, nil
}

func decodeEntry(index int, raw json.RawMessage) (Entry, error) {
	invalid := func(field, reason string) (Entry, error) {
		return Entry{}, &ValidationError{Index: index, Field: field, Reason: reason}
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return invalid("", "not an object")
	}

	id, ok := fields["id"].(float64)
	if !ok || id == 0 || id != math.Trunc(id) || math.Abs(id) > math.MaxInt32 {
		return invalid("id", "must be a non-zero integer")
	}

	title, ok := fields["title"].(string)
	if !ok || strings.TrimSpace(title) == "" {
		return invalid("title", "must be a non-blank string")
	}

	if v, present := fields["year"]; present && v != nil {
		year, ok := v.(float64)
		if !ok {
			return invalid("year", "must be a number")
		}
		if year != 0 && (year != math.Trunc(year) || year < minYear || year > maxYear) {
			return invalid("year", fmt.Sprintf("must be an integer between %d and %d", minYear, maxYear))
		}
	}

	if v, present := fields["rating"]; present && v != nil {
		rating, ok := v.(float64)
		if !ok || rating < minRating || rating > maxRating {
			return invalid("rating", fmt.Sprintf("must be a number between %d and %d", minRating, maxRating))
		}
	}

	if v, present := fields["tags"]; present && v != nil {
		tags, ok := v.([]any)
		if !ok {
			return invalid("tags", "must be a list")
		}
		for _, t := range tags {
			if _, ok := t.(string); !ok {
				return invalid("tags", "must contain only strings")
			}
		}
	}

	if v, present := fields["episodes"]; present && v != nil {
		if _, ok := v.([]any); !ok {
			return invalid("episodes", "must be a list")
		}
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return invalid("", err.Error())
	}
	if entry.Year != nil && *entry.Year == 0 {
		entry.Year = nil
	}
	return entry, nil
}
