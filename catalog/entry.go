// Package catalog loads the cartoon catalog, caches it in the key-value
// store and answers filter, sort and search queries over a snapshot.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidID is returned when a value cannot be read as an entry identifier.
var ErrInvalidID = errors.New("invalid entry id")

// EntryID identifies a catalog entry. Stored state written by older pages may
// hold ids as numeric strings, so "7" and 7 decode to the same EntryID.
type EntryID int

// ParseEntryID coerces a string such as a URL parameter into an EntryID.
func ParseEntryID(s string) (EntryID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return EntryID(n), nil
}

func (id *EntryID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseEntryID(s)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidID, data)
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return fmt.Errorf("%w: %s", ErrInvalidID, data)
	}
	*id = EntryID(int(f))
	return nil
}

func (id EntryID) String() string {
	return strconv.Itoa(int(id))
}

// Episode is one playable episode of an entry.
type Episode struct {
	Number   int     `json:"episodeNumber"`
	Title    string  `json:"title,omitempty"`
	VideoURL string  `json:"videoUrl,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Entry is one cataloged show or film.
type Entry struct {
	ID           EntryID   `json:"id"`
	Title        string    `json:"title"`
	EnglishTitle string    `json:"englishTitle,omitempty"`
	Director     string    `json:"director,omitempty"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category,omitempty"`
	Cover        string    `json:"cover,omitempty"`
	Year         *int      `json:"year,omitempty"`
	Rating       *float64  `json:"rating,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Episodes     []Episode `json:"episodes,omitempty"`
}

// YearOrZero returns the release year, or 0 when unknown.
func (e Entry) YearOrZero() int {
	if e.Year == nil {
		return 0
	}
	return *e.Year
}

// RatingOrZero returns the rating, or 0 when unrated.
func (e Entry) RatingOrZero() float64 {
	if e.Rating == nil {
		return 0
	}
	return *e.Rating
}

// Episode finds an episode by its number.
func (e Entry) Episode(number int) (Episode, bool) {
	for _, ep := range e.Episodes {
		if ep.Number == number {
			return ep, true
		}
	}
	return Episode{}, false
}
