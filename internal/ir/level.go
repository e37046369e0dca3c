package ir

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Level is the proficiency tier of a record, stored as 1..5 and shown as N1..N5.
// The zero value means "not set".
type Level int

// Known levels.
const (
	LevelN1 Level = 1
	LevelN2 Level = 2
	LevelN3 Level = 3
	LevelN4 Level = 4
	LevelN5 Level = 5
)

// Levels lists every level in tier order.
var Levels = []Level{LevelN1, LevelN2, LevelN3, LevelN4, LevelN5}

// String returns the tier name ("N3"), or "N?" forms for unset/out-of-range values.
func (l Level) String() string {
	if l == 0 {
		return "N?"
	}
	return "N" + strconv.Itoa(int(l))
}

// Valid reports whether l is one of the five known tiers.
func (l Level) Valid() bool {
	return l >= LevelN1 && l <= LevelN5
}

// ParseLevel accepts "N3", "n3" or "3".
func ParseLevel(s string) (Level, error) {
	trimmed := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "N")
	n, err := strconv.Atoi(trimmed)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid level %q", s)
	}
	return Level(n), nil
}

// MarshalJSON writes the level as its integer form.
func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(l))), nil
}

// UnmarshalJSON accepts both the integer form (3) and the tier name ("N3").
func (l *Level) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*l = Level(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("level must be an integer or tier name: %s", data)
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Category is the topic bucket ("part") a section is classified into.
type Category string

// The closed set of categories.
const (
	Vocabulary Category = "vocabulary"
	Grammar    Category = "grammar"
	Reading    Category = "reading"
	Listening  Category = "listening"
)

// Categories lists every category in exam order.
var Categories = []Category{Vocabulary, Grammar, Reading, Listening}

// Valid reports whether c is one of the four categories.
func (c Category) Valid() bool {
	switch c {
	case Vocabulary, Grammar, Reading, Listening:
		return true
	}
	return false
}

// ParseCategory validates s against the closed category set.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}
