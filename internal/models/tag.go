package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Tag selects the destination calendar colour for every event extracted
// from a document. Values map 1:1 onto Google Calendar event colorId.
type Tag int

const (
	TagLavender Tag = iota + 1
	TagSage
	TagGrape
	TagFlamingo
	TagBanana
	TagTangerine
	TagPeacock
	TagGraphite
	TagBlueberry
	TagBasil
	TagTomato
)

// DefaultTag is assigned to every newly staged file.
const DefaultTag = TagLavender

// MinTag and MaxTag bound the valid range.
const (
	MinTag = TagLavender
	MaxTag = TagTomato
)

// ErrInvalidTag is returned for values outside 1..11.
var ErrInvalidTag = errors.New("tag must be between 1 and 11")

var tagNames = map[Tag]string{
	TagLavender:  "Lavender",
	TagSage:      "Sage",
	TagGrape:     "Grape",
	TagFlamingo:  "Flamingo",
	TagBanana:    "Banana",
	TagTangerine: "Tangerine",
	TagPeacock:   "Peacock",
	TagGraphite:  "Graphite",
	TagBlueberry: "Blueberry",
	TagBasil:     "Basil",
	TagTomato:    "Tomato",
}

// Valid reports whether t is in range.
func (t Tag) Valid() bool {
	return t >= MinTag && t <= MaxTag
}

// Validate returns ErrInvalidTag when t is out of range.
func (t Tag) Validate() error {
	if !t.Valid() {
		return fmt.Errorf("%w: got %d", ErrInvalidTag, int(t))
	}
	return nil
}

// Name returns the palette name, or "" for an invalid tag.
func (t Tag) Name() string {
	return tagNames[t]
}

// WireValue is the decimal form sent as the event_color form field.
func (t Tag) WireValue() string {
	return strconv.Itoa(int(t))
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return fmt.Sprintf("%d (%s)", int(t), name)
	}
	return fmt.Sprintf("%d (invalid)", int(t))
}

// ParseTag accepts a number ("7") or a palette name ("peacock").
func ParseTag(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidTag)
	}

	if n, err := strconv.Atoi(s); err == nil {
		t := Tag(n)
		if err := t.Validate(); err != nil {
			return 0, err
		}
		return t, nil
	}

	for t, name := range tagNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown colour %q", ErrInvalidTag, s)
}

// AllTags returns every valid tag in ascending order.
func AllTags() []Tag {
	tags := make([]Tag, 0, int(MaxTag))
	for t := MinTag; t <= MaxTag; t++ {
		tags = append(tags, t)
	}
	return tags
}
