package eventstore

import (
	"errors"
	"unicode"
)

var ErrInvalidTag = errors.New("tag must be non-empty with no surrounding whitespace or control characters")

// Tag is a validated, opaque label attached to an event at append time, used
// for filtering and for defining consistency boundaries. By convention tags
// take the form "key:value" (e.g. "account:A"), but the store never interprets
// their contents.
type Tag struct {
	value string
}

// NewTag constructs a Tag from the given string.
//
// Returns ErrInvalidTag unless the string conforms to the following
// constraints:
//   - not empty
//   - no preceding or trailing whitespace
//   - no control characters
func NewTag(value string) (Tag, error) {
	if !isValidLabel(value) {
		return Tag{}, ErrInvalidTag
	}

	return Tag{value: value}, nil
}

// KV builds a "key:value" tag without error handling, for use inline in
// filter construction; invalid input yields a zero Tag which filter builders
// sanitize away and event factories reject.
func KV(key string, value string) Tag {
	tag, err := NewTag(key + ":" + value)
	if err != nil {
		return Tag{}
	}

	return tag
}

// IsZero reports whether the tag is the zero value (never valid on an event).
func (t Tag) IsZero() bool {
	return t.value == ""
}

func (t Tag) String() string {
	return t.value
}

func isValidLabel(value string) bool {
	if value == "" {
		return false
	}

	runes := []rune(value)
	if unicode.IsSpace(runes[0]) || unicode.IsSpace(runes[len(runes)-1]) {
		return false
	}

	for _, r := range runes {
		if unicode.IsControl(r) {
			return false
		}
	}

	return true
}
