package eventstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewTag_ValidatesItsInput(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		expectError bool
	}{
		{name: "key_value_convention", value: "account:A", expectError: false},
		{name: "plain_label", value: "archived", expectError: false},
		{name: "interior_whitespace_is_allowed", value: "display name:Jane Doe", expectError: false},
		{name: "empty", value: "", expectError: true},
		{name: "leading_whitespace", value: " account:A", expectError: true},
		{name: "trailing_whitespace", value: "account:A ", expectError: true},
		{name: "control_character", value: "account:\x07A", expectError: true},
		{name: "newline", value: "account:\nA", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, err := NewTag(tt.value)

			if tt.expectError {
				assert.ErrorIs(t, err, ErrInvalidTag)
				assert.True(t, tag.IsZero())
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.value, tag.String())
			}
		})
	}
}

func Test_KV_BuildsAKeyValueTag(t *testing.T) {
	// act
	tag := KV("account", "A")

	// assert
	assert.Equal(t, "account:A", tag.String())
	assert.False(t, tag.IsZero())
}

func Test_KV_YieldsAZeroTag_ForInvalidInput(t *testing.T) {
	// act: trailing whitespace makes the combined label invalid
	tag := KV("account", "A ")

	// assert
	assert.True(t, tag.IsZero())
}

func Test_Tags_AreComparableByValue(t *testing.T) {
	// arrange
	first, err := NewTag("account:A")
	require.NoError(t, err)
	second := KV("account", "A")

	// assert
	assert.Equal(t, first, second)
}
