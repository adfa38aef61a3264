package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractMention(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"<@U024BE7LH> hello", "U024BE7LH"},
		{"<@U024BE7LH|ada> hello", "U024BE7LH"},
		{"hey <@U024BE7LH>, are you around?", "U024BE7LH"},
		{"<@U111> and <@U222>", "U111"},
		{"no mention here", ""},
		{"<@not-a-user-id>", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractMention(tt.text), "text: %s", tt.text)
	}
}

func TestStripMention(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"<@U024BE7LH> hello", "hello"},
		{"<@U024BE7LH|ada> hello", "hello"},
		{"hello <@U024BE7LH>", "hello"},
		{"<@U024BE7LH>", ""},
		{"no mention here", "no mention here"},
		{"  padded  ", "padded"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripMention(tt.text), "text: %s", tt.text)
	}
}
