package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstName(t *testing.T) {
	tests := []struct {
		fullName string
		want     string
	}{
		{"Ada Lovelace", "Ada"},
		{"Ada", "Ada"},
		{"  Ada   Lovelace  ", "Ada"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FirstName(tt.fullName), "full name: %q", tt.fullName)
	}
}

func TestPerson_HasIntro(t *testing.T) {
	assert.False(t, (&Person{}).HasIntro())
	assert.True(t, (&Person{Intro: "hi"}).HasIntro())
}

func TestPerson_String(t *testing.T) {
	person := &Person{FullName: "Ada Lovelace", UserName: "ada"}
	assert.Equal(t, "Ada Lovelace (ada)", person.String())
}

func TestMatch_OtherPersonID(t *testing.T) {
	match := &Match{Person1ID: "a", Person2ID: "b"}
	assert.Equal(t, "b", match.OtherPersonID("a"))
	assert.Equal(t, "a", match.OtherPersonID("b"))
	assert.True(t, match.Includes("a"))
	assert.False(t, match.Includes("c"))
}
