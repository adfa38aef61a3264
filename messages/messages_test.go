package messages

import (
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"

	"github.com/RaschidJFR/slack-meetups/domain/model"
)

func TestBlockquote(t *testing.T) {
	assert.Equal(t, "", Blockquote(""))
	assert.Equal(t, "> one line", Blockquote("one line"))
	assert.Equal(t, "> first\n> second", Blockquote("first\nsecond"))
}

func TestMatchIntro_includesBothIntros(t *testing.T) {
	person1 := &model.Person{FullName: "Ada Lovelace", CasualName: "Ada", Intro: "I like analytical engines"}
	person2 := &model.Person{FullName: "Alan Turing", CasualName: "Alan", Intro: "I break codes"}
	pool := &model.Pool{Name: "coffee-pals"}

	text := MatchIntro(person1, person2, pool)
	assert.Contains(t, text, "Ada")
	assert.Contains(t, text, "Alan Turing")
	assert.Contains(t, text, "> I like analytical engines")
	assert.Contains(t, text, "> I break codes")
}

func TestUnknownMessageAdmin_quotesForwardedText(t *testing.T) {
	text := UnknownMessageAdmin("U1", "what's\ngoing on?")
	assert.Contains(t, text, "<@U1>")
	assert.Contains(t, text, "> what's\n> going on?")
}

func TestAskIfAvailable_blockID(t *testing.T) {
	person := &model.Person{CasualName: "Ada"}
	pool := &model.Pool{ID: "pool1", ChannelID: "C1", ChannelName: "coffee-pals"}

	blocks := AskIfAvailable(person, pool)
	assert.Len(t, blocks, 2)

	actions, ok := blocks[1].(*slack.ActionBlock)
	assert.True(t, ok)
	assert.Equal(t, "availability-pool1", actions.BlockID)
	assert.Len(t, actions.Elements.ElementSet, 2)
}

func TestAskIfMet_blockID(t *testing.T) {
	other := &model.Person{UserID: "U2", FullName: "Alan Turing", CasualName: "Alan"}
	pool := &model.Pool{ID: "pool1", ChannelID: "C1", ChannelName: "coffee-pals"}

	blocks := AskIfMet(other, pool, "match1")
	actions, ok := blocks[1].(*slack.ActionBlock)
	assert.True(t, ok)
	assert.Equal(t, "met-match1", actions.BlockID)
}

func TestFormatSelectedBlock(t *testing.T) {
	person := &model.Person{CasualName: "Ada"}
	pool := &model.Pool{ID: "pool1", ChannelID: "C1", ChannelName: "coffee-pals"}
	blocks := AskIfAvailable(person, pool)

	formatted := FormatSelectedBlock(blocks, "yes")
	assert.Len(t, formatted, len(blocks))

	section, ok := formatted[1].(*slack.SectionBlock)
	if assert.True(t, ok, "action block should be replaced with a section") {
		assert.Equal(t, "> 👉 *Yes, I want to be paired*", section.Text.Text)
	}

	// the original blocks are untouched
	_, stillActions := blocks[1].(*slack.ActionBlock)
	assert.True(t, stillActions)
}

func TestFormatSelectedBlock_unknownValue(t *testing.T) {
	person := &model.Person{CasualName: "Ada"}
	pool := &model.Pool{ID: "pool1", ChannelID: "C1", ChannelName: "coffee-pals"}
	blocks := AskIfAvailable(person, pool)

	formatted := FormatSelectedBlock(blocks, "maybe")
	_, stillActions := formatted[1].(*slack.ActionBlock)
	assert.True(t, stillActions)
}
