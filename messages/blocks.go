package messages

import (
	"fmt"

	"github.com/slack-go/slack"

	"github.com/RaschidJFR/slack-meetups/domain/model"
)

// Block IDs are "<action name>-<object ID>" so the action endpoint can
// recover both the handler and the row the answer applies to.
const (
	AvailabilityBlockPrefix = "availability"
	MetBlockPrefix          = "met"
)

func yesNoQuestion(text, blockID, yesLabel, noLabel string) []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", text, false, false),
			nil, nil,
		),
		slack.NewActionBlock(
			blockID,
			slack.NewButtonBlockElement(
				"yes_button",
				"yes",
				slack.NewTextBlockObject("plain_text", yesLabel, false, false),
			).WithStyle(slack.StylePrimary),
			slack.NewButtonBlockElement(
				"no_button",
				"no",
				slack.NewTextBlockObject("plain_text", noLabel, false, false),
			),
		),
	}
}

// AskIfAvailable asks a person whether they want to be paired in the
// upcoming round.
func AskIfAvailable(person *model.Person, pool *model.Pool) []slack.Block {
	return yesNoQuestion(
		fmt.Sprintf("Hey %s, want to be paired to meet someone new in <#%s|%s> this week?",
			person.CasualName, pool.ChannelID, pool.ChannelName),
		fmt.Sprintf("%s-%s", AvailabilityBlockPrefix, pool.ID),
		"Yes, I want to be paired",
		"Not this time",
	)
}

// AskIfMet asks a person whether they met up with their last match.
func AskIfMet(otherPerson *model.Person, pool *model.Pool, matchID string) []slack.Block {
	return yesNoQuestion(
		fmt.Sprintf("Last time in <#%s|%s>, you paired with %s (<@%s>). Did you have a chance to meet with %s?",
			pool.ChannelID, pool.ChannelName, otherPerson.FullName, otherPerson.UserID,
			otherPerson.CasualName),
		fmt.Sprintf("%s-%s", MetBlockPrefix, matchID),
		"Yes, we met",
		"No, we didn’t meet",
	)
}

// FormatSelectedBlock rewrites an already-sent question so the button the
// user pressed is shown as a static highlight instead of a live action
// block. Input blocks are left untouched; unrecognized shapes come back
// unchanged.
func FormatSelectedBlock(blocks []slack.Block, selectedValue string) []slack.Block {
	formatted := make([]slack.Block, len(blocks))
	copy(formatted, blocks)

	for i, block := range formatted {
		actions, ok := block.(*slack.ActionBlock)
		if !ok || actions.Elements == nil {
			continue
		}
		for _, element := range actions.Elements.ElementSet {
			button, ok := element.(*slack.ButtonBlockElement)
			if !ok || button.Value != selectedValue || button.Text == nil {
				continue
			}
			formatted[i] = slack.NewSectionBlock(
				slack.NewTextBlockObject("mrkdwn",
					fmt.Sprintf("> 👉 *%s*", button.Text.Text), false, false),
				nil, nil,
			)
			return formatted
		}
	}
	return formatted
}
