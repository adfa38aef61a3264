// Package messages holds every message the bot sends to users, so copy
// lives in one place.
//
// Slack message formatting reference:
// https://api.slack.com/docs/message-formatting
package messages

import (
	"fmt"
	"strings"

	"github.com/RaschidJFR/slack-meetups/domain/model"
)

const PersonMissingName = "Sorry, you must have a name set on your Slack profile to participate. Please add your name to your Slack profile."

const UpdatedAvailable = "Sounds good! I’ll pair you with someone at the start of the next round."

const UpdatedUnavailable = "Okay, thanks for letting me know. I’ll ask again next time!"

const DidNotMeet = "Thanks for the feedback! Hope you have a chance to meet next time 🙂"

const UnknownMessageNoAdmin = "Sorry, I don’t know how to respond to most messages! 😬 If you have a question or feedback, you can contact my admin."

const IntroReceivedQuestions = "If you have any questions in the meantime, feel free to ask."

func WelcomeIntro(person *model.Person, pool *model.Pool) string {
	return fmt.Sprintf(`Welcome, %s! Thanks for joining <#%s|%s>. 🎉

Please *introduce yourself* by replying with a short description. This will be sent to people you pair with.

After I have your introduction, you’ll get your first pairing!`,
		person.CasualName, pool.ChannelID, pool.ChannelName)
}

func MatchIntro(person1, person2 *model.Person, pool *model.Pool) string {
	return fmt.Sprintf(`*%s*, meet your %s pairing, %s! Here’s a little about %s in their own words:

%s


*%s*, meet your %s pairing, %s! Here’s a little about %s in their own words:

%s


Message each other below to *pick a time to meet* this week!`,
		person1.CasualName, pool.Name, person2.FullName, person2.CasualName,
		Blockquote(person2.Intro),
		person2.CasualName, pool.Name, person1.FullName, person1.CasualName,
		Blockquote(person1.Intro))
}

func Met(otherPerson *model.Person) string {
	return fmt.Sprintf("Great! Hope you enjoyed meeting %s 🙂", otherPerson.CasualName)
}

func UnknownMessageAdmin(userID, message string) string {
	return fmt.Sprintf(`_Message from <@%s>:_

%s

_Respond as the bot by typing_ “<@%s> <your reply>”`,
		userID, Blockquote(message), userID)
}

func IntroReceived(person *model.Person) string {
	return fmt.Sprintf(`Thanks for the intro, %s! You’ll receive your first pairing at the start of the next round.

You can always update your intro later by messaging me with "update intro".`,
		person.CasualName)
}

func UpdateIntroInstructions(person *model.Person) string {
	return fmt.Sprintf(`Sure %s, I can update your intro. Here’s what I have now:

%s

Please reply with what you would like to change it to.`,
		person.CasualName, Blockquote(person.Intro))
}

func IntroUpdated(person *model.Person) string {
	return fmt.Sprintf(`I’ve updated your intro to:

%s

This will be sent to people you pair with going forward!

You can always update your intro later by messaging me with "update intro".`,
		Blockquote(person.Intro))
}

// Blockquote prefixes every line of text with Slack's quote marker.
func Blockquote(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}
