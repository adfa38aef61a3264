// Package tasks runs the bot's outbound side effects (message delivery,
// match DM creation, follow-up questions) off the request path, with
// retries. Callers enqueue fire-and-forget after their database writes
// have committed, so a task never observes a row that doesn't exist yet
// other than transiently.
package tasks

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/slack-go/slack"

	"github.com/RaschidJFR/slack-meetups/domain/infra"
	"github.com/RaschidJFR/slack-meetups/messages"
)

const (
	// how many times to retry a task before giving up
	maxRetries = 5
	// maximum time to wait between attempts
	maxWaitTime = 2 * time.Minute
)

// Message is the content of an outbound Slack message. Payload, when set,
// references the interactive message the user just answered; delivery
// first rewrites that message to highlight the pressed button.
type Message struct {
	Text    string
	Blocks  []slack.Block
	Payload *slack.InteractionCallback
}

func (m Message) summary() string {
	if m.Text != "" {
		return m.Text
	}
	return fmt.Sprintf("%v", m.Blocks)
}

type Queue struct {
	client infra.SlackAPI
	ds     infra.Datastore
	ai     *infra.OpenAI

	sync bool
	wg   sync.WaitGroup
}

type Option func(*Queue)

// Synchronous makes every task run inline on the caller's goroutine with
// no retries. Used in tests, like Celery's eager mode.
func Synchronous() Option {
	return func(q *Queue) { q.sync = true }
}

func NewQueue(client infra.SlackAPI, ds infra.Datastore, ai *infra.OpenAI, opts ...Option) *Queue {
	q := &Queue{
		client: client,
		ds:     ds,
		ai:     ai,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Wait blocks until all in-flight tasks have finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) dispatch(name string, task func() error) {
	if q.sync {
		if err := task(); err != nil {
			slog.Error("task failed", slog.String("task", name), slog.Any("err", err))
		}
		return
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		b := backoff.NewExponentialBackOff()
		b.MaxInterval = maxWaitTime
		err := backoff.RetryNotify(task, backoff.WithMaxRetries(b, maxRetries),
			func(err error, wait time.Duration) {
				slog.Warn("task failed, will retry",
					slog.String("task", name), slog.Duration("wait", wait), slog.Any("err", err))
			})
		if err != nil {
			slog.Error("task failed permanently", slog.String("task", name), slog.Any("err", err))
		}
	}()
}

// Send posts a message to a user or channel as the bot and returns a
// short summary for the worker log. If msg.Payload references an
// existing interactive message, the old message is first rewritten to
// highlight the selected button; a failure there is logged and never
// prevents the new message from being sent.
func (q *Queue) Send(channelID string, msg Message) (string, error) {
	if msg.Payload != nil {
		q.updateSelectedBlock(channelID, msg.Payload)
	}

	var opts []slack.MsgOption
	if msg.Text != "" {
		opts = append(opts, slack.MsgOptionText(msg.Text, false))
	}
	if len(msg.Blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(msg.Blocks...))
	}
	if _, _, err := q.client.PostMessage(channelID, opts...); err != nil {
		return "", fmt.Errorf("failed to send message to %s: %w", channelID, err)
	}
	return fmt.Sprintf("%s: %q", channelID, msg.summary()), nil
}

func (q *Queue) updateSelectedBlock(channelID string, payload *slack.InteractionCallback) {
	actions := payload.ActionCallback.BlockActions
	if len(actions) == 0 || payload.Message.Timestamp == "" {
		slog.Warn("no actions or message found in payload", slog.String("channel", channelID))
		return
	}
	blocks := messages.FormatSelectedBlock(payload.Message.Blocks.BlockSet, actions[0].Value)
	_, _, _, err := q.client.UpdateMessage(
		payload.Channel.ID,
		payload.Message.Timestamp,
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		slog.Warn("failed to update message",
			slog.String("channel", payload.Channel.ID),
			slog.String("ts", payload.Message.Timestamp),
			slog.Any("err", err))
	}
}

// SendMessage delivers a message in the background.
func (q *Queue) SendMessage(channelID string, msg Message) {
	q.dispatch("send_message", func() error {
		summary, err := q.Send(channelID, msg)
		if err != nil {
			return err
		}
		slog.Info("message sent", slog.String("summary", summary))
		return nil
	})
}

// SendThenAskIfMet delivers a confirmation and then asks the person about
// their latest match, in sequence so the two messages can't race.
func (q *Queue) SendThenAskIfMet(userID string, msg Message, poolID string) {
	q.dispatch("send_then_ask_if_met", func() error {
		if _, err := q.Send(userID, msg); err != nil {
			return err
		}
		return q.askIfMet(userID, poolID)
	})
}

// OpenMatchDM creates a group direct message between the two people in a
// match and introduces them to each other.
func (q *Queue) OpenMatchDM(matchID string) {
	q.dispatch("open_match_dm", func() error {
		return q.openMatchDM(matchID)
	})
}

func (q *Queue) openMatchDM(matchID string) error {
	match, err := q.ds.GetMatch(matchID)
	if err != nil {
		return fmt.Errorf("GetMatch failed: %w", err)
	}
	// the match should always exist here as this runs post-save; returning
	// an error lets the retry absorb replication lag
	if match == nil {
		return fmt.Errorf("match not found: %s", matchID)
	}
	person1, err := q.ds.GetPersonByID(match.Person1ID)
	if err != nil {
		return fmt.Errorf("GetPersonByID failed: %w", err)
	}
	person2, err := q.ds.GetPersonByID(match.Person2ID)
	if err != nil {
		return fmt.Errorf("GetPersonByID failed: %w", err)
	}
	round, err := q.ds.GetRound(match.RoundID)
	if err != nil || round == nil {
		return fmt.Errorf("round not found for match %s: %w", matchID, err)
	}
	pool, err := q.ds.GetPool(round.PoolID)
	if err != nil || pool == nil {
		return fmt.Errorf("pool not found for round %s: %w", round.ID, err)
	}

	channel, _, _, err := q.client.OpenConversation(&slack.OpenConversationParameters{
		Users: []string{person1.UserID, person2.UserID},
	})
	if err != nil {
		return fmt.Errorf("failed to open conversation for match %s: %w", matchID, err)
	}
	match.ConversationID = channel.ID
	if err := q.ds.SaveMatch(match); err != nil {
		return fmt.Errorf("SaveMatch failed: %w", err)
	}

	text := messages.MatchIntro(person1, person2, pool)
	if q.ai != nil {
		icebreaker, err := q.ai.GenerateIcebreaker(pool.Name, person1.CasualName, person2.CasualName)
		if err != nil {
			slog.Warn("failed to generate icebreaker", slog.Any("err", err))
		} else if icebreaker != "" {
			text += fmt.Sprintf("\n\nTo get you started: _%s_", icebreaker)
		}
	}

	// unfurling disabled so links in intros don't expand into previews
	if _, _, err := q.client.PostMessage(
		match.ConversationID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
	); err != nil {
		return fmt.Errorf("failed to send message for match %s: %w", matchID, err)
	}
	slog.Info("sent match intro",
		slog.String("match", matchID), slog.String("conversation", match.ConversationID))
	return nil
}

// askIfMet asks this person if they met up with their last match in this
// pool, if any, and if we don't know yet.
func (q *Queue) askIfMet(userID, poolID string) error {
	pool, err := q.ds.GetPool(poolID)
	if err != nil || pool == nil {
		return fmt.Errorf("pool not found: %s: %w", poolID, err)
	}
	person, err := q.ds.GetPerson(userID)
	if err != nil || person == nil {
		return fmt.Errorf("person not found: %s: %w", userID, err)
	}
	latest, err := q.ds.LatestMatchForPerson(person.ID, pool.ID)
	if err != nil {
		return fmt.Errorf("LatestMatchForPerson failed: %w", err)
	}
	// skip if the person hasn't matched with anyone yet, or if either side
	// already answered
	if latest == nil || latest.Met != nil {
		return nil
	}
	otherPerson, err := q.ds.GetPersonByID(latest.OtherPersonID(person.ID))
	if err != nil || otherPerson == nil {
		return fmt.Errorf("match partner not found for %s: %w", latest.ID, err)
	}
	if _, err := q.Send(userID, Message{
		Blocks: messages.AskIfMet(otherPerson, pool, latest.ID),
	}); err != nil {
		return err
	}
	// clear any existing last query; this question is block-based and the
	// answer comes back with the match ID in the block ID
	person.LastQuery = ""
	return q.ds.SavePerson(person)
}
