package tasks

import (
	"fmt"
	"path"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"

	"github.com/RaschidJFR/slack-meetups/domain/infra"
	"github.com/RaschidJFR/slack-meetups/domain/model"
	"github.com/RaschidJFR/slack-meetups/messages"
)

func newTestDatastore(t *testing.T) *infra.DataBase {
	t.Helper()
	ds, err := infra.NewDataBase(path.Join(t.TempDir(), "test.db"))
	assert.NoError(t, err)
	return ds
}

func interactionPayload(channelID, timestamp, value string, blocks []slack.Block) *slack.InteractionCallback {
	return &slack.InteractionCallback{
		User: slack.User{ID: "U_ANSWERER"},
		Channel: slack.Channel{
			GroupConversation: slack.GroupConversation{
				Conversation: slack.Conversation{ID: channelID},
			},
		},
		Message: slack.Message{
			Msg: slack.Msg{
				Timestamp: timestamp,
				Blocks:    slack.Blocks{BlockSet: blocks},
			},
		},
		ActionCallback: slack.ActionCallbacks{
			BlockActions: []*slack.BlockAction{
				{BlockID: "availability-pool1", Value: value},
			},
		},
	}
}

func TestQueue_Send_textSummary(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := infra.NewMockSlackAPI(ctrl)
	mockClient.EXPECT().PostMessage("C123", gomock.Any()).Return("C123", "ts", nil)

	q := NewQueue(mockClient, nil, nil, Synchronous())
	summary, err := q.Send("C123", Message{Text: "hello there"})
	assert.NoError(t, err)
	assert.Equal(t, `C123: "hello there"`, summary)
}

func TestQueue_Send_rewritesAnsweredMessageFirst(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	person := &model.Person{CasualName: "Ada"}
	pool := &model.Pool{ID: "pool1", Name: "coffee-pals"}
	payload := interactionPayload("D42", "167.001", "yes", messages.AskIfAvailable(person, pool))

	mockClient := infra.NewMockSlackAPI(ctrl)
	update := mockClient.EXPECT().
		UpdateMessage("D42", "167.001", gomock.Any()).
		Return("D42", "167.001", "", nil)
	mockClient.EXPECT().
		PostMessage("U_ANSWERER", gomock.Any()).
		Return("U_ANSWERER", "ts", nil).
		After(update)

	q := NewQueue(mockClient, nil, nil, Synchronous())
	_, err := q.Send("U_ANSWERER", Message{Text: "got it", Payload: payload})
	assert.NoError(t, err)
}

func TestQueue_Send_updateFailureStillPosts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	person := &model.Person{CasualName: "Ada"}
	pool := &model.Pool{ID: "pool1", Name: "coffee-pals"}
	payload := interactionPayload("D42", "167.001", "no", messages.AskIfAvailable(person, pool))

	mockClient := infra.NewMockSlackAPI(ctrl)
	mockClient.EXPECT().
		UpdateMessage("D42", "167.001", gomock.Any()).
		Return("", "", "", fmt.Errorf("message_not_found"))
	mockClient.EXPECT().
		PostMessage("U_ANSWERER", gomock.Any()).
		Return("U_ANSWERER", "ts", nil)

	q := NewQueue(mockClient, nil, nil, Synchronous())
	summary, err := q.Send("U_ANSWERER", Message{Text: "noted", Payload: payload})
	assert.NoError(t, err)
	assert.Equal(t, `U_ANSWERER: "noted"`, summary)
}

func TestQueue_Send_postFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := infra.NewMockSlackAPI(ctrl)
	mockClient.EXPECT().
		PostMessage("C123", gomock.Any()).
		Return("", "", fmt.Errorf("channel_not_found"))

	q := NewQueue(mockClient, nil, nil, Synchronous())
	_, err := q.Send("C123", Message{Text: "hello"})
	assert.ErrorContains(t, err, "failed to send message to C123")
}

func TestQueue_openMatchDM(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ds := newTestDatastore(t)

	pool := &model.Pool{Name: "coffee-pals", ChannelID: "C1", ChannelName: "coffee-pals"}
	assert.NoError(t, ds.SavePool(pool))
	person1 := &model.Person{UserID: "U1", FullName: "Ada Lovelace", CasualName: "Ada", Intro: "hi"}
	person2 := &model.Person{UserID: "U2", FullName: "Alan Turing", CasualName: "Alan", Intro: "hello"}
	assert.NoError(t, ds.SavePerson(person1))
	assert.NoError(t, ds.SavePerson(person2))
	round := &model.Round{PoolID: pool.ID}
	assert.NoError(t, ds.SaveRound(round))
	match := &model.Match{Person1ID: person1.ID, Person2ID: person2.ID, RoundID: round.ID}
	assert.NoError(t, ds.SaveMatch(match))

	mockClient := infra.NewMockSlackAPI(ctrl)
	mockClient.EXPECT().
		OpenConversation(gomock.Any()).
		DoAndReturn(func(params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error) {
			assert.ElementsMatch(t, []string{"U1", "U2"}, params.Users)
			return &slack.Channel{
				GroupConversation: slack.GroupConversation{
					Conversation: slack.Conversation{ID: "G99"},
				},
			}, false, false, nil
		})
	mockClient.EXPECT().PostMessage("G99", gomock.Any()).Return("G99", "ts", nil)

	q := NewQueue(mockClient, ds, nil, Synchronous())
	q.OpenMatchDM(match.ID)

	saved, err := ds.GetMatch(match.ID)
	assert.NoError(t, err)
	assert.Equal(t, "G99", saved.ConversationID)
}

func TestQueue_SendThenAskIfMet_noPriorMatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ds := newTestDatastore(t)
	pool := &model.Pool{Name: "coffee-pals", ChannelID: "C1", ChannelName: "coffee-pals"}
	assert.NoError(t, ds.SavePool(pool))
	person := &model.Person{UserID: "U1", FullName: "Ada Lovelace", CasualName: "Ada"}
	assert.NoError(t, ds.SavePerson(person))

	// only the confirmation goes out, there is no match to ask about
	mockClient := infra.NewMockSlackAPI(ctrl)
	mockClient.EXPECT().PostMessage("U1", gomock.Any()).Return("U1", "ts", nil).Times(1)

	q := NewQueue(mockClient, ds, nil, Synchronous())
	q.SendThenAskIfMet("U1", Message{Text: "sounds good"}, pool.ID)
}

func TestQueue_SendThenAskIfMet_asksAboutLatestMatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ds := newTestDatastore(t)
	pool := &model.Pool{Name: "coffee-pals", ChannelID: "C1", ChannelName: "coffee-pals"}
	assert.NoError(t, ds.SavePool(pool))
	person1 := &model.Person{UserID: "U1", FullName: "Ada Lovelace", CasualName: "Ada"}
	person2 := &model.Person{UserID: "U2", FullName: "Alan Turing", CasualName: "Alan"}
	assert.NoError(t, ds.SavePerson(person1))
	assert.NoError(t, ds.SavePerson(person2))
	round := &model.Round{PoolID: pool.ID}
	assert.NoError(t, ds.SaveRound(round))
	match := &model.Match{Person1ID: person1.ID, Person2ID: person2.ID, RoundID: round.ID}
	assert.NoError(t, ds.SaveMatch(match))

	mockClient := infra.NewMockSlackAPI(ctrl)
	mockClient.EXPECT().PostMessage("U1", gomock.Any()).Return("U1", "ts", nil).Times(2)

	q := NewQueue(mockClient, ds, nil, Synchronous())
	q.SendThenAskIfMet("U1", Message{Text: "sounds good"}, pool.ID)
}
