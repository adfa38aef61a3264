package matcher

import (
	"path"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"

	"github.com/RaschidJFR/slack-meetups/domain/infra"
	"github.com/RaschidJFR/slack-meetups/domain/model"
	"github.com/RaschidJFR/slack-meetups/tasks"
)

type serviceFixture struct {
	svc    *Service
	client *infra.MockSlackAPI
	ds     *infra.DataBase
	pool   *model.Pool
}

func newServiceFixture(t *testing.T, ctrl *gomock.Controller) *serviceFixture {
	t.Helper()
	ds, err := infra.NewDataBase(path.Join(t.TempDir(), "test.db"))
	assert.NoError(t, err)

	mockClient := infra.NewMockSlackAPI(ctrl)
	queue := tasks.NewQueue(mockClient, ds, nil, tasks.Synchronous())

	pool := &model.Pool{Name: "coffee-pals", ChannelID: "C1", ChannelName: "coffee-pals"}
	assert.NoError(t, ds.SavePool(pool))

	return &serviceFixture{
		svc:    NewService(mockClient, ds, queue),
		client: mockClient,
		ds:     ds,
		pool:   pool,
	}
}

func channelWith(userIDs ...string) func(*slack.GetUsersInConversationParameters) ([]string, string, error) {
	return func(params *slack.GetUsersInConversationParameters) ([]string, string, error) {
		return userIDs, "", nil
	}
}

func TestStartRound_onboardsNewChannelMember(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newServiceFixture(t, ctrl)

	f.client.EXPECT().GetUsersInConversation(gomock.Any()).DoAndReturn(channelWith("U_NEW"))
	f.client.EXPECT().GetUserInfo("U_NEW").Return(&slack.User{
		ID:   "U_NEW",
		Name: "ada",
		Profile: slack.UserProfile{
			RealName: "Ada Lovelace",
		},
	}, nil)
	// the welcome question asking for an intro
	f.client.EXPECT().PostMessage("U_NEW", gomock.Any()).Return("U_NEW", "ts", nil)

	round, err := f.svc.StartRound("C1")
	assert.NoError(t, err)
	assert.NotNil(t, round)

	person, err := f.ds.GetPerson("U_NEW")
	assert.NoError(t, err)
	if assert.NotNil(t, person) {
		assert.Equal(t, "Ada Lovelace", person.FullName)
		assert.Equal(t, "Ada", person.CasualName)
		assert.True(t, person.CanBeExcluded)
		assert.Equal(t, model.QueryAddIntro, person.LastQuery)
	}

	membership, err := f.ds.GetMembership(person.ID, f.pool.ID)
	assert.NoError(t, err)
	assert.NotNil(t, membership)
}

func TestStartRound_skipsBots(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newServiceFixture(t, ctrl)

	f.client.EXPECT().GetUsersInConversation(gomock.Any()).DoAndReturn(channelWith("U_BOT"))
	f.client.EXPECT().GetUserInfo("U_BOT").Return(&slack.User{ID: "U_BOT", IsBot: true}, nil)

	_, err := f.svc.StartRound("C1")
	assert.NoError(t, err)

	person, err := f.ds.GetPerson("U_BOT")
	assert.NoError(t, err)
	assert.Nil(t, person)
}

func TestStartRound_missingRealName(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newServiceFixture(t, ctrl)

	f.client.EXPECT().GetUsersInConversation(gomock.Any()).DoAndReturn(channelWith("U_ANON"))
	f.client.EXPECT().GetUserInfo("U_ANON").Return(&slack.User{ID: "U_ANON", Name: "anon"}, nil)
	// told to fill in their profile instead of being onboarded
	f.client.EXPECT().PostMessage("U_ANON", gomock.Any()).Return("U_ANON", "ts", nil)

	_, err := f.svc.StartRound("C1")
	assert.NoError(t, err)

	person, err := f.ds.GetPerson("U_ANON")
	assert.NoError(t, err)
	assert.Nil(t, person)
}

func TestStartRound_asksExistingMembersAndResetsAvailability(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newServiceFixture(t, ctrl)

	person := &model.Person{
		UserID: "U1", UserName: "ada", FullName: "Ada Lovelace", CasualName: "Ada",
		Intro: "hi", CanBeExcluded: true,
	}
	assert.NoError(t, f.ds.SavePerson(person))
	yes := true
	assert.NoError(t, f.ds.SaveMembership(&model.PoolMembership{
		PersonID: person.ID, PoolID: f.pool.ID, Available: &yes,
	}))

	f.client.EXPECT().GetUsersInConversation(gomock.Any()).DoAndReturn(channelWith("U1"))
	// the availability question for the new round
	f.client.EXPECT().PostMessage("U1", gomock.Any()).Return("U1", "ts", nil)

	_, err := f.svc.StartRound("C1")
	assert.NoError(t, err)

	membership, err := f.ds.GetMembership(person.ID, f.pool.ID)
	assert.NoError(t, err)
	if assert.NotNil(t, membership) {
		assert.Nil(t, membership.Available, "availability resets to unknown each round")
	}
}

func TestStartRound_removesMembersWhoLeftChannel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newServiceFixture(t, ctrl)

	person := &model.Person{
		UserID: "U_GONE", UserName: "ada", FullName: "Ada Lovelace", CasualName: "Ada",
		Intro: "hi", CanBeExcluded: true,
	}
	assert.NoError(t, f.ds.SavePerson(person))
	assert.NoError(t, f.ds.SaveMembership(&model.PoolMembership{
		PersonID: person.ID, PoolID: f.pool.ID,
	}))

	f.client.EXPECT().GetUsersInConversation(gomock.Any()).DoAndReturn(channelWith())

	_, err := f.svc.StartRound("C1")
	assert.NoError(t, err)

	membership, err := f.ds.GetMembership(person.ID, f.pool.ID)
	assert.NoError(t, err)
	assert.Nil(t, membership)
}

func TestStartRound_unknownChannel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newServiceFixture(t, ctrl)

	_, err := f.svc.StartRound("C_NOPE")
	assert.ErrorIs(t, err, ErrPoolNotFound)
}
