package matcher

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/slack-go/slack"

	"github.com/RaschidJFR/slack-meetups/domain/infra"
	"github.com/RaschidJFR/slack-meetups/domain/model"
	"github.com/RaschidJFR/slack-meetups/messages"
	"github.com/RaschidJFR/slack-meetups/tasks"
)

var ErrPoolNotFound = errors.New("pool not found")

// Service drives the round lifecycle: creating rounds, syncing pool
// membership with the Slack channel, asking availability and forming
// matches.
type Service struct {
	client        infra.SlackAPI
	ds            infra.Datastore
	queue         *tasks.Queue
	rnd           *rand.Rand
	userInfoCache *ttlcache.Cache[string, *slack.User]
}

type ServiceOption func(*Service)

// WithRand injects the random source used for the exclusion draw and the
// pairing shuffle, so tests can assert deterministic outcomes.
func WithRand(rnd *rand.Rand) ServiceOption {
	return func(s *Service) { s.rnd = rnd }
}

func NewService(client infra.SlackAPI, ds infra.Datastore, queue *tasks.Queue, opts ...ServiceOption) *Service {
	s := &Service{
		client:        client,
		ds:            ds,
		queue:         queue,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
		userInfoCache: ttlcache.New(ttlcache.WithTTL[string, *slack.User](24 * time.Hour)),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.userInfoCache.Start()
	return s
}

// StartRound creates a new round for the pool attached to the given
// channel and asks every member for their availability. The round row is
// written before any message goes out, so the availability answers always
// reference an existing round.
func (s *Service) StartRound(channelID string) (*model.Round, error) {
	pool, err := s.ds.GetPoolByChannelID(channelID)
	if err != nil {
		return nil, fmt.Errorf("GetPoolByChannelID failed: %w", err)
	}
	if pool == nil {
		return nil, fmt.Errorf("%w: channel %s", ErrPoolNotFound, channelID)
	}

	loc, err := time.LoadLocation(pool.Timezone)
	if err != nil {
		loc = time.UTC
	}
	now := time.Now().In(loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	round := &model.Round{
		PoolID:    pool.ID,
		StartDate: start,
		EndDate:   model.DefaultEndDate(start),
	}
	if err := s.ds.SaveRound(round); err != nil {
		return nil, fmt.Errorf("SaveRound failed: %w", err)
	}

	if err := s.askAvailability(pool); err != nil {
		return nil, err
	}
	slog.Info("started round", slog.String("pool", pool.Name), slog.String("round", round.ID))
	return round, nil
}

// MakeMatches selects the participants of a round and pairs them up. Each
// match row is saved before its intro DM task is queued.
func (s *Service) MakeMatches(roundID string) ([]model.Match, error) {
	round, err := s.ds.GetRound(roundID)
	if err != nil {
		return nil, fmt.Errorf("GetRound failed: %w", err)
	}
	if round == nil {
		return nil, fmt.Errorf("round not found: %s", roundID)
	}
	pool, err := s.ds.GetPool(round.PoolID)
	if err != nil || pool == nil {
		return nil, fmt.Errorf("%w: round %s", ErrPoolNotFound, roundID)
	}

	people, err := s.ds.AvailablePeople(pool.ID)
	if err != nil {
		return nil, fmt.Errorf("AvailablePeople failed: %w", err)
	}
	participants, err := SelectParticipants(pool.Name, people, s.rnd)
	if err != nil {
		return nil, err
	}
	pairs, err := PairParticipants(participants, s.ds.CountMatchesBetween, s.rnd)
	if err != nil {
		return nil, err
	}

	var matches []model.Match
	for _, pair := range pairs {
		match := &model.Match{
			Person1ID: pair[0].ID,
			Person2ID: pair[1].ID,
			RoundID:   round.ID,
		}
		if err := s.ds.SaveMatch(match); err != nil {
			return nil, fmt.Errorf("SaveMatch failed: %w", err)
		}
		s.queue.OpenMatchDM(match.ID)
		matches = append(matches, *match)
	}
	slog.Info("made matches",
		slog.String("pool", pool.Name),
		slog.Int("participants", len(participants)),
		slog.Int("matches", len(matches)))
	return matches, nil
}

// askAvailability messages all members of the pool to ask if they're
// available for the upcoming round, adding and removing pool members
// based on the current Slack channel membership.
func (s *Service) askAvailability(pool *model.Pool) error {
	memberIDs, err := s.channelMembers(pool.ChannelID)
	if err != nil {
		return fmt.Errorf("failed to list channel members: %w", err)
	}
	inChannel := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		inChannel[id] = true
	}

	people, err := s.ds.PoolMembers(pool.ID)
	if err != nil {
		return fmt.Errorf("PoolMembers failed: %w", err)
	}
	for i := range people {
		person := &people[i]
		// someone who never answered the intro question is considered not
		// interested enough to participate; the channel loop below picks
		// them up again once they do
		if !person.HasIntro() {
			continue
		}
		membership, err := s.ds.GetMembership(person.ID, pool.ID)
		if err != nil || membership == nil {
			continue
		}
		// reset everyone's availability to unknown for the new round
		membership.Available = nil
		if err := s.ds.SaveMembership(membership); err != nil {
			slog.Error("SaveMembership failed", slog.Any("err", err))
			continue
		}
		if !inChannel[person.UserID] {
			if err := s.ds.DeleteMembership(person.ID, pool.ID); err != nil {
				slog.Error("DeleteMembership failed", slog.Any("err", err))
				continue
			}
			slog.Info("removed person from pool",
				slog.String("person", person.String()), slog.String("pool", pool.Name))
			continue
		}
		s.sendAvailabilityQuestion(person, pool)
	}

	for _, userID := range memberIDs {
		if err := s.syncChannelMember(userID, pool); err != nil {
			slog.Error("failed to sync channel member",
				slog.String("user", userID), slog.Any("err", err))
		}
	}
	slog.Info("asked availability", slog.String("pool", pool.Name))
	return nil
}

func (s *Service) syncChannelMember(userID string, pool *model.Pool) error {
	person, err := s.ds.GetPerson(userID)
	if err != nil {
		return fmt.Errorf("GetPerson failed: %w", err)
	}

	if person == nil {
		// someone new joined the channel; create a Person from their Slack
		// profile and ask them to introduce themselves
		user, err := s.getUserInfo(userID)
		if err != nil {
			return fmt.Errorf("failed to retrieve Slack user info for %s, you probably want to delete and recreate this round: %w", userID, err)
		}
		if user.IsBot {
			return nil
		}
		fullName := user.Profile.RealName
		if fullName == "" {
			s.queue.SendMessage(userID, tasks.Message{Text: messages.PersonMissingName})
			slog.Warn("Slack real_name field missing", slog.String("user", userID))
			return nil
		}
		person = &model.Person{
			UserID:        userID,
			UserName:      user.Name,
			FullName:      fullName,
			CasualName:    model.FirstName(fullName),
			CanBeExcluded: true,
		}
		if err := s.ds.SavePerson(person); err != nil {
			return fmt.Errorf("SavePerson failed: %w", err)
		}
		if err := s.addToPool(person, pool); err != nil {
			return err
		}
		s.queue.SendMessage(userID, tasks.Message{Text: messages.WelcomeIntro(person, pool)})
		person.LastQuery = model.QueryAddIntro
		return s.ds.SavePerson(person)
	}

	membership, err := s.ds.GetMembership(person.ID, pool.ID)
	if err != nil {
		return fmt.Errorf("GetMembership failed: %w", err)
	}
	if membership != nil {
		return nil
	}
	// a known person joined this pool; ask for their availability, or for
	// their intro if they never wrote one
	if err := s.addToPool(person, pool); err != nil {
		return err
	}
	if person.HasIntro() {
		s.sendAvailabilityQuestion(person, pool)
		return nil
	}
	s.queue.SendMessage(person.UserID, tasks.Message{Text: messages.WelcomeIntro(person, pool)})
	person.LastQuery = model.QueryAddIntro
	return s.ds.SavePerson(person)
}

func (s *Service) addToPool(person *model.Person, pool *model.Pool) error {
	if err := s.ds.SaveMembership(&model.PoolMembership{
		PersonID: person.ID,
		PoolID:   pool.ID,
	}); err != nil {
		return fmt.Errorf("SaveMembership failed: %w", err)
	}
	slog.Info("added person to pool",
		slog.String("person", person.String()), slog.String("pool", pool.Name))
	return nil
}

func (s *Service) sendAvailabilityQuestion(person *model.Person, pool *model.Pool) {
	s.queue.SendMessage(person.UserID, tasks.Message{
		Blocks: messages.AskIfAvailable(person, pool),
	})
	// clear any existing last query; availability answers are block-based
	person.LastQuery = ""
	if err := s.ds.SavePerson(person); err != nil {
		slog.Error("SavePerson failed", slog.Any("err", err))
	}
}

// channelMembers lists the members of a Slack channel, using pagination
// as necessary.
func (s *Service) channelMembers(channelID string) ([]string, error) {
	var members []string
	cursor := ""
	for {
		page, next, err := s.client.GetUsersInConversation(&slack.GetUsersInConversationParameters{
			ChannelID: channelID,
			Cursor:    cursor,
			Limit:     200,
		})
		if err != nil {
			return nil, err
		}
		members = append(members, page...)
		if next == "" {
			return members, nil
		}
		cursor = next
	}
}

func (s *Service) getUserInfo(userID string) (*slack.User, error) {
	cacheKey := "user_" + userID
	if user := s.userInfoCache.Get(cacheKey); user != nil {
		return user.Value(), nil
	}
	user, err := s.client.GetUserInfo(userID)
	if err != nil {
		return nil, err
	}
	s.userInfoCache.Set(cacheKey, user, ttlcache.DefaultTTL)
	return user, nil
}
