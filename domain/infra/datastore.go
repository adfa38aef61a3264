package infra

import (
	"time"

	"github.com/RaschidJFR/slack-meetups/domain/model"
)

// Datastore is the persistence boundary for pools, people and matches.
// Lookups return (nil, nil) when no row exists.
type Datastore interface {
	// look up a person by Slack user ID
	GetPerson(userID string) (*model.Person, error)
	// look up a person by internal ID
	GetPersonByID(id string) (*model.Person, error)
	SavePerson(*model.Person) error

	GetPool(id string) (*model.Pool, error)
	GetPoolByChannelID(channelID string) (*model.Pool, error)
	GetPoolByChannelName(channelName string) (*model.Pool, error)
	SavePool(*model.Pool) error

	GetMembership(personID, poolID string) (*model.PoolMembership, error)
	SaveMembership(*model.PoolMembership) error
	DeleteMembership(personID, poolID string) error
	// everyone in the pool, regardless of availability
	PoolMembers(poolID string) ([]model.Person, error)
	// members who answered "available" for the active round, in join order
	AvailablePeople(poolID string) ([]model.Person, error)
	// set availability across all of a person's pools
	SetPersonAvailability(personID string, available bool) error

	SaveRound(*model.Round) error
	GetRound(id string) (*model.Round, error)
	LatestRound(poolID string) (*model.Round, error)
	RoundsForPool(poolID string) ([]model.Round, error)

	SaveMatch(*model.Match) error
	GetMatch(id string) (*model.Match, error)
	MatchesForPool(poolID string) ([]model.Match, error)
	// the most recent match a person was part of in this pool
	LatestMatchForPerson(personID, poolID string) (*model.Match, error)
	// how many times two people have been paired before
	CountMatchesBetween(person1ID, person2ID string) (int, error)
	// fetch a match while verifying the user is one of its two people
	MatchForUser(userID, matchID string) (*model.Match, error)
}

func timeNow() time.Time {
	return time.Now().UTC()
}
