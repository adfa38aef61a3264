// Package matcher holds the pairing decision logic: selecting a round's
// participants, excluding one person when the count is odd, and forming
// pairs that avoid repeats.
package matcher

import (
	"fmt"
	"math/rand"

	"github.com/RaschidJFR/slack-meetups/domain/model"
)

// NoExcludableParticipantError means a pool has an odd number of
// available people and nobody who may be dropped. This is a data gap an
// admin has to fix; it is never retried automatically.
type NoExcludableParticipantError struct {
	Pool string
}

func (e *NoExcludableParticipantError) Error() string {
	return fmt.Sprintf("pool %q has an odd number of available people and none of them can be excluded; mark at least one member as excludable", e.Pool)
}

// SelectParticipants returns the even-sized participant set for a round.
// An even-sized candidate list is returned unchanged. An odd-sized list
// loses one person, chosen uniformly at random among those with
// CanBeExcluded set; with no excludable candidate the call fails. The
// input is expected in a deterministic order (join order) so a fixed
// random source reproduces the same exclusion. Nothing is persisted here;
// the draw is the only side effect.
func SelectParticipants(poolName string, candidates []model.Person, rnd *rand.Rand) ([]model.Person, error) {
	if len(candidates)%2 == 0 {
		return candidates, nil
	}

	var excludable []int
	for i, person := range candidates {
		if person.CanBeExcluded {
			excludable = append(excludable, i)
		}
	}
	if len(excludable) == 0 {
		return nil, &NoExcludableParticipantError{Pool: poolName}
	}

	drop := excludable[rnd.Intn(len(excludable))]
	selected := make([]model.Person, 0, len(candidates)-1)
	selected = append(selected, candidates[:drop]...)
	selected = append(selected, candidates[drop+1:]...)
	return selected, nil
}
