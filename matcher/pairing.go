package matcher

import (
	"fmt"
	"math/rand"

	"github.com/RaschidJFR/slack-meetups/domain/model"
)

// PairParticipants splits an even-sized participant list into pairs,
// greedily preferring the partner each person has met the fewest times
// before. The list is shuffled first so ties don't always break the same
// way. pairCount reports how many historical matches exist between two
// person IDs.
func PairParticipants(participants []model.Person, pairCount func(person1ID, person2ID string) (int, error), rnd *rand.Rand) ([][2]model.Person, error) {
	if len(participants)%2 != 0 {
		return nil, fmt.Errorf("cannot pair %d participants, count must be even", len(participants))
	}

	remaining := make([]model.Person, len(participants))
	copy(remaining, participants)
	rnd.Shuffle(len(remaining), func(i, j int) {
		remaining[i], remaining[j] = remaining[j], remaining[i]
	})

	var pairs [][2]model.Person
	for len(remaining) > 0 {
		first := remaining[0]
		rest := remaining[1:]

		best := 0
		bestCount := -1
		for i, candidate := range rest {
			count, err := pairCount(first.ID, candidate.ID)
			if err != nil {
				return nil, fmt.Errorf("pair count lookup failed: %w", err)
			}
			if bestCount == -1 || count < bestCount {
				best = i
				bestCount = count
			}
			if count == 0 {
				break
			}
		}

		pairs = append(pairs, [2]model.Person{first, rest[best]})
		rest[best] = rest[len(rest)-1]
		remaining = rest[:len(rest)-1]
	}
	return pairs, nil
}
