package services

import "math/rand"

// AssignTargets maps each participant to the one they gift to: the ids are
// shuffled uniformly and each participant gifts to its successor, the last
// wrapping around to the first. The result is a single random n-cycle, so it
// has no fixed points for n >= 2. (This is not uniform over all derangements,
// only over n-cycles; good enough for a gift exchange.)
//
// Callers must guarantee len(userIDs) >= 2; the minimum-players check in
// StartGame enforces that.
func AssignTargets(rng *rand.Rand, userIDs []int64) map[int64]int64 {
	shuffled := make([]int64, len(userIDs))
	copy(shuffled, userIDs)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	targets := make(map[int64]int64, len(shuffled))
	for i, id := range shuffled {
		targets[id] = shuffled[(i+1)%len(shuffled)]
	}
	return targets
}
