// Package simulate computes a single round's finish order. Physics here is
// illustrative: condition sets the base pace, longer rounds drag it down,
// and a bounded jitter decides the close finishes.
package simulate

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"raceday-tracker/internal/domain"
)

// Executor is safe for concurrent use from both surface loops.
type Executor struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewExecutor() *Executor {
	return &Executor{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Simulate races the roster over one round and returns results sorted by
// finish time, positions 1..n. Ties keep roster order (stable sort).
//
// baseSpeed = 50 + condition/2 km/h, reduced 10% per full distance factor
// above the shortest round, then jittered in [0.9, 1.1) independently for
// time and speed.
func (e *Executor) Simulate(roster []domain.RaceHorse, distance int) []domain.RoundResult {
	results := make([]domain.RoundResult, 0, len(roster))

	for _, horse := range roster {
		baseSpeed := 50.0 + float64(horse.Horse.Condition)/2.0
		distanceFactor := float64(distance) / float64(domain.RoundDistances[0])
		speed := baseSpeed * (1.0 - (distanceFactor-1.0)*0.1)

		// km over km/h, in seconds
		finishTime := (float64(distance) / 1000.0) / (speed / 3600.0)

		results = append(results, domain.RoundResult{
			HorseID:    horse.HorseID,
			FinishTime: finishTime * e.jitter(),
			Speed:      speed * e.jitter(),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinishTime < results[j].FinishTime
	})
	for i := range results {
		results[i].Position = i + 1
	}
	return results
}

func (e *Executor) jitter() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return 0.9 + e.rng.Float64()*0.2
}
