package engine

import (
	"errors"
	"fmt"
	"sort"

	"raceday-tracker/internal/domain"
)

// ErrNoCompletedRound means a race was finalized before any round completed
// with results.
var ErrNoCompletedRound = errors.New("no completed round results available")

// FinalResults derives a race's standings from the last completed round with
// results, scanning backwards from the final round. For a full run that is
// round six; for a resumed partial run it is wherever execution stopped.
func FinalResults(race *domain.Race) ([]domain.RaceResult, error) {
	var last *domain.Round
	for i := len(race.Rounds) - 1; i >= 0; i-- {
		round := &race.Rounds[i]
		if round.Status == domain.StatusCompleted && len(round.Results) > 0 {
			last = round
			break
		}
	}
	if last == nil {
		return nil, ErrNoCompletedRound
	}

	results := make([]domain.RaceResult, 0, len(last.Results))
	for _, res := range last.Results {
		horse := race.HorseByID(res.HorseID)
		if horse == nil {
			return nil, fmt.Errorf("horse %s not in race %s roster", res.HorseID, race.ID)
		}

		var history []domain.RoundResult
		for _, round := range race.Rounds {
			for _, rr := range round.Results {
				if rr.HorseID == res.HorseID {
					history = append(history, rr)
					break
				}
			}
		}

		results = append(results, domain.RaceResult{
			HorseID:      res.HorseID,
			Horse:        horse.Horse,
			Position:     res.Position,
			FinishTime:   res.FinishTime,
			Speed:        res.Speed,
			RoundResults: history,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Position < results[j].Position
	})
	return results, nil
}

// DayStats rolls completed races up into day-level aggregates. FastestHorse
// is the winner with the lowest winning finish time across the day; MostWins
// counts first places, earlier winners taking ties.
func DayStats(day *domain.RaceDay) domain.DayStats {
	stats := domain.DayStats{TotalRaces: len(day.Races)}

	wins := make(map[string]int)
	var winOrder []string
	var totalWinningTime float64
	fastestTime := -1.0

	for _, race := range day.Races {
		stats.TotalHorses += len(race.Horses)
		if race.Status != domain.StatusCompleted || len(race.FinalResults) == 0 {
			continue
		}
		stats.CompletedRaces++

		winner := race.FinalResults[0]
		totalWinningTime += winner.FinishTime

		if fastestTime < 0 || winner.FinishTime < fastestTime {
			fastestTime = winner.FinishTime
			stats.FastestHorse = winner.Horse.Name
		}

		if _, seen := wins[winner.Horse.Name]; !seen {
			winOrder = append(winOrder, winner.Horse.Name)
		}
		wins[winner.Horse.Name]++
	}

	if stats.CompletedRaces > 0 {
		stats.AverageRaceTime = totalWinningTime / float64(stats.CompletedRaces)
	}

	maxWins := 0
	for _, name := range winOrder {
		if wins[name] > maxWins {
			maxWins = wins[name]
			stats.MostWins = name
		}
	}
	return stats
}
