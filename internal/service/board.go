// Package service owns board orchestration: which date is selected, loading
// the horse pool, generating or restoring race days, and snapshotting state
// after every mutation.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"raceday-tracker/internal/domain"
	"raceday-tracker/internal/engine"
	"raceday-tracker/internal/events"
	"raceday-tracker/internal/pist"
	"raceday-tracker/internal/pool"
	"raceday-tracker/internal/repository"
	"raceday-tracker/internal/schedule"

	"github.com/rs/zerolog"
)

// ErrNoRaceDay means no race day is loaded for the selected date yet.
var ErrNoRaceDay = errors.New("no race day loaded")

type Board struct {
	pool       pool.Provider
	generator  *schedule.Generator
	controller *engine.Controller
	alloc      *pist.Allocator
	repo       *repository.RaceDayRepository
	bus        *events.Bus
	logger     zerolog.Logger

	mu           sync.Mutex
	horses       []domain.Horse
	day          *domain.RaceDay
	selectedDate string
}

func NewBoard(
	provider pool.Provider,
	generator *schedule.Generator,
	controller *engine.Controller,
	alloc *pist.Allocator,
	repo *repository.RaceDayRepository,
	bus *events.Bus,
	logger zerolog.Logger,
) *Board {
	return &Board{
		pool:       provider,
		generator:  generator,
		controller: controller,
		alloc:      alloc,
		repo:       repo,
		bus:        bus,
		logger:     logger,
	}
}

// Horses returns the cached pool, fetching it on first use. A transient
// provider failure propagates without touching board state.
func (b *Board) Horses(ctx context.Context) ([]domain.Horse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.horsesLocked(ctx)
}

func (b *Board) horsesLocked(ctx context.Context) ([]domain.Horse, error) {
	if len(b.horses) > 0 {
		return b.horses, nil
	}

	horses, err := b.pool.FetchHorses(ctx)
	if err != nil {
		return nil, fmt.Errorf("load horses: %w", err)
	}
	b.horses = horses
	b.logger.Info().Int("count", len(horses)).Msg("horse pool loaded")
	return b.horses, nil
}

// Generate builds a fresh race day for the date, replaces the current one
// and persists it.
func (b *Board) Generate(ctx context.Context, date string, opts schedule.Options) (*domain.RaceDay, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	horses, err := b.horsesLocked(ctx)
	if err != nil {
		return nil, err
	}

	day, err := b.generator.Generate(horses, date, opts)
	if err != nil {
		return nil, err
	}

	b.day = day
	b.selectedDate = date
	b.saveLocked(ctx)

	b.bus.Publish(events.Event{Type: events.TypeDayGenerated, Date: date})
	return day, nil
}

// SelectDate switches the board to a date: a persisted day is restored and
// reconciled, otherwise a new one is generated.
func (b *Board) SelectDate(ctx context.Context, date string) (*domain.RaceDay, error) {
	b.mu.Lock()
	if b.day != nil && b.selectedDate == date {
		day := b.day
		b.mu.Unlock()
		return day, nil
	}
	b.mu.Unlock()

	if day, ok := b.repo.Load(ctx, date); ok {
		day.Lock()
		// A snapshot can claim races were mid-run when the process stopped;
		// nothing is actually executing now, so repair the pist bookkeeping.
		b.alloc.Reconcile(day)
		day.Unlock()

		b.mu.Lock()
		b.day = day
		b.selectedDate = date
		b.saveLocked(ctx)
		b.mu.Unlock()

		b.logger.Info().Str("date", date).Msg("race day restored")
		return day, nil
	}

	return b.Generate(ctx, date, schedule.Options{})
}

// Day returns the live race day for the selected date, nil when none.
func (b *Board) Day() *domain.RaceDay {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.day
}

// StartRace applies the board's start-or-toggle semantics to a 1-based race
// number: a fresh race starts, a running race pauses, a paused race resumes.
// Admission happens synchronously, so surface conflicts and completed races
// are reported to the caller; only the round loop runs in the background.
func (b *Board) StartRace(ctx context.Context, raceNumber int) error {
	day, idx, race, err := b.resolve(raceNumber)
	if err != nil {
		return err
	}

	day.RLock()
	status := race.Status
	surface := race.Surface
	day.RUnlock()

	if status == domain.StatusRunning && !b.alloc.IsPaused(surface) {
		return b.PauseRace(ctx, raceNumber)
	}

	run, err := b.controller.Admit(day, idx)
	if err != nil {
		return err
	}

	go b.execute(day, run)
	return nil
}

// RunDay executes every pending race in the background, both surfaces in
// parallel.
func (b *Board) RunDay(ctx context.Context) error {
	b.mu.Lock()
	day := b.day
	b.mu.Unlock()
	if day == nil {
		return ErrNoRaceDay
	}

	go func() {
		if err := b.controller.ExecuteDay(context.Background(), day); err != nil {
			b.logger.Error().Err(err).Str("date", day.Date).Msg("day execution stopped")
		}
		b.save(context.Background(), day)
	}()
	return nil
}

func (b *Board) PauseRace(ctx context.Context, raceNumber int) error {
	day, idx, _, err := b.resolve(raceNumber)
	if err != nil {
		return err
	}

	if err := b.controller.Pause(day, idx); err != nil {
		return err
	}
	b.save(ctx, day)
	return nil
}

func (b *Board) ResetRace(ctx context.Context, raceNumber int) error {
	day, idx, _, err := b.resolve(raceNumber)
	if err != nil {
		return err
	}

	if err := b.controller.Reset(ctx, day, idx); err != nil {
		return err
	}
	b.save(ctx, day)
	return nil
}

// Stats aggregates the selected day's completed races.
func (b *Board) Stats() (domain.DayStats, error) {
	b.mu.Lock()
	day := b.day
	b.mu.Unlock()
	if day == nil {
		return domain.DayStats{}, ErrNoRaceDay
	}

	day.RLock()
	defer day.RUnlock()
	return engine.DayStats(day), nil
}

func (b *Board) resolve(raceNumber int) (*domain.RaceDay, int, *domain.Race, error) {
	b.mu.Lock()
	day := b.day
	b.mu.Unlock()
	if day == nil {
		return nil, 0, nil, ErrNoRaceDay
	}

	day.RLock()
	idx := day.RaceIndexByNumber(raceNumber)
	day.RUnlock()
	if idx < 0 {
		return nil, 0, nil, fmt.Errorf("%w: number %d", engine.ErrRaceNotFound, raceNumber)
	}
	return day, idx, day.Races[idx], nil
}

// execute drives an admitted race to completion, pause or abort, detached
// from the request that started it, then snapshots the day.
func (b *Board) execute(day *domain.RaceDay, run func(context.Context) error) {
	ctx := context.Background()
	if err := run(ctx); err != nil {
		b.logger.Error().Err(err).Str("date", day.Date).Msg("race execution failed")
	}
	b.save(ctx, day)
}

func (b *Board) save(ctx context.Context, day *domain.RaceDay) {
	day.RLock()
	defer day.RUnlock()
	b.repo.Save(ctx, day.Date, day)
}

// saveLocked persists the current day; callers hold b.mu.
func (b *Board) saveLocked(ctx context.Context) {
	if b.day == nil {
		return
	}
	b.day.RLock()
	defer b.day.RUnlock()
	b.repo.Save(ctx, b.day.Date, b.day)
}
