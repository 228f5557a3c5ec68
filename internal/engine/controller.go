// Package engine drives a race through its six ordered rounds: admission via
// the pist allocator, per-round simulation, the cooperative tick loop that
// feeds animation consumers, and finalization of results.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"raceday-tracker/internal/constants"
	"raceday-tracker/internal/domain"
	"raceday-tracker/internal/events"
	"raceday-tracker/internal/pist"
	"raceday-tracker/internal/simulate"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrRaceNotFound       = errors.New("race not found")
	ErrRaceAlreadyRunning = errors.New("race already running")
	ErrRaceNotRunning     = errors.New("race not running")
	ErrRaceCompleted      = errors.New("race already completed")

	// errInterrupted marks a cooperative stop: pause or reset observed at a
	// tick or round boundary. Never surfaced to callers.
	errInterrupted = errors.New("race execution interrupted")
)

// WaitFunc is the suspension point between animation ticks. Tests inject a
// no-op so a full race runs without wall-clock time.
type WaitFunc func(ctx context.Context, d time.Duration) error

func defaultWait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// token carries the cooperative cancellation flags for one execution. Reset
// swaps in a fresh token, so a straggling loop keeps seeing its own aborted
// one.
type token struct {
	abort  atomic.Bool
	paused atomic.Bool

	// done closes when the loop driving this token returns. Tokens that
	// never get a loop start out closed.
	done chan struct{}
}

func newToken() *token {
	return &token{done: make(chan struct{})}
}

func (t *token) cancelled() bool {
	return t.abort.Load() || t.paused.Load()
}

// Controller is the sole mutator of live per-horse animation state. At most
// one execution runs per surface; the two surfaces are independent.
type Controller struct {
	alloc  *pist.Allocator
	exec   *simulate.Executor
	bus    *events.Bus
	logger zerolog.Logger

	mu     sync.Mutex
	tokens map[domain.Surface]*token

	wait WaitFunc
}

func NewController(alloc *pist.Allocator, exec *simulate.Executor, bus *events.Bus, logger zerolog.Logger) *Controller {
	tokens := make(map[domain.Surface]*token, len(domain.Surfaces))
	for _, surface := range domain.Surfaces {
		tok := newToken()
		close(tok.done)
		tokens[surface] = tok
	}
	return &Controller{
		alloc:  alloc,
		exec:   exec,
		bus:    bus,
		logger: logger,
		tokens: tokens,
		wait:   defaultWait,
	}
}

func (c *Controller) tokenFor(surface domain.Surface) *token {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens[surface]
}

func (c *Controller) freshToken(surface domain.Surface) *token {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok := newToken()
	c.tokens[surface] = tok
	return tok
}

// Start runs the race at raceIndex to completion, pause or abort, blocking
// the caller. Starting a paused race resumes it from the recorded round;
// starting a fresh race reserves its surface and begins at round one. The
// day state is untouched when admission fails.
func (c *Controller) Start(ctx context.Context, day *domain.RaceDay, raceIndex int) error {
	run, err := c.Admit(day, raceIndex)
	if err != nil {
		return err
	}
	return run(ctx)
}

// Admit performs admission for the race at raceIndex and returns the blocking
// round loop as a runner the caller must invoke exactly once. Reservation,
// status changes and token rotation all happen before Admit returns, so a
// competing start observes the conflict synchronously even when the runner is
// driven from another goroutine. Resuming a paused race waits for the
// suspended loop to unwind before the new one takes over its surface.
func (c *Controller) Admit(day *domain.RaceDay, raceIndex int) (func(context.Context) error, error) {
	day.Lock()

	race := day.Race(raceIndex)
	if race == nil {
		day.Unlock()
		return nil, fmt.Errorf("%w: index %d", ErrRaceNotFound, raceIndex)
	}
	surface := race.Surface

	if race.Status == domain.StatusRunning {
		resumeRound, ok := c.alloc.Resume(surface)
		if !ok {
			day.Unlock()
			return nil, fmt.Errorf("%w: race %s on %s", ErrRaceAlreadyRunning, race.ID, surface)
		}

		prev := c.tokenFor(surface)
		tok := c.freshToken(surface)
		day.CurrentRaceIndex = raceIndex
		day.CurrentRoundIndex = resumeRound
		day.Unlock()

		c.logger.Info().Str("race_id", race.ID).Int("round", resumeRound).Msg("race resumed")
		c.publishLifecycle(events.TypeRaceStarted, day, race)
		return func(ctx context.Context) error {
			// The paused loop exits at its next tick boundary; handing the
			// surface over before that would briefly run two loops on the
			// same race.
			<-prev.done
			return c.run(ctx, day, raceIndex, tok)
		}, nil
	}

	if race.Status == domain.StatusCompleted {
		day.Unlock()
		return nil, fmt.Errorf("%w: race %s", ErrRaceCompleted, race.ID)
	}

	if err := c.alloc.Reserve(day, surface, race.ID); err != nil {
		day.Unlock()
		return nil, err
	}

	race.Status = domain.StatusRunning
	race.StartedAt = time.Now().UnixMilli()
	day.CurrentRaceIndex = raceIndex
	day.CurrentRoundIndex = 0
	day.Status = domain.DayRunning
	c.alloc.MarkRunning(surface)
	tok := c.freshToken(surface)
	day.Unlock()

	c.logger.Info().Str("race_id", race.ID).Str("surface", string(surface)).Msg("race started")
	c.publishLifecycle(events.TypeRaceStarted, day, race)
	return func(ctx context.Context) error {
		return c.run(ctx, day, raceIndex, tok)
	}, nil
}

// Pause suspends the race's execution at the next tick boundary and records
// the round to resume from. Race and round statuses are left untouched.
func (c *Controller) Pause(day *domain.RaceDay, raceIndex int) error {
	day.Lock()
	defer day.Unlock()

	race := day.Race(raceIndex)
	if race == nil {
		return fmt.Errorf("%w: index %d", ErrRaceNotFound, raceIndex)
	}
	if race.Status != domain.StatusRunning {
		return fmt.Errorf("%w: race %s", ErrRaceNotRunning, race.ID)
	}
	if c.alloc.IsPaused(race.Surface) {
		return nil
	}

	// The in-flight round is the first one not yet completed; an interrupted
	// round keeps its running status and is re-simulated on resume.
	roundIdx := firstUnfinishedRound(race)
	c.tokenFor(race.Surface).paused.Store(true)
	c.alloc.Pause(race.Surface, roundIdx)

	c.logger.Info().Str("race_id", race.ID).Int("round", roundIdx).Msg("race paused")
	c.publishLifecycle(events.TypeRacePaused, day, race)
	return nil
}

// Reset aborts the race's in-flight execution best-effort, then force-returns
// the race to pending: results and timestamps cleared, rounds pending, live
// horse fields zeroed, surface released. Resetting a pending race is a no-op
// on its round and horse fields and leaves whatever else holds the surface
// untouched.
func (c *Controller) Reset(ctx context.Context, day *domain.RaceDay, raceIndex int) error {
	day.Lock()
	race := day.Race(raceIndex)
	if race == nil {
		day.Unlock()
		return fmt.Errorf("%w: index %d", ErrRaceNotFound, raceIndex)
	}
	surface := race.Surface

	// Only the race actually holding its surface has a loop to abort; a
	// pending or completed race must not kill a neighbor sharing the surface.
	holds := c.alloc.HeldBy(surface) == race.ID
	if holds {
		c.tokenFor(surface).abort.Store(true)
	}
	day.Unlock()

	if holds {
		// Give the tick loop a chance to observe the abort flag.
		_ = c.wait(ctx, constants.ResetSettleDelay)
	}

	day.Lock()
	race.Status = domain.StatusPending
	race.FinalResults = nil
	race.StartedAt = 0
	race.EndedAt = 0
	for i := range race.Rounds {
		race.Rounds[i].Status = domain.StatusPending
		race.Rounds[i].Results = nil
		race.Rounds[i].StartedAt = 0
		race.Rounds[i].EndedAt = 0
	}
	for i := range race.Horses {
		race.Horses[i].Progress = 0
		race.Horses[i].Speed = 0
		race.Horses[i].Position = 0
	}

	if holds {
		c.alloc.Release(day, surface)
		c.freshToken(surface)
	}
	c.alloc.Reconcile(day)
	if len(day.RunningRaces()) == 0 {
		day.CurrentRoundIndex = 0
	}
	rollupDayStatus(day)
	day.Unlock()

	c.logger.Info().Str("race_id", race.ID).Msg("race reset")
	c.publishLifecycle(events.TypeRaceReset, day, race)
	return nil
}

// ExecuteDay runs every pending race: races sharing a surface go in program
// order, the two surfaces run concurrently.
func (c *Controller) ExecuteDay(ctx context.Context, day *domain.RaceDay) error {
	day.RLock()
	bySurface := make(map[domain.Surface][]int)
	for i, race := range day.Races {
		if race.Status == domain.StatusPending {
			bySurface[race.Surface] = append(bySurface[race.Surface], i)
		}
	}
	day.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, indexes := range bySurface {
		indexes := indexes
		g.Go(func() error {
			for _, idx := range indexes {
				if err := c.Start(ctx, day, idx); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (c *Controller) run(ctx context.Context, day *domain.RaceDay, raceIndex int, tok *token) error {
	defer close(tok.done)
	race := day.Races[raceIndex]

	for {
		// Each race tracks its own progression through its rounds; the day's
		// CurrentRoundIndex is display state and follows the last mutation.
		day.Lock()
		roundIdx := firstUnfinishedRound(race)
		if roundIdx < len(race.Rounds) {
			day.CurrentRoundIndex = roundIdx
		}
		day.Unlock()
		if roundIdx >= len(race.Rounds) {
			break
		}

		if tok.cancelled() {
			return nil
		}

		if err := c.executeRound(ctx, day, race, roundIdx, tok); err != nil {
			if errors.Is(err, errInterrupted) {
				return nil
			}
			return err
		}

		day.Lock()
		race.Rounds[roundIdx].Status = domain.StatusCompleted
		day.CurrentRoundIndex = roundIdx + 1
		day.Unlock()

		c.bus.Publish(events.Event{
			Type:       events.TypeRoundCompleted,
			Date:       day.Date,
			RaceID:     race.ID,
			RaceNumber: race.RaceNumber,
			Surface:    race.Surface,
			Round:      roundIdx + 1,
		})

		if tok.cancelled() {
			return nil
		}
	}

	day.Lock()
	results, err := FinalResults(race)
	if err != nil {
		day.Unlock()
		return fmt.Errorf("finalize race %s: %w", race.ID, err)
	}
	race.FinalResults = results
	race.Status = domain.StatusCompleted
	race.EndedAt = time.Now().UnixMilli()
	c.alloc.Release(day, race.Surface)
	rollupDayStatus(day)
	day.Unlock()

	c.logger.Info().Str("race_id", race.ID).Str("winner", results[0].Horse.Name).Msg("race completed")
	c.publishLifecycle(events.TypeRaceCompleted, day, race)
	return nil
}

func (c *Controller) executeRound(ctx context.Context, day *domain.RaceDay, race *domain.Race, roundIdx int, tok *token) error {
	day.Lock()
	round := &race.Rounds[roundIdx]
	round.Status = domain.StatusRunning
	round.StartedAt = time.Now().UnixMilli()

	// Starting order: previous round's finish order, or roster order for the
	// opening round. Progress restarts from the gate either way.
	if roundIdx > 0 && len(race.Rounds[roundIdx-1].Results) > 0 {
		for i, res := range race.Rounds[roundIdx-1].Results {
			if horse := race.HorseByID(res.HorseID); horse != nil {
				horse.Position = i + 1
				horse.Progress = 0
			}
		}
	} else {
		for i := range race.Horses {
			race.Horses[i].Position = i + 1
			race.Horses[i].Progress = 0
		}
	}

	results := c.exec.Simulate(race.Horses, round.Distance)
	round.Results = results
	day.Unlock()

	steps := constants.AnimationSteps
	for step := 0; step <= steps; step++ {
		if tok.cancelled() {
			return errInterrupted
		}

		day.Lock()
		AdvanceTick(race, results, step, steps)
		snapshot := progressSnapshot(race)
		day.Unlock()

		c.bus.Publish(events.Event{
			Type:       events.TypeProgress,
			Date:       day.Date,
			RaceID:     race.ID,
			RaceNumber: race.RaceNumber,
			Surface:    race.Surface,
			Round:      roundIdx + 1,
			Horses:     snapshot,
		})

		if err := c.wait(ctx, constants.TickInterval); err != nil {
			return err
		}
	}

	day.Lock()
	for _, res := range results {
		if horse := race.HorseByID(res.HorseID); horse != nil {
			horse.Progress = 100
			horse.Speed = res.Speed
			horse.Position = res.Position
		}
	}
	round.EndedAt = time.Now().UnixMilli()
	day.Unlock()
	return nil
}

// firstUnfinishedRound returns the index of the first round not yet
// completed, or the round count when the race has run everything. Callers
// hold the day lock.
func firstUnfinishedRound(race *domain.Race) int {
	for i := range race.Rounds {
		if race.Rounds[i].Status != domain.StatusCompleted {
			return i
		}
	}
	return len(race.Rounds)
}

// AdvanceTick moves every horse's visible progress for one animation step.
// A horse reaches 100 exactly when the elapsed fraction meets its
// finish-time fraction normalized against the round's slowest finisher, and
// holds there for the rest of the loop. Pure state update, callable by any
// host loop.
func AdvanceTick(race *domain.Race, results []domain.RoundResult, step, steps int) {
	if steps <= 0 || len(results) == 0 {
		return
	}
	elapsed := float64(step) / float64(steps)

	maxTime := results[0].FinishTime
	for _, res := range results[1:] {
		if res.FinishTime > maxTime {
			maxTime = res.FinishTime
		}
	}
	if maxTime <= 0 {
		return
	}

	for _, res := range results {
		horse := race.HorseByID(res.HorseID)
		if horse == nil {
			continue
		}

		normalized := res.FinishTime / maxTime
		if elapsed >= normalized {
			horse.Progress = 100
		} else {
			progress := elapsed / normalized * 100
			if progress < 0 {
				progress = 0
			} else if progress > 100 {
				progress = 100
			}
			horse.Progress = progress
		}
		horse.Speed = res.Speed
		horse.Position = res.Position
	}
}

func progressSnapshot(race *domain.Race) []events.HorseProgress {
	snapshot := make([]events.HorseProgress, 0, len(race.Horses))
	for _, horse := range race.Horses {
		snapshot = append(snapshot, events.HorseProgress{
			HorseID:  horse.HorseID,
			Progress: horse.Progress,
			Speed:    horse.Speed,
			Position: horse.Position,
		})
	}
	return snapshot
}

func (c *Controller) publishLifecycle(eventType events.Type, day *domain.RaceDay, race *domain.Race) {
	c.bus.Publish(events.Event{
		Type:       eventType,
		Date:       day.Date,
		RaceID:     race.ID,
		RaceNumber: race.RaceNumber,
		Surface:    race.Surface,
	})
}

func rollupDayStatus(day *domain.RaceDay) {
	completed := 0
	running := 0
	for _, race := range day.Races {
		switch race.Status {
		case domain.StatusCompleted:
			completed++
		case domain.StatusRunning:
			running++
		}
	}

	switch {
	case len(day.Races) > 0 && completed == len(day.Races):
		day.Status = domain.DayCompleted
	case running > 0:
		day.Status = domain.DayRunning
	default:
		day.Status = domain.DayGenerated
	}
}
