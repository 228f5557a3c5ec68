// Package pist owns the two mutually exclusive track resources. Each surface
// carries a single state enum instead of separate running/loading/paused
// sets, so the bookkeeping cannot disagree with itself.
package pist

import (
	"errors"
	"fmt"
	"sync"

	"raceday-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// ErrSurfaceUnavailable is the resource-conflict error: the surface is
// already claimed by another race. The attempted operation is a no-op.
var ErrSurfaceUnavailable = errors.New("surface unavailable")

type State int

const (
	Free State = iota
	Reserved
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Reserved:
		return "reserved"
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type slot struct {
	state       State
	raceID      string
	resumeRound int
}

// Allocator is the sole mutator of a RaceDay's PistStatus. Callers must hold
// the day lock when passing a day into mutating methods.
type Allocator struct {
	mu     sync.Mutex
	slots  map[domain.Surface]*slot
	logger zerolog.Logger
}

func NewAllocator(logger zerolog.Logger) *Allocator {
	slots := make(map[domain.Surface]*slot, len(domain.Surfaces))
	for _, surface := range domain.Surfaces {
		slots[surface] = &slot{}
	}
	return &Allocator{slots: slots, logger: logger}
}

// Reserve claims the surface for a race. It fails without side effects when
// the surface is already reserved, running or paused.
func (a *Allocator) Reserve(day *domain.RaceDay, surface domain.Surface, raceID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.slots[surface]
	if s.state != Free || !day.PistStatus[surface].IsAvailable {
		return fmt.Errorf("%w: %s held by race %s", ErrSurfaceUnavailable, surface, day.PistStatus[surface].CurrentRaceID)
	}

	s.state = Reserved
	s.raceID = raceID
	day.PistStatus[surface].IsAvailable = false
	day.PistStatus[surface].CurrentRaceID = raceID

	a.logger.Debug().Str("surface", string(surface)).Str("race_id", raceID).Msg("surface reserved")
	return nil
}

// Release frees the surface unconditionally; releasing a free surface is a
// no-op.
func (a *Allocator) Release(day *domain.RaceDay, surface domain.Surface) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.slots[surface]
	s.state = Free
	s.raceID = ""
	s.resumeRound = 0
	day.PistStatus[surface].IsAvailable = true
	day.PistStatus[surface].CurrentRaceID = ""

	a.logger.Debug().Str("surface", string(surface)).Msg("surface released")
}

// MarkRunning moves a reserved (or resumed) surface into the running state.
func (a *Allocator) MarkRunning(surface domain.Surface) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s := a.slots[surface]; s.state == Reserved || s.state == Paused {
		s.state = Running
	}
}

// Pause suspends the surface's race and records the round index execution
// should resume from.
func (a *Allocator) Pause(surface domain.Surface, roundIndex int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.slots[surface]
	if s.state != Running {
		return
	}
	s.state = Paused
	s.resumeRound = roundIndex

	a.logger.Debug().Str("surface", string(surface)).Int("round", roundIndex).Msg("surface paused")
}

// Resume returns the recorded resume round and moves the surface back to
// running. ok is false when the surface was not paused.
func (a *Allocator) Resume(surface domain.Surface) (roundIndex int, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.slots[surface]
	if s.state != Paused {
		return 0, false
	}
	s.state = Running
	round := s.resumeRound
	s.resumeRound = 0
	return round, true
}

// HeldBy returns the id of the race currently holding the surface, empty
// when the surface is free.
func (a *Allocator) HeldBy(surface domain.Surface) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.slots[surface].raceID
}

func (a *Allocator) IsPaused(surface domain.Surface) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.slots[surface].state == Paused
}

func (a *Allocator) StateOf(surface domain.Surface) State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.slots[surface].state
}

// Reconcile repairs pist bookkeeping from the races themselves, e.g. after a
// persisted day is restored. When nothing is running every surface is forced
// available and all tracking cleared; otherwise each running race reclaims
// its surface and the day's current race index points at the first running
// race. Calling it twice in a row changes nothing the second time.
func (a *Allocator) Reconcile(day *domain.RaceDay) {
	a.mu.Lock()
	defer a.mu.Unlock()

	running := day.RunningRaces()

	if len(running) == 0 {
		for _, surface := range domain.Surfaces {
			a.slots[surface].state = Free
			a.slots[surface].raceID = ""
			a.slots[surface].resumeRound = 0
			day.PistStatus[surface].IsAvailable = true
			day.PistStatus[surface].CurrentRaceID = ""
		}
		return
	}

	claimed := make(map[domain.Surface]bool, len(running))
	for _, idx := range running {
		race := day.Races[idx]
		claimed[race.Surface] = true
		day.PistStatus[race.Surface].IsAvailable = false
		day.PistStatus[race.Surface].CurrentRaceID = race.ID

		s := a.slots[race.Surface]
		s.raceID = race.ID
		// Pause survives reconciliation; anything else is running.
		if s.state != Paused {
			s.state = Running
		}
	}

	for _, surface := range domain.Surfaces {
		if claimed[surface] {
			continue
		}
		a.slots[surface].state = Free
		a.slots[surface].raceID = ""
		a.slots[surface].resumeRound = 0
		day.PistStatus[surface].IsAvailable = true
		day.PistStatus[surface].CurrentRaceID = ""
	}

	day.CurrentRaceIndex = running[0]
}
