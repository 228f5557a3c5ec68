package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"raceday-tracker/internal/domain"
	"raceday-tracker/internal/events"
	"raceday-tracker/internal/pist"
	"raceday-tracker/internal/simulate"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func noWait(context.Context, time.Duration) error { return nil }

// shortWait keeps the tick loop observable without real animation pacing.
func shortWait(ctx context.Context, _ time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Millisecond):
		return nil
	}
}

func newTestController(wait WaitFunc) *Controller {
	c := NewController(
		pist.NewAllocator(zerolog.Nop()),
		simulate.NewExecutor(),
		events.NewBus(),
		zerolog.Nop(),
	)
	c.wait = wait
	return c
}

func testRace(id string, number int, surface domain.Surface) *domain.Race {
	rounds := make([]domain.Round, 0, len(domain.RoundDistances))
	for i, distance := range domain.RoundDistances {
		rounds = append(rounds, domain.Round{RoundNumber: i + 1, Distance: distance, Status: domain.StatusPending})
	}

	horses := make([]domain.RaceHorse, 0, 10)
	for i := 0; i < 10; i++ {
		horseID := fmt.Sprintf("%s-horse-%d", id, i+1)
		horses = append(horses, domain.RaceHorse{
			HorseID:    horseID,
			Horse:      domain.Horse{ID: horseID, Name: fmt.Sprintf("Horse %d", i+1), Condition: 30 + i*7},
			LaneNumber: i + 1,
		})
	}

	return &domain.Race{
		ID:         id,
		Name:       id,
		RaceNumber: number,
		Surface:    surface,
		Status:     domain.StatusPending,
		Rounds:     rounds,
		Horses:     horses,
	}
}

func testDay(races ...*domain.Race) *domain.RaceDay {
	return &domain.RaceDay{
		Date:             "2025-07-05",
		Races:            races,
		Status:           domain.DayGenerated,
		CurrentRaceIndex: -1,
		PistStatus:       domain.NewPistStatus(),
	}
}

func TestStartCompletesRace(t *testing.T) {
	c := newTestController(noWait)
	day := testDay(testRace("race-1", 1, domain.SurfaceGrass))

	if err := c.Start(context.Background(), day, 0); err != nil {
		t.Fatal(err)
	}

	race := day.Races[0]
	if race.Status != domain.StatusCompleted {
		t.Fatalf("race status %s, want completed", race.Status)
	}
	for i, round := range race.Rounds {
		if round.Status != domain.StatusCompleted {
			t.Errorf("round %d status %s", i+1, round.Status)
		}
		if len(round.Results) != 10 {
			t.Errorf("round %d has %d results", i+1, len(round.Results))
		}
	}

	if len(race.FinalResults) != 10 {
		t.Fatalf("final results len %d", len(race.FinalResults))
	}
	last := race.Rounds[len(race.Rounds)-1].Results
	for i, res := range race.FinalResults {
		if res.Position != i+1 {
			t.Errorf("final result %d has position %d", i, res.Position)
		}
		if res.HorseID != last[i].HorseID {
			t.Errorf("final result %d horse %s, want %s from the last round", i, res.HorseID, last[i].HorseID)
		}
		if len(res.RoundResults) != len(race.Rounds) {
			t.Errorf("horse %s history covers %d rounds", res.HorseID, len(res.RoundResults))
		}
	}

	for _, horse := range race.Horses {
		if horse.Progress != 100 {
			t.Errorf("horse %s progress %f after completion", horse.HorseID, horse.Progress)
		}
	}
	if !day.PistStatus[domain.SurfaceGrass].IsAvailable {
		t.Error("grass not released after completion")
	}
	if day.Status != domain.DayCompleted {
		t.Errorf("day status %s, want completed", day.Status)
	}
}

func TestStartUnknownRace(t *testing.T) {
	c := newTestController(noWait)
	day := testDay(testRace("race-1", 1, domain.SurfaceGrass))

	if err := c.Start(context.Background(), day, 5); !errors.Is(err, ErrRaceNotFound) {
		t.Fatalf("got %v, want ErrRaceNotFound", err)
	}
}

func TestStartCompletedRace(t *testing.T) {
	c := newTestController(noWait)
	day := testDay(testRace("race-1", 1, domain.SurfaceGrass))

	if err := c.Start(context.Background(), day, 0); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(context.Background(), day, 0); !errors.Is(err, ErrRaceCompleted) {
		t.Fatalf("got %v, want ErrRaceCompleted", err)
	}
}

func TestStartSurfaceConflict(t *testing.T) {
	c := newTestController(nil)
	day := testDay(
		testRace("race-1", 1, domain.SurfaceGrass),
		testRace("race-2", 2, domain.SurfaceGrass),
	)

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	c.wait = func(context.Context, time.Duration) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(context.Background(), day, 0) }()
	<-started

	if err := c.Start(context.Background(), day, 1); !errors.Is(err, pist.ErrSurfaceUnavailable) {
		t.Errorf("got %v, want ErrSurfaceUnavailable for a race on the busy surface", err)
	}
	if err := c.Start(context.Background(), day, 0); !errors.Is(err, ErrRaceAlreadyRunning) {
		t.Errorf("got %v, want ErrRaceAlreadyRunning for the running race", err)
	}

	day.RLock()
	if day.Races[1].Status != domain.StatusPending {
		t.Errorf("rejected race status %s, want pending", day.Races[1].Status)
	}
	if got := day.PistStatus[domain.SurfaceGrass].CurrentRaceID; got != "race-1" {
		t.Errorf("grass tracks race %q, want race-1", got)
	}
	day.RUnlock()

	close(release)
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
}

func TestPauseThenResume(t *testing.T) {
	c := newTestController(shortWait)
	day := testDay(testRace("race-1", 1, domain.SurfaceGrass))
	race := day.Races[0]

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(context.Background(), day, 0) }()

	// Let execution get past the first two rounds before pausing.
	deadline := time.After(5 * time.Second)
	for {
		day.RLock()
		round := day.CurrentRoundIndex
		day.RUnlock()
		if round >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("race never reached round three")
		case <-time.After(time.Millisecond):
		}
	}

	if err := c.Pause(day, 0); err != nil {
		t.Fatal(err)
	}
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}

	day.RLock()
	pausedRound := day.CurrentRoundIndex
	if race.Status != domain.StatusRunning {
		t.Errorf("race status %s while paused, want running", race.Status)
	}
	if day.PistStatus[domain.SurfaceGrass].IsAvailable {
		t.Error("grass released by pause")
	}
	completedBefore := make(map[int][]domain.RoundResult)
	for i, round := range race.Rounds {
		if round.Status == domain.StatusCompleted {
			completedBefore[i] = append([]domain.RoundResult(nil), round.Results...)
		}
	}
	day.RUnlock()

	// Pausing twice is harmless.
	if err := c.Pause(day, 0); err != nil {
		t.Fatal(err)
	}

	c.wait = noWait
	if err := c.Start(context.Background(), day, 0); err != nil {
		t.Fatalf("resume: %v", err)
	}

	day.RLock()
	defer day.RUnlock()
	if race.Status != domain.StatusCompleted {
		t.Fatalf("race status %s after resume, want completed", race.Status)
	}
	for i, round := range race.Rounds {
		if round.Status != domain.StatusCompleted {
			t.Errorf("round %d status %s after resume", i+1, round.Status)
		}
	}
	if pausedRound >= len(race.Rounds) {
		t.Fatalf("paused round index %d out of range", pausedRound)
	}
	// Rounds finished before the pause keep their original outcomes.
	for i, want := range completedBefore {
		if diff := cmp.Diff(want, race.Rounds[i].Results); diff != "" {
			t.Errorf("round %d re-simulated after resume (-before +after):\n%s", i+1, diff)
		}
	}
}

func TestResumeWaitsForPausedLoop(t *testing.T) {
	c := newTestController(nil)
	day := testDay(testRace("race-1", 1, domain.SurfaceGrass))
	race := day.Races[0]

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	c.wait = func(context.Context, time.Duration) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(context.Background(), day, 0) }()
	<-started

	// The loop is blocked mid-tick and has not observed the pause yet.
	if err := c.Pause(day, 0); err != nil {
		t.Fatal(err)
	}

	resumeCh := make(chan error, 1)
	go func() { resumeCh <- c.Start(context.Background(), day, 0) }()

	// Resume must not drive rounds while the suspended loop still owns the
	// surface.
	select {
	case err := <-resumeCh:
		t.Fatalf("resume ran before the paused loop exited: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
	if err := <-resumeCh; err != nil {
		t.Fatal(err)
	}

	day.RLock()
	defer day.RUnlock()
	if race.Status != domain.StatusCompleted {
		t.Fatalf("race status %s after resume, want completed", race.Status)
	}
}

func TestPauseNotRunning(t *testing.T) {
	c := newTestController(noWait)
	day := testDay(testRace("race-1", 1, domain.SurfaceSand))

	if err := c.Pause(day, 0); !errors.Is(err, ErrRaceNotRunning) {
		t.Fatalf("got %v, want ErrRaceNotRunning", err)
	}
}

func TestResetCompletedRace(t *testing.T) {
	c := newTestController(noWait)
	day := testDay(testRace("race-1", 1, domain.SurfaceGrass))
	race := day.Races[0]

	if err := c.Start(context.Background(), day, 0); err != nil {
		t.Fatal(err)
	}
	if err := c.Reset(context.Background(), day, 0); err != nil {
		t.Fatal(err)
	}

	if race.Status != domain.StatusPending {
		t.Fatalf("race status %s after reset, want pending", race.Status)
	}
	if race.FinalResults != nil {
		t.Error("final results survived reset")
	}
	if race.StartedAt != 0 || race.EndedAt != 0 {
		t.Error("race timestamps survived reset")
	}
	for i, round := range race.Rounds {
		if round.Status != domain.StatusPending || round.Results != nil {
			t.Errorf("round %d not cleared: status %s, %d results", i+1, round.Status, len(round.Results))
		}
	}
	for _, horse := range race.Horses {
		if horse.Progress != 0 || horse.Speed != 0 || horse.Position != 0 {
			t.Errorf("horse %s live fields survived reset", horse.HorseID)
		}
	}
	if !day.PistStatus[domain.SurfaceGrass].IsAvailable {
		t.Error("grass not released by reset")
	}
	if day.CurrentRoundIndex != 0 {
		t.Errorf("current round index %d after reset, want 0", day.CurrentRoundIndex)
	}
	if day.Status != domain.DayGenerated {
		t.Errorf("day status %s after reset, want generated", day.Status)
	}

	// Reset races run again from round one.
	if err := c.Start(context.Background(), day, 0); err != nil {
		t.Fatalf("restart after reset: %v", err)
	}
	if race.Status != domain.StatusCompleted {
		t.Errorf("race status %s after restart, want completed", race.Status)
	}
}

func TestResetPendingRace(t *testing.T) {
	c := newTestController(noWait)
	day := testDay(testRace("race-1", 1, domain.SurfaceSand))

	if err := c.Reset(context.Background(), day, 0); err != nil {
		t.Fatal(err)
	}
	if day.Races[0].Status != domain.StatusPending {
		t.Errorf("race status %s, want pending", day.Races[0].Status)
	}
	if !day.PistStatus[domain.SurfaceSand].IsAvailable {
		t.Error("sand unavailable after resetting a pending race")
	}
}

func TestResetPendingLeavesNeighborRunning(t *testing.T) {
	c := newTestController(nil)
	day := testDay(
		testRace("race-1", 1, domain.SurfaceGrass),
		testRace("race-2", 2, domain.SurfaceGrass),
	)

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	c.wait = func(context.Context, time.Duration) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(context.Background(), day, 0) }()
	<-started

	// Resetting the pending race sharing grass must not abort race-1's loop.
	if err := c.Reset(context.Background(), day, 1); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errCh:
		t.Fatalf("running race stopped by resetting its pending neighbor: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	day.RLock()
	if day.Races[0].Status != domain.StatusRunning {
		t.Errorf("running race status %s after neighbor reset, want running", day.Races[0].Status)
	}
	if day.Races[1].Status != domain.StatusPending {
		t.Errorf("reset race status %s, want pending", day.Races[1].Status)
	}
	if got := day.PistStatus[domain.SurfaceGrass].CurrentRaceID; got != "race-1" {
		t.Errorf("grass tracks race %q after neighbor reset, want race-1", got)
	}
	day.RUnlock()

	close(release)
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}

	day.RLock()
	status := day.Races[0].Status
	day.RUnlock()
	if status != domain.StatusCompleted {
		t.Fatalf("running race status %s after release, want completed", status)
	}

	// The reset race stays startable once the surface frees up.
	if err := c.Start(context.Background(), day, 1); err != nil {
		t.Fatalf("start after neighbor completed: %v", err)
	}
}

func TestResetAbortsRunningRace(t *testing.T) {
	c := newTestController(shortWait)
	day := testDay(testRace("race-1", 1, domain.SurfaceGrass))
	race := day.Races[0]

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(context.Background(), day, 0) }()

	deadline := time.After(5 * time.Second)
	for {
		day.RLock()
		status := race.Status
		day.RUnlock()
		if status == domain.StatusRunning {
			break
		}
		select {
		case <-deadline:
			t.Fatal("race never started running")
		case <-time.After(time.Millisecond):
		}
	}

	if err := c.Reset(context.Background(), day, 0); err != nil {
		t.Fatal(err)
	}
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}

	// The execution loop has exited; a second reset settles the final state.
	if err := c.Reset(context.Background(), day, 0); err != nil {
		t.Fatal(err)
	}

	day.RLock()
	defer day.RUnlock()
	if race.Status != domain.StatusPending {
		t.Errorf("race status %s after reset, want pending", race.Status)
	}
	for _, horse := range race.Horses {
		if horse.Progress != 0 {
			t.Errorf("horse %s progress %f after reset", horse.HorseID, horse.Progress)
		}
	}
	if !day.PistStatus[domain.SurfaceGrass].IsAvailable {
		t.Error("grass unavailable after reset")
	}
}

func TestExecuteDay(t *testing.T) {
	c := newTestController(noWait)
	day := testDay(
		testRace("race-1", 1, domain.SurfaceGrass),
		testRace("race-2", 2, domain.SurfaceSand),
		testRace("race-3", 3, domain.SurfaceGrass),
	)

	if err := c.ExecuteDay(context.Background(), day); err != nil {
		t.Fatal(err)
	}

	for _, race := range day.Races {
		if race.Status != domain.StatusCompleted {
			t.Errorf("race %s status %s, want completed", race.ID, race.Status)
		}
		if len(race.FinalResults) != 10 {
			t.Errorf("race %s final results len %d", race.ID, len(race.FinalResults))
		}
	}
	if day.Status != domain.DayCompleted {
		t.Errorf("day status %s, want completed", day.Status)
	}
	for _, surface := range domain.Surfaces {
		if !day.PistStatus[surface].IsAvailable {
			t.Errorf("surface %s unavailable after the day completed", surface)
		}
	}
}

func TestAdvanceTick(t *testing.T) {
	race := testRace("race-1", 1, domain.SurfaceGrass)
	results := []domain.RoundResult{
		{HorseID: race.Horses[0].HorseID, Position: 1, FinishTime: 50, Speed: 80},
		{HorseID: race.Horses[1].HorseID, Position: 2, FinishTime: 100, Speed: 60},
	}

	AdvanceTick(race, results, 0, 40)
	if race.Horses[0].Progress != 0 || race.Horses[1].Progress != 0 {
		t.Errorf("progress at step 0: %f, %f", race.Horses[0].Progress, race.Horses[1].Progress)
	}

	// Halfway: the faster horse (half the slowest finish time) is done, the
	// slowest is at 50%.
	AdvanceTick(race, results, 20, 40)
	if race.Horses[0].Progress != 100 {
		t.Errorf("fast horse progress %f at halfway, want 100", race.Horses[0].Progress)
	}
	if race.Horses[1].Progress != 50 {
		t.Errorf("slow horse progress %f at halfway, want 50", race.Horses[1].Progress)
	}
	if race.Horses[0].Position != 1 || race.Horses[1].Position != 2 {
		t.Error("tick did not apply result positions")
	}
	if race.Horses[0].Speed != 80 {
		t.Errorf("tick speed %f, want 80", race.Horses[0].Speed)
	}

	AdvanceTick(race, results, 40, 40)
	if race.Horses[0].Progress != 100 || race.Horses[1].Progress != 100 {
		t.Errorf("progress at final step: %f, %f", race.Horses[0].Progress, race.Horses[1].Progress)
	}
}
