package schedule

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"raceday-tracker/internal/constants"
	"raceday-tracker/internal/domain"

	"github.com/rs/zerolog"
)

var (
	// ErrInsufficientHorses means the pool cannot fill a single roster.
	ErrInsufficientHorses = errors.New("not enough horses to fill a roster")
	// ErrInvalidOptions covers callers that pass an impossible race range.
	ErrInvalidOptions = errors.New("invalid generation options")
)

// Options controls race-day generation; zero values take the defaults.
type Options struct {
	MinRaces     int
	MaxRaces     int
	StartTime    string // "HH:MM"
	TimeInterval int    // minutes between races
}

func (o Options) withDefaults() Options {
	if o.MinRaces == 0 {
		o.MinRaces = constants.DefaultMinRaces
	}
	if o.MaxRaces == 0 {
		o.MaxRaces = constants.DefaultMaxRaces
	}
	if o.StartTime == "" {
		o.StartTime = constants.DefaultStartTime
	}
	if o.TimeInterval == 0 {
		o.TimeInterval = constants.DefaultTimeInterval
	}
	return o
}

// Generator builds complete race days from a horse pool and a date.
type Generator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	logger zerolog.Logger
}

func NewGenerator(logger zerolog.Logger) *Generator {
	return &Generator{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger,
	}
}

// Generate produces a fresh RaceDay: race count uniform in [MinRaces,
// MaxRaces], a venue with its surface set, balanced surface assignment,
// unique race names, one 10-horse roster per race and six pending rounds.
func (g *Generator) Generate(horses []domain.Horse, date string, opts Options) (*domain.RaceDay, error) {
	opts = opts.withDefaults()

	if len(horses) < constants.RosterSize {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientHorses, len(horses), constants.RosterSize)
	}
	if opts.MinRaces > opts.MaxRaces || opts.MinRaces < 1 {
		return nil, fmt.Errorf("%w: min %d, max %d", ErrInvalidOptions, opts.MinRaces, opts.MaxRaces)
	}

	base, err := time.Parse("15:04", opts.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: start time %q", ErrInvalidOptions, opts.StartTime)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	raceCount := g.rng.Intn(opts.MaxRaces-opts.MinRaces+1) + opts.MinRaces
	venue := g.pickVenue()
	surfaces := g.assignSurfaces(raceCount, venue.Surfaces)
	names := g.pickRaceNames(raceCount)

	races := make([]*domain.Race, 0, raceCount)
	for i := 0; i < raceCount; i++ {
		rounds := make([]domain.Round, 0, constants.RoundCount)
		for roundIdx, distance := range domain.RoundDistances {
			rounds = append(rounds, domain.Round{
				RoundNumber: roundIdx + 1,
				Distance:    distance,
				Status:      domain.StatusPending,
			})
		}

		races = append(races, &domain.Race{
			ID:         fmt.Sprintf("race-%s-%d", date, i+1),
			Name:       names[i],
			RaceNumber: i + 1,
			StartTime:  base.Add(time.Duration(i*opts.TimeInterval) * time.Minute).Format("15:04"),
			Surface:    surfaces[i],
			Status:     domain.StatusPending,
			Rounds:     rounds,
			Horses:     g.pickRoster(horses),
		})
	}

	day := &domain.RaceDay{
		Date:              date,
		Weather:           weathers[g.rng.Intn(len(weathers))],
		Venue:             venue,
		Races:             races,
		Status:            domain.DayGenerated,
		CurrentRaceIndex:  -1,
		CurrentRoundIndex: 0,
		PistStatus:        domain.NewPistStatus(),
	}

	g.logger.Info().
		Str("date", date).
		Int("races", raceCount).
		Str("venue", venue.Name).
		Str("weather", string(day.Weather)).
		Msg("race day generated")

	return day, nil
}

func (g *Generator) pickVenue() domain.Venue {
	seed := venueSeeds[g.rng.Intn(len(venueSeeds))]

	// 70% of venues run both surfaces; the rest commit to one.
	var surfaces []domain.Surface
	if g.rng.Float64() < 0.7 {
		surfaces = []domain.Surface{domain.SurfaceGrass, domain.SurfaceSand}
	} else {
		surfaces = []domain.Surface{domain.Surfaces[g.rng.Intn(len(domain.Surfaces))]}
	}

	return domain.Venue{
		Name:     seed.name,
		Location: seed.location,
		Capacity: 20000 + g.rng.Intn(60001),
		Surfaces: surfaces,
	}
}

// assignSurfaces guarantees each offered surface at least
// floor(raceCount*0.2) races (minimum 1), distributes the remainder
// round-robin, then shuffles away the positional bias.
func (g *Generator) assignSurfaces(raceCount int, available []domain.Surface) []domain.Surface {
	minPer := raceCount / 5
	if minPer < 1 {
		minPer = 1
	}

	assignment := make([]domain.Surface, 0, raceCount)
	for _, surface := range available {
		for i := 0; i < minPer && len(assignment) < raceCount; i++ {
			assignment = append(assignment, surface)
		}
	}
	for i := 0; len(assignment) < raceCount; i++ {
		assignment = append(assignment, available[i%len(available)])
	}

	g.rng.Shuffle(len(assignment), func(i, j int) {
		assignment[i], assignment[j] = assignment[j], assignment[i]
	})
	return assignment
}

func (g *Generator) pickRaceNames(count int) []string {
	shuffled := make([]string, len(raceNames))
	copy(shuffled, raceNames)
	g.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	// The pool holds 50 names; a day never exceeds 11 races, but guard the
	// custom-options path anyway.
	names := make([]string, count)
	for i := range names {
		if i < len(shuffled) {
			names[i] = shuffled[i]
		} else {
			names[i] = fmt.Sprintf("%s II", shuffled[i%len(shuffled)])
		}
	}
	return names
}

// pickRoster draws 10 distinct horses from the pool; lanes follow selection
// order. Different races may reuse the same horse.
func (g *Generator) pickRoster(horses []domain.Horse) []domain.RaceHorse {
	indexes := g.rng.Perm(len(horses))[:constants.RosterSize]

	roster := make([]domain.RaceHorse, 0, constants.RosterSize)
	for lane, idx := range indexes {
		roster = append(roster, domain.RaceHorse{
			HorseID:    horses[idx].ID,
			Horse:      horses[idx],
			LaneNumber: lane + 1,
		})
	}
	return roster
}
