package domain

import (
	"sync"
)

type Surface string

const (
	SurfaceGrass Surface = "grass"
	SurfaceSand  Surface = "sand"
)

// Surfaces lists every surface a venue can offer. PistStatus always carries
// an entry for each of them, whether or not the venue uses it.
var Surfaces = []Surface{SurfaceGrass, SurfaceSand}

type Weather string

const (
	WeatherSunny  Weather = "sunny"
	WeatherFoggy  Weather = "foggy"
	WeatherRainy  Weather = "rainy"
	WeatherSnowy  Weather = "snowy"
	WeatherCloudy Weather = "cloudy"
	WeatherWindy  Weather = "windy"
)

// RaceStatus is shared by races and rounds; both walk pending -> running ->
// completed, with reset as the only way back to pending.
type RaceStatus string

const (
	StatusPending   RaceStatus = "pending"
	StatusRunning   RaceStatus = "running"
	StatusCompleted RaceStatus = "completed"
)

type DayStatus string

const (
	DayPending   DayStatus = "pending"
	DayGenerated DayStatus = "generated"
	DayRunning   DayStatus = "running"
	DayCompleted DayStatus = "completed"
)

// RoundDistances are the six fixed round distances in meters, in running order.
var RoundDistances = [6]int{1200, 1400, 1600, 1800, 2000, 2200}

// Horse is supplied by the horse-pool provider and never mutated by the
// race engine. Condition runs 0-100.
type Horse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Condition int    `json:"condition"`
}

// RaceHorse is a live participant in one race. Progress, Speed and Position
// are animation state mutated continuously during round execution.
type RaceHorse struct {
	HorseID    string  `json:"horseId"`
	Horse      Horse   `json:"horse"`
	LaneNumber int     `json:"laneNumber"`
	Position   int     `json:"position"`
	Progress   float64 `json:"progress"`
	Speed      float64 `json:"speed"`
}

// RoundResult is one horse's outcome in a single round. FinishTime is in
// seconds, Speed in km/h.
type RoundResult struct {
	HorseID    string  `json:"horseId"`
	Position   int     `json:"position"`
	FinishTime float64 `json:"finishTime"`
	Speed      float64 `json:"speed"`
}

// RaceResult is one horse's final standing, derived from the last completed
// round. RoundResults carries the horse's full per-round history.
type RaceResult struct {
	HorseID      string        `json:"horseId"`
	Horse        Horse         `json:"horse"`
	Position     int           `json:"position"`
	FinishTime   float64       `json:"finishTime"`
	Speed        float64       `json:"speed"`
	RoundResults []RoundResult `json:"roundResults"`
}

// Round timestamps are unix milliseconds; zero means unset.
type Round struct {
	RoundNumber int           `json:"roundNumber"`
	Distance    int           `json:"distance"`
	Status      RaceStatus    `json:"status"`
	Results     []RoundResult `json:"results,omitempty"`
	StartedAt   int64         `json:"startedAt,omitempty"`
	EndedAt     int64         `json:"endedAt,omitempty"`
}

type Race struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	RaceNumber   int          `json:"raceNumber"`
	StartTime    string       `json:"startTime"`
	Surface      Surface      `json:"surface"`
	Status       RaceStatus   `json:"status"`
	Rounds       []Round      `json:"rounds"`
	Horses       []RaceHorse  `json:"horses"`
	FinalResults []RaceResult `json:"finalResults,omitempty"`
	StartedAt    int64        `json:"startedAt,omitempty"`
	EndedAt      int64        `json:"endedAt,omitempty"`
}

// HorseByID returns the live participant with the given horse id, or nil.
func (r *Race) HorseByID(id string) *RaceHorse {
	for i := range r.Horses {
		if r.Horses[i].HorseID == id {
			return &r.Horses[i]
		}
	}
	return nil
}

type PistState struct {
	IsAvailable   bool   `json:"isAvailable"`
	CurrentRaceID string `json:"currentRaceId,omitempty"`
}

// PistStatus maps each surface to its availability. It always reflects the
// set of races currently running: a surface is unavailable exactly when some
// running race claims it.
type PistStatus map[Surface]*PistState

func NewPistStatus() PistStatus {
	s := make(PistStatus, len(Surfaces))
	for _, surface := range Surfaces {
		s[surface] = &PistState{IsAvailable: true}
	}
	return s
}

type Venue struct {
	Name     string    `json:"name"`
	Location string    `json:"location"`
	Capacity int       `json:"capacity"`
	Surfaces []Surface `json:"surfaces"`
}

// Offers reports whether the venue runs races on the given surface.
func (v Venue) Offers(surface Surface) bool {
	for _, s := range v.Surfaces {
		if s == surface {
			return true
		}
	}
	return false
}

// RaceDay owns its races exclusively; races own their rounds and horses.
// The embedded lock serializes engine mutation against snapshot reads when
// the two surfaces run on separate goroutines.
type RaceDay struct {
	mu sync.RWMutex

	Date              string     `json:"date"`
	Weather           Weather    `json:"weather"`
	Venue             Venue      `json:"venue"`
	Races             []*Race    `json:"races"`
	Status            DayStatus  `json:"status"`
	CurrentRaceIndex  int        `json:"currentRaceIndex"`
	CurrentRoundIndex int        `json:"currentRoundIndex"`
	PistStatus        PistStatus `json:"pistStatus"`
}

func (d *RaceDay) Lock()    { d.mu.Lock() }
func (d *RaceDay) Unlock()  { d.mu.Unlock() }
func (d *RaceDay) RLock()   { d.mu.RLock() }
func (d *RaceDay) RUnlock() { d.mu.RUnlock() }

// Race returns the race at the given index, or nil when out of range.
func (d *RaceDay) Race(index int) *Race {
	if index < 0 || index >= len(d.Races) {
		return nil
	}
	return d.Races[index]
}

// RaceIndexByNumber resolves a 1-based race number to its index, -1 when absent.
func (d *RaceDay) RaceIndexByNumber(number int) int {
	for i, race := range d.Races {
		if race.RaceNumber == number {
			return i
		}
	}
	return -1
}

// RunningRaces returns the indexes of all races currently running.
func (d *RaceDay) RunningRaces() []int {
	var running []int
	for i, race := range d.Races {
		if race.Status == StatusRunning {
			running = append(running, i)
		}
	}
	return running
}

// DayStats is the day-level results rollup.
type DayStats struct {
	TotalRaces      int     `json:"totalRaces"`
	CompletedRaces  int     `json:"completedRaces"`
	TotalHorses     int     `json:"totalHorses"`
	AverageRaceTime float64 `json:"averageRaceTime"`
	FastestHorse    string  `json:"fastestHorse"`
	MostWins        string  `json:"mostWins"`
}
