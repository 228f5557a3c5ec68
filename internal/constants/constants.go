package constants

import "time"

const (
	// RosterSize is the fixed number of horses per race.
	RosterSize = 10
	// RoundCount is the fixed number of rounds per race.
	RoundCount = 6

	DefaultMinRaces     = 7
	DefaultMaxRaces     = 11
	DefaultStartTime    = "13:00"
	DefaultTimeInterval = 30 // minutes between races
)

const (
	// AnimationDuration is the visible length of one round.
	AnimationDuration = 2 * time.Second
	// TickInterval is the cooperative suspension point inside a round.
	TickInterval = 50 * time.Millisecond
	// AnimationSteps is the number of ticks per round animation.
	AnimationSteps = int(AnimationDuration / TickInterval)
	// ResetSettleDelay gives in-flight execution one tick-plus to observe
	// the abort flag before state is force-cleared.
	ResetSettleDelay = 100 * time.Millisecond
)

const (
	// MaxStoredDays caps persisted race days; oldest dates are evicted first.
	MaxStoredDays = 30
)

const (
	// HorsePoolDelay simulates provider latency on the generated pool.
	HorsePoolDelay = 300 * time.Millisecond
	// HorsePoolFailureRate is the simulated transient failure rate.
	HorsePoolFailureRate = 0.01

	ExternalAPITimeout = 10 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)
