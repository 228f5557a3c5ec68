package pool

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"raceday-tracker/internal/constants"
	"raceday-tracker/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type seedHorse struct {
	name      string
	color     string
	condition int
}

var seedHorses = []seedHorse{
	{"Ada Lovelace", "#ef4444", 80},
	{"Grace Hopper", "#3b82f6", 45},
	{"Margaret Hamilton", "#f59e0b", 60},
	{"Joan Clarke", "#10b981", 95},
	{"Katherine Johnson", "#8b5cf6", 88},
	{"Dorothy Vaughan", "#f97316", 72},
	{"Mary Jackson", "#06b6d4", 83},
	{"Annie Easley", "#84cc16", 67},
	{"Frances Spence", "#ec4899", 91},
	{"Betty Holberton", "#22c55e", 78},
	{"Jean Bartik", "#6366f1", 85},
	{"Marlyn Meltzer", "#14b8a6", 69},
	{"Ruth Teitelbaum", "#fbbf24", 94},
	{"Kay McNulty", "#a855f7", 76},
	{"Frances Bilas", "#64748b", 82},
	{"Betty Jean Jennings", "#e2e8f0", 87},
	{"Ruth Lichterman", "#475569", 73},
	{"Elaine Spielman", "#cbd5e1", 89},
	{"Marlyn Wescoff", "#dc2626", 77},
	{"Doris Polsky", "#1e40af", 81},
}

// StaticProvider serves a fixed generated pool with simulated latency and a
// small transient failure rate, standing in for a real horse service.
type StaticProvider struct {
	mu     sync.RWMutex
	horses []domain.Horse

	rng         *rand.Rand
	rngMu       sync.Mutex
	delay       time.Duration
	failureRate float64
	logger      zerolog.Logger
}

func NewStaticProvider(logger zerolog.Logger) *StaticProvider {
	horses := make([]domain.Horse, 0, len(seedHorses))
	for _, seed := range seedHorses {
		id, err := gonanoid.New()
		if err != nil {
			// nanoid only fails when the OS entropy source does
			id = fmt.Sprintf("horse-%d", len(horses)+1)
		}
		horses = append(horses, domain.Horse{
			ID:        id,
			Name:      seed.name,
			Color:     seed.color,
			Condition: seed.condition,
		})
	}

	return &StaticProvider{
		horses:      horses,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		delay:       constants.HorsePoolDelay,
		failureRate: constants.HorsePoolFailureRate,
		logger:      logger,
	}
}

// FetchHorses returns a copy of the pool. The caller owns the slice; the
// provider's own records only change through UpdateCondition.
func (p *StaticProvider) FetchHorses(ctx context.Context) ([]domain.Horse, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	if p.roll() < p.failureRate {
		p.logger.Warn().Msg("simulated horse pool failure")
		return nil, fmt.Errorf("fetch horses: %w", ErrPoolUnavailable)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.Horse, len(p.horses))
	copy(out, p.horses)
	return out, nil
}

func (p *StaticProvider) HorseByID(ctx context.Context, id string) (domain.Horse, error) {
	horses, err := p.FetchHorses(ctx)
	if err != nil {
		return domain.Horse{}, err
	}
	for _, h := range horses {
		if h.ID == id {
			return h, nil
		}
	}
	return domain.Horse{}, fmt.Errorf("horse %s: %w", id, ErrHorseNotFound)
}

// UpdateCondition is the external condition mutation path; the race engine
// itself never changes a horse.
func (p *StaticProvider) UpdateCondition(id string, condition int) error {
	if condition < 0 || condition > 100 {
		return fmt.Errorf("condition %d out of range", condition)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.horses {
		if p.horses[i].ID == id {
			p.horses[i].Condition = condition
			return nil
		}
	}
	return fmt.Errorf("horse %s: %w", id, ErrHorseNotFound)
}

func (p *StaticProvider) wait(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.delay):
		return nil
	}
}

func (p *StaticProvider) roll() float64 {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return p.rng.Float64()
}
