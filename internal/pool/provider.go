package pool

import (
	"context"
	"errors"

	"raceday-tracker/internal/config"
	"raceday-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// ErrPoolUnavailable is the transient fetch failure surfaced by providers.
// Callers may retry; the engine propagates it without partial mutation.
var ErrPoolUnavailable = errors.New("horse pool unavailable")

// ErrHorseNotFound is returned for lookups of unknown horse ids.
var ErrHorseNotFound = errors.New("horse not found")

// Provider supplies the opaque horse pool the race engine draws rosters from.
type Provider interface {
	FetchHorses(ctx context.Context) ([]domain.Horse, error)
}

// NewProvider picks the remote pool when HORSE_POOL_URL is configured and the
// built-in generated pool otherwise.
func NewProvider(cfg *config.Config, logger zerolog.Logger) Provider {
	if cfg.HorsePoolURL != "" {
		logger.Info().Str("url", cfg.HorsePoolURL).Msg("using remote horse pool")
		return NewClient(cfg.HorsePoolURL)
	}
	return NewStaticProvider(logger)
}
