package repository

import (
	"context"
	"encoding/json"

	"raceday-tracker/internal/constants"
	"raceday-tracker/internal/domain"

	"github.com/rs/zerolog"
)

// RaceDayRepository is the persistence adapter: date-keyed RaceDay snapshots
// with bounded retention. Storage failures never reach the caller: a failed
// read is a miss, a failed write is logged and dropped. The engine keeps
// running either way.
type RaceDayRepository struct {
	backend   Backend
	logger    zerolog.Logger
	retention int
}

func NewRaceDayRepository(backend Backend, logger zerolog.Logger) *RaceDayRepository {
	return &RaceDayRepository{
		backend:   backend,
		logger:    logger,
		retention: constants.MaxStoredDays,
	}
}

// Save upserts the day's snapshot and evicts the oldest dates beyond the
// retention cap.
func (r *RaceDayRepository) Save(ctx context.Context, date string, day *domain.RaceDay) {
	snapshot, err := json.Marshal(day)
	if err != nil {
		r.logger.Error().Err(err).Str("date", date).Msg("failed to marshal race day")
		return
	}

	if err := r.backend.Set(ctx, date, string(snapshot)); err != nil {
		r.logger.Error().Err(err).Str("date", date).Msg("failed to save race day")
		return
	}

	r.evictOldest(ctx)
}

// Load returns the stored day for the date, or (nil, false) when absent or
// unreadable.
func (r *RaceDayRepository) Load(ctx context.Context, date string) (*domain.RaceDay, bool) {
	snapshot, err := r.backend.Get(ctx, date)
	if err != nil {
		return nil, false
	}

	var day domain.RaceDay
	if err := json.Unmarshal([]byte(snapshot), &day); err != nil {
		r.logger.Warn().Err(err).Str("date", date).Msg("corrupt race day snapshot, treating as absent")
		return nil, false
	}
	return &day, true
}

// Clear drops the stored snapshot for the date.
func (r *RaceDayRepository) Clear(ctx context.Context, date string) {
	if err := r.backend.Remove(ctx, date); err != nil {
		r.logger.Error().Err(err).Str("date", date).Msg("failed to clear race day")
	}
}

func (r *RaceDayRepository) evictOldest(ctx context.Context) {
	dates, err := r.backend.Dates(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to list stored race days")
		return
	}
	if len(dates) <= r.retention {
		return
	}

	// Dates sort lexicographically as YYYY-MM-DD, so the head is the oldest.
	for _, date := range dates[:len(dates)-r.retention] {
		if err := r.backend.Remove(ctx, date); err != nil {
			r.logger.Error().Err(err).Str("date", date).Msg("failed to evict race day")
			continue
		}
		r.logger.Debug().Str("date", date).Msg("evicted old race day")
	}
}
