// Package events fans race-engine events out to in-process consumers, mainly
// the websocket hub. Publishing never blocks the animation loop: a consumer
// that falls behind loses events rather than stalling the race.
package events

import (
	"sync"
	"time"

	"raceday-tracker/internal/domain"
)

type Type string

const (
	TypeDayGenerated   Type = "day_generated"
	TypeProgress       Type = "progress"
	TypeRoundCompleted Type = "round_completed"
	TypeRaceStarted    Type = "race_started"
	TypeRacePaused     Type = "race_paused"
	TypeRaceCompleted  Type = "race_completed"
	TypeRaceReset      Type = "race_reset"
)

type HorseProgress struct {
	HorseID  string  `json:"horseId"`
	Progress float64 `json:"progress"`
	Speed    float64 `json:"speed"`
	Position int     `json:"position"`
}

type Event struct {
	Type       Type            `json:"type"`
	Date       string          `json:"date,omitempty"`
	RaceID     string          `json:"raceId,omitempty"`
	RaceNumber int             `json:"raceNumber,omitempty"`
	Surface    domain.Surface  `json:"surface,omitempty"`
	Round      int             `json:"round,omitempty"`
	Horses     []HorseProgress `json:"horses,omitempty"`
	Timestamp  int64           `json:"timestamp"`
}

const subscriberBuffer = 256

type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a buffered event channel and a cancel function. Cancel
// must be called exactly once; the channel is closed by it.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber, dropping it for any whose
// buffer is full.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
