package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"raceday-tracker/internal/domain"
	"raceday-tracker/internal/engine"
	"raceday-tracker/internal/events"
	"raceday-tracker/internal/pist"
	"raceday-tracker/internal/pool"
	"raceday-tracker/internal/repository"
	"raceday-tracker/internal/schedule"
	"raceday-tracker/internal/service"
	"raceday-tracker/internal/simulate"

	"github.com/rs/zerolog"
)

type staticPool []domain.Horse

func (p staticPool) FetchHorses(context.Context) ([]domain.Horse, error) { return p, nil }

var _ pool.Provider = staticPool(nil)

func testServer(t *testing.T) *Server {
	t.Helper()

	horses := make(staticPool, 0, 20)
	for i := 0; i < 20; i++ {
		horses = append(horses, domain.Horse{
			ID:        fmt.Sprintf("h%d", i+1),
			Name:      fmt.Sprintf("Horse %d", i+1),
			Color:     "#ffffff",
			Condition: 60,
		})
	}

	logger := zerolog.Nop()
	alloc := pist.NewAllocator(logger)
	bus := events.NewBus()
	board := service.NewBoard(
		horses,
		schedule.NewGenerator(logger),
		engine.NewController(alloc, simulate.NewExecutor(), bus, logger),
		alloc,
		repository.NewRaceDayRepository(repository.NewMemoryBackend(), logger),
		bus,
		logger,
	)
	return NewServer(board, NewHub(bus, logger), logger)
}

func TestHandleHorses(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/horses", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body)
	}
	var horses []domain.Horse
	if err := json.NewDecoder(rec.Body).Decode(&horses); err != nil {
		t.Fatal(err)
	}
	if len(horses) != 20 {
		t.Errorf("got %d horses", len(horses))
	}
}

func TestHandleGenerate(t *testing.T) {
	srv := testServer(t)
	router := srv.Router()

	body := strings.NewReader(`{"day":"2025-07-05","minRaces":7,"maxRaces":7}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/raceday/generate", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body)
	}
	var day domain.RaceDay
	if err := json.NewDecoder(rec.Body).Decode(&day); err != nil {
		t.Fatal(err)
	}
	if day.Date != "2025-07-05" {
		t.Errorf("day date %s", day.Date)
	}
	if len(day.Races) != 7 {
		t.Errorf("got %d races, want 7", len(day.Races))
	}

	// The generated day is now served for its date.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/raceday?day=2025-07-05", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d on fetch", rec.Code)
	}
}

func TestHandleGenerateBadOptions(t *testing.T) {
	srv := testServer(t)

	body := strings.NewReader(`{"day":"2025-07-05","minRaces":9,"maxRaces":8}`)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/raceday/generate", body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestRaceActionErrors(t *testing.T) {
	srv := testServer(t)
	router := srv.Router()

	cases := []struct {
		name   string
		path   string
		status int
	}{
		{"no day loaded", "/api/v1/races/1/start", http.StatusNotFound},
		{"bad race number", "/api/v1/races/abc/start", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tc.path, nil))
			if rec.Code != tc.status {
				t.Errorf("status %d, want %d (body %s)", rec.Code, tc.status, rec.Body)
			}
		})
	}
}

func TestStatsBeforeGenerate(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/raceday/stats", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rec.Code)
	}
}

func TestPauseUnknownRaceNumber(t *testing.T) {
	srv := testServer(t)
	router := srv.Router()

	body := strings.NewReader(`{"day":"2025-07-05"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/raceday/generate", body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate failed: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/races/99/pause", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status %d, want 404 for an unknown race number", rec.Code)
	}
}
