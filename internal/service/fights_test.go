package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ToppleTheNun/mchammer-sub000/internal/api"
	"github.com/ToppleTheNun/mchammer-sub000/internal/constants"
	"github.com/ToppleTheNun/mchammer-sub000/internal/domain"
	"github.com/rs/zerolog"
)

// fakeFightRepository mirrors the tolerance-window matching of the
// real repository in memory.
type fakeFightRepository struct {
	fights  []domain.Fight
	created int
}

func (f *fakeFightRepository) FindMatching(ctx context.Context, fight domain.Fight) (*domain.Fight, error) {
	for i, existing := range f.fights {
		if abs64(existing.StartTime-fight.StartTime) <= constants.ReconcileToleranceMillis &&
			abs64(existing.EndTime-fight.EndTime) <= constants.ReconcileToleranceMillis &&
			existing.EncounterID == fight.EncounterID &&
			existing.Difficulty == fight.Difficulty &&
			existing.FriendlyPlayers == fight.FriendlyPlayers &&
			existing.Region == fight.Region {
			return &f.fights[i], nil
		}
	}
	return nil, nil
}

func (f *fakeFightRepository) Create(ctx context.Context, fight domain.Fight) (*domain.Fight, error) {
	f.created++
	fight.ID = int64(len(f.fights) + 1)
	f.fights = append(f.fights, fight)
	return &f.fights[len(f.fights)-1], nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// seasonStart returns an absolute timestamp safely inside the first
// season's US window.
func seasonStart() int64 {
	return time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
}

func fightsTestSource(fights []api.Fight, tanks []api.PlayerDetail) *fakeLogSource {
	return &fakeLogSource{
		reportFights: func(ctx context.Context, code string) (*api.ReportFights, error) {
			return &api.ReportFights{
				Code:      code,
				Title:     "Weekly clear",
				Region:    "US",
				StartTime: seasonStart(),
				EndTime:   seasonStart() + 3_600_000,
				Fights:    fights,
			}, nil
		},
		playerDetails: func(ctx context.Context, code string, fightIDs []int) (*api.PlayerDetails, error) {
			return &api.PlayerDetails{Tanks: tanks}, nil
		},
	}
}

func TestIngestFightsFromReport_ReportNotFound(t *testing.T) {
	source := &fakeLogSource{
		reportFights: func(ctx context.Context, code string) (*api.ReportFights, error) {
			return nil, nil
		},
	}

	svc := NewFightService(source, &fakeFightRepository{}, zerolog.Nop())
	_, err := svc.IngestFightsFromReport(context.Background(), "aBcDeFgH12345678")
	if !errors.Is(err, ErrReportNotFound) {
		t.Errorf("Expected ErrReportNotFound, got %v", err)
	}
}

func TestIngestFightsFromReport_UnknownRegion(t *testing.T) {
	source := &fakeLogSource{
		reportFights: func(ctx context.Context, code string) (*api.ReportFights, error) {
			return &api.ReportFights{Code: code, Region: "XX"}, nil
		},
	}

	svc := NewFightService(source, &fakeFightRepository{}, zerolog.Nop())
	_, err := svc.IngestFightsFromReport(context.Background(), "aBcDeFgH12345678")
	if !errors.Is(err, ErrUnknownRegion) {
		t.Errorf("Expected ErrUnknownRegion, got %v", err)
	}
}

func TestIngestFightsFromReport_DropsZeroDifficultyFights(t *testing.T) {
	fights := []api.Fight{
		{ID: 1, StartTime: 0, EndTime: 100_000, EncounterID: 2902, Difficulty: 0},
		{ID: 2, StartTime: 200_000, EndTime: 300_000, EncounterID: 2902, Difficulty: 5},
	}
	tanks := []api.PlayerDetail{{ID: 3, GUID: 1001, Name: "Threatful", Server: "Area 52", Type: "Warrior", Fights: []int{1, 2}}}

	source := fightsTestSource(fights, tanks)
	repo := &fakeFightRepository{}
	svc := NewFightService(source, repo, zerolog.Nop())

	result, err := svc.IngestFightsFromReport(context.Background(), "aBcDeFgH12345678")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(result.Fights) != 1 {
		t.Fatalf("Expected 1 ingested fight, got %d", len(result.Fights))
	}
	if result.Fights[0].FightID != 2 {
		t.Errorf("Expected fight 2 to survive, got %d", result.Fights[0].FightID)
	}
}

func TestIngestFightsFromReport_DropsFightsOutsideSeasons(t *testing.T) {
	fights := []api.Fight{
		{ID: 1, StartTime: 0, EndTime: 100_000, EncounterID: 999999, Difficulty: 5},
		{ID: 2, StartTime: 200_000, EndTime: 300_000, EncounterID: 2902, Difficulty: 5},
	}
	tanks := []api.PlayerDetail{{ID: 3, GUID: 1001, Name: "Threatful", Server: "Area 52", Type: "Warrior", Fights: []int{1, 2}}}

	svc := NewFightService(fightsTestSource(fights, tanks), &fakeFightRepository{}, zerolog.Nop())
	result, err := svc.IngestFightsFromReport(context.Background(), "aBcDeFgH12345678")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(result.Fights) != 1 {
		t.Fatalf("Expected 1 ingested fight, got %d", len(result.Fights))
	}
	if result.Fights[0].EncounterID != 2902 {
		t.Errorf("Expected season encounter 2902, got %d", result.Fights[0].EncounterID)
	}
}

func TestIngestFightsFromReport_BuildsSortedRosterFingerprint(t *testing.T) {
	fights := []api.Fight{{ID: 1, StartTime: 0, EndTime: 100_000, EncounterID: 2902, Difficulty: 5}}
	tanks := []api.PlayerDetail{
		{ID: 4, GUID: 2002, Name: "Shieldy", Server: "Illidan", Type: "Paladin", Fights: []int{1}},
		{ID: 3, GUID: 1001, Name: "Threatful", Server: "Area 52", Type: "Warrior", Fights: []int{1}},
	}

	svc := NewFightService(fightsTestSource(fights, tanks), &fakeFightRepository{}, zerolog.Nop())
	result, err := svc.IngestFightsFromReport(context.Background(), "aBcDeFgH12345678")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(result.Fights) != 1 {
		t.Fatalf("Expected 1 ingested fight, got %d", len(result.Fights))
	}
	if result.Fights[0].FriendlyPlayers != "1001:2002" {
		t.Errorf("Expected fingerprint 1001:2002, got %q", result.Fights[0].FriendlyPlayers)
	}
	if result.Fights[0].Persisted.FriendlyPlayers != "1001:2002" {
		t.Errorf("Expected persisted fingerprint 1001:2002, got %q", result.Fights[0].Persisted.FriendlyPlayers)
	}
}

func TestIngestFightsFromReport_ReusesMatchingFightWithinTolerance(t *testing.T) {
	fights := []api.Fight{{ID: 1, StartTime: 0, EndTime: 100_000, EncounterID: 2902, Difficulty: 5}}
	tanks := []api.PlayerDetail{{ID: 3, GUID: 1001, Name: "Threatful", Server: "Area 52", Type: "Warrior", Fights: []int{1}}}

	repo := &fakeFightRepository{}
	repo.fights = append(repo.fights, domain.Fight{
		ID:              7,
		FirstSeenReport: "zYxWvUtS87654321",
		StartTime:       seasonStart() + 3_000, // inside the tolerance window
		EndTime:         seasonStart() + 100_000 + 3_000,
		Difficulty:      5,
		EncounterID:     2902,
		FriendlyPlayers: "1001",
		Region:          "US",
	})

	svc := NewFightService(fightsTestSource(fights, tanks), repo, zerolog.Nop())
	result, err := svc.IngestFightsFromReport(context.Background(), "aBcDeFgH12345678")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if repo.created != 0 {
		t.Errorf("Expected no inserts, got %d", repo.created)
	}
	if len(result.Fights) != 1 || result.Fights[0].Persisted.ID != 7 {
		t.Errorf("Expected fight to reconcile to persisted row 7, got %+v", result.Fights)
	}
}

func TestIngestFightsFromReport_InsertsNewFightBeyondTolerance(t *testing.T) {
	fights := []api.Fight{{ID: 1, StartTime: 0, EndTime: 100_000, EncounterID: 2902, Difficulty: 5}}
	tanks := []api.PlayerDetail{{ID: 3, GUID: 1001, Name: "Threatful", Server: "Area 52", Type: "Warrior", Fights: []int{1}}}

	repo := &fakeFightRepository{}
	repo.fights = append(repo.fights, domain.Fight{
		ID:              7,
		StartTime:       seasonStart() + constants.ReconcileToleranceMillis + 1_000,
		EndTime:         seasonStart() + 100_000 + constants.ReconcileToleranceMillis + 1_000,
		Difficulty:      5,
		EncounterID:     2902,
		FriendlyPlayers: "1001",
		Region:          "US",
	})

	svc := NewFightService(fightsTestSource(fights, tanks), repo, zerolog.Nop())
	result, err := svc.IngestFightsFromReport(context.Background(), "aBcDeFgH12345678")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if repo.created != 1 {
		t.Errorf("Expected 1 insert, got %d", repo.created)
	}
	if len(result.Fights) != 1 || result.Fights[0].Persisted.ID == 7 {
		t.Errorf("Expected a fresh persisted row, got %+v", result.Fights)
	}
}

func TestIngestFightsFromReport_InvalidRosterDegradesToEmptyFingerprint(t *testing.T) {
	fights := []api.Fight{{ID: 1, StartTime: 0, EndTime: 100_000, EncounterID: 2902, Difficulty: 5}}

	source := fightsTestSource(fights, nil)
	source.playerDetails = func(ctx context.Context, code string, fightIDs []int) (*api.PlayerDetails, error) {
		return nil, fmt.Errorf("%w: garbled roster blob", api.ErrInvalidPayload)
	}

	svc := NewFightService(source, &fakeFightRepository{}, zerolog.Nop())
	result, err := svc.IngestFightsFromReport(context.Background(), "aBcDeFgH12345678")
	if err != nil {
		t.Fatalf("Expected schema failure to degrade, got %v", err)
	}

	if len(result.Fights) != 1 {
		t.Fatalf("Expected 1 ingested fight, got %d", len(result.Fights))
	}
	if result.Fights[0].FriendlyPlayers != "" {
		t.Errorf("Expected empty fingerprint, got %q", result.Fights[0].FriendlyPlayers)
	}
}

func TestIngestFightsFromReport_ChunksRosterRequests(t *testing.T) {
	var fights []api.Fight
	for i := 1; i <= constants.RosterChunkSize+1; i++ {
		fights = append(fights, api.Fight{
			ID:          i,
			StartTime:   int64(i) * 200_000,
			EndTime:     int64(i)*200_000 + 100_000,
			EncounterID: 2902,
			Difficulty:  5,
		})
	}

	source := fightsTestSource(fights, nil)
	svc := NewFightService(source, &fakeFightRepository{}, zerolog.Nop())
	if _, err := svc.IngestFightsFromReport(context.Background(), "aBcDeFgH12345678"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(source.requestedFightIDs) != 2 {
		t.Errorf("Expected 2 roster requests, got %d", len(source.requestedFightIDs))
	}
}
