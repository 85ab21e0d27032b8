package season

import (
	"testing"
	"time"
)

func at(year int, month time.Month, day int) int64 {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC).UnixMilli()
}

func TestIsKnownRegion(t *testing.T) {
	for _, region := range []string{"US", "EU", "KR", "TW"} {
		if !IsKnownRegion(region) {
			t.Errorf("Expected %s to be known", region)
		}
	}
	for _, region := range []string{"us", "CN", "", "XX"} {
		if IsKnownRegion(region) {
			t.Errorf("Expected %s to be unknown", region)
		}
	}
}

func TestCovering_InsideWindow(t *testing.T) {
	season, ok := Covering("US", 2902, at(2024, time.October, 1))
	if !ok {
		t.Fatal("Expected a covering season")
	}
	if season.Slug != "tww-season-1" {
		t.Errorf("Expected tww-season-1, got %s", season.Slug)
	}
}

func TestCovering_BeforeWindow(t *testing.T) {
	if _, ok := Covering("US", 2902, at(2024, time.August, 1)); ok {
		t.Error("Expected no season before the window opens")
	}
}

func TestCovering_AfterWindow(t *testing.T) {
	if _, ok := Covering("US", 2902, at(2025, time.June, 1)); ok {
		t.Error("Expected no season after the window closes")
	}
}

func TestCovering_WrongEncounter(t *testing.T) {
	// Undermine encounter during season 1.
	if _, ok := Covering("US", 3016, at(2024, time.October, 1)); ok {
		t.Error("Expected no season for an encounter outside its window")
	}
}

func TestCovering_UnknownRegion(t *testing.T) {
	if _, ok := Covering("XX", 2902, at(2024, time.October, 1)); ok {
		t.Error("Expected no season for an unknown region")
	}
}

func TestCovering_RegionalStagger(t *testing.T) {
	// Between the US and EU season 2 starts only US is live.
	instant := time.Date(2025, time.March, 4, 20, 0, 0, 0, time.UTC).UnixMilli()

	if _, ok := Covering("US", 3009, instant); !ok {
		t.Error("Expected season 2 to be live in US")
	}
	if _, ok := Covering("EU", 3009, instant); ok {
		t.Error("Expected season 2 not yet live in EU")
	}
}

func TestCovering_UnboundedCurrentSeason(t *testing.T) {
	season, ok := Covering("US", 3135, at(2030, time.January, 1))
	if !ok {
		t.Fatal("Expected the open-ended season to cover far-future fights")
	}
	if season.Slug != "tww-season-3" {
		t.Errorf("Expected tww-season-3, got %s", season.Slug)
	}
}

func TestHasEncounter(t *testing.T) {
	s := Catalog[0]
	if !s.HasEncounter(2922) {
		t.Error("Expected Queen Ansurek in season 1")
	}
	if s.HasEncounter(3009) {
		t.Error("Did not expect an Undermine encounter in season 1")
	}
}
