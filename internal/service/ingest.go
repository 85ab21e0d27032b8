package service

import (
	"context"
	"fmt"

	"github.com/ToppleTheNun/mchammer-sub000/internal/constants"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Summary reports what one ingestion run accomplished. Fights that
// failed pagination or streaks that failed persistence are visible as
// the difference between the seen and ingested counts; details are in
// the logs under the run id.
type Summary struct {
	RunID           string `json:"run_id"`
	ReportCode      string `json:"report_code"`
	FightsIngested  int    `json:"fights_ingested"`
	FightsPaginated int    `json:"fights_paginated"`
	EventsCollected int    `json:"events_collected"`
	StreaksDetected int    `json:"streaks_detected"`
	StreaksIngested int    `json:"streaks_ingested"`
}

// IngestService sequences the pipeline for one report: fight
// reconciliation, event pagination, streak detection and persistence.
type IngestService struct {
	fights  *FightService
	events  *EventService
	streaks *StreakService
	logger  zerolog.Logger
}

func NewIngestService(fights *FightService, events *EventService, streaks *StreakService, logger zerolog.Logger) *IngestService {
	return &IngestService{fights: fights, events: events, streaks: streaks, logger: logger}
}

// IngestReport runs the whole pipeline for one report code. A fight
// reconciliation failure aborts the run; all downstream failures are
// partial, and the run always completes with a summary of what
// succeeded.
func (s *IngestService) IngestReport(ctx context.Context, code string) (*Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.IngestTimeout)
	defer cancel()

	runID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}

	logger := s.logger.With().Str("run_id", runID).Str("report", code).Logger()
	logger.Info().Msg("starting report ingestion")

	withFights, err := s.fights.IngestFightsFromReport(ctx, code)
	if err != nil {
		logger.Error().Err(err).Msg("fight reconciliation failed")
		return nil, err
	}

	withEvents := s.events.CollectReportEvents(ctx, withFights)

	eventCount := 0
	for _, fight := range withEvents.Fights {
		eventCount += len(fight.Events)
	}

	withStreaks := s.streaks.IngestDodgeParryMissStreaks(ctx, withEvents)

	summary := &Summary{
		RunID:           runID,
		ReportCode:      code,
		FightsIngested:  len(withFights.Fights),
		FightsPaginated: len(withEvents.Fights),
		EventsCollected: eventCount,
		StreaksDetected: withStreaks.StreaksDetected,
		StreaksIngested: len(withStreaks.Streaks),
	}

	logger.Info().
		Int("fights_ingested", summary.FightsIngested).
		Int("fights_paginated", summary.FightsPaginated).
		Int("events_collected", summary.EventsCollected).
		Int("streaks_detected", summary.StreaksDetected).
		Int("streaks_ingested", summary.StreaksIngested).
		Msg("report ingestion complete")

	return summary, nil
}
