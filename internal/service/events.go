package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ToppleTheNun/mchammer-sub000/internal/api"
	"github.com/ToppleTheNun/mchammer-sub000/internal/constants"
	"github.com/ToppleTheNun/mchammer-sub000/internal/domain"
	"github.com/ToppleTheNun/mchammer-sub000/internal/parallel"
	"github.com/rs/zerolog"
)

// noMorePages is the cursor sentinel for a terminal page.
const noMorePages = int64(-1)

// FightWithEvents pairs an ingested fight with its flattened,
// chronologically ordered damage-taken events.
type FightWithEvents struct {
	domain.IngestedFight
	Events []domain.ReportDamageTakenEvent
}

// ReportWithEvents is the event paginator's output. Fights whose
// pagination failed are absent; their fights stay persisted but yield
// no streaks this run.
type ReportWithEvents struct {
	Report domain.Report
	Fights []FightWithEvents
}

type EventService struct {
	source LogSource
	logger zerolog.Logger
}

func NewEventService(source LogSource, logger zerolog.Logger) *EventService {
	return &EventService{source: source, logger: logger}
}

// CollectReportEvents paginates damage-taken events for every fight of
// the report concurrently. Individual fights settle independently; a
// failed fight is logged and excluded, never aborting its siblings.
func (s *EventService) CollectReportEvents(ctx context.Context, report *ReportWithFights) *ReportWithEvents {
	results := parallel.Map(ctx, report.Fights, func(ctx context.Context, fight domain.IngestedFight) (FightWithEvents, error) {
		events, err := s.GetReportDamageTakenEventsForFight(ctx, report.Report, fight)
		if err != nil {
			return FightWithEvents{}, err
		}
		return FightWithEvents{IngestedFight: fight, Events: events}, nil
	})

	if err := parallel.Errors(results); err != nil {
		s.logger.Warn().
			Err(err).
			Str("report", report.Report.Code).
			Msg("event pagination failed for some fights")
	}

	return &ReportWithEvents{Report: report.Report, Fights: parallel.Successes(results)}
}

// GetReportDamageTakenEventsForFight pages through a fight's physical
// damage-taken events. Pages are fetched strictly sequentially: each
// request's window starts at the previous response's cursor, so events
// stay in chronological order for streak detection.
func (s *EventService) GetReportDamageTakenEventsForFight(ctx context.Context, report domain.Report, fight domain.IngestedFight) ([]domain.ReportDamageTakenEvent, error) {
	var events []domain.ReportDamageTakenEvent

	cursor := fight.RelativeStart
	for {
		apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
		page, err := s.source.GetDamageTakenPage(apiCtx, report.Code, cursor, fight.RelativeEnd)
		cancel()
		if err != nil {
			if errors.Is(err, api.ErrInvalidPayload) {
				s.logger.Warn().
					Err(err).
					Str("report", report.Code).
					Int("fight", fight.FightID).
					Msg("event page failed validation, treating as empty page")
				break
			}
			return nil, fmt.Errorf("failed to fetch events for fight %d of report %s: %w", fight.FightID, report.Code, err)
		}

		for _, event := range page.Events {
			events = append(events, domain.ReportDamageTakenEvent{
				DamageTakenEvent: domain.DamageTakenEvent{
					Timestamp:     event.Timestamp,
					SourceID:      event.SourceID,
					TargetID:      event.TargetID,
					AbilityGameID: event.AbilityGameID,
					HitType:       event.HitType,
					Amount:        event.Amount,
					Absorbed:      event.Absorbed,
					Mitigated:     event.Mitigated,
				},
				ReportCode:        report.Code,
				Region:            report.Region,
				ReportFightID:     fight.FightID,
				AbsoluteTimestamp: report.StartTime + event.Timestamp,
			})
		}

		next := noMorePages
		if page.NextPageTimestamp != nil {
			next = *page.NextPageTimestamp
		}
		if next <= 0 {
			break
		}
		// A cursor that fails to advance would loop forever; treat it
		// as a terminal page.
		if next <= cursor {
			s.logger.Warn().
				Str("report", report.Code).
				Int("fight", fight.FightID).
				Int64("cursor", cursor).
				Int64("next", next).
				Msg("non-advancing event page cursor, terminating pagination")
			break
		}
		cursor = next
	}

	s.logger.Debug().
		Str("report", report.Code).
		Int("fight", fight.FightID).
		Int("events", len(events)).
		Msg("collected damage taken events")

	return events, nil
}
