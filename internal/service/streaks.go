package service

import (
	"context"
	"fmt"

	"github.com/ToppleTheNun/mchammer-sub000/internal/constants"
	"github.com/ToppleTheNun/mchammer-sub000/internal/domain"
	"github.com/ToppleTheNun/mchammer-sub000/internal/parallel"
	"github.com/ToppleTheNun/mchammer-sub000/internal/repository"
	"github.com/rs/zerolog"
)

// ReportWithStreaks is the streak reconciler's output and the final
// pipeline stage result.
type ReportWithStreaks struct {
	Report          domain.Report
	Fights          []FightWithEvents
	StreaksDetected int
	Streaks         []domain.Streak
}

// DetectStreaks scans one target's events for one fight and returns
// the maximal runs of consecutive avoidance events, in the order they
// were closed. Events must already be in chronological order. A streak
// that accumulated no avoidance is discarded, so a fight with zero
// events yields zero streaks.
func DetectStreaks(fight domain.ReportFight, events []domain.ReportDamageTakenEvent) []domain.AvoidanceStreak {
	if len(events) == 0 {
		return nil
	}

	var streaks []domain.AvoidanceStreak
	current := domain.AvoidanceStreak{Start: fight.RelativeStart}

	for _, event := range events {
		switch event.HitType {
		case domain.HitTypeDodge:
			current.Dodge++
		case domain.HitTypeParry:
			current.Parry++
		case domain.HitTypeMiss:
			current.Miss++
		default:
			// A connecting hit breaks the run: close the current
			// streak at this event and start a fresh one from it.
			current.End = event.Timestamp
			if !current.Empty() {
				streaks = append(streaks, current)
			}
			current = domain.AvoidanceStreak{Start: event.Timestamp}
		}
	}

	current.End = fight.RelativeEnd
	if !current.Empty() {
		streaks = append(streaks, current)
	}

	return streaks
}

type StreakService struct {
	characters repository.CharacterRepository
	streaks    repository.StreakRepository
	logger     zerolog.Logger
}

func NewStreakService(characters repository.CharacterRepository, streaks repository.StreakRepository, logger zerolog.Logger) *StreakService {
	return &StreakService{characters: characters, streaks: streaks, logger: logger}
}

// characterStreaks is the unit of persistence fan-out: one character
// plus every streak detected for them across the report's fights.
type characterStreaks struct {
	target  domain.PlayerDetail
	region  string
	streaks []domain.ReportStreak
	fights  map[int]int64 // report-local fight id -> persisted row id
}

// IngestDodgeParryMissStreaks detects avoidance streaks per fight and
// tank, then persists them grouped by character. The character row is
// found-or-created once per guid; each streak is tolerance-deduplicated
// against previously persisted streaks. All persistence failures are
// partial: logged, skipped, never escalated.
func (s *StreakService) IngestDodgeParryMissStreaks(ctx context.Context, report *ReportWithEvents) *ReportWithStreaks {
	groups := s.detectByCharacter(report)

	detected := 0
	for _, group := range groups {
		detected += len(group.streaks)
	}

	results := parallel.Map(ctx, groups, func(ctx context.Context, group characterStreaks) ([]domain.Streak, error) {
		return s.persistCharacterStreaks(ctx, group)
	})

	if err := parallel.Errors(results); err != nil {
		s.logger.Warn().
			Err(err).
			Str("report", report.Report.Code).
			Msg("streak persistence failed for some characters")
	}

	var streaks []domain.Streak
	for _, group := range parallel.Successes(results) {
		streaks = append(streaks, group...)
	}

	s.logger.Info().
		Str("report", report.Report.Code).
		Int("streaks_detected", detected).
		Int("streaks_ingested", len(streaks)).
		Msg("streaks reconciled")

	return &ReportWithStreaks{
		Report:          report.Report,
		Fights:          report.Fights,
		StreaksDetected: detected,
		Streaks:         streaks,
	}
}

// detectByCharacter runs the detector per (fight, tank) pair and
// groups the resulting streaks by target guid. Events whose target is
// not a tank of the fight are ignored.
func (s *StreakService) detectByCharacter(report *ReportWithEvents) []characterStreaks {
	byGUID := make(map[int64]*characterStreaks)
	var order []int64

	for _, fight := range report.Fights {
		tanksByID := make(map[int]domain.PlayerDetail, len(fight.Tanks))
		for _, tank := range fight.Tanks {
			tanksByID[tank.ID] = tank
		}

		eventsByTarget := make(map[int][]domain.ReportDamageTakenEvent)
		var targets []int
		for _, event := range fight.Events {
			if _, ok := tanksByID[event.TargetID]; !ok {
				continue
			}
			if _, seen := eventsByTarget[event.TargetID]; !seen {
				targets = append(targets, event.TargetID)
			}
			eventsByTarget[event.TargetID] = append(eventsByTarget[event.TargetID], event)
		}

		for _, targetID := range targets {
			target := tanksByID[targetID]
			for _, raw := range DetectStreaks(fight.ReportFight, eventsByTarget[targetID]) {
				group, ok := byGUID[target.GUID]
				if !ok {
					group = &characterStreaks{
						target: target,
						region: report.Report.Region,
						fights: make(map[int]int64),
					}
					byGUID[target.GUID] = group
					order = append(order, target.GUID)
				}
				group.fights[fight.FightID] = fight.Persisted.ID
				group.streaks = append(group.streaks, domain.ReportStreak{
					AvoidanceStreak: raw,
					ReportCode:      report.Report.Code,
					Region:          report.Report.Region,
					ReportFightID:   fight.FightID,
					TimestampStart:  report.Report.StartTime + raw.Start,
					TimestampEnd:    report.Report.StartTime + raw.End,
					Target:          target,
				})
			}
		}
	}

	groups := make([]characterStreaks, 0, len(order))
	for _, guid := range order {
		groups = append(groups, *byGUID[guid])
	}
	return groups
}

func (s *StreakService) persistCharacterStreaks(ctx context.Context, group characterStreaks) ([]domain.Streak, error) {
	charCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	character, err := s.characters.FindOrCreate(charCtx, domain.Character{
		ID:     group.target.GUID,
		Name:   group.target.Name,
		Server: group.target.Server,
		Region: group.region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve character %d: %w", group.target.GUID, err)
	}

	results := parallel.Map(ctx, group.streaks, func(ctx context.Context, streak domain.ReportStreak) (domain.Streak, error) {
		return s.reconcileStreak(ctx, streak, character.ID, group.fights[streak.ReportFightID])
	})

	if err := parallel.Errors(results); err != nil {
		s.logger.Warn().
			Err(err).
			Int64("guid", character.ID).
			Msg("some streaks failed to persist")
	}

	return parallel.Successes(results), nil
}

func (s *StreakService) reconcileStreak(ctx context.Context, streak domain.ReportStreak, characterID, fightRowID int64) (domain.Streak, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	candidate := domain.Streak{
		Report:        streak.ReportCode,
		ReportFightID: streak.ReportFightID,
		RelativeStart: streak.Start,
		RelativeEnd:   streak.End,
		Dodge:         streak.Dodge,
		Parry:         streak.Parry,
		Miss:          streak.Miss,
		StartTime:     streak.TimestampStart,
		EndTime:       streak.TimestampEnd,
		SourceID:      characterID,
		FightID:       fightRowID,
	}

	existing, err := s.streaks.FindMatching(ctx, candidate)
	if err != nil {
		return domain.Streak{}, err
	}
	if existing != nil {
		s.logger.Debug().
			Int64("fight_id", fightRowID).
			Int64("source_id", characterID).
			Msg("reusing persisted streak")
		return *existing, nil
	}

	created, err := s.streaks.Create(ctx, candidate)
	if err != nil {
		return domain.Streak{}, err
	}
	return *created, nil
}
