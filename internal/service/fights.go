package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/ToppleTheNun/mchammer-sub000/internal/api"
	"github.com/ToppleTheNun/mchammer-sub000/internal/constants"
	"github.com/ToppleTheNun/mchammer-sub000/internal/domain"
	"github.com/ToppleTheNun/mchammer-sub000/internal/repository"
	"github.com/ToppleTheNun/mchammer-sub000/internal/season"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// LogSource is the subset of the combat log source API the ingestion
// pipeline consumes.
type LogSource interface {
	GetReportFights(ctx context.Context, code string) (*api.ReportFights, error)
	GetPlayerDetails(ctx context.Context, code string, fightIDs []int) (*api.PlayerDetails, error)
	GetDamageTakenPage(ctx context.Context, code string, startTime, endTime int64) (*api.EventPage, error)
}

// Fatal ingestion errors. Everything else in the pipeline is a partial
// failure that is logged and skipped.
var (
	ErrReportNotFound = errors.New("report not found")
	ErrUnknownRegion  = errors.New("report region is unknown")
)

// ReportWithFights is the fight reconciler's output: the report plus
// every season-relevant fight resolved to a persisted row.
type ReportWithFights struct {
	Report domain.Report
	Fights []domain.IngestedFight
}

type FightService struct {
	source LogSource
	fights repository.FightRepository
	logger zerolog.Logger
}

func NewFightService(source LogSource, fights repository.FightRepository, logger zerolog.Logger) *FightService {
	return &FightService{source: source, fights: fights, logger: logger}
}

// IngestFightsFromReport fetches a report's fights, filters them to
// known season encounters and reconciles each against previously
// persisted fights, inserting only genuinely new ones.
func (s *FightService) IngestFightsFromReport(ctx context.Context, code string) (*ReportWithFights, error) {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	raw, err := s.source.GetReportFights(apiCtx, code)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch report %s: %w", code, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, code)
	}
	if !season.IsKnownRegion(raw.Region) {
		return nil, fmt.Errorf("%w: %q (report %s)", ErrUnknownRegion, raw.Region, code)
	}

	report := domain.Report{
		Code:      raw.Code,
		Title:     raw.Title,
		Region:    raw.Region,
		StartTime: raw.StartTime,
		EndTime:   raw.EndTime,
	}

	kept := make([]api.Fight, 0, len(raw.Fights))
	for _, f := range raw.Fights {
		if f.Difficulty == 0 {
			continue
		}
		kept = append(kept, f)
	}

	s.logger.Info().
		Str("report", code).
		Str("region", report.Region).
		Int("fights", len(raw.Fights)).
		Int("kept", len(kept)).
		Msg("fetched report fights")

	if len(kept) == 0 {
		return &ReportWithFights{Report: report}, nil
	}

	fightIDs := make([]int, len(kept))
	for i, f := range kept {
		fightIDs[i] = f.ID
	}

	tanks, err := s.fetchTankRoster(ctx, code, fightIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roster for report %s: %w", code, err)
	}

	tanksByFight := make(map[int][]domain.PlayerDetail)
	for _, tank := range tanks {
		detail := toPlayerDetail(tank)
		for _, fightID := range tank.Fights {
			tanksByFight[fightID] = append(tanksByFight[fightID], detail)
		}
	}

	var fights []domain.IngestedFight
	for _, f := range kept {
		reportFight := domain.ReportFight{
			ReportCode:      report.Code,
			Region:          report.Region,
			FightID:         f.ID,
			RelativeStart:   f.StartTime,
			RelativeEnd:     f.EndTime,
			StartTime:       report.StartTime + f.StartTime,
			EndTime:         report.StartTime + f.EndTime,
			EncounterID:     f.EncounterID,
			Difficulty:      f.Difficulty,
			Tanks:           tanksByFight[f.ID],
			FriendlyPlayers: rosterFingerprint(tanksByFight[f.ID]),
		}

		if _, ok := season.Covering(report.Region, f.EncounterID, reportFight.StartTime); !ok {
			s.logger.Debug().
				Str("report", code).
				Int("fight", f.ID).
				Int("encounter_id", f.EncounterID).
				Msg("fight matches no season, skipping")
			continue
		}

		persisted, err := s.reconcileFight(ctx, reportFight)
		if err != nil {
			return nil, fmt.Errorf("failed to reconcile fight %d of report %s: %w", f.ID, code, err)
		}

		fights = append(fights, domain.IngestedFight{ReportFight: reportFight, Persisted: *persisted})
	}

	s.logger.Info().
		Str("report", code).
		Int("fights_ingested", len(fights)).
		Msg("fights reconciled")

	return &ReportWithFights{Report: report, Fights: fights}, nil
}

// reconcileFight resolves a report fight to its persisted row, reusing
// an existing row when one matches within the tolerance window.
func (s *FightService) reconcileFight(ctx context.Context, fight domain.ReportFight) (*domain.Fight, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	candidate := domain.Fight{
		FirstSeenReport: fight.ReportCode,
		StartTime:       fight.StartTime,
		EndTime:         fight.EndTime,
		Difficulty:      fight.Difficulty,
		EncounterID:     fight.EncounterID,
		FriendlyPlayers: fight.FriendlyPlayers,
		Region:          fight.Region,
	}

	existing, err := s.fights.FindMatching(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Debug().
			Str("report", fight.ReportCode).
			Int("fight", fight.FightID).
			Int64("fight_id", existing.ID).
			Msg("reusing persisted fight")
		return existing, nil
	}

	return s.fights.Create(ctx, candidate)
}

// fetchTankRoster fetches roster detail for the fight set in chunks
// and merges the tank partitions. Only tanks participate in the roster
// fingerprint and in streak detection; the dps and healer partitions
// are deliberately discarded.
func (s *FightService) fetchTankRoster(ctx context.Context, code string, fightIDs []int) ([]api.PlayerDetail, error) {
	g, gCtx := errgroup.WithContext(ctx)

	var chunks [][]int
	for start := 0; start < len(fightIDs); start += constants.RosterChunkSize {
		end := min(start+constants.RosterChunkSize, len(fightIDs))
		chunks = append(chunks, fightIDs[start:end])
	}

	partitions := make([]*api.PlayerDetails, len(chunks))
	for i, chunk := range chunks {
		g.Go(func() error {
			apiCtx, cancel := context.WithTimeout(gCtx, constants.ExternalAPITimeout)
			defer cancel()

			details, err := s.source.GetPlayerDetails(apiCtx, code, chunk)
			if err != nil {
				return err
			}
			partitions[i] = details
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, api.ErrInvalidPayload) {
			s.logger.Warn().
				Err(err).
				Str("report", code).
				Msg("roster detail failed validation, treating as empty roster")
			return nil, nil
		}
		return nil, err
	}

	merged := make(map[int64]*api.PlayerDetail)
	var order []int64
	for _, partition := range partitions {
		for _, tank := range partition.Tanks {
			existing, ok := merged[tank.GUID]
			if !ok {
				copied := tank
				merged[tank.GUID] = &copied
				order = append(order, tank.GUID)
				continue
			}
			existing.Fights = append(existing.Fights, tank.Fights...)
		}
	}

	tanks := make([]api.PlayerDetail, 0, len(order))
	for _, guid := range order {
		tanks = append(tanks, *merged[guid])
	}
	return tanks, nil
}

// rosterFingerprint normalizes a fight's tank roster into the sorted,
// colon-joined guid list used in the fight's natural key.
func rosterFingerprint(tanks []domain.PlayerDetail) string {
	guids := make([]string, 0, len(tanks))
	for _, tank := range tanks {
		guids = append(guids, strconv.FormatInt(tank.GUID, 10))
	}
	slices.Sort(guids)
	return strings.Join(guids, ":")
}

func toPlayerDetail(p api.PlayerDetail) domain.PlayerDetail {
	specs := make([]domain.PlayerSpec, 0, len(p.Specs))
	for _, spec := range p.Specs {
		specs = append(specs, domain.PlayerSpec{Spec: spec.Spec, Count: spec.Count})
	}
	return domain.PlayerDetail{
		ID:     p.ID,
		GUID:   p.GUID,
		Name:   p.Name,
		Server: p.Server,
		Type:   p.Type,
		Specs:  specs,
	}
}
