package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ToppleTheNun/mchammer-sub000/internal/constants"
	"github.com/ToppleTheNun/mchammer-sub000/internal/domain"
	"github.com/rs/zerolog"
)

// FightRepository persists fights deduplicated by their natural key
// within the reconcile tolerance window.
type FightRepository interface {
	// FindMatching returns the persisted fight whose start and end
	// times are within the tolerance of the candidate's and whose
	// encounter, difficulty, roster fingerprint and region match
	// exactly. Returns nil when no such fight exists.
	FindMatching(ctx context.Context, fight domain.Fight) (*domain.Fight, error)

	// Create inserts the fight. If the unique constraint rejects the
	// insert because a concurrent ingestion beat us to it, the
	// existing row is re-read and returned instead.
	Create(ctx context.Context, fight domain.Fight) (*domain.Fight, error)
}

type sqliteFightRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewFightRepository(db *sql.DB, logger zerolog.Logger) FightRepository {
	return &sqliteFightRepository{db: db, logger: logger}
}

const fightColumns = `id, first_seen_report, start_time, end_time, difficulty, encounter_id, friendly_players, region, created_at, updated_at`

func (r *sqliteFightRepository) FindMatching(ctx context.Context, fight domain.Fight) (*domain.Fight, error) {
	query := `
		SELECT ` + fightColumns + `
		FROM fight
		WHERE ABS(start_time - ?) <= ?
		  AND ABS(end_time - ?) <= ?
		  AND encounter_id = ?
		  AND difficulty = ?
		  AND friendly_players = ?
		  AND region = ?
		ORDER BY ABS(start_time - ?)
		LIMIT 1
	`

	tolerance := constants.ReconcileToleranceMillis
	row := r.db.QueryRowContext(ctx, query,
		fight.StartTime, tolerance,
		fight.EndTime, tolerance,
		fight.EncounterID,
		fight.Difficulty,
		fight.FriendlyPlayers,
		fight.Region,
		fight.StartTime,
	)

	found, err := scanFight(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (r *sqliteFightRepository) Create(ctx context.Context, fight domain.Fight) (*domain.Fight, error) {
	query := `
		INSERT INTO fight (first_seen_report, start_time, end_time, difficulty, encounter_id, friendly_players, region, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		fight.FirstSeenReport,
		fight.StartTime,
		fight.EndTime,
		fight.Difficulty,
		fight.EncounterID,
		fight.FriendlyPlayers,
		fight.Region,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Debug().
				Str("report", fight.FirstSeenReport).
				Int("encounter_id", fight.EncounterID).
				Msg("fight already persisted, re-reading")
			existing, findErr := r.FindMatching(ctx, fight)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to insert fight: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read fight id: %w", err)
	}

	created := fight
	created.ID = id
	created.CreatedAt = now
	created.UpdatedAt = now
	return &created, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFight(row rowScanner) (*domain.Fight, error) {
	var fight domain.Fight
	err := row.Scan(
		&fight.ID,
		&fight.FirstSeenReport,
		&fight.StartTime,
		&fight.EndTime,
		&fight.Difficulty,
		&fight.EncounterID,
		&fight.FriendlyPlayers,
		&fight.Region,
		&fight.CreatedAt,
		&fight.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &fight, nil
}
