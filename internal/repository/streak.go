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

// StreakRepository persists dodge/parry/miss streaks with the same
// tolerance-window dedup strategy as fights.
type StreakRepository interface {
	// FindMatching returns the persisted streak for the same fight and
	// character whose absolute start and end times are within the
	// tolerance of the candidate's. Returns nil when none exists.
	FindMatching(ctx context.Context, streak domain.Streak) (*domain.Streak, error)

	// Create inserts the streak, re-reading the existing row when the
	// unique constraint rejects the insert.
	Create(ctx context.Context, streak domain.Streak) (*domain.Streak, error)
}

type sqliteStreakRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewStreakRepository(db *sql.DB, logger zerolog.Logger) StreakRepository {
	return &sqliteStreakRepository{db: db, logger: logger}
}

const streakColumns = `id, report, report_fight_id, report_fight_relative_start, report_fight_relative_end, dodge, parry, miss, timestamp_start, timestamp_end, source_id, fight_id, created_at, updated_at`

func (r *sqliteStreakRepository) FindMatching(ctx context.Context, streak domain.Streak) (*domain.Streak, error) {
	query := `
		SELECT ` + streakColumns + `
		FROM dodge_parry_miss_streak
		WHERE fight_id = ?
		  AND source_id = ?
		  AND ABS(timestamp_start - ?) <= ?
		  AND ABS(timestamp_end - ?) <= ?
		ORDER BY ABS(timestamp_start - ?)
		LIMIT 1
	`

	tolerance := constants.ReconcileToleranceMillis
	row := r.db.QueryRowContext(ctx, query,
		streak.FightID,
		streak.SourceID,
		streak.StartTime, tolerance,
		streak.EndTime, tolerance,
		streak.StartTime,
	)

	found, err := scanStreak(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (r *sqliteStreakRepository) Create(ctx context.Context, streak domain.Streak) (*domain.Streak, error) {
	query := `
		INSERT INTO dodge_parry_miss_streak (report, report_fight_id, report_fight_relative_start, report_fight_relative_end, dodge, parry, miss, timestamp_start, timestamp_end, source_id, fight_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		streak.Report,
		streak.ReportFightID,
		streak.RelativeStart,
		streak.RelativeEnd,
		streak.Dodge,
		streak.Parry,
		streak.Miss,
		streak.StartTime,
		streak.EndTime,
		streak.SourceID,
		streak.FightID,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Debug().
				Int64("fight_id", streak.FightID).
				Int64("source_id", streak.SourceID).
				Msg("streak already persisted, re-reading")
			existing, findErr := r.FindMatching(ctx, streak)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to insert streak: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read streak id: %w", err)
	}

	created := streak
	created.ID = id
	created.CreatedAt = now
	created.UpdatedAt = now
	return &created, nil
}

func scanStreak(row rowScanner) (*domain.Streak, error) {
	var streak domain.Streak
	err := row.Scan(
		&streak.ID,
		&streak.Report,
		&streak.ReportFightID,
		&streak.RelativeStart,
		&streak.RelativeEnd,
		&streak.Dodge,
		&streak.Parry,
		&streak.Miss,
		&streak.StartTime,
		&streak.EndTime,
		&streak.SourceID,
		&streak.FightID,
		&streak.CreatedAt,
		&streak.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &streak, nil
}
