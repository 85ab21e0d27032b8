package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ToppleTheNun/mchammer-sub000/internal/domain"
	"github.com/rs/zerolog"
)

// CharacterRepository persists player identities keyed by guid.
type CharacterRepository interface {
	// FindOrCreate inserts the character, or returns the existing row
	// when the guid is already known. Insert-first so concurrent
	// ingestion of overlapping reports has no select-then-insert race.
	FindOrCreate(ctx context.Context, character domain.Character) (*domain.Character, error)

	GetByID(ctx context.Context, id int64) (*domain.Character, error)
}

type sqliteCharacterRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewCharacterRepository(db *sql.DB, logger zerolog.Logger) CharacterRepository {
	return &sqliteCharacterRepository{db: db, logger: logger}
}

func (r *sqliteCharacterRepository) FindOrCreate(ctx context.Context, character domain.Character) (*domain.Character, error) {
	query := `
		INSERT INTO character (id, name, server, region, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		character.ID,
		character.Name,
		character.Server,
		character.Region,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Debug().Int64("guid", character.ID).Msg("character already exists, re-reading")
			return r.GetByID(ctx, character.ID)
		}
		return nil, fmt.Errorf("failed to insert character %d: %w", character.ID, err)
	}

	created := character
	created.CreatedAt = now
	created.UpdatedAt = now
	return &created, nil
}

func (r *sqliteCharacterRepository) GetByID(ctx context.Context, id int64) (*domain.Character, error) {
	query := `
		SELECT id, name, server, region, created_at, updated_at
		FROM character
		WHERE id = ?
	`

	var character domain.Character
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&character.ID,
		&character.Name,
		&character.Server,
		&character.Region,
		&character.CreatedAt,
		&character.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &character, nil
}
