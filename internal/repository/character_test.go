package repository

import (
	"context"
	"testing"

	"github.com/ToppleTheNun/mchammer-sub000/internal/domain"
	"github.com/rs/zerolog"
)

func testCharacter() domain.Character {
	return domain.Character{
		ID:     1001,
		Name:   "Threatful",
		Server: "Area 52",
		Region: "US",
	}
}

func TestCharacterRepository_FindOrCreateInserts(t *testing.T) {
	repo := NewCharacterRepository(setupTestDB(t), zerolog.Nop())

	created, err := repo.FindOrCreate(context.Background(), testCharacter())
	if err != nil {
		t.Fatalf("Failed to create character: %v", err)
	}
	if created.ID != 1001 {
		t.Errorf("Expected guid 1001, got %d", created.ID)
	}
	if created.Name != "Threatful" {
		t.Errorf("Expected name Threatful, got %q", created.Name)
	}
}

func TestCharacterRepository_FindOrCreateIsIdempotent(t *testing.T) {
	repo := NewCharacterRepository(setupTestDB(t), zerolog.Nop())
	ctx := context.Background()

	if _, err := repo.FindOrCreate(ctx, testCharacter()); err != nil {
		t.Fatalf("Failed to create character: %v", err)
	}

	renamed := testCharacter()
	renamed.Name = "Threatfulx"

	again, err := repo.FindOrCreate(ctx, renamed)
	if err != nil {
		t.Fatalf("Expected duplicate insert to resolve, got %v", err)
	}
	if again.ID != 1001 {
		t.Errorf("Expected guid 1001, got %d", again.ID)
	}
	if again.Name != "Threatful" {
		t.Errorf("Expected the original row back, got name %q", again.Name)
	}
}

func TestCharacterRepository_GetByIDMissing(t *testing.T) {
	repo := NewCharacterRepository(setupTestDB(t), zerolog.Nop())

	found, err := repo.GetByID(context.Background(), 424242)
	if err != nil {
		t.Fatalf("Failed to query character: %v", err)
	}
	if found != nil {
		t.Errorf("Expected no character, got %+v", found)
	}
}
