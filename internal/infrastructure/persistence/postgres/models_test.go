package postgres

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"z-ebook-api/internal/domain/entity"
	apperrors "z-ebook-api/pkg/errors"
)

func TestGenerationRowRoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	g := &entity.EbookGeneration{
		ID:        "gen-1",
		UserID:    "user-1",
		Title:     "The Lantern Keeper",
		StoryType: "short-story",
		Status:    entity.GenerationStatusGenerating,
		Chapters:  []entity.GeneratedChapter{{Number: 1, Title: "One", Content: "text", WordCount: 1}},
		Images:    []entity.GeneratedImage{{Kind: entity.ImageKindChapter, URL: "u", ChapterNumber: 1}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if got := newGenerationRow(g).toEntity(); !reflect.DeepEqual(got, g) {
		t.Errorf("round trip = %+v, want %+v", got, g)
	}

	empty := newGenerationRow(&entity.EbookGeneration{ID: "gen-2"}).toEntity()
	if empty.Chapters == nil || empty.Images == nil {
		t.Error("chapters and images should never be nil")
	}
}

func TestChapterEmbeddingRowConvertsNumbers(t *testing.T) {
	e := &entity.ChapterEmbedding{
		GenerationID:          "gen-1",
		ChapterNumber:         3,
		Vector:                []float32{0.1, 0.2},
		SimilarChapterNumbers: []int{1, 2},
		MaxSimilarityScore:    0.9,
	}
	got := newChapterEmbeddingRow(e).toEntity()
	if !reflect.DeepEqual(got.SimilarChapterNumbers, []int{1, 2}) || !reflect.DeepEqual(got.Vector, e.Vector) {
		t.Errorf("round trip = %+v", got)
	}
}

func TestStoryStateRowKeepsSlices(t *testing.T) {
	s := &entity.StoryState{
		GenerationID:      "gen-1",
		CurrentChapter:    2,
		Characters:        []entity.CharacterBio{{Name: "Mira", CurrentStatus: "brave"}},
		MajorPlotEvents:   []entity.PlotEvent{{Event: "storm", Chapter: 1}},
		ActivePlotThreads: []string{"the missing ship"},
	}
	got := newStoryStateRow(s).toEntity()
	if got.CurrentChapter != 2 || got.Characters[0].CurrentStatus != "brave" || got.ActivePlotThreads[0] != "the missing ship" {
		t.Errorf("round trip = %+v", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"pg unique", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped pg unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"gorm duplicated", gorm.ErrDuplicatedKey, true},
		{"pg other", &pgconn.PgError{Code: "23503"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := isUniqueViolation(tt.err); got != tt.want {
			t.Errorf("%s: isUniqueViolation = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestConflictOr(t *testing.T) {
	if err := conflictOr(&pgconn.PgError{Code: "23505"}, "create %s", "x"); !errors.Is(err, apperrors.ErrPersistenceConflict) {
		t.Errorf("duplicate = %v, want ErrPersistenceConflict", err)
	}
	base := errors.New("connection reset")
	err := conflictOr(base, "create %s", "x")
	if errors.Is(err, apperrors.ErrPersistenceConflict) || !errors.Is(err, base) || err.Error() != "create x: connection reset" {
		t.Errorf("other = %v", err)
	}
}
