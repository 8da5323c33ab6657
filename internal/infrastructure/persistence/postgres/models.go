package postgres

import (
	"time"

	"github.com/lib/pq"

	"z-ebook-api/internal/domain/entity"
)

// generationRow ebook_generations 表
type generationRow struct {
	ID            string                    `gorm:"type:varchar(64);primaryKey"`
	UserID        string                    `gorm:"type:varchar(64);index;not null"`
	Title         string                    `gorm:"type:text;not null"`
	Description   string                    `gorm:"type:text"`
	StoryType     string                    `gorm:"type:varchar(32);not null"`
	Theme         string                    `gorm:"type:text"`
	Status        string                    `gorm:"type:varchar(16);index;not null"`
	Chapters      []entity.GeneratedChapter `gorm:"type:jsonb;serializer:json"`
	Images        []entity.GeneratedImage   `gorm:"type:jsonb;serializer:json"`
	ChapterCount  int                       `gorm:"not null;default:0"`
	WordCount     int                       `gorm:"not null;default:0"`
	CoverImageURL string                    `gorm:"type:text"`
	ErrorMessage  string                    `gorm:"type:text"`
	CreatedAt     time.Time                 `gorm:"index"`
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func (generationRow) TableName() string { return "ebook_generations" }

func newGenerationRow(g *entity.EbookGeneration) *generationRow {
	return &generationRow{
		ID:            g.ID,
		UserID:        g.UserID,
		Title:         g.Title,
		Description:   g.Description,
		StoryType:     g.StoryType,
		Theme:         g.Theme,
		Status:        string(g.Status),
		Chapters:      nonNilChapters(g.Chapters),
		Images:        nonNilImages(g.Images),
		ChapterCount:  g.ChapterCount,
		WordCount:     g.WordCount,
		CoverImageURL: g.CoverImageURL,
		ErrorMessage:  g.ErrorMessage,
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
		CompletedAt:   g.CompletedAt,
	}
}

func (r *generationRow) toEntity() *entity.EbookGeneration {
	return &entity.EbookGeneration{
		ID:            r.ID,
		UserID:        r.UserID,
		Title:         r.Title,
		Description:   r.Description,
		StoryType:     r.StoryType,
		Theme:         r.Theme,
		Status:        entity.GenerationStatus(r.Status),
		Chapters:      nonNilChapters(r.Chapters),
		Images:        nonNilImages(r.Images),
		ChapterCount:  r.ChapterCount,
		WordCount:     r.WordCount,
		CoverImageURL: r.CoverImageURL,
		ErrorMessage:  r.ErrorMessage,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		CompletedAt:   r.CompletedAt,
	}
}

// outlineRow story_outlines 表，每本书一份
type outlineRow struct {
	ID               string                `gorm:"type:varchar(64);primaryKey"`
	GenerationID     string                `gorm:"type:varchar(64);uniqueIndex;not null"`
	UserID           string                `gorm:"type:varchar(64);index"`
	BookTitle        string                `gorm:"type:text;not null"`
	BookDescription  string                `gorm:"type:text"`
	ChapterTitles    pq.StringArray        `gorm:"type:text[]"`
	ChapterSummaries pq.StringArray        `gorm:"type:text[]"`
	CharacterBios    []entity.CharacterBio `gorm:"type:jsonb;serializer:json"`
	WorldInfo        map[string]string     `gorm:"type:jsonb;serializer:json"`
	KeyThemes        pq.StringArray        `gorm:"type:text[]"`
	PlotOutline      string                `gorm:"type:text"`
	TotalChapters    int                   `gorm:"not null"`
	StoryFormat      string                `gorm:"type:varchar(32)"`
	Theme            string                `gorm:"type:text"`
	CreatedAt        time.Time
}

func (outlineRow) TableName() string { return "story_outlines" }

func newOutlineRow(o *entity.StoryOutline) *outlineRow {
	return &outlineRow{
		ID:               o.ID,
		GenerationID:     o.GenerationID,
		UserID:           o.UserID,
		BookTitle:        o.BookTitle,
		BookDescription:  o.BookDescription,
		ChapterTitles:    pq.StringArray(o.ChapterTitles),
		ChapterSummaries: pq.StringArray(o.ChapterSummaries),
		CharacterBios:    o.CharacterBios,
		WorldInfo:        o.WorldInfo,
		KeyThemes:        pq.StringArray(o.KeyThemes),
		PlotOutline:      o.PlotOutline,
		TotalChapters:    o.TotalChapters,
		StoryFormat:      o.StoryFormat,
		Theme:            o.Theme,
		CreatedAt:        o.CreatedAt,
	}
}

func (r *outlineRow) toEntity() *entity.StoryOutline {
	return &entity.StoryOutline{
		ID:               r.ID,
		GenerationID:     r.GenerationID,
		UserID:           r.UserID,
		BookTitle:        r.BookTitle,
		BookDescription:  r.BookDescription,
		ChapterTitles:    []string(r.ChapterTitles),
		ChapterSummaries: []string(r.ChapterSummaries),
		CharacterBios:    r.CharacterBios,
		WorldInfo:        r.WorldInfo,
		KeyThemes:        []string(r.KeyThemes),
		PlotOutline:      r.PlotOutline,
		TotalChapters:    r.TotalChapters,
		StoryFormat:      r.StoryFormat,
		Theme:            r.Theme,
		CreatedAt:        r.CreatedAt,
	}
}

// storyStateRow story_states 表，按 generation_id 唯一
type storyStateRow struct {
	GenerationID           string                `gorm:"type:varchar(64);primaryKey"`
	OutlineID              string                `gorm:"type:varchar(64)"`
	UserID                 string                `gorm:"type:varchar(64);index"`
	CurrentChapter         int                   `gorm:"not null"`
	Characters             []entity.CharacterBio `gorm:"type:jsonb;serializer:json"`
	CharacterRelationships map[string]string     `gorm:"type:jsonb;serializer:json"`
	MajorPlotEvents        []entity.PlotEvent    `gorm:"type:jsonb;serializer:json"`
	ActivePlotThreads      pq.StringArray        `gorm:"type:text[]"`
	ResolvedConflicts      pq.StringArray        `gorm:"type:text[]"`
	PendingConflicts       pq.StringArray        `gorm:"type:text[]"`
	CurrentLocations       pq.StringArray        `gorm:"type:text[]"`
	WorldChanges           pq.StringArray        `gorm:"type:text[]"`
	TimelineEvents         pq.StringArray        `gorm:"type:text[]"`
	CurrentMood            string                `gorm:"type:text"`
	PacingNotes            string                `gorm:"type:text"`
	UpdatedAt              time.Time
}

func (storyStateRow) TableName() string { return "story_states" }

func newStoryStateRow(s *entity.StoryState) *storyStateRow {
	return &storyStateRow{
		GenerationID:           s.GenerationID,
		OutlineID:              s.OutlineID,
		UserID:                 s.UserID,
		CurrentChapter:         s.CurrentChapter,
		Characters:             s.Characters,
		CharacterRelationships: s.CharacterRelationships,
		MajorPlotEvents:        s.MajorPlotEvents,
		ActivePlotThreads:      pq.StringArray(s.ActivePlotThreads),
		ResolvedConflicts:      pq.StringArray(s.ResolvedConflicts),
		PendingConflicts:       pq.StringArray(s.PendingConflicts),
		CurrentLocations:       pq.StringArray(s.CurrentLocations),
		WorldChanges:           pq.StringArray(s.WorldChanges),
		TimelineEvents:         pq.StringArray(s.TimelineEvents),
		CurrentMood:            s.CurrentMood,
		PacingNotes:            s.PacingNotes,
		UpdatedAt:              s.UpdatedAt,
	}
}

func (r *storyStateRow) toEntity() *entity.StoryState {
	return &entity.StoryState{
		GenerationID:           r.GenerationID,
		OutlineID:              r.OutlineID,
		UserID:                 r.UserID,
		CurrentChapter:         r.CurrentChapter,
		Characters:             r.Characters,
		CharacterRelationships: r.CharacterRelationships,
		MajorPlotEvents:        r.MajorPlotEvents,
		ActivePlotThreads:      []string(r.ActivePlotThreads),
		ResolvedConflicts:      []string(r.ResolvedConflicts),
		PendingConflicts:       []string(r.PendingConflicts),
		CurrentLocations:       []string(r.CurrentLocations),
		WorldChanges:           []string(r.WorldChanges),
		TimelineEvents:         []string(r.TimelineEvents),
		CurrentMood:            r.CurrentMood,
		PacingNotes:            r.PacingNotes,
		UpdatedAt:              r.UpdatedAt,
	}
}

// chapterSummaryRow chapter_summaries 表，(generation_id, chapter_number) 唯一
type chapterSummaryRow struct {
	ID                    uint                          `gorm:"primaryKey;autoIncrement"`
	GenerationID          string                        `gorm:"type:varchar(64);not null;uniqueIndex:idx_summary_chapter,priority:1"`
	ChapterNumber         int                           `gorm:"not null;uniqueIndex:idx_summary_chapter,priority:2"`
	OutlineID             string                        `gorm:"type:varchar(64)"`
	UserID                string                        `gorm:"type:varchar(64);index"`
	ChapterTitle          string                        `gorm:"type:text"`
	Summary               string                        `gorm:"type:text;not null"`
	KeyEvents             pq.StringArray                `gorm:"type:text[]"`
	CharacterDevelopments []entity.CharacterDevelopment `gorm:"type:jsonb;serializer:json"`
	LastChapterExcerpt    string                        `gorm:"type:text"`
	WordCount             int
	CharCount             int
	CreatedAt             time.Time
}

func (chapterSummaryRow) TableName() string { return "chapter_summaries" }

func newChapterSummaryRow(s *entity.ChapterSummary) *chapterSummaryRow {
	return &chapterSummaryRow{
		GenerationID:          s.GenerationID,
		ChapterNumber:         s.ChapterNumber,
		OutlineID:             s.OutlineID,
		UserID:                s.UserID,
		ChapterTitle:          s.ChapterTitle,
		Summary:               s.Summary,
		KeyEvents:             pq.StringArray(s.KeyEvents),
		CharacterDevelopments: s.CharacterDevelopments,
		LastChapterExcerpt:    s.LastChapterExcerpt,
		WordCount:             s.WordCount,
		CharCount:             s.CharCount,
		CreatedAt:             s.CreatedAt,
	}
}

func (r *chapterSummaryRow) toEntity() *entity.ChapterSummary {
	return &entity.ChapterSummary{
		GenerationID:          r.GenerationID,
		OutlineID:             r.OutlineID,
		UserID:                r.UserID,
		ChapterNumber:         r.ChapterNumber,
		ChapterTitle:          r.ChapterTitle,
		Summary:               r.Summary,
		KeyEvents:             []string(r.KeyEvents),
		CharacterDevelopments: r.CharacterDevelopments,
		LastChapterExcerpt:    r.LastChapterExcerpt,
		WordCount:             r.WordCount,
		CharCount:             r.CharCount,
		CreatedAt:             r.CreatedAt,
	}
}

// chapterEmbeddingRow chapter_embeddings 表，vector.backend=postgres 时使用
type chapterEmbeddingRow struct {
	ID                    uint            `gorm:"primaryKey;autoIncrement"`
	GenerationID          string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_embedding_chapter,priority:1"`
	ChapterNumber         int             `gorm:"not null;uniqueIndex:idx_embedding_chapter,priority:2"`
	ChapterTitle          string          `gorm:"type:text"`
	Vector                pq.Float32Array `gorm:"type:real[]"`
	TextContent           string          `gorm:"type:text"`
	ContentType           string          `gorm:"type:varchar(32)"`
	MaxSimilarityScore    float64
	SimilarChapterNumbers pq.Int64Array `gorm:"type:integer[]"`
	CreatedAt             time.Time
}

func (chapterEmbeddingRow) TableName() string { return "chapter_embeddings" }

func newChapterEmbeddingRow(e *entity.ChapterEmbedding) *chapterEmbeddingRow {
	similar := make(pq.Int64Array, 0, len(e.SimilarChapterNumbers))
	for _, n := range e.SimilarChapterNumbers {
		similar = append(similar, int64(n))
	}
	return &chapterEmbeddingRow{
		GenerationID:          e.GenerationID,
		ChapterNumber:         e.ChapterNumber,
		ChapterTitle:          e.ChapterTitle,
		Vector:                pq.Float32Array(e.Vector),
		TextContent:           e.TextContent,
		ContentType:           e.ContentType,
		MaxSimilarityScore:    e.MaxSimilarityScore,
		SimilarChapterNumbers: similar,
		CreatedAt:             e.CreatedAt,
	}
}

func (r *chapterEmbeddingRow) toEntity() *entity.ChapterEmbedding {
	similar := make([]int, 0, len(r.SimilarChapterNumbers))
	for _, n := range r.SimilarChapterNumbers {
		similar = append(similar, int(n))
	}
	return &entity.ChapterEmbedding{
		GenerationID:          r.GenerationID,
		ChapterNumber:         r.ChapterNumber,
		ChapterTitle:          r.ChapterTitle,
		Vector:                []float32(r.Vector),
		TextContent:           r.TextContent,
		ContentType:           r.ContentType,
		MaxSimilarityScore:    r.MaxSimilarityScore,
		SimilarChapterNumbers: similar,
		CreatedAt:             r.CreatedAt,
	}
}

func nonNilChapters(in []entity.GeneratedChapter) []entity.GeneratedChapter {
	if in == nil {
		return []entity.GeneratedChapter{}
	}
	return in
}

func nonNilImages(in []entity.GeneratedImage) []entity.GeneratedImage {
	if in == nil {
		return []entity.GeneratedImage{}
	}
	return in
}
