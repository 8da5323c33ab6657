package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"z-ebook-api/internal/application/story/illustration"
	"z-ebook-api/internal/domain/entity"
	"z-ebook-api/internal/domain/repository"
	"z-ebook-api/internal/workflow/llmtest"
	apperrors "z-ebook-api/pkg/errors"
)

type fakeGenerations struct {
	mu      sync.Mutex
	records map[string]*entity.EbookGeneration
	creates int
}

func newFakeGenerations() *fakeGenerations {
	return &fakeGenerations{records: map[string]*entity.EbookGeneration{}}
}

func (f *fakeGenerations) CreatePlaceholder(_ context.Context, g *entity.EbookGeneration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if _, ok := f.records[g.ID]; ok {
		return apperrors.ErrPersistenceConflict.WithDetail(g.ID)
	}
	cp := *g
	f.records[g.ID] = &cp
	return nil
}

func (f *fakeGenerations) GetByID(_ context.Context, id string) (*entity.EbookGeneration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	cp.Chapters = append([]entity.GeneratedChapter(nil), g.Chapters...)
	cp.Images = append([]entity.GeneratedImage(nil), g.Images...)
	return &cp, nil
}

func (f *fakeGenerations) with(id string, fn func(g *entity.EbookGeneration)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.records[id]
	if !ok {
		return apperrors.ErrGenerationNotFound
	}
	fn(g)
	return nil
}

func (f *fakeGenerations) UpdateOutlineMetadata(_ context.Context, id, title, description string, chapterCount int) error {
	return f.with(id, func(g *entity.EbookGeneration) {
		g.Title, g.Description, g.ChapterCount = title, description, chapterCount
		g.Status = entity.GenerationStatusGenerating
		g.Chapters, g.Images = nil, nil
		g.WordCount = 0
		g.CoverImageURL, g.ErrorMessage = "", ""
		g.CompletedAt = nil
	})
}

func (f *fakeGenerations) AppendChapter(_ context.Context, id string, ch entity.GeneratedChapter, image *entity.GeneratedImage) error {
	return f.with(id, func(g *entity.EbookGeneration) {
		kept := g.Chapters[:0]
		for _, c := range g.Chapters {
			if c.Number != ch.Number {
				kept = append(kept, c)
			}
		}
		g.Chapters = append(kept, ch)
		sort.SliceStable(g.Chapters, func(i, j int) bool { return g.Chapters[i].Number < g.Chapters[j].Number })
		if image != nil {
			g.Images = append(g.Images, *image)
		}
		g.WordCount = 0
		for _, c := range g.Chapters {
			g.WordCount += c.WordCount
		}
	})
}

func (f *fakeGenerations) SetCoverImage(_ context.Context, id string, image entity.GeneratedImage) error {
	return f.with(id, func(g *entity.EbookGeneration) {
		g.CoverImageURL = image.URL
		g.Images = append(g.Images, image)
	})
}

func (f *fakeGenerations) MarkCompleted(_ context.Context, id string, chapterCount, wordCount int) error {
	return f.with(id, func(g *entity.EbookGeneration) {
		g.Status = entity.GenerationStatusCompleted
		g.ChapterCount, g.WordCount = chapterCount, wordCount
		g.ErrorMessage = ""
	})
}

func (f *fakeGenerations) MarkFailed(_ context.Context, id, message string) error {
	return f.with(id, func(g *entity.EbookGeneration) {
		g.Status = entity.GenerationStatusFailed
		g.ErrorMessage = message
	})
}

func (f *fakeGenerations) ListByUser(context.Context, string, repository.Pagination) (*repository.PagedResult[*entity.EbookGeneration], error) {
	return nil, errors.New("not implemented")
}

type fakeOutlines struct {
	saved map[string]*entity.StoryOutline
}

func (f *fakeOutlines) Save(_ context.Context, o *entity.StoryOutline) error {
	f.saved[o.GenerationID] = o
	return nil
}

func (f *fakeOutlines) GetByGeneration(_ context.Context, id string) (*entity.StoryOutline, error) {
	return f.saved[id], nil
}

type fakeStates struct {
	history []*entity.StoryState
}

func (f *fakeStates) Upsert(_ context.Context, s *entity.StoryState) error {
	f.history = append(f.history, s.Clone())
	return nil
}

func (f *fakeStates) GetByGeneration(context.Context, string) (*entity.StoryState, error) {
	if len(f.history) == 0 {
		return nil, nil
	}
	return f.history[len(f.history)-1], nil
}

type fakeSummaries struct {
	saved []*entity.ChapterSummary
}

func (f *fakeSummaries) Save(_ context.Context, s *entity.ChapterSummary) error {
	for i, e := range f.saved {
		if e.GenerationID == s.GenerationID && e.ChapterNumber == s.ChapterNumber {
			f.saved[i] = s
			return nil
		}
	}
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeSummaries) DeleteByGeneration(_ context.Context, id string) error {
	kept := f.saved[:0]
	for _, s := range f.saved {
		if s.GenerationID != id {
			kept = append(kept, s)
		}
	}
	f.saved = kept
	return nil
}

func (f *fakeSummaries) ListByGeneration(_ context.Context, id string) ([]*entity.ChapterSummary, error) {
	var out []*entity.ChapterSummary
	for _, s := range f.saved {
		if s.GenerationID == id {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeEmbeddings struct {
	saved []*entity.ChapterEmbedding
}

func (f *fakeEmbeddings) Save(_ context.Context, e *entity.ChapterEmbedding) error {
	for i, old := range f.saved {
		if old.GenerationID == e.GenerationID && old.ChapterNumber == e.ChapterNumber {
			f.saved[i] = e
			return nil
		}
	}
	f.saved = append(f.saved, e)
	return nil
}

func (f *fakeEmbeddings) ListBefore(_ context.Context, id string, n int) ([]*entity.ChapterEmbedding, error) {
	var out []*entity.ChapterEmbedding
	for _, e := range f.saved {
		if e.GenerationID == id && e.ChapterNumber < n {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChapterNumber < out[j].ChapterNumber })
	return out, nil
}

var (
	chapterMarker    = regexp.MustCompile(`\[ch (\d+)\]`)
	chapterToWrite   = regexp.MustCompile(`CHAPTER TO WRITE: Chapter (\d+):`)
	chapterSummarize = regexp.MustCompile(`Summarize Chapter (\d+):`)
)

// chapterContent 正文以 [ch N] 开头，之后是该章独有的词
func chapterContent(n int) string {
	return fmt.Sprintf("[ch %d] ", n) + strings.TrimSpace(strings.Repeat(fmt.Sprintf("word%d ", n), 300)) + fmt.Sprintf(" end%d", n)
}

// markerEmbedder 为每章返回一个基向量，可按章节覆盖
type markerEmbedder struct {
	override map[int][]float32
	fail     bool
}

func (e *markerEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, errors.New("embedding service down")
	}
	m := chapterMarker.FindStringSubmatch(text)
	if m == nil {
		return nil, errors.New("no chapter marker")
	}
	n, _ := strconv.Atoi(m[1])
	if v, ok := e.override[n]; ok {
		return v, nil
	}
	v := make([]float32, 16)
	v[n%16] = 1
	return v, nil
}

type fakeImages struct {
	failTitles map[string]bool
}

func (f *fakeImages) GenerateImage(_ context.Context, prompt string) (*illustration.ImageResult, error) {
	for title := range f.failTitles {
		if strings.Contains(prompt, fmt.Sprintf("%q", title)) {
			return nil, errors.New("content policy violation")
		}
	}
	return &illustration.ImageResult{URL: fmt.Sprintf("https://img.example/%d.png", len(prompt))}, nil
}

func outlineJSON(n int) string {
	titles := make([]string, 0, n)
	summaries := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		titles = append(titles, fmt.Sprintf("%q", fmt.Sprintf("Title %d", i)))
		summaries = append(summaries, fmt.Sprintf("%q", fmt.Sprintf("Planned %d", i)))
	}
	return fmt.Sprintf(`{
  "book_title": "The Lantern Keeper",
  "book_description": "A lighthouse story.",
  "chapter_titles": [%s],
  "chapter_summaries": [%s],
  "character_bios": [{"name": "Mira", "description": "keeper", "personality": "stubborn", "goals": "light"}],
  "world_info": {"setting": "coast"},
  "key_themes": ["courage"],
  "plot_outline": "Mira keeps the light."
}`, strings.Join(titles, ","), strings.Join(summaries, ","))
}

func summaryJSON(n int) string {
	return fmt.Sprintf(`{"summary": "Summary of chapter %d.", "key_events": ["event %d"], "character_developments": [{"character": "Mira", "development": "grows in chapter %d", "emotional_state": "hopeful"}]}`, n, n, n)
}

// script 按工作流返回脚本化输出，failChapter/failSummary 指定失败的章节
type script struct {
	chapters     int
	failChapter  int
	failSummary  int
	badOutline   bool
	blockChapter int
	// suffix 追加到每章正文末尾，用来区分不同运行的输出
	suffix string
}

func (s script) respond(ctx context.Context, workflow string, msgs []*schema.Message) (*schema.Message, error) {
	text := llmtest.UserText(msgs)
	switch workflow {
	case "outline_plan":
		if s.badOutline {
			return llmtest.Assistant("I could not plan this story."), nil
		}
		return llmtest.Assistant(outlineJSON(s.chapters)), nil
	case "chapter_generate":
		m := chapterToWrite.FindStringSubmatch(text)
		if m == nil {
			return nil, errors.New("chapter number missing from prompt")
		}
		n, _ := strconv.Atoi(m[1])
		if n == s.blockChapter {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		if n == s.failChapter {
			return nil, errors.New("provider returned 500")
		}
		return llmtest.Assistant(chapterContent(n) + s.suffix), nil
	case "chapter_summary":
		m := chapterSummarize.FindStringSubmatch(text)
		if m == nil {
			return nil, errors.New("chapter number missing from summary prompt")
		}
		n, _ := strconv.Atoi(m[1])
		if n == s.failSummary {
			return llmtest.Assistant("not json at all"), nil
		}
		return llmtest.Assistant(summaryJSON(n)), nil
	}
	return nil, fmt.Errorf("unexpected workflow %q", workflow)
}
