package repetition

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"z-ebook-api/internal/domain/entity"
	apperrors "z-ebook-api/pkg/errors"
)

type memoryStore struct {
	items   []*entity.ChapterEmbedding
	listErr error
}

func (s *memoryStore) Save(_ context.Context, emb *entity.ChapterEmbedding) error {
	s.items = append(s.items, emb)
	return nil
}

func (s *memoryStore) ListBefore(_ context.Context, generationID string, chapterNumber int) ([]*entity.ChapterEmbedding, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*entity.ChapterEmbedding
	for _, e := range s.items {
		if e.GenerationID == generationID && e.ChapterNumber < chapterNumber {
			out = append(out, e)
		}
	}
	return out, nil
}

// fixedEmbedder 按文本返回预设向量
type fixedEmbedder map[string][]float32

func (e fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v, ok := e[text]
	if !ok {
		return nil, errors.New("unknown text")
	}
	return v, nil
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float32
		want    float64
		wantErr bool
	}{
		{"self", []float32{0.3, -1.2, 4}, []float32{0.3, -1.2, 4}, 1, false},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0, false},
		{"opposite", []float32{1, 2}, []float32{-1, -2}, -1, false},
		{"zero left", []float32{0, 0, 0}, []float32{1, 2, 3}, 0, false},
		{"zero right", []float32{1, 2, 3}, []float32{0, 0, 0}, 0, false},
		{"both empty", []float32{}, []float32{}, 0, false},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !approx(got, tt.want) {
				t.Errorf("similarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHashingEmbedder(t *testing.T) {
	ctx := context.Background()
	e := NewHashingEmbedder(64)

	a, _ := e.Embed(ctx, "The storm broke over the lighthouse at dawn.")
	b, _ := e.Embed(ctx, "the STORM broke over the lighthouse, at dawn")
	c, _ := e.Embed(ctx, "Quarterly revenue grew in the northern region.")

	if len(a) != 64 {
		t.Fatalf("dimension = %d", len(a))
	}
	if sim, _ := CosineSimilarity(a, b); !approx(sim, 1) {
		t.Errorf("same tokens similarity = %v, want 1", sim)
	}
	if sim, _ := CosineSimilarity(a, c); sim >= DefaultThreshold {
		t.Errorf("unrelated text similarity = %v, should be below threshold", sim)
	}

	empty, _ := e.Embed(ctx, "  ...  ")
	if sim, _ := CosineSimilarity(empty, a); sim != 0 {
		t.Errorf("empty text similarity = %v, want 0", sim)
	}
}

func TestDetectorCheck(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{items: []*entity.ChapterEmbedding{
		{GenerationID: "g", ChapterNumber: 1, Vector: []float32{1, 0, 0}},
		{GenerationID: "g", ChapterNumber: 2, Vector: []float32{0, 1, 0}},
		{GenerationID: "other", ChapterNumber: 1, Vector: []float32{0.9, 0.4359, 0}},
	}}
	embedder := fixedEmbedder{
		"near ch1": {0.9, 0, 0.4359},
		"fresh":    {0.4359, 0, 0.9},
		"same ch2": {0, 1, 0},
		"opposite": {-1, -1, 0},
	}
	d := NewDetector(embedder, store, 0)

	tests := []struct {
		name        string
		text        string
		chapter     int
		threshold   float64
		wantRep     bool
		wantSimilar []int
		wantMax     float64
	}{
		{"near duplicate of chapter 1", "near ch1", 3, 0, true, []int{1}, 0.9},
		{"fresh content", "fresh", 3, 0, false, []int{}, 0.4359},
		{"only earlier chapters compared", "same ch2", 2, 0, false, []int{}, 0},
		{"threshold equal to max is repetitive", "same ch2", 3, 1, true, []int{2}, 1},
		{"custom threshold", "near ch1", 3, 0.95, false, []int{}, 0.9},
		{"all earlier chapters opposite", "opposite", 3, 0, false, []int{}, -0.7071},
		{"first chapter has nothing to compare", "opposite", 1, 0, false, []int{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := d.Check(ctx, "g", tt.text, tt.chapter, tt.threshold)
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if res.IsRepetitive != tt.wantRep {
				t.Errorf("repetitive = %v, want %v", res.IsRepetitive, tt.wantRep)
			}
			if !reflect.DeepEqual(res.SimilarChapters, tt.wantSimilar) {
				t.Errorf("similar = %v, want %v", res.SimilarChapters, tt.wantSimilar)
			}
			if math.Abs(res.MaxSimilarity-tt.wantMax) > 1e-3 {
				t.Errorf("max = %v, want %v", res.MaxSimilarity, tt.wantMax)
			}
		})
	}
}

func TestDetectorCheckErrors(t *testing.T) {
	ctx := context.Background()

	d := NewDetector(fixedEmbedder{}, &memoryStore{}, 0)
	if _, err := d.Check(ctx, "g", "missing", 1, 0); !errors.Is(err, apperrors.ErrEmbeddingFailed) {
		t.Errorf("embed failure err = %v", err)
	}

	d = NewDetector(fixedEmbedder{"x": {1, 0}}, &memoryStore{items: []*entity.ChapterEmbedding{
		{GenerationID: "g", ChapterNumber: 1, Vector: []float32{1, 0, 0}},
	}}, 0)
	if _, err := d.Check(ctx, "g", "x", 2, 0); err == nil {
		t.Error("expected dimension mismatch error")
	}

	d = NewDetector(fixedEmbedder{"x": {1, 0}}, &memoryStore{listErr: errors.New("db down")}, 0)
	if _, err := d.Check(ctx, "g", "x", 2, 0); err == nil {
		t.Error("expected store error")
	}
}

func TestDetectorRecord(t *testing.T) {
	store := &memoryStore{}
	d := NewDetector(NewHashingEmbedder(8), store, 0.9)
	if d.Threshold() != 0.9 {
		t.Errorf("threshold = %v", d.Threshold())
	}
	if err := d.Record(context.Background(), &entity.ChapterEmbedding{GenerationID: "g", ChapterNumber: 1}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(store.items) != 1 || store.items[0].ContentType != entity.ContentTypeChapter || store.items[0].CreatedAt.IsZero() {
		t.Errorf("stored = %+v", store.items)
	}
}
