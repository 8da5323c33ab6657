package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/components/embedding"

	"z-ebook-api/internal/application/story/repetition"
	"z-ebook-api/internal/config"
)

func TestClientEmbedBatches(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" {
			t.Errorf("path = %s, want /embed", r.URL.Path)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		calls++
		resp := embedResponse{}
		for range req.Texts {
			resp.Embeddings = append(resp.Embeddings, []float32{1, 0})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(&config.EmbeddingConfig{Endpoint: srv.URL, BatchSize: 2})
	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 || calls != 2 {
		t.Errorf("vectors = %d, calls = %d, want 3 and 2", len(vecs), calls)
	}

	v, err := c.Embed(context.Background(), "single")
	if err != nil || len(v) != 2 {
		t.Errorf("Embed = %v, %v", v, err)
	}
}

func TestClientEmbedErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tests := []struct {
		name     string
		endpoint string
	}{
		{"server error", srv.URL},
		{"empty endpoint", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(&config.EmbeddingConfig{Endpoint: tt.endpoint})
			if _, err := c.Embed(context.Background(), "text"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

type fakeEinoEmbedder struct {
	vecs [][]float64
	err  error
}

func (f *fakeEinoEmbedder) EmbedStrings(context.Context, []string, ...embedding.Option) ([][]float64, error) {
	return f.vecs, f.err
}

func TestEinoAdapter(t *testing.T) {
	a := NewEinoAdapter(&fakeEinoEmbedder{vecs: [][]float64{{0.5, -0.25}}})
	v, err := a.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 2 || v[0] != 0.5 || v[1] != -0.25 {
		t.Errorf("vector = %v", v)
	}

	if _, err := NewEinoAdapter(&fakeEinoEmbedder{err: errors.New("quota")}).Embed(context.Background(), "x"); err == nil {
		t.Error("expected upstream error")
	}
	if _, err := NewEinoAdapter(&fakeEinoEmbedder{}).Embed(context.Background(), "x"); err == nil {
		t.Error("expected error on empty result")
	}
}

func TestNewChapterEmbedderFallsBack(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.EmbeddingConfig
		want string
	}{
		{"default", config.EmbeddingConfig{Dimension: 64}, "hashing"},
		{"openai without key", config.EmbeddingConfig{Provider: "openai", Dimension: 64}, "hashing"},
		{"http without endpoint", config.EmbeddingConfig{Provider: "http", Dimension: 64}, "hashing"},
		{"http", config.EmbeddingConfig{Provider: "http", Endpoint: "http://embed.local", Dimension: 64}, "http"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewChapterEmbedder(context.Background(), &tt.cfg)
			var got string
			switch e.(type) {
			case *repetition.HashingEmbedder:
				got = "hashing"
			case *Client:
				got = "http"
			case *EinoAdapter:
				got = "openai"
			}
			if got != tt.want {
				t.Errorf("embedder = %s, want %s", got, tt.want)
			}
		})
	}
}
