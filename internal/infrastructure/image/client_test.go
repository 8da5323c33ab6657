package image

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"z-ebook-api/internal/config"
)

func newTestClient(url string) *Client {
	return NewClient(&config.ImageConfig{
		Enabled:       true,
		APIKey:        "sk-test",
		BaseURL:       url,
		Model:         "dall-e-3",
		Size:          "1024x1024",
		RatePerMinute: 6000,
		Burst:         5,
	})
}

func TestNewClientDisabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.ImageConfig
	}{
		{"nil", nil},
		{"disabled", &config.ImageConfig{APIKey: "k"}},
		{"no key", &config.ImageConfig{Enabled: true}},
	}
	for _, tt := range tests {
		if c := NewClient(tt.cfg); c != nil {
			t.Errorf("%s: expected nil client", tt.name)
		}
	}
}

func TestGenerateImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.N != 1 || req.ResponseFormat != "url" || req.Model != "dall-e-3" {
			t.Errorf("request = %+v", req)
		}
		_, _ = w.Write([]byte(`{"data":[{"url":"https://img/1.png","revised_prompt":"a lighthouse"}]}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).GenerateImage(context.Background(), "a lighthouse at dusk")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if res.URL != "https://img/1.png" || res.RevisedPrompt != "a lighthouse" {
		t.Errorf("result = %+v", res)
	}
}

func TestGenerateImageErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"api error", http.StatusBadRequest, `{"error":{"message":"content policy","type":"invalid_request_error"}}`, "content policy"},
		{"empty data", http.StatusOK, `{"data":[]}`, "no image"},
		{"bad json", http.StatusBadGateway, `<html>`, "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).GenerateImage(context.Background(), "prompt")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
