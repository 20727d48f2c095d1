package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte("RIFF fake waveform"), 0o600); err != nil {
		t.Fatalf("write audio file: %v", err)
	}
	return path
}

func transcriptionServer(t *testing.T, wantFormat string, body map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("response_format"); got != wantFormat {
			t.Errorf("response_format = %q, expected %q", got, wantFormat)
		}
		if got := r.FormValue("model"); got != "test-model" {
			t.Errorf("model = %q, expected test-model", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTranscriber_Plain(t *testing.T) {
	server := transcriptionServer(t, "json", map[string]any{
		"text": "  नमस्ते दुनिया  ",
	})

	tr := NewPlainTranscriber(TranscriberConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
		Name:    "primary",
	})

	result, err := tr.TranscribeFile(context.Background(), writeAudioFile(t))
	if err != nil {
		t.Fatalf("TranscribeFile failed: %v", err)
	}

	if result.Text != "नमस्ते दुनिया" {
		t.Errorf("expected trimmed text, got %q", result.Text)
	}
	if len(result.Segments) != 0 {
		t.Errorf("plain mode must yield no segments, got %d", len(result.Segments))
	}
}

func TestTranscriber_Verbose(t *testing.T) {
	server := transcriptionServer(t, "verbose_json", map[string]any{
		"text":     "hello world",
		"language": "en",
		"segments": []map[string]any{
			{"id": 0, "start": 0.0, "end": 1.5, "text": " hello ", "no_speech_prob": 0.05},
			{"id": 1, "start": 1.5, "end": 3.0, "text": " world ", "no_speech_prob": 0.2},
		},
	})

	tr := NewVerboseTranscriber(TranscriberConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
		Name:    "fallback",
	})

	result, err := tr.TranscribeFile(context.Background(), writeAudioFile(t))
	if err != nil {
		t.Fatalf("TranscribeFile failed: %v", err)
	}

	if result.Language != "en" {
		t.Errorf("expected language en, got %q", result.Language)
	}
	if len(result.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(result.Segments))
	}
	seg := result.Segments[1]
	if seg.Text != "world" || seg.Start != 1.5 || seg.End != 3.0 || seg.NoSpeechProb != 0.2 {
		t.Errorf("unexpected segment: %+v", seg)
	}
}

func TestTranscriber_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tr := NewVerboseTranscriber(TranscriberConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
		Name:    "fallback",
	})

	if _, err := tr.TranscribeFile(context.Background(), writeAudioFile(t)); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestTranscriber_Name(t *testing.T) {
	tr := NewPlainTranscriber(TranscriberConfig{Model: "m", Name: "primary"})
	if tr.Name() != "primary" {
		t.Errorf("unexpected name %q", tr.Name())
	}
}
