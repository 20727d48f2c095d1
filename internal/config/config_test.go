package config

import "testing"

func validConfig() Config {
	cfg := Config{
		HTTP:      HTTPConfig{Port: 8000},
		Embedding: EmbeddingConfig{Model: "text-embedding-3-small", APIKey: "key"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingEmbeddingModel(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Model = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding model")
	}
}

func TestValidate_HalfConfiguredSTTSlot(t *testing.T) {
	cfg := validConfig()
	cfg.STT.Primary = SpeechModelConfig{APIKey: "key", BaseURL: "https://stt.example.com/v1"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for STT slot without model")
	}

	expected := "stt.primary.model is required when the slot is configured"
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_AbsentSTTSlotsAllowed(t *testing.T) {
	cfg := validConfig()

	if cfg.STT.Primary.Configured() || cfg.STT.Fallback.Configured() {
		t.Fatal("expected both slots unconfigured")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{HTTP: HTTPConfig{Port: 8000}}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected read timeout default 10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 120 {
		t.Errorf("expected write timeout default 120, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Index.Dir != "./index" {
		t.Errorf("expected index dir default, got %q", cfg.Index.Dir)
	}
	if cfg.Stocks.BaseURL == "" {
		t.Error("expected stocks base_url default")
	}
	if cfg.Cache.Enabled() {
		t.Error("expected cache disabled without addrs")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("RAGSERVE_TEST_KEY", "secret")

	tests := []struct {
		input    string
		expected string
	}{
		{"api_key: ${RAGSERVE_TEST_KEY}", "api_key: secret"},
		{"dir: ${RAGSERVE_TEST_UNSET:-./index}", "dir: ./index"},
		{"plain: value", "plain: value"},
	}

	for _, tc := range tests {
		got := string(expandEnvVars([]byte(tc.input)))
		if got != tc.expected {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}
