package config

import (
	"testing"
	"time"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envValue)

			result := getEnvOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envValue)

			result := getEnvAsIntOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsFloatOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		envValue   string
		defaultVal float64
		expected   float64
	}{
		{"parses float", "0.7", 0.1, 0.7},
		{"uses default for empty", "", 0.1, 0.1},
		{"uses default for garbage", "warm", 0.1, 0.1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_FLOAT", tc.envValue)

			result := getEnvAsFloatOrDefault("TEST_FLOAT", tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, result)
			}
		})
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing required env var")
		}
	}()

	t.Setenv("NONEXISTENT_REQUIRED_VAR", "")
	mustGetEnv("NONEXISTENT_REQUIRED_VAR")
}

func TestMustGetEnv_ReturnsValue(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "value123")

	result := mustGetEnv("TEST_REQUIRED")
	if result != "value123" {
		t.Errorf("Expected 'value123', got %q", result)
	}
}

func TestLoadSlot_Bedrock(t *testing.T) {
	t.Setenv("LLM_PRIMARY_PROVIDER", "")
	t.Setenv("LLM_PRIMARY_NAME", "")
	t.Setenv("BEDROCK_LLM_ID_CLAUDE", "anthropic.claude-3-haiku-20240307-v1:0")

	slot := loadSlot("PRIMARY", "claude", "BEDROCK_LLM_ID_CLAUDE", "gemini-1.5-flash")
	if slot.Provider != ProviderBedrock {
		t.Fatalf("expected bedrock provider, got %q", slot.Provider)
	}
	if slot.Name != "claude" {
		t.Fatalf("expected default name claude, got %q", slot.Name)
	}
	if slot.Model != "anthropic.claude-3-haiku-20240307-v1:0" {
		t.Fatalf("unexpected model %q", slot.Model)
	}
}

func TestLoadSlot_Gemini(t *testing.T) {
	t.Setenv("LLM_SECONDARY_PROVIDER", "gemini")
	t.Setenv("LLM_SECONDARY_NAME", "gemini")
	t.Setenv("GEMINI_MODEL_SECONDARY", "")

	slot := loadSlot("SECONDARY", "gpt", "BEDROCK_LLM_ID_GPT", "gemini-1.5-pro")
	if slot.Provider != ProviderGemini || slot.Model != "gemini-1.5-pro" || slot.Name != "gemini" {
		t.Fatalf("unexpected slot: %+v", slot)
	}
}

func TestLoadSlot_UnknownProviderPanics(t *testing.T) {
	t.Setenv("LLM_PRIMARY_PROVIDER", "openai-direct")

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for unsupported provider")
		}
	}()
	loadSlot("PRIMARY", "claude", "BEDROCK_LLM_ID_CLAUDE", "gemini-1.5-flash")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/quiz")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ADMIN_PASSWORD", "admin123")
	t.Setenv("ADMIN_PASSWORD_HASH", "")
	t.Setenv("LLM_PRIMARY_PROVIDER", "")
	t.Setenv("LLM_SECONDARY_PROVIDER", "")
	t.Setenv("BEDROCK_LLM_ID_CLAUDE", "claude-model")
	t.Setenv("BEDROCK_LLM_ID_GPT", "gpt-model")
	t.Setenv("LLM_TIMEOUT_SECONDS", "")
	t.Setenv("RECENT_ATTEMPTS_TO_AVOID", "")

	cfg := Load()

	if cfg.LLMTimeout != 15*time.Second {
		t.Errorf("expected 15s LLM timeout, got %s", cfg.LLMTimeout)
	}
	if cfg.RecentAttemptsToAvoid != 3 {
		t.Errorf("expected 3 recent attempts, got %d", cfg.RecentAttemptsToAvoid)
	}
	if cfg.AdminUsername != "admin" {
		t.Errorf("expected admin username, got %q", cfg.AdminUsername)
	}
	if cfg.SecondaryLLM.Model != "gpt-model" {
		t.Errorf("expected secondary model gpt-model, got %q", cfg.SecondaryLLM.Model)
	}
}
