package config

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Server.Address)
	}
	if cfg.History.Keep != 20 || cfg.History.Context != 12 {
		t.Fatalf("unexpected history bounds: %+v", cfg.History)
	}
	if cfg.LLM.Providers["groq"].Model != "llama-3.3-70b-versatile" {
		t.Fatalf("unexpected groq model %q", cfg.LLM.Providers["groq"].Model)
	}
}

func TestLoadConfigEnvOnlyBoot(t *testing.T) {
	t.Setenv("DAYBREAK_SERVER_JWT_SECRET", "super-secret")
	t.Setenv("DAYBREAK_STORAGE_REDIS_ADDRESS", "localhost:6379")
	t.Setenv("DAYBREAK_LLM_PROVIDERS_OPENAI_API_KEY", "sk-env-123")
	t.Setenv("DAYBREAK_LLM_DEFAULT", "groq")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.JWTSecret != "super-secret" {
		t.Fatalf("jwt secret not picked up from env, got %q", cfg.Server.JWTSecret)
	}
	if cfg.Storage.Redis.Address != "localhost:6379" {
		t.Fatalf("redis address not picked up from env, got %q", cfg.Storage.Redis.Address)
	}
	if cfg.LLM.Providers["openai"].APIKey != "sk-env-123" {
		t.Fatalf("openai key not picked up from env, got %q", cfg.LLM.Providers["openai"].APIKey)
	}
	if cfg.LLM.Default != "groq" {
		t.Fatalf("default provider not picked up from env, got %q", cfg.LLM.Default)
	}
}

func TestLoadConfigProviderKeyEnvWins(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gm-key-456")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLM.Providers["gemini"].APIKey != "gm-key-456" {
		t.Fatalf("conventional key var ignored, got %q", cfg.LLM.Providers["gemini"].APIKey)
	}
}
