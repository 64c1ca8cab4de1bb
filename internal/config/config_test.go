package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 5001 {
		t.Fatalf("expected default port 5001, got %d", cfg.HTTP.Port)
	}
	if cfg.Synthesis.Mode != "mock" {
		t.Fatalf("expected default synthesis mode mock, got %q", cfg.Synthesis.Mode)
	}
	if cfg.Synthesis.SingleThreshold != 2500 || cfg.Synthesis.MediumThreshold != 6000 {
		t.Fatalf("unexpected default thresholds: %d/%d", cfg.Synthesis.SingleThreshold, cfg.Synthesis.MediumThreshold)
	}
	if cfg.Synthesis.DefaultLanguage != "en-IN" {
		t.Fatalf("expected default language en-IN, got %q", cfg.Synthesis.DefaultLanguage)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PROFD_HTTP_PORT", "8081")
	t.Setenv("PROFD_COURSE_PATH", "./tmp-course.json")
	t.Setenv("PROFD_CHAT_MODE", "ollama")
	t.Setenv("PROFD_CHAT_ENDPOINT", "http://ollama:11434")
	t.Setenv("PROFD_SYNTHESIS_VOICE", "meera")
	t.Setenv("PROFD_SYNTHESIS_MAX_CONCURRENCY", "8")
	t.Setenv("PROFD_SYNTHESIS_ULTRA_FAST_CEILING", "2000")
	t.Setenv("PROFD_BUS_ENABLED", "true")
	t.Setenv("PROFD_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("PROFD_EVENT_STORE_RETENTION_MODE", "persistent")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Port != 8081 {
		t.Fatalf("expected port override, got %d", cfg.HTTP.Port)
	}
	if cfg.Course.Path != "./tmp-course.json" {
		t.Fatalf("expected course path override")
	}
	if cfg.Chat.Mode != "ollama" || cfg.Chat.Endpoint != "http://ollama:11434" {
		t.Fatalf("expected chat overrides, got %q %q", cfg.Chat.Mode, cfg.Chat.Endpoint)
	}
	if cfg.Synthesis.Voice != "meera" {
		t.Fatalf("expected voice override, got %q", cfg.Synthesis.Voice)
	}
	if cfg.Synthesis.MaxConcurrency != 8 {
		t.Fatalf("expected concurrency override, got %d", cfg.Synthesis.MaxConcurrency)
	}
	if cfg.Synthesis.UltraFastCeiling != 2000 {
		t.Fatalf("expected ultra fast ceiling override, got %d", cfg.Synthesis.UltraFastCeiling)
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 bus servers, got %v", cfg.Bus.Servers)
	}
	if cfg.EventStore.RetentionMode != "persistent" {
		t.Fatalf("expected retention mode override")
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	t.Setenv("PROFD_SYNTHESIS_MEDIUM_THRESHOLD", "1000")

	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for medium_threshold <= single_threshold")
	}
}
