package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ALLOWED_ORIGIN", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REPORT_CACHE_TTL_SECONDS", "")
	t.Setenv("LOG_LEVEL", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("expected empty DATABASE_URL when unset, got %q", cfg.DatabaseURL)
	}
	if cfg.ReportCacheTTLSeconds != 15 {
		t.Fatalf("expected default report cache TTL 15, got %d", cfg.ReportCacheTTLSeconds)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.LogLevel)
	}
}

func TestLoadRejectsBadCacheTTL(t *testing.T) {
	t.Setenv("REPORT_CACHE_TTL_SECONDS", "not-a-number")
	if cfg := Load(); cfg.ReportCacheTTLSeconds != 15 {
		t.Fatalf("expected fallback TTL 15 for garbage input, got %d", cfg.ReportCacheTTLSeconds)
	}

	t.Setenv("REPORT_CACHE_TTL_SECONDS", "0")
	if cfg := Load(); cfg.ReportCacheTTLSeconds != 15 {
		t.Fatalf("expected fallback TTL 15 for zero, got %d", cfg.ReportCacheTTLSeconds)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGIN", "https://ledger.example.com")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected port override, got %q", cfg.Port)
	}
	if cfg.AllowedOrigin != "https://ledger.example.com" {
		t.Fatalf("expected origin override, got %q", cfg.AllowedOrigin)
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 2 {
		t.Fatalf("expected redis overrides, got %q db %d", cfg.RedisAddr, cfg.RedisDB)
	}
}
