package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost/pricing",
		"REDIS_URL":    "redis://localhost:6379",
		"PRICES_TTL":   "",
		"PORT":         "",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PricesTTL != time.Hour {
		t.Fatalf("expected default TTL of 1h, got %s", cfg.PricesTTL)
	}
	if cfg.HTTPAddr() != ":8080" {
		t.Fatalf("expected default addr :8080, got %s", cfg.HTTPAddr())
	}
	if cfg.RefreshBatch != 100 {
		t.Fatalf("expected default refresh batch, got %d", cfg.RefreshBatch)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	if _, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379",
	}); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestPricesTTLOverride(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost/pricing",
		"REDIS_URL":    "redis://localhost:6379",
		"PRICES_TTL":   "15m",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PricesTTL != 15*time.Minute {
		t.Fatalf("expected 15m TTL, got %s", cfg.PricesTTL)
	}
}
