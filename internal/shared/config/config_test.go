package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "picks-service")

	cfg := Load()

	if cfg.HTTPPort != "8080" || cfg.MetricsPort != "9095" {
		t.Errorf("ports = %s/%s, want 8080/9095", cfg.HTTPPort, cfg.MetricsPort)
	}
	if cfg.FeedPollInterval != 4*time.Second {
		t.Errorf("FeedPollInterval = %v, want 4s", cfg.FeedPollInterval)
	}
	if cfg.ResultsPollInterval != 5*time.Minute {
		t.Errorf("ResultsPollInterval = %v, want 5m", cfg.ResultsPollInterval)
	}
	if cfg.StartingAttempts != 10 {
		t.Errorf("StartingAttempts = %d, want 10", cfg.StartingAttempts)
	}
	want := []string{"football", "tennis", "hockey"}
	if len(cfg.AllowedSports) != len(want) {
		t.Fatalf("AllowedSports = %v, want %v", cfg.AllowedSports, want)
	}
	for i := range want {
		if cfg.AllowedSports[i] != want[i] {
			t.Errorf("AllowedSports[%d] = %s, want %s", i, cfg.AllowedSports[i], want[i])
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "feed-ingest")
	t.Setenv("FEED_POLL_INTERVAL", "750ms")
	t.Setenv("ALLOWED_SPORTS", " Football , HOCKEY ,")
	t.Setenv("STARTING_ATTEMPTS", "not-a-number")
	t.Setenv("FEED_TIMEOUT", "-3s")

	cfg := Load()

	if cfg.MetricsPort != "9096" {
		t.Errorf("MetricsPort = %s, want 9096", cfg.MetricsPort)
	}
	if cfg.FeedPollInterval != 750*time.Millisecond {
		t.Errorf("FeedPollInterval = %v, want 750ms", cfg.FeedPollInterval)
	}
	if len(cfg.AllowedSports) != 2 || cfg.AllowedSports[0] != "football" || cfg.AllowedSports[1] != "hockey" {
		t.Errorf("AllowedSports = %v", cfg.AllowedSports)
	}
	if cfg.StartingAttempts != 10 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.StartingAttempts)
	}
	if cfg.FeedTimeout != 10*time.Second {
		t.Errorf("negative duration should fall back to default, got %v", cfg.FeedTimeout)
	}
}

func TestLoadProcessorAndCORS(t *testing.T) {
	t.Setenv("SERVICE_NAME", "quote-processor")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://Picks.example.com")

	cfg := Load()

	if cfg.MetricsPort != "9098" || cfg.HTTPPort != "" {
		t.Errorf("ports = %q/%q, want \"\"/9098", cfg.HTTPPort, cfg.MetricsPort)
	}
	if cfg.KafkaGroupID != "quote-processor" {
		t.Errorf("KafkaGroupID = %s", cfg.KafkaGroupID)
	}
	// origens mantêm o case original
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://Picks.example.com" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}
