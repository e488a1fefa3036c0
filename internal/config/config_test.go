package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.Store.PageSizeDefault != 5 {
		t.Fatalf("expected default page size 5, got %d", cfg.Store.PageSizeDefault)
	}
	if cfg.WS.IdentifyTimeout != 10*time.Second {
		t.Fatalf("expected identify timeout 10s, got %s", cfg.WS.IdentifyTimeout)
	}
	if cfg.WS.PingPeriod() >= cfg.WS.PongWait {
		t.Fatal("ping period must be shorter than pong wait")
	}
}

func TestLoadProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/chat")
	t.Setenv("REDIS_URL", "")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for production without REDIS_URL")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("DB_DRIVER", "mongo")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.IsProduction() {
		t.Fatal("default config must not be production")
	}
}
