package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	c := Default()
	if c.HTTPAddr != ":8080" || c.ServiceName != "dashboard-go" || c.Sheets.RefreshInterval != time.Hour {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.Map.AutoLoad != "toggle-el-consuelo" || c.Map.AutoLoadDelay != 500*time.Millisecond || c.Map.ReadyAttempts != 60 {
		t.Fatalf("unexpected map defaults: %+v", c.Map)
	}
	start, err := c.Counter.StartTime()
	if err != nil || !start.Equal(time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected counter start %v (%v)", start, err)
	}
	points, intervened := c.Map.Points()
	if len(points) != 13 || len(intervened) != 4 {
		t.Fatalf("expected built-in critical points, got %d/%d", len(points), len(intervened))
	}
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "dashboard.yaml")
	if err := os.WriteFile(file, []byte("log_level: debug\nmap:\n  zoom: 15\n  intervened: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	env := filepath.Join(dir, "config.env")
	if err := os.WriteFile(env, []byte("HOMICIDE_RESET_CODE=FROMDOTENV\nDATABASE_URL=postgres://dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOMICIDE_RESET_CODE", "")
	os.Unsetenv("HOMICIDE_RESET_CODE") // dotenv never overrides a variable that is set
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("REFRESH_INTERVAL", "15m")

	c, err := Load(LoadOptions{File: file, DotEnv: []string{env, filepath.Join(dir, "missing.env")}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.LogLevel != "debug" || c.Map.Zoom != 15 {
		t.Fatalf("file values not applied: %+v", c)
	}
	if c.DatabaseURL != "postgres://env" {
		t.Fatalf("environment should win over dotenv, got %q", c.DatabaseURL)
	}
	if c.Counter.Code != "FROMDOTENV" {
		t.Fatalf("dotenv value not applied, got %q", c.Counter.Code)
	}
	if c.Sheets.RefreshInterval != 15*time.Minute {
		t.Fatalf("REFRESH_INTERVAL not applied: %s", c.Sheets.RefreshInterval)
	}
	if _, intervened := c.Map.Points(); len(intervened) != 0 {
		t.Fatalf("explicit empty intervened list should be kept, got %v", intervened)
	}
}

func TestPortEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("PORT", "5000")
	c, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.HTTPAddr != ":5000" {
		t.Fatalf("HTTPAddr = %q", c.HTTPAddr)
	}
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("HOMICIDE_RESET_DATE", "12/03/2025")
	t.Setenv("REFRESH_INTERVAL", "0s")
	_, err := Load(LoadOptions{})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"refresh_interval", "counter start"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q should mention %q", err, want)
		}
	}

	t.Setenv("REFRESH_INTERVAL", "soon")
	if _, err := Load(LoadOptions{}); err == nil || !strings.Contains(err.Error(), "REFRESH_INTERVAL") {
		t.Fatalf("expected REFRESH_INTERVAL parse error, got %v", err)
	}
}
