// Package config loads the dashboard settings: embedded YAML defaults, an optional YAML file, an
// optional dotenv file, then environment variables.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"indicadores/dashboard-go/internal/overlay"
)

//go:embed defaults.yaml
var defaultsYAML []byte

const dateLayout = "2006-01-02"

type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	ServiceName string `yaml:"service_name"`
	LogLevel    string `yaml:"log_level"`
	DatabaseURL string `yaml:"database_url"`
	// StaticDir serves assets from disk instead of the embedded copy.
	StaticDir string `yaml:"static_dir"`

	Sheets  Sheet   `yaml:"sheets"`
	Survey  Sheet   `yaml:"survey"`
	Counter Counter `yaml:"counter"`
	Map     Map     `yaml:"map"`
}

type Sheet struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	Range           string `yaml:"range"`
	CredentialsFile string `yaml:"credentials_file"`
	// CredentialsJSON only comes from the environment.
	CredentialsJSON string        `yaml:"-"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	Timeout         time.Duration `yaml:"timeout"`
}

type Counter struct {
	Name  string `yaml:"name"`
	Code  string `yaml:"code"`
	Start string `yaml:"start"`
}

// StartTime is the counter's initial reset date, midnight UTC.
func (c Counter) StartTime() (time.Time, error) {
	t, err := time.Parse(dateLayout, c.Start)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: counter start %q: %w", c.Start, err)
	}
	return t, nil
}

type Map struct {
	CenterLat        float64                 `yaml:"center_lat"`
	CenterLng        float64                 `yaml:"center_lng"`
	Zoom             int                     `yaml:"zoom"`
	AutoLoad         string                  `yaml:"auto_load"`
	AutoLoadDelay    time.Duration           `yaml:"auto_load_delay"`
	ElConsueloKML    string                  `yaml:"el_consuelo_kml"`
	BateriaSocialKML string                  `yaml:"bateria_social_kml"`
	ReadyInterval    time.Duration           `yaml:"ready_interval"`
	ReadyAttempts    int                     `yaml:"ready_attempts"`
	CriticalPoints   []overlay.CriticalPoint `yaml:"critical_points"`
	Intervened       []string                `yaml:"intervened"`
}

// Points falls back to the built-in critical points when none are configured.
func (m Map) Points() ([]overlay.CriticalPoint, []string) {
	points, intervened := m.CriticalPoints, m.Intervened
	if len(points) == 0 {
		points = overlay.DefaultCriticalPoints
	}
	if intervened == nil {
		intervened = overlay.DefaultIntervened
	}
	return points, intervened
}

type LoadOptions struct {
	// File is an optional YAML file layered over the defaults.
	File string
	// DotEnv files are loaded into the environment without overriding variables already set.
	DotEnv []string
}

// Default returns the embedded defaults.
func Default() Config {
	var c Config
	if err := yaml.Unmarshal(defaultsYAML, &c); err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return c
}

func Load(opts LoadOptions) (Config, error) {
	c := Default()

	if opts.File != "" {
		raw, err := os.ReadFile(opts.File)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", opts.File, err)
		}
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", opts.File, err)
		}
	}

	for _, p := range opts.DotEnv {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: dotenv %s: %w", p, err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	c.HTTPAddr = envOr("HTTP_ADDR", c.HTTPAddr)
	if port := os.Getenv("PORT"); port != "" && os.Getenv("HTTP_ADDR") == "" {
		c.HTTPAddr = ":" + port
	}
	c.ServiceName = envOr("SERVICE_NAME", c.ServiceName)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.DatabaseURL = envOr("DATABASE_URL", c.DatabaseURL)
	c.StaticDir = envOr("STATIC_DIR", c.StaticDir)

	c.Sheets.SpreadsheetID = envOr("SPREADSHEET_ID", envOr("GOOGLE_SHEET_ID", c.Sheets.SpreadsheetID))
	c.Sheets.Range = envOr("SHEET_RANGE", c.Sheets.Range)
	c.Sheets.CredentialsFile = envOr("GOOGLE_SHEETS_CREDENTIALS_FILE", c.Sheets.CredentialsFile)
	c.Sheets.CredentialsJSON = envOr("GOOGLE_CREDENTIALS_JSON", c.Sheets.CredentialsJSON)

	c.Survey.SpreadsheetID = envOr("SPREADSHEET_CONSUELO_ID", c.Survey.SpreadsheetID)
	c.Survey.CredentialsFile = envOr("GOOGLE_SHEETS_CONSUELO_CREDENTIALS_FILE", c.Survey.CredentialsFile)
	c.Survey.CredentialsJSON = envOr("GOOGLE_CREDENTIALS_CONSUELO_JSON", c.Survey.CredentialsJSON)

	c.Counter.Code = envOr("HOMICIDE_RESET_CODE", c.Counter.Code)
	c.Counter.Start = envOr("HOMICIDE_RESET_DATE", c.Counter.Start)
	c.Map.AutoLoad = envOr("MAP_AUTOLOAD", c.Map.AutoLoad)

	var err error
	if c.Sheets.RefreshInterval, err = envDuration("REFRESH_INTERVAL", c.Sheets.RefreshInterval); err != nil {
		return err
	}
	if c.Map.Zoom, err = envInt("MAP_ZOOM", c.Map.Zoom); err != nil {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if c.Sheets.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("sheets.refresh_interval must be positive, got %s", c.Sheets.RefreshInterval))
	}
	if c.Counter.Code == "" {
		errs = append(errs, errors.New("counter.code is required"))
	}
	if _, err := c.Counter.StartTime(); err != nil {
		errs = append(errs, err)
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 22 {
		errs = append(errs, fmt.Errorf("map.zoom out of range: %d", c.Map.Zoom))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}

func envOr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := envOr(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := envOr(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
