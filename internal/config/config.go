package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	State    StateConfig    `yaml:"state"`
	Search   SearchConfig   `yaml:"search"`
	Rates    RatesConfig    `yaml:"rates"`
	Media    MediaConfig    `yaml:"media"`
	Admin    AdminConfig    `yaml:"admin"`
	SiteURL  string         `yaml:"site_url"`
	Feeds    []FeedConfig   `yaml:"feeds"`
	Timezone string         `yaml:"timezone"`

	// TermNames gives display names to taxonomy slugs seeded at startup
	TermNames map[string]string `yaml:"term_names"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Type     string         `yaml:"type"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
	LogSQL   bool           `yaml:"log_sql"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// StateConfig selects where locks, cursors and cached rates live.
// Backend is one of "redis", "database" or "memory".
type StateConfig struct {
	Backend   string `yaml:"backend"`
	RedisURL  string `yaml:"redis_url"`
	KeyPrefix string `yaml:"key_prefix"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
	Index  string `yaml:"index"`
}

// RatesConfig contains exchange rate provider settings
type RatesConfig struct {
	ProviderURL    string             `yaml:"provider_url"`
	TTLHours       int                `yaml:"ttl_hours"`
	TimeoutSeconds int                `yaml:"timeout_seconds"`
	Fallback       map[string]float64 `yaml:"fallback"`
}

// MediaConfig contains image import settings
type MediaConfig struct {
	UploadDir              string `yaml:"upload_dir"`
	MaxPhotos              int    `yaml:"max_photos"`
	ConvertWebP            bool   `yaml:"convert_webp"`
	DownloadTimeoutSeconds int    `yaml:"download_timeout_seconds"`
	RequestDelayMillis     int    `yaml:"request_delay_millis"`
	UserAgent              string `yaml:"user_agent"`
}

// AdminConfig contains admin API settings
type AdminConfig struct {
	Port              string   `yaml:"port"`
	Token             string   `yaml:"token"`
	AllowOrigins      []string `yaml:"allow_origins"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	RequestsPerHour   int      `yaml:"requests_per_hour"`
}

// FeedConfig describes one external feed source
type FeedConfig struct {
	Name                string `yaml:"name"`
	URL                 string `yaml:"url"`
	Schema              string `yaml:"schema"` // realty | offer
	Tables              string `yaml:"tables"` // aspo | flatprime
	Mode                string `yaml:"mode"`   // upsert | insert_only
	AuthorID            uint   `yaml:"author_id"`
	ParentID            uint   `yaml:"parent_id"`
	FixedCategory       string `yaml:"fixed_category"`
	RoomSuffix          string `yaml:"room_suffix"`
	Country             string `yaml:"country"`
	LogFile             string `yaml:"log_file"`
	SuccessLimit        int    `yaml:"success_limit"`
	MaxInspected        int    `yaml:"max_inspected"`
	LockTTLMinutes      int    `yaml:"lock_ttl_minutes"`
	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds"`
	Schedule            string `yaml:"schedule"`
	SweepSchedule       string `yaml:"sweep_schedule"`
	MaxDeletionCount    int    `yaml:"max_deletion_count"`
	Excerpt             string `yaml:"excerpt"`

	Report ReportConfig `yaml:"report"`

	CategoryOverrides map[string]string `yaml:"category_overrides"`
	CityOverrides     map[string]string `yaml:"city_overrides"`
	RegionOverrides   map[string]string `yaml:"region_overrides"`
}

// ReportConfig describes the outbound XML report of a source
type ReportConfig struct {
	Path     string `yaml:"path"`
	AuthorID uint   `yaml:"author_id"`
	Schedule string `yaml:"schedule"`
}

// DefaultMaxDeletionCount caps a sweep when max_deletion_count is unset.
// A negative max_deletion_count removes the cap.
const DefaultMaxDeletionCount = 5000

// Feed modes
const (
	ModeUpsert     = "upsert"
	ModeInsertOnly = "insert_only"
)

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type: "mysql",
			MySQL: MySQLConfig{
				Host: "localhost",
				Port: 3306,
			},
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				SSLMode: "disable",
			},
		},
		State: StateConfig{
			Backend:   "database",
			KeyPrefix: "feedsync:",
		},
		Search: SearchConfig{
			Meilisearch: MeilisearchConfig{Index: "listings"},
		},
		Rates: RatesConfig{
			ProviderURL:    "https://bank.gov.ua/NBUStatService/v1/statdirectory/exchange",
			TTLHours:       12,
			TimeoutSeconds: 10,
			Fallback: map[string]float64{
				"EUR": 54,
				"USD": 45.67,
			},
		},
		Media: MediaConfig{
			UploadDir:              "uploads",
			MaxPhotos:              6,
			ConvertWebP:            true,
			DownloadTimeoutSeconds: 15,
			RequestDelayMillis:     200,
			UserAgent:              "Mozilla/5.0 (compatible; realty-feed-sync/1.0)",
		},
		Admin: AdminConfig{
			Port:              "8084",
			AllowOrigins:      []string{"http://localhost:5176"},
			RequestsPerMinute: 6,
			RequestsPerHour:   60,
		},
		Timezone: "Europe/Kyiv",
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		config.applyFeedDefaults()
		return config, nil
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyFeedDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyFeedDefaults fills zero values of every feed entry
func (c *Config) applyFeedDefaults() {
	for i := range c.Feeds {
		f := &c.Feeds[i]
		if f.Schema == "" {
			f.Schema = "realty"
		}
		if f.Tables == "" {
			f.Tables = f.Name
		}
		if f.Mode == "" {
			f.Mode = ModeUpsert
		}
		if f.RoomSuffix == "" {
			f.RoomSuffix = "-room"
		}
		if f.Country == "" {
			f.Country = "Україна"
		}
		if f.LogFile == "" {
			f.LogFile = fmt.Sprintf("logs/%s.log", f.Name)
		}
		if f.SuccessLimit <= 0 {
			f.SuccessLimit = 20
		}
		if f.MaxInspected <= 0 {
			f.MaxInspected = 100
		}
		if f.LockTTLMinutes <= 0 {
			f.LockTTLMinutes = 25
		}
		if f.FetchTimeoutSeconds <= 0 {
			f.FetchTimeoutSeconds = 60
		}
		if f.Schedule == "" {
			f.Schedule = "@every 30m"
		}
		if f.MaxDeletionCount == 0 {
			f.MaxDeletionCount = DefaultMaxDeletionCount
		}
		if f.Report.AuthorID == 0 {
			f.Report.AuthorID = f.AuthorID
		}
	}
}

// Validate checks that every feed entry is usable
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Feeds))
	for _, f := range c.Feeds {
		if f.Name == "" {
			return fmt.Errorf("feed without name")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate feed %q", f.Name)
		}
		seen[f.Name] = true
		if f.URL == "" {
			return fmt.Errorf("feed %q: url is required", f.Name)
		}
		if f.Schema != "realty" && f.Schema != "offer" {
			return fmt.Errorf("feed %q: unknown schema %q", f.Name, f.Schema)
		}
		if f.Mode != ModeUpsert && f.Mode != ModeInsertOnly {
			return fmt.Errorf("feed %q: unknown mode %q", f.Name, f.Mode)
		}
		if f.AuthorID == 0 {
			return fmt.Errorf("feed %q: author_id is required", f.Name)
		}
	}
	return nil
}

// Feed returns the feed configuration with the given name
func (c *Config) Feed(name string) (FeedConfig, bool) {
	for _, f := range c.Feeds {
		if f.Name == name {
			return f, true
		}
	}
	return FeedConfig{}, false
}

// Location returns the scheduler time zone, falling back to local time
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// GetLockTTL returns the run lock TTL as a duration
func (f *FeedConfig) GetLockTTL() time.Duration {
	return time.Duration(f.LockTTLMinutes) * time.Minute
}

// GetFetchTimeout returns the feed fetch timeout as a duration
func (f *FeedConfig) GetFetchTimeout() time.Duration {
	return time.Duration(f.FetchTimeoutSeconds) * time.Second
}

// InsertOnly reports whether existing listings are never updated
func (f *FeedConfig) InsertOnly() bool {
	return f.Mode == ModeInsertOnly
}

// GetTTL returns the rate cache TTL as a duration
func (c *RatesConfig) GetTTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// GetTimeout returns the rate provider timeout as a duration
func (c *RatesConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetDownloadTimeout returns the image download timeout as a duration
func (c *MediaConfig) GetDownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutSeconds) * time.Second
}

// GetRequestDelay returns the minimum delay between image downloads
func (c *MediaConfig) GetRequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMillis) * time.Millisecond
}
