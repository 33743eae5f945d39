package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"event-calendar/internal/model"
)

// Config keeps runtime settings for the calendar.
type Config struct {
	DatabaseURL string
	ListenAddr  string
	Timezone    string
	Location    *time.Location
	LogLevel    slog.Level

	TelegramToken      string
	TelegramAllowedIDs []int64
	AgendaTime         string

	UpcomingLimit           int
	UpcomingExcludeCategory string

	BasicAuthUser     string
	BasicAuthPassword string

	TagRules model.TagRules
	Labels   model.Labels
}

// fileConfig is the optional YAML file named by CONFIG_FILE.
type fileConfig struct {
	Listen       string          `yaml:"listen"`
	Database     string          `yaml:"database"`
	Timezone     string          `yaml:"timezone"`
	AgendaTime   string          `yaml:"agenda_time"`
	Telegram     struct {
		AllowedIDs []int64 `yaml:"allowed_ids"`
	} `yaml:"telegram"`
	TagRules     []model.TagRule `yaml:"tag_rules"`
	MonthNames   []string        `yaml:"month_names"`
	WeekdayNames []string        `yaml:"weekday_names"`
	Upcoming     struct {
		Limit           int    `yaml:"limit"`
		ExcludeCategory string `yaml:"exclude_category"`
	} `yaml:"upcoming"`
}

// Load reads configuration from environment variables, layered over the
// optional YAML file, with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		AgendaTime: "07:00",
		TagRules:   model.DefaultTagRules(),
		Labels:     model.DefaultLabels(),
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}

	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.Timezone, "TIMEZONE")
	setString(&cfg.TelegramToken, "TELEGRAM_TOKEN")
	setString(&cfg.AgendaTime, "AGENDA_TIME")
	setString(&cfg.UpcomingExcludeCategory, "UPCOMING_EXCLUDE_CATEGORY")
	setString(&cfg.BasicAuthUser, "BASIC_AUTH_USER")
	setString(&cfg.BasicAuthPassword, "BASIC_AUTH_PASSWORD")

	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_ALLOWED_IDS")); raw != "" {
		ids, err := parseIDs(raw)
		if err != nil {
			return cfg, fmt.Errorf("TELEGRAM_ALLOWED_IDS: %w", err)
		}
		cfg.TelegramAllowedIDs = ids
	}
	if raw := strings.TrimSpace(os.Getenv("UPCOMING_LIMIT")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("UPCOMING_LIMIT must be a positive integer, got %q", raw)
		}
		cfg.UpcomingLimit = n
	}
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(raw)); err != nil {
			return cfg, fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}

	if err := cfg.Normalize(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Normalize fills in missing values and validates the rest.
func (c *Config) Normalize() error {
	if c.DatabaseURL == "" {
		c.DatabaseURL = "event_calendar.db"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.UpcomingLimit <= 0 {
		c.UpcomingLimit = 10
	}
	if c.AgendaTime == "" {
		c.AgendaTime = "07:00"
	}
	// An explicit empty list switches tagging off.
	if c.TagRules == nil {
		c.TagRules = model.DefaultTagRules()
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	c.Location = loc

	for i, rule := range c.TagRules {
		if strings.TrimSpace(rule.Category) == "" || strings.TrimSpace(rule.Tag) == "" {
			return fmt.Errorf("tag rule %d: category and tag are required", i)
		}
	}
	if (c.BasicAuthUser == "") != (c.BasicAuthPassword == "") {
		return errors.New("BASIC_AUTH_USER and BASIC_AUTH_PASSWORD must be set together")
	}
	for _, id := range c.TelegramAllowedIDs {
		if id <= 0 {
			return fmt.Errorf("telegram allowed id %d is not a user id", id)
		}
	}
	if c.TelegramToken != "" && c.BasicAuthEnabled() && len(c.TelegramAllowedIDs) == 0 {
		return errors.New("TELEGRAM_ALLOWED_IDS is required when basic auth protects the web UI")
	}
	return nil
}

// TelegramAllowed reports whether a Telegram user may talk to the bot.
// An empty allow list admits everyone.
func (c *Config) TelegramAllowed(userID int64) bool {
	if len(c.TelegramAllowedIDs) == 0 {
		return true
	}
	return slices.Contains(c.TelegramAllowedIDs, userID)
}

// BasicAuthEnabled reports whether HTTP basic auth credentials are configured.
func (c *Config) BasicAuthEnabled() bool {
	return c.BasicAuthUser != "" && c.BasicAuthPassword != ""
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %q not found", path)
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}

	c.ListenAddr = fc.Listen
	c.DatabaseURL = fc.Database
	c.Timezone = fc.Timezone
	if fc.AgendaTime != "" {
		c.AgendaTime = fc.AgendaTime
	}
	if fc.TagRules != nil {
		c.TagRules = fc.TagRules
	}
	if len(fc.Telegram.AllowedIDs) > 0 {
		c.TelegramAllowedIDs = fc.Telegram.AllowedIDs
	}
	c.UpcomingLimit = fc.Upcoming.Limit
	c.UpcomingExcludeCategory = fc.Upcoming.ExcludeCategory

	if len(fc.MonthNames) > 0 {
		if len(fc.MonthNames) != 12 {
			return fmt.Errorf("month_names needs 12 entries, got %d", len(fc.MonthNames))
		}
		copy(c.Labels.Months[:], fc.MonthNames)
	}
	if len(fc.WeekdayNames) > 0 {
		if len(fc.WeekdayNames) != 7 {
			return fmt.Errorf("weekday_names needs 7 entries, got %d", len(fc.WeekdayNames))
		}
		copy(c.Labels.Weekdays[:], fc.WeekdayNames)
	}
	return nil
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
