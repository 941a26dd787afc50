// Package config loads and watches the bot configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Sheet     SheetConfig     `json:"sheet"`
	Jobs      JobsConfig      `json:"jobs"`
	Payment   PaymentConfig   `json:"payment"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   StorageConfig   `json:"storage"`
	Logging   LoggingConfig   `json:"logging"`
	Health    HealthConfig    `json:"health"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and supplied through the
	// TELEGRAM_BOT_TOKEN environment variable instead.
	Token   string `json:"token"`
	AdminID int64  `json:"admin_id"`
	// BotURL is the public t.me link used in the share button.
	BotURL string `json:"bot_url,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type SheetConfig struct {
	SpreadsheetID   string `json:"spreadsheet_id"`
	SheetName       string `json:"sheet_name,omitempty"`
	CredentialsFile string `json:"credentials_file,omitempty"`

	// CredentialsJSON is never read from the file; it comes from the
	// GOOGLE_CREDENTIALS_JSON environment variable on hosted platforms.
	CredentialsJSON string `json:"-"`
}

type JobsConfig struct {
	// DateFormats are accepted last-date layouts as Go time layouts,
	// tried in order.
	DateFormats []string `json:"date_formats,omitempty"`
	// OutputDateFormat is the layout used when rendering dates.
	OutputDateFormat string `json:"output_date_format,omitempty"`
	// DefaultSubstitution replaces blank detail fields in messages.
	DefaultSubstitution string `json:"default_substitution,omitempty"`
	// FreeTierLimit caps records per source group for free chats.
	FreeTierLimit int `json:"free_tier_limit,omitempty"`
	// MaxMessageLen is the per-message character budget.
	MaxMessageLen int `json:"max_message_len,omitempty"`
}

type PaymentConfig struct {
	UPIID     string `json:"upi_id"`
	Amount    int    `json:"amount,omitempty"`
	PayeeName string `json:"payee_name,omitempty"`
}

type SchedulerConfig struct {
	// CheckInterval is a Go duration string between reconciliation
	// ticks (default "60m"). The JOB_INTERVAL_MINUTES environment
	// variable overrides it.
	CheckInterval string `json:"check_interval,omitempty"`
	// TickTimeout bounds one reconciliation pass ("0s" disables).
	TickTimeout string `json:"tick_timeout,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
}

type StorageConfig struct {
	// Driver is "file" (default) or "sqlite".
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path"`
	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type HealthConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
}

// Validate checks the fields the process cannot run without. Credential
// problems for the sheet are fatal at startup by design.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required (or set TELEGRAM_BOT_TOKEN)")
	}
	if c.Telegram.AdminID == 0 {
		return errors.New("telegram.admin_id is required")
	}
	if strings.TrimSpace(c.Sheet.SpreadsheetID) == "" {
		return errors.New("sheet.spreadsheet_id is required")
	}
	if strings.TrimSpace(c.Sheet.CredentialsFile) == "" && strings.TrimSpace(c.Sheet.CredentialsJSON) == "" {
		return errors.New("sheet credentials missing: set sheet.credentials_file or GOOGLE_CREDENTIALS_JSON")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path is required")
	}
	if _, err := c.CheckInterval(); err != nil {
		return err
	}
	if _, err := ParseDurationField("scheduler.tick_timeout", c.Scheduler.TickTimeout); err != nil {
		return err
	}
	return nil
}

// ApplyEnv overlays environment variables onto the parsed file. Secrets
// stay out of the config file this way.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("GOOGLE_CREDENTIALS_JSON"); v != "" {
		c.Sheet.CredentialsJSON = v
	}
	if v := os.Getenv("JOB_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Scheduler.CheckInterval = fmt.Sprintf("%dm", n)
		}
	}
	// Hosting platforms hand out the health port via PORT.
	if v := os.Getenv("PORT"); v != "" {
		c.Health.Enabled = true
		c.Health.Addr = ":" + v
	}
}

// CheckInterval returns the reconciliation interval, default one hour.
func (c *Config) CheckInterval() (time.Duration, error) {
	return ParseDurationOrDefault("scheduler.check_interval", c.Scheduler.CheckInterval, time.Hour)
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
