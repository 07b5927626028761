// Package config loads the printer-status configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/geniass/printer-status/pkg/alert"
	"github.com/geniass/printer-status/pkg/fleet"
	"github.com/geniass/printer-status/pkg/notify"
	"github.com/geniass/printer-status/pkg/poll"
	"github.com/geniass/printer-status/pkg/scraper"
)

const (
	EnvPrinterUserID   = "PRINTER_USER_ID"
	EnvPrinterPassword = "PRINTER_PASSWORD"
	EnvSMTPUsername    = "SMTP_USERNAME"
	EnvSMTPPassword    = "SMTP_PASSWORD"
)

type Config struct {
	Schedule    string `yaml:"schedule"`
	RunOnStart  bool   `yaml:"run_on_start"`
	Parallelism int    `yaml:"parallelism"`
	Timezone    string `yaml:"timezone"`

	Recipients []string         `yaml:"recipients"`
	Thresholds alert.Thresholds `yaml:"thresholds"`
	Report     ReportConfig     `yaml:"report"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Scraper    ScraperConfig    `yaml:"scraper"`
	Logging    LoggingConfig    `yaml:"logging"`

	StateFile  string `yaml:"state_file"`
	ArchiveDir string `yaml:"archive_dir"`
	// Listen is the status server address. Empty disables the server.
	Listen string `yaml:"listen"`

	Printers fleet.Fleet `yaml:"printers"`

	// Shared printer credentials, from the environment only.
	PrinterUserID   string `yaml:"-"`
	PrinterPassword string `yaml:"-"`
}

type ReportConfig struct {
	Subject      string `yaml:"subject"`
	AlertSubject string `yaml:"alert_subject"`
}

type SMTPConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	From    string `yaml:"from"`
	Timeout string `yaml:"timeout"`

	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

type ScraperConfig struct {
	Driver       string `yaml:"driver"` // browser, http
	ChromeBin    string `yaml:"chrome_bin"`
	Headless     bool   `yaml:"headless"`
	InsecureTLS  bool   `yaml:"insecure_tls"`
	UserAgent    string `yaml:"user_agent"`
	WindowWidth  int    `yaml:"window_width"`
	WindowHeight int    `yaml:"window_height"`

	NavigationTimeout   string `yaml:"navigation_timeout"`
	InterstitialTimeout string `yaml:"interstitial_timeout"`
	ElementTimeout      string `yaml:"element_timeout"`
	SettleDelay         string `yaml:"settle_delay"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

func DefaultConfig() *Config {
	opts := scraper.DefaultOptions()
	return &Config{
		Schedule:   poll.DefaultSchedule,
		Timezone:   "Local",
		Thresholds: alert.DefaultThresholds(),
		Report: ReportConfig{
			Subject:      poll.DefaultReportSubject,
			AlertSubject: poll.DefaultAlertSubject,
		},
		SMTP: SMTPConfig{
			Host:    "smtp.gmail.com",
			Port:    587,
			Timeout: "30s",
		},
		Scraper: ScraperConfig{
			Driver:              opts.Driver,
			Headless:            opts.Headless,
			InsecureTLS:         opts.InsecureTLS,
			UserAgent:           opts.UserAgent,
			WindowWidth:         opts.WindowWidth,
			WindowHeight:        opts.WindowHeight,
			NavigationTimeout:   "30s",
			InterstitialTimeout: "3s",
			ElementTimeout:      "5s",
			SettleDelay:         "3s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		StateFile:  "data/alerts.db",
		ArchiveDir: "data/cycles",
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error. Secrets are always taken from the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadEnv loads variables from a .env file without overriding the ones
// already set. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvPrinterUserID); v != "" {
		c.PrinterUserID = v
	}
	if v := os.Getenv(EnvPrinterPassword); v != "" {
		c.PrinterPassword = v
	}
	if v := os.Getenv(EnvSMTPUsername); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv(EnvSMTPPassword); v != "" {
		c.SMTP.Password = v
	}
}

func duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func (c *Config) GetSMTPTimeout() time.Duration {
	return duration(c.SMTP.Timeout, 30*time.Second)
}

// Location is the time zone used for report timestamps.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) ScraperOptions() scraper.Options {
	def := scraper.DefaultOptions()
	opts := scraper.Options{
		Driver:              c.Scraper.Driver,
		ChromeBin:           c.Scraper.ChromeBin,
		Headless:            c.Scraper.Headless,
		WindowWidth:         c.Scraper.WindowWidth,
		WindowHeight:        c.Scraper.WindowHeight,
		UserAgent:           c.Scraper.UserAgent,
		InsecureTLS:         c.Scraper.InsecureTLS,
		NavigationTimeout:   duration(c.Scraper.NavigationTimeout, def.NavigationTimeout),
		InterstitialTimeout: duration(c.Scraper.InterstitialTimeout, def.InterstitialTimeout),
		ElementTimeout:      duration(c.Scraper.ElementTimeout, def.ElementTimeout),
		SettleDelay:         duration(c.Scraper.SettleDelay, def.SettleDelay),
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.WindowWidth <= 0 || opts.WindowHeight <= 0 {
		opts.WindowWidth, opts.WindowHeight = def.WindowWidth, def.WindowHeight
	}
	return opts
}

func (c *Config) SMTPConfig() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		Timeout:  c.GetSMTPTimeout(),
	}
}

// PollConfig builds the poller configuration for the given subset of the fleet.
func (c *Config) PollConfig(printers fleet.Fleet) poll.Config {
	return poll.Config{
		Printers:      printers.Printers(c.PrinterUserID, c.PrinterPassword),
		Recipients:    c.Recipients,
		Thresholds:    c.Thresholds,
		Parallelism:   c.Parallelism,
		ReportSubject: c.Report.Subject,
		AlertSubject:  c.Report.AlertSubject,
		Location:      c.Location(),
		ArchiveDir:    c.ArchiveDir,
	}
}

var ValidDrivers = []string{scraper.DriverBrowser, scraper.DriverHTTP}

// Validate checks what every command needs. Credentials and mail settings
// are checked separately since they depend on the printers selected and on
// whether anything is sent.
func (c *Config) Validate() error {
	if err := c.Printers.Validate(); err != nil {
		return err
	}

	valid := false
	for _, d := range ValidDrivers {
		if c.Scraper.Driver == d {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: %q (valid: %v)", scraper.ErrUnknownDriver, c.Scraper.Driver, ValidDrivers)
	}

	if c.Thresholds.Refill < 0 || c.Thresholds.Soon < c.Thresholds.Refill || c.Thresholds.Soon > 100 {
		return fmt.Errorf("invalid thresholds: refill %d, soon %d (need 0 <= refill <= soon <= 100)",
			c.Thresholds.Refill, c.Thresholds.Soon)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("invalid parallelism %d", c.Parallelism)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}
	return nil
}

// ValidateCredentials checks that every printer that will be polled has a
// user ID and password, shared or from its own environment variables.
func (c *Config) ValidateCredentials(printers fleet.Fleet) error {
	if c.PrinterUserID == "" || c.PrinterPassword == "" {
		for _, e := range printers {
			if (c.PrinterUserID == "" && e.UserIDEnv == "") || (c.PrinterPassword == "" && e.PasswordEnv == "") {
				return fmt.Errorf("printer credentials not configured for %s (set %s and %s)",
					e.Name, EnvPrinterUserID, EnvPrinterPassword)
			}
		}
	}
	return nil
}

func (c *Config) ValidateMail() error {
	if len(c.Recipients) == 0 {
		return notify.ErrNoRecipients
	}
	if c.SMTP.Host == "" {
		return errors.New("smtp host not configured")
	}
	if c.SMTP.Username == "" || c.SMTP.Password == "" {
		return fmt.Errorf("smtp credentials not configured (set %s and %s)", EnvSMTPUsername, EnvSMTPPassword)
	}
	return nil
}
