package config

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/gg/gslice"

	"github.com/tgifai/teleworker/internal/consts"
)

const (
	defaultGatewayBind     = "0.0.0.0:8787"
	defaultRequestTimeout  = 30
	defaultMetricsPath     = "/metrics"
	defaultTickIntervalSec = 60
	defaultJobTimeoutSec   = 60
	defaultTickBudgetSec   = 50
	defaultCronTimezone    = "UTC"
	defaultLocalTimezone   = "+07:00"
	defaultTime            = "08:00"
	defaultHTTPTimeoutSec  = 10

	DefaultFNGURL        = "https://api.alternative.me/fng/"
	DefaultPrayerURL     = "https://api.aladhan.com/v1/timingsByCity"
	DefaultPrayerCity    = "Sidoarjo"
	DefaultPrayerCountry = "Indonesia"
	DefaultPrayerMethod  = 20

	StoreJSON     = "json"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

var knownChannelTypes = map[string]struct{}{
	"telegram":  {},
	"lark":      {},
	"callmebot": {},
	"twilio":    {},
}

// Validate normalizes defaults and rejects settings the runtime cannot use.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config cannot be nil")
	}

	c.Gateway.Bind = strings.TrimSpace(c.Gateway.Bind)
	if c.Gateway.Bind == "" {
		c.Gateway.Bind = defaultGatewayBind
	}
	if c.Gateway.RequestTimeout <= 0 {
		c.Gateway.RequestTimeout = defaultRequestTimeout
	}
	if strings.TrimSpace(c.Gateway.MetricsPath) == "" {
		c.Gateway.MetricsPath = defaultMetricsPath
	}

	if err := c.Scheduler.validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := c.Store.validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	normalizedChannels := make(map[string]ChannelConfig, len(c.Channels))
	for key, one := range c.Channels {
		channelID := strings.TrimSpace(key)
		if channelID == "" {
			return errors.New("channel id cannot be empty")
		}
		if strings.Contains(channelID, ":") {
			return fmt.Errorf("channel id %q cannot contain ':'", channelID)
		}
		one.ID = channelID

		if err := one.Validate(); err != nil {
			return fmt.Errorf("channels[%s] validation failed: %w", channelID, err)
		}
		normalizedChannels[channelID] = one
	}
	c.Channels = normalizedChannels

	if err := c.Notify.validate(c.Channels); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	c.Conditions.normalize()
	return nil
}

func (c *ChannelConfig) Validate() error {
	if c == nil {
		return errors.New("channel config cannot be nil")
	}
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	if _, ok := knownChannelTypes[c.Type]; !ok {
		return fmt.Errorf("unsupported channel type: %q", c.Type)
	}
	if c.Config == nil {
		c.Config = map[string]interface{}{}
	}
	return nil
}

func (s *SchedulerConfig) validate() error {
	if s.Enabled == nil {
		enabled := true
		s.Enabled = &enabled
	}
	if s.TickIntervalSec <= 0 {
		s.TickIntervalSec = defaultTickIntervalSec
	}
	if s.MaxConcurrentRuns <= 0 {
		s.MaxConcurrentRuns = 1
	}
	if s.JobTimeoutSec <= 0 {
		s.JobTimeoutSec = defaultJobTimeoutSec
	}
	if s.TickBudgetSec <= 0 {
		s.TickBudgetSec = defaultTickBudgetSec
	}

	s.CronTimezone = strings.TrimSpace(s.CronTimezone)
	if s.CronTimezone == "" {
		s.CronTimezone = defaultCronTimezone
	}
	if _, err := ParseZone(s.CronTimezone); err != nil {
		return fmt.Errorf("cron_timezone: %w", err)
	}

	s.LocalTimezone = strings.TrimSpace(s.LocalTimezone)
	if s.LocalTimezone == "" {
		s.LocalTimezone = defaultLocalTimezone
	}
	if _, err := ParseZone(s.LocalTimezone); err != nil {
		return fmt.Errorf("local_timezone: %w", err)
	}

	s.DefaultTime = strings.TrimSpace(s.DefaultTime)
	if s.DefaultTime == "" {
		s.DefaultTime = defaultTime
	}
	if _, _, err := ParseClock(s.DefaultTime); err != nil {
		return fmt.Errorf("default_time: %w", err)
	}
	return nil
}

// CronLocation returns the zone cron fields are read in. Call after Validate.
func (s SchedulerConfig) CronLocation() *time.Location {
	loc, err := ParseZone(s.CronTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LocalLocation returns the zone of the user's wall clock. Call after Validate.
func (s SchedulerConfig) LocalLocation() *time.Location {
	loc, err := ParseZone(s.LocalTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DefaultClock returns the hour and minute used by date-only interval schedules.
func (s SchedulerConfig) DefaultClock() (int, int) {
	h, m, err := ParseClock(s.DefaultTime)
	if err != nil {
		return 8, 0
	}
	return h, m
}

func (s *StoreConfig) validate() error {
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	if s.Driver == "" {
		s.Driver = StoreJSON
	}
	s.Path = strings.TrimSpace(s.Path)
	s.DSN = strings.TrimSpace(s.DSN)

	switch s.Driver {
	case StoreJSON, StoreSQLite:
		if s.Path == "" {
			s.Path = consts.DefaultStorePath(s.Driver)
		}
	case StorePostgres:
		if s.DSN == "" {
			return errors.New("dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported driver: %q", s.Driver)
	}
	return nil
}

func (n *NotifyConfig) validate(channels map[string]ChannelConfig) error {
	n.DefaultChannel = strings.TrimSpace(n.DefaultChannel)
	n.VoiceChannel = strings.TrimSpace(n.VoiceChannel)

	if n.DefaultChannel != "" {
		ch, ok := channels[n.DefaultChannel]
		if !ok {
			return fmt.Errorf("default_channel %q is not configured", n.DefaultChannel)
		}
		if !isTextType(ch.Type) {
			return fmt.Errorf("default_channel %q is not a text channel", n.DefaultChannel)
		}
	}
	if n.VoiceChannel != "" {
		ch, ok := channels[n.VoiceChannel]
		if !ok {
			return fmt.Errorf("voice_channel %q is not configured", n.VoiceChannel)
		}
		if isTextType(ch.Type) {
			return fmt.Errorf("voice_channel %q is not a voice channel", n.VoiceChannel)
		}
	}
	if n.RatePerSec < 0 {
		return errors.New("rate_per_sec cannot be negative")
	}
	if n.RatePerSec > 0 && n.Burst <= 0 {
		n.Burst = 1
	}
	return nil
}

var textChannelTypes = []string{"telegram", "lark"}

func isTextType(typ string) bool {
	return gslice.Contains(textChannelTypes, typ)
}

func (c *ConditionsConfig) normalize() {
	if c.HTTPTimeoutSec <= 0 {
		c.HTTPTimeoutSec = defaultHTTPTimeoutSec
	}
	if strings.TrimSpace(c.FNG.URL) == "" {
		c.FNG.URL = DefaultFNGURL
	}
	if strings.TrimSpace(c.Prayer.URL) == "" {
		c.Prayer.URL = DefaultPrayerURL
	}
	if strings.TrimSpace(c.Prayer.City) == "" {
		c.Prayer.City = DefaultPrayerCity
	}
	if strings.TrimSpace(c.Prayer.Country) == "" {
		c.Prayer.Country = DefaultPrayerCountry
	}
	if c.Prayer.Method <= 0 {
		c.Prayer.Method = DefaultPrayerMethod
	}
}

var zonePattern = regexp.MustCompile(`^([+-])(\d{2}):?(\d{2})$`)

// ParseZone accepts "UTC", "Z" or a fixed offset such as "+07:00". Named
// zones from the tz database are not supported.
func ParseZone(s string) (*time.Location, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "UTC", "Z":
		return time.UTC, nil
	}

	m := zonePattern.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("invalid fixed offset %q", s)
	}
	hh, _ := strconv.Atoi(m[2])
	mm, _ := strconv.Atoi(m[3])
	if hh > 14 || mm > 59 {
		return nil, fmt.Errorf("offset out of range %q", s)
	}
	offset := hh*3600 + mm*60
	if m[1] == "-" {
		offset = -offset
	}
	return time.FixedZone("UTC"+m[1]+m[2]+":"+m[3], offset), nil
}

// ParseClock parses "HH:MM" on a 24-hour clock.
func ParseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock %q, want HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}
