// Package config loads coffeematch configuration from a YAML file, an
// optional .env file and COFFEEMATCH_* environment variables, then checks
// the result against an embedded CUE schema.
//
// Precedence, lowest first: defaults, YAML file, environment.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"
	_ "time/tzdata"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Environment variables that override file values.
const (
	EnvDatabase   = "COFFEEMATCH_DB"
	EnvRedisURL   = "COFFEEMATCH_REDIS_URL"
	EnvWebhookURL = "COFFEEMATCH_WEBHOOK_URL"
	EnvHTTPAddr   = "COFFEEMATCH_HTTP_ADDR"
)

// Config is the full runtime configuration.
type Config struct {
	Database            string   `yaml:"database" json:"database"`
	InactivityThreshold int      `yaml:"inactivity_threshold" json:"inactivity_threshold"`
	AnswerWindow        Duration `yaml:"answer_window" json:"answer_window"`
	Delivery            Delivery `yaml:"delivery" json:"delivery"`
	Redis               Redis    `yaml:"redis" json:"redis"`
	Schedule            Schedule `yaml:"schedule" json:"schedule"`
	HTTP                HTTP     `yaml:"http" json:"http"`
	Log                 Log      `yaml:"log" json:"log"`
}

// Delivery configures the messaging gateway.
type Delivery struct {
	Concurrency int     `yaml:"concurrency" json:"concurrency"`
	Webhook     Webhook `yaml:"webhook" json:"webhook"`
}

// Webhook configures notify.WebhookGateway. An empty URL selects the
// logging gateway.
type Webhook struct {
	URL     string   `yaml:"url" json:"url"`
	Timeout Duration `yaml:"timeout" json:"timeout"`
}

// Redis configures the shared lock and the task queue. An empty URL means
// in-process locking and no scheduler.
type Redis struct {
	URL string `yaml:"url" json:"url"`
}

// Schedule holds cron expressions for the periodic jobs.
type Schedule struct {
	Round      string `yaml:"round" json:"round"`
	FollowUp   string `yaml:"follow_up" json:"follow_up"`
	Inactivity string `yaml:"inactivity" json:"inactivity"`
	Timezone   string `yaml:"timezone" json:"timezone"`
	MaxRetry   int    `yaml:"max_retry" json:"max_retry"`
}

// HTTP configures the API server.
type HTTP struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:            "coffeematch.db",
		InactivityThreshold: 3,
		AnswerWindow:        Duration(7 * 24 * time.Hour),
		Delivery: Delivery{
			Concurrency: 4,
			Webhook:     Webhook{Timeout: Duration(10 * time.Second)},
		},
		Schedule: Schedule{
			Round:      "0 10 1 * *",
			FollowUp:   "0 10 7 * *",
			Inactivity: "30 10 1 * *",
			Timezone:   "UTC",
		},
		HTTP: HTTP{Addr: ":8080"},
		Log:  Log{Level: "info", Format: "text"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), and the environment. envFiles are loaded into the process
// environment first with godotenv; missing env files are ignored and
// variables already set win.
func Load(path string, envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDatabase); ok && v != "" {
		c.Database = v
	}
	if v, ok := lookup(EnvRedisURL); ok {
		c.Redis.URL = v
	}
	if v, ok := lookup(EnvWebhookURL); ok {
		c.Delivery.Webhook.URL = v
	}
	if v, ok := lookup(EnvHTTPAddr); ok && v != "" {
		c.HTTP.Addr = v
	}
}

// Validate checks c against the CUE schema and that the timezone exists.
func (c Config) Validate() error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	value := ctx.CompileBytes(data)
	if err := value.Err(); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid config: schedule.timezone: %w", err)
	}
	return nil
}

// Location returns the schedule's time zone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
