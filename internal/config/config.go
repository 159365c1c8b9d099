// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	StateTable  string
	ParamPrefix string
	JWTKey      string
	JWTIssuer   string
	JWTAudience string

	RecommenderURL     string
	RecommenderTimeout time.Duration
	MinglersURL        string

	PlanningTopK            int
	DiscussionRecommendTopK int
	DiscussionSubmitTimeout time.Duration
	DiscussionPollTimeout   time.Duration
	DiscussionStartRPS      float64
	DiscussionStartBurst    int

	CORSAllowedOrigins []string
	LogLevel           slog.Level

	Addr             string
	DynamoDBEndpoint string
}

// JWTKeyParameter is the SSM parameter holding the signing key as {"key":"..."}.
func (c Config) JWTKeyParameter() string {
	return strings.TrimRight(c.ParamPrefix, "/") + "/jwt-key"
}

// Load builds a Config from getenv. Missing required keys are reported
// together.
func Load(getenv func(string) string) (Config, error) {
	cfg := Config{
		StateTable:  strings.TrimSpace(getenv("STATE_TABLE")),
		ParamPrefix: strings.TrimSpace(getenv("PARAM_PREFIX")),
		JWTKey:      getenv("JWT_KEY"),
		JWTIssuer:   envString(getenv, "JWT_ISSUER", "menu-planner"),
		JWTAudience: envString(getenv, "JWT_AUDIENCE", "menu-planner-web"),

		RecommenderURL:     strings.TrimSpace(getenv("RECOMMENDER_URL")),
		RecommenderTimeout: envDuration(getenv, "RECOMMENDER_TIMEOUT", 10*time.Second),
		MinglersURL:        strings.TrimSpace(getenv("MINGLERS_URL")),

		PlanningTopK:            envInt(getenv, "PLANNING_TOP_K", 15),
		DiscussionRecommendTopK: envInt(getenv, "DISCUSSION_RECOMMEND_TOP_K", 12),
		DiscussionSubmitTimeout: envDuration(getenv, "DISCUSSION_SUBMIT_TIMEOUT", 30*time.Second),
		DiscussionPollTimeout:   envDuration(getenv, "DISCUSSION_POLL_TIMEOUT", 5*time.Second),
		DiscussionStartRPS:      envFloat(getenv, "DISCUSSION_START_RPS", 1),
		DiscussionStartBurst:    envInt(getenv, "DISCUSSION_START_BURST", 3),

		CORSAllowedOrigins: envList(getenv, "CORS_ALLOWED_ORIGINS"),
		LogLevel:           envLevel(getenv, "LOG_LEVEL", slog.LevelInfo),

		Addr:             envString(getenv, "ADDR", ":8080"),
		DynamoDBEndpoint: strings.TrimSpace(getenv("DYNAMODB_ENDPOINT")),
	}

	var errs []error
	if cfg.StateTable == "" {
		errs = append(errs, missing("STATE_TABLE"))
	}
	if cfg.ParamPrefix == "" && cfg.JWTKey == "" {
		errs = append(errs, errors.New("config: one of PARAM_PREFIX or JWT_KEY must be set"))
	}
	if cfg.RecommenderURL == "" {
		errs = append(errs, missing("RECOMMENDER_URL"))
	}
	if cfg.MinglersURL == "" {
		errs = append(errs, missing("MINGLERS_URL"))
	}
	if cfg.DiscussionRecommendTopK < 0 {
		errs = append(errs, errors.New("config: DISCUSSION_RECOMMEND_TOP_K must not be negative"))
	}
	if cfg.DiscussionStartRPS <= 0 || cfg.DiscussionStartBurst <= 0 {
		errs = append(errs, errors.New("config: DISCUSSION_START_RPS and DISCUSSION_START_BURST must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given files into the process
// environment without overriding ones already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

func missing(key string) error {
	return fmt.Errorf("config: required environment variable %s is not set", key)
}

func envString(getenv func(string) string, key, def string) string {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(getenv func(string) string, key string, def int) int {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(getenv func(string) string, key string, def float64) float64 {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envDuration(getenv func(string) string, key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envList(getenv func(string) string, key string) []string {
	var out []string
	for _, part := range strings.Split(getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envLevel(getenv func(string) string, key string, def slog.Level) slog.Level {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return def
	}
	return level
}
