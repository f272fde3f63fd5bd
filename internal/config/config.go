// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port      string
	DBPath    string
	JWTSecret string

	// AuthTokenTTL is how long issued auth tokens stay valid.
	AuthTokenTTL time.Duration

	Tutor TutorConfig
}

// TutorConfig holds the conversation-context thresholds. These are
// tunables, not hard rules: every one can be overridden via env.
type TutorConfig struct {
	// SummarizeProblemEvery is the number of messages that must accumulate
	// past the last progress summary before a new one is generated.
	SummarizeProblemEvery int

	// RefinePatternsThreshold is the problem length (in messages) past
	// which learning patterns are refined while the problem is still open.
	RefinePatternsThreshold int

	// RecentMessagesCount is the size of the verbatim tail window excluded
	// from summarization and included in the final prompt.
	RecentMessagesCount int

	// MinMessagesForSummary is the minimum slice length worth a
	// generation call.
	MinMessagesForSummary int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		DBPath:       getEnv("DB_PATH", "./data/studybuddy.db"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		AuthTokenTTL: 7 * 24 * time.Hour,
		Tutor: TutorConfig{
			SummarizeProblemEvery:   getEnvInt("TUTOR_SUMMARIZE_EVERY", 15),
			RefinePatternsThreshold: getEnvInt("TUTOR_REFINE_THRESHOLD", 25),
			RecentMessagesCount:     getEnvInt("TUTOR_RECENT_MESSAGES", 6),
			MinMessagesForSummary:   getEnvInt("TUTOR_MIN_MESSAGES", 5),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Tutor.SummarizeProblemEvery <= 0 {
		return fmt.Errorf("TUTOR_SUMMARIZE_EVERY must be > 0")
	}
	if c.Tutor.RefinePatternsThreshold <= 0 {
		return fmt.Errorf("TUTOR_REFINE_THRESHOLD must be > 0")
	}
	if c.Tutor.RecentMessagesCount < 0 {
		return fmt.Errorf("TUTOR_RECENT_MESSAGES must be >= 0")
	}
	if c.Tutor.MinMessagesForSummary <= 0 {
		return fmt.Errorf("TUTOR_MIN_MESSAGES must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
