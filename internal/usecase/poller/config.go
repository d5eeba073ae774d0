package poller

import (
	"fmt"
	"time"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultMaxAttempts  = 20
	DefaultRequestDelay = time.Second
)

// Config is everything a poller needs from the outside. It is filled by the caller
// (usually from env.ImageSettings) and never read from globals afterwards.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	PollInterval time.Duration
	MaxAttempts  int
	// RequestDelay separates consecutive requests of a batch.
	RequestDelay time.Duration
	HTTPTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		MaxAttempts:  DefaultMaxAttempts,
		RequestDelay: DefaultRequestDelay,
	}
}

func (c Config) Validate() error {
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval must not be negative, got %s", c.PollInterval)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("request delay must not be negative, got %s", c.RequestDelay)
	}
	return nil
}
