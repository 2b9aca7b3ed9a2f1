package reconcile

import "time"

// Config controls reconcile loop intervals and per-job deadlines.
type Config struct {
	RunInterval   time.Duration
	IngestTimeout time.Duration
	SubmitTimeout time.Duration
	TrackTimeout  time.Duration
	EnabledJobs   []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:   time.Minute,
		IngestTimeout: 5 * time.Minute,
		SubmitTimeout: 2 * time.Minute,
		TrackTimeout:  5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.IngestTimeout <= 0 {
		c.IngestTimeout = defaults.IngestTimeout
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = defaults.SubmitTimeout
	}
	if c.TrackTimeout <= 0 {
		c.TrackTimeout = defaults.TrackTimeout
	}
	return c
}
