package drip

import "time"

// Config holds configuration for the dispatch engine.
type Config struct {
	// TickInterval is how often the scheduler runs a dispatch pass.
	TickInterval time.Duration

	// Concurrency is the maximum number of jobs submitted to the
	// executor concurrently (the slot ceiling).
	Concurrency int

	// SubmitTimeout is the deadline for a single executor submission.
	// Expiry is treated as a retryable network error.
	SubmitTimeout time.Duration

	// MaxAttempts is the default attempt ceiling per job. Individual
	// jobs may override it at submission time.
	MaxAttempts int

	// RetryScanInterval is how often retrying jobs whose backoff delay
	// has elapsed are moved back to pending.
	RetryScanInterval time.Duration

	// DLQCapacity bounds the dead-letter store. Insertion past capacity
	// evicts the oldest entry.
	DLQCapacity int

	// RetentionWindow is how long terminal jobs are kept before the
	// sweeper deletes them.
	RetentionWindow time.Duration

	// SweepInterval is how often the retention sweeper runs.
	SweepInterval time.Duration

	// ETAWindow is the number of recent completions used to refine the
	// per-slot wait estimate.
	ETAWindow int

	// DispatchRate is the maximum sustained submissions per second
	// toward the executor. Zero disables rate limiting.
	DispatchRate float64

	// DispatchBurst is the burst size for the dispatch rate limiter.
	// Defaults to 1 if DispatchRate is set but DispatchBurst is zero.
	DispatchBurst int

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:      2 * time.Second,
		Concurrency:       3,
		SubmitTimeout:     60 * time.Second,
		MaxAttempts:       3,
		RetryScanInterval: 500 * time.Millisecond,
		DLQCapacity:       100,
		RetentionWindow:   24 * time.Hour,
		SweepInterval:     60 * time.Second,
		ETAWindow:         32,
		ShutdownTimeout:   30 * time.Second,
	}
}

// WithDefaults returns a copy of the config with every unset field
// replaced by its DefaultConfig value, so a partially populated Config
// never leaves a loop with a zero interval. DispatchRate and
// DispatchBurst stay zero: zero means rate limiting is disabled.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()

	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = def.SubmitTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.RetryScanInterval <= 0 {
		c.RetryScanInterval = def.RetryScanInterval
	}
	if c.DLQCapacity <= 0 {
		c.DLQCapacity = def.DLQCapacity
	}
	if c.RetentionWindow <= 0 {
		c.RetentionWindow = def.RetentionWindow
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.ETAWindow <= 0 {
		c.ETAWindow = def.ETAWindow
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}

	return c
}
