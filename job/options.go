package job

// Options configures per-job behavior at submission time.
type Options struct {
	// Priority determines dispatch ordering. Lower values are served
	// first.
	Priority int

	// MaxAttempts is the hard attempt ceiling before the job is moved
	// to the dead-letter store. Zero means use the engine default.
	MaxAttempts int
}

// Option is a functional option applied at submission time.
type Option func(*Options)

// WithPriority sets the job priority. Lower values are served first.
func WithPriority(p int) Option {
	return func(o *Options) {
		o.Priority = p
	}
}

// WithMaxAttempts sets the attempt ceiling for this job.
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		o.MaxAttempts = n
	}
}
