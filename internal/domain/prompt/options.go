package prompt

import "time"

const (
	DefaultKey          = "prompts"
	DefaultMaxPrompts   = 500
	DefaultOpTimeout    = 5 * time.Second
	DefaultMaxRetries   = 5
	DefaultRetryBackoff = 20 * time.Millisecond
	DefaultMostUsed     = 10
)

// Options configures a Service. Zero values take the defaults above.
type Options struct {
	Key          string
	MaxPrompts   int
	OpTimeout    time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Key == "" {
		o.Key = DefaultKey
	}
	if o.MaxPrompts <= 0 {
		o.MaxPrompts = DefaultMaxPrompts
	}
	if o.OpTimeout <= 0 {
		o.OpTimeout = DefaultOpTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
