package sandbox

import "time"

const (
	// SourceName is the script URL reported in error events. Sandboxed
	// srcdoc frames report their scripts under this name.
	SourceName = "about:srcdoc"

	// Origin is the serialized opaque origin of a sandboxed frame.
	Origin = "null"
)

// Config defines frame configuration
type Config struct {
	Timeout        time.Duration // Per-task execution budget, zero is unlimited
	ReloadDebounce time.Duration // Delay before a changed document is loaded
	MaxDepth       int           // Nesting limit for transferred messages
	HostOrigin     string        // Origin accepted for targeted postMessage, empty accepts any
}

// DefaultConfig returns the default frame configuration
func DefaultConfig() Config {
	return Config{
		MaxDepth: 64,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultConfig().MaxDepth
	}
	return c
}
