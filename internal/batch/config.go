package batch

import (
	"fmt"
	"runtime"
	"time"
)

// Config configures a Pool
type Config struct {
	Workers         int           // Number of workers
	QueueSize       int           // Task queue buffer size
	ShutdownTimeout time.Duration // Max wait for queued tasks on Stop
	ErrorHandler    func(error)   // Called with a *TaskError for every failed, panicked or cancelled task
}

// DefaultConfig returns a pool sized to the machine
func DefaultConfig() Config {
	return Config{
		Workers:         runtime.NumCPU(),
		QueueSize:       64,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be > 0, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("%w: queue size must be >= 0, got %d", ErrInvalidConfig, c.QueueSize)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: shutdown timeout must be >= 0, got %v", ErrInvalidConfig, c.ShutdownTimeout)
	}
	return nil
}
