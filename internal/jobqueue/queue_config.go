/*
Package jobqueue configuration - tunable parameters for the reminder queue.

Reminder delivery is cheap (two queries per job), so the defaults lean small.
Raise MaxWorkers only if a single instance serves many users with dense
reminder schedules.
*/
package jobqueue

import (
	"os"
	"time"

	"github.com/riverqueue/river"
)

// QueueConfig holds all configurable parameters for the job queue
type QueueConfig struct {
	// MaxWorkers is the number of concurrent workers delivering reminders
	MaxWorkers int

	// MaxRetries is the maximum retry attempts per job
	MaxRetries int

	// JobTimeout is the maximum time a single delivery can run
	JobTimeout time.Duration
}

// DefaultQueueConfig returns the default configuration
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		MaxWorkers: 4,
		MaxRetries: 10,
		JobTimeout: 30 * time.Second,
	}
}

// DevelopmentQueueConfig returns a configuration that fails fast
func DevelopmentQueueConfig() *QueueConfig {
	config := DefaultQueueConfig()
	config.MaxWorkers = 2
	config.MaxRetries = 3
	return config
}

// GetQueueConfig returns the appropriate configuration based on environment
func GetQueueConfig() *QueueConfig {
	if os.Getenv("AVA_ENV") == "development" {
		return DevelopmentQueueConfig()
	}
	return DefaultQueueConfig()
}

// RiverQueueConfig converts our config to River's queue configuration format
func (c *QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {
			MaxWorkers: c.MaxWorkers,
		},
	}
}
