package fsbox

import (
	"time"

	"github.com/tizianocitro/fsbox/internal/caching"
)

type CacheOptions struct {
	Enabled            bool               // Indicates if caching is enabled (default: false)
	MaxSizeMB          int64              // Maximum size of a cached object in megabytes (default: 1024)
	TTL                time.Duration      // Time-to-live for cache entries (default: 10 * time.Minute)
	MaxItems           int                // Maximum number of items in the cache (default: 5)
	ValidationStrategy ValidationStrategy // Strategy for validating cached items (default: No Validation)
}

type ValidationStrategy *caching.ValidationOptions

// NoValidationStrategy returns a strategy that only checks an entry's TTL
// when the entry is read.
func NoValidationStrategy() ValidationStrategy {
	return &caching.ValidationOptions{
		Strategy: caching.NO_VALIDATION,
	}
}

// SamplingValidationStrategy checks, every validationInterval, a random
// samplingPercent of the cached objects and drops the expired ones.
// Out of range values fall back to 10% every 30 minutes.
func SamplingValidationStrategy(samplingPercent uint8, validationInterval time.Duration) ValidationStrategy {
	if samplingPercent > 100 {
		samplingPercent = 100
	}
	if samplingPercent == 0 {
		samplingPercent = 10
	}
	if validationInterval <= 0 {
		validationInterval = 30 * time.Minute
	}

	return &caching.ValidationOptions{
		Strategy:           caching.SAMPLING_VALIDATION,
		SamplingPercent:    samplingPercent,
		ValidationInterval: validationInterval,
	}
}
