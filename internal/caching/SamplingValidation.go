package caching

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// SamplingValidation drops expired entries from a random sample of the cache.
type SamplingValidation struct {
	SampleRate uint8 // Percentage of cache entries to validate (0-100)
}

type sampledEntry struct {
	key      string
	createAt time.Time
}

func (sv *SamplingValidation) Apply(cache *FileCache) error {
	if cache == nil {
		return fmt.Errorf("cache is nil")
	}
	if cache.Options.TTL <= 0 {
		return fmt.Errorf("cache TTL must be greater than zero for sampling validation")
	}

	rate := min(sv.SampleRate, 100)
	if rate == 0 {
		return nil
	}

	sample := cache.sample(rate)
	if len(sample) == 0 {
		return nil
	}

	ttl := cache.Options.TTL
	now := time.Now()
	for _, e := range sample {
		if e.createAt.IsZero() || !e.createAt.Add(ttl).Before(now) {
			continue
		}
		cache.dropIfUnchanged(e, ttl)
	}
	return nil
}

// sample returns ceil(len*rate/100) random entries, at least one.
func (s *FileCache) sample(rate uint8) []sampledEntry {
	s.mu.Lock()
	entries := make([]sampledEntry, 0, len(s.File))
	for k, fi := range s.File {
		e := sampledEntry{key: k}
		if fi != nil {
			e.createAt = fi.createAt
		}
		entries = append(entries, e)
	}
	s.mu.Unlock()

	if len(entries) == 0 {
		return nil
	}

	n := int(math.Ceil(float64(len(entries)) * float64(rate) / 100.0))
	n = max(1, min(n, len(entries)))

	rand.Shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })
	return entries[:n]
}

// dropIfUnchanged deletes e unless it was stored again after sampling.
func (s *FileCache) dropIfUnchanged(e sampledEntry, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fi, ok := s.File[e.key]
	if !ok || fi == nil || !fi.createAt.Equal(e.createAt) {
		return
	}
	if fi.createAt.Add(ttl).Before(time.Now()) {
		delete(s.File, e.key)
	}
}
