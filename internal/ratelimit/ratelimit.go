// Package ratelimit throttles form submissions per client with token buckets.
package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Store keeps one limiter per key and forgets keys idle longer than idleTTL.
type Store struct {
	mu           sync.Mutex
	entries      map[string]*entry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type Option func(*Store)

func WithIdleTTL(d time.Duration) Option {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) Option {
	return func(s *Store) { s.cleanupEvery = d }
}

func NewStore(rps float64, burst int, opts ...Option) *Store {
	s := &Store{
		entries:      make(map[string]*entry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(key string) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}
	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &entry{lim: lim, lastSeen: now}
	return lim
}

func (s *Store) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor cleans idle keys until ctx is cancelled.
func (s *Store) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}
	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

func (s *Store) retryAfter() int {
	if s.rps <= 0 {
		return 60
	}
	return int(math.Ceil(1 / float64(s.rps)))
}

// Middleware rejects clients over their budget with 429 and Retry-After.
func Middleware(s *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Get(c.ClientIP()).Allow() {
			c.Next()
			return
		}
		c.Header("Retry-After", strconv.Itoa(s.retryAfter()))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
	}
}
