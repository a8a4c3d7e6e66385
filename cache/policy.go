package cache

import (
	"time"

	"github.com/goliatone/go-service-cache/internal/cacheinfra"
)

// ExpirationPolicy decides when a cached entry stops being served.
type ExpirationPolicy = cacheinfra.Policy

// PolicyFactory produces the policy of a freshly populated entry from its key.
// It runs once per population; a nil factory selects the service default.
type PolicyFactory = cacheinfra.PolicyFactory

// NoExpiration keeps an entry until it is invalidated or its computation fails.
func NoExpiration() ExpirationPolicy { return cacheinfra.NoExpiration() }

// AbsoluteExpiration expires an entry at a fixed instant.
func AbsoluteExpiration(at time.Time) ExpirationPolicy { return cacheinfra.AbsoluteExpiration(at) }

// ExpiresAfter expires an entry ttl after it was populated.
func ExpiresAfter(ttl time.Duration) ExpirationPolicy { return cacheinfra.ExpiresAfter(ttl) }

// SlidingExpiration expires an entry once it has gone unread for window.
func SlidingExpiration(window time.Duration) ExpirationPolicy {
	return cacheinfra.SlidingExpiration(window)
}

// StaticPolicy adapts a parameterless policy to a PolicyFactory.
func StaticPolicy(p ExpirationPolicy) PolicyFactory { return cacheinfra.StaticPolicy(p) }
