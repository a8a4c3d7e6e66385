package cacheinfra

import (
	"fmt"
	"time"
)

type policyKind uint8

const (
	policyNone policyKind = iota
	policyAbsolute
	policyRelative
	policySliding
)

// Policy decides when a cache entry stops being served. It is attached to an
// entry once, when the entry is populated.
type Policy struct {
	kind     policyKind
	deadline time.Time
	window   time.Duration
}

// PolicyFactory produces the policy for a freshly populated entry. It receives the
// cache key so policies can vary per call shape.
type PolicyFactory func(key string) Policy

// NoExpiration keeps the entry until it is deleted or its computation fails.
func NoExpiration() Policy {
	return Policy{kind: policyNone}
}

// AbsoluteExpiration expires the entry at the given instant.
func AbsoluteExpiration(at time.Time) Policy {
	return Policy{kind: policyAbsolute, deadline: at}
}

// ExpiresAfter expires the entry ttl after it was populated.
func ExpiresAfter(ttl time.Duration) Policy {
	return Policy{kind: policyRelative, window: ttl}
}

// SlidingExpiration expires the entry once it has not been read for window.
func SlidingExpiration(window time.Duration) Policy {
	return Policy{kind: policySliding, window: window}
}

// StaticPolicy returns a factory that hands out the same policy for every key.
func StaticPolicy(p Policy) PolicyFactory {
	return func(string) Policy { return p }
}

// IsSliding reports whether reads extend the entry's lifetime.
func (p Policy) IsSliding() bool {
	return p.kind == policySliding
}

// deadlineFrom returns the expiry instant in unix nanoseconds relative to now, or
// 0 for entries that never expire.
func (p Policy) deadlineFrom(now time.Time) int64 {
	switch p.kind {
	case policyAbsolute:
		return p.deadline.UnixNano()
	case policyRelative, policySliding:
		return now.Add(p.window).UnixNano()
	default:
		return 0
	}
}

func (p Policy) String() string {
	switch p.kind {
	case policyAbsolute:
		return "absolute(" + p.deadline.Format(time.RFC3339Nano) + ")"
	case policyRelative:
		return fmt.Sprintf("after(%s)", p.window)
	case policySliding:
		return fmt.Sprintf("sliding(%s)", p.window)
	default:
		return "none"
	}
}

// DefaultPolicy derives the policy applied when callers do not supply one.
func (c Config) DefaultPolicy() Policy {
	if c.DefaultTTL <= 0 {
		return NoExpiration()
	}
	if c.SlidingExpiration {
		return SlidingExpiration(c.DefaultTTL)
	}
	return ExpiresAfter(c.DefaultTTL)
}
