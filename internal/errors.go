package internal

import "errors"

var (
	// ErrNotFound is returned when no record exists for a short code or long URL.
	ErrNotFound = errors.New("short url not found")
	// ErrExpired is returned when a record exists but its expiration has passed.
	// The record stays in the store; every future lookup fails the same way.
	ErrExpired = errors.New("short url expired")
	// ErrDuplicate is returned by the store when an insert violates a
	// uniqueness constraint on long_url or short_code.
	ErrDuplicate = errors.New("duplicate record")
	// ErrCacheMiss is returned by Cache.Get when the key is absent.
	ErrCacheMiss = errors.New("cache miss")
)
