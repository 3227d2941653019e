// Package store persists per-cog settings as string values grouped by scope.
package store

import (
	"context"
	"strconv"
	"time"
)

// Store reads and writes settings. Missing keys are not an error.
type Store interface {
	Get(ctx context.Context, scope, key string) (value string, ok bool, err error)
	Set(ctx context.Context, scope, key, value string) error
	All(ctx context.Context, scope string) (map[string]string, error)
}

// Settings is a Store bound to one scope with typed accessors
type Settings struct {
	store Store
	scope string
}

// Scoped binds s to scope
func Scoped(s Store, scope string) *Settings {
	return &Settings{store: s, scope: scope}
}

// Scope returns the bound scope name
func (s *Settings) Scope() string {
	return s.scope
}

// String returns the value for key, or def when unset
func (s *Settings) String(ctx context.Context, key, def string) (string, error) {
	v, ok, err := s.store.Get(ctx, s.scope, key)
	if err != nil || !ok {
		return def, err
	}
	return v, nil
}

// Int returns the value for key parsed as an int, or def when unset or malformed
func (s *Settings) Int(ctx context.Context, key string, def int) (int, error) {
	v, ok, err := s.store.Get(ctx, s.scope, key)
	if err != nil || !ok {
		return def, err
	}
	n, convErr := strconv.Atoi(v)
	if convErr != nil {
		return def, nil
	}
	return n, nil
}

// Bool returns the value for key parsed as a bool, or def when unset or malformed
func (s *Settings) Bool(ctx context.Context, key string, def bool) (bool, error) {
	v, ok, err := s.store.Get(ctx, s.scope, key)
	if err != nil || !ok {
		return def, err
	}
	b, convErr := strconv.ParseBool(v)
	if convErr != nil {
		return def, nil
	}
	return b, nil
}

// Duration returns the value for key stored as whole seconds, or def
func (s *Settings) Duration(ctx context.Context, key string, def time.Duration) (time.Duration, error) {
	n, err := s.Int(ctx, key, -1)
	if err != nil || n < 0 {
		return def, err
	}
	return time.Duration(n) * time.Second, nil
}

// Set stores value under key
func (s *Settings) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, s.scope, key, value)
}

// SetInt stores n under key
func (s *Settings) SetInt(ctx context.Context, key string, n int) error {
	return s.Set(ctx, key, strconv.Itoa(n))
}

// SetBool stores b under key
func (s *Settings) SetBool(ctx context.Context, key string, b bool) error {
	return s.Set(ctx, key, strconv.FormatBool(b))
}

// SetDuration stores d under key as whole seconds
func (s *Settings) SetDuration(ctx context.Context, key string, d time.Duration) error {
	return s.SetInt(ctx, key, int(d/time.Second))
}

// All returns every value in the scope
func (s *Settings) All(ctx context.Context) (map[string]string, error) {
	return s.store.All(ctx, s.scope)
}
