// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package prngsvc provides the cryptographically seeded pseudo-random
// source the obfuscation passes draw from: per-string master seeds for
// String-Encryption, and identity/constant selection for MBASub.
package prngsvc

import (
	"runtime"
	"time"
)

// Config defines the tunable parameters for the ChaCha20-backed random
// source and its instance pool.
type Config struct {
	// MaxBytesPerKey is the maximum number of bytes generated per
	// key/nonce before triggering automatic rekeying. Zero uses the
	// default of 1 GiB (1 << 30).
	MaxBytesPerKey uint64

	// MaxInitRetries is the maximum number of attempts to initialize a
	// pool entry before giving up and panicking. Zero uses a default of 3.
	MaxInitRetries int

	// MaxRekeyAttempts specifies the number of attempts to perform
	// asynchronous rekeying. Zero uses a default of 5.
	MaxRekeyAttempts int

	// MaxRekeyBackoff specifies the maximum backoff duration for
	// exponential rekey retries. Zero uses a default of 2 seconds.
	MaxRekeyBackoff time.Duration

	// RekeyBackoff is the initial delay before retrying a failed rekey
	// operation. Zero uses a default of 100 milliseconds.
	RekeyBackoff time.Duration

	// EnableKeyRotation controls whether instances automatically rotate
	// their key/nonce after MaxBytesPerKey output. Defaults to false.
	EnableKeyRotation bool

	// Shards controls the number of pools (shards) used for
	// parallelism. Zero defaults to runtime.GOMAXPROCS(0).
	Shards int
}

const (
	maxRekeyAttempts = 5
	rekeyBackoff     = 100 * time.Millisecond
	maxRekeyBackoff  = 2 * time.Second
	maxBytesPerKey   = 1 << 30
)

// DefaultConfig returns a Config populated with production-safe defaults.
func DefaultConfig() Config {
	return Config{
		MaxBytesPerKey:    maxBytesPerKey,
		MaxInitRetries:    3,
		MaxRekeyAttempts:  maxRekeyAttempts,
		MaxRekeyBackoff:   maxRekeyBackoff,
		RekeyBackoff:      rekeyBackoff,
		EnableKeyRotation: false,
		// Ref: Use of GOMAXPROCS is fine for now: https://github.com/golang/go/issues/73193
		Shards: runtime.GOMAXPROCS(0),
	}
}

// Option customizes a Config.
type Option func(*Config)

// WithMaxBytesPerKey sets the maximum output per key before rekeying.
func WithMaxBytesPerKey(n uint64) Option {
	return func(cfg *Config) { cfg.MaxBytesPerKey = n }
}

// WithMaxInitRetries sets the maximum number of pool init retries.
func WithMaxInitRetries(r int) Option {
	return func(cfg *Config) { cfg.MaxInitRetries = r }
}

// WithMaxRekeyAttempts sets the maximum number of rekey retries.
func WithMaxRekeyAttempts(r int) Option {
	return func(cfg *Config) { cfg.MaxRekeyAttempts = r }
}

// WithMaxRekeyBackoff sets the maximum backoff duration for rekeying.
func WithMaxRekeyBackoff(d time.Duration) Option {
	return func(cfg *Config) { cfg.MaxRekeyBackoff = d }
}

// WithRekeyBackoff sets the initial backoff duration for rekeying.
func WithRekeyBackoff(d time.Duration) Option {
	return func(cfg *Config) { cfg.RekeyBackoff = d }
}

// WithEnableKeyRotation enables or disables automatic key rotation.
func WithEnableKeyRotation(enable bool) Option {
	return func(cfg *Config) { cfg.EnableKeyRotation = enable }
}

// WithShards sets the number of independent sync.Pool shards to use.
//
// Note: if n <= 0, the number of shards defaults to runtime.GOMAXPROCS(0).
func WithShards(n int) Option {
	return func(cfg *Config) { cfg.Shards = n }
}
