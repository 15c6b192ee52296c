// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package prngsvc

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/chacha20"
)

// Test_Uint32_NotConstant confirms successive Uint32 calls are not stuck
// returning the same value, a basic sanity check on the underlying stream.
func Test_Uint32_NotConstant(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	svc, err := New()
	is.NoError(err)

	seen := map[uint32]bool{}
	for i := 0; i < 32; i++ {
		seen[svc.Uint32()] = true
	}
	is.Greater(len(seen), 1, "32 draws should not all collide")
}

// Test_IntRanged_StaysInBounds draws many samples and confirms every one
// falls within the requested inclusive range, and that the full span is
// exercised over enough draws.
func Test_IntRanged_StaysInBounds(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	svc, err := New()
	is.NoError(err)

	const lo, hi = 5, 9
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		v := IntRanged(svc, lo, hi)
		is.GreaterOrEqual(v, lo)
		is.LessOrEqual(v, hi)
		seen[v] = true
	}
	is.Len(seen, hi-lo+1, "every value in the range should appear over enough draws")
}

// Test_IntRanged_SingleValue confirms a degenerate range (lo == hi)
// always returns that single value.
func Test_IntRanged_SingleValue(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	svc, err := New()
	is.NoError(err)

	for i := 0; i < 16; i++ {
		is.Equal(7, IntRanged(svc, 7, 7))
	}
}

// Test_Concurrency verifies the service is safe for concurrent use across
// many goroutines drawing from the shard pool simultaneously.
func Test_Concurrency(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	svc, err := New()
	is.NoError(err)

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	results := make([]uint32, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Uint32()
		}(i)
	}
	wg.Wait()

	seen := map[uint32]bool{}
	for _, r := range results {
		seen[r] = true
	}
	is.Greater(len(seen), 1, "concurrent draws should not all collide")
}

// Test_AsyncRekey validates that a generator rekeys itself in the
// background once usage crosses MaxBytesPerKey, and resets its usage
// counter afterward.
func Test_AsyncRekey(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	cfg := DefaultConfig()
	cfg.MaxBytesPerKey = 16
	cfg.RekeyBackoff = 10 * time.Millisecond
	cfg.MaxRekeyAttempts = 3
	cfg.MaxInitRetries = 3
	cfg.EnableKeyRotation = true

	g, err := newGenerator(&cfg)
	is.NoError(err)

	initialCipher := g.cipher.Load().(*chacha20.Cipher)

	buf := make([]byte, 64)
	g.read(buf)

	wait := time.NewTimer(500 * time.Millisecond)
	tick := time.NewTicker(10 * time.Millisecond)
	defer wait.Stop()
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			currentCipher := g.cipher.Load().(*chacha20.Cipher)
			currentUsage := atomic.LoadUint64(&g.usage)
			if currentCipher != initialCipher && currentUsage == 0 {
				return
			}
		case <-wait.C:
			t.Fatal("timed out waiting for asyncRekey to complete")
		}
	}
}

// Test_Config_RoundTrips confirms the config passed via options is
// returned unmodified by Config().
func Test_Config_RoundTrips(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	want := Config{
		MaxBytesPerKey:    42,
		MaxInitRetries:    7,
		MaxRekeyAttempts:  8,
		MaxRekeyBackoff:   5 * time.Second,
		RekeyBackoff:      1 * time.Second,
		EnableKeyRotation: true,
		Shards:            4,
	}

	svc, err := New(
		WithMaxBytesPerKey(want.MaxBytesPerKey),
		WithMaxInitRetries(want.MaxInitRetries),
		WithMaxRekeyAttempts(want.MaxRekeyAttempts),
		WithMaxRekeyBackoff(want.MaxRekeyBackoff),
		WithRekeyBackoff(want.RekeyBackoff),
		WithEnableKeyRotation(want.EnableKeyRotation),
		WithShards(want.Shards),
	)
	is.NoError(err)
	is.Equal(want, svc.Config())
}
