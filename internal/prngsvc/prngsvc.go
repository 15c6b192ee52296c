// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package prngsvc

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	mrand "math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/exp/constraints"
)

// Service is a cryptographically seeded source of integers, used by
// MBASub to pick a substitution identity and its constants, and by
// String-Encryption to pick each string's master seed.
//
// All methods are safe for concurrent use.
type Service interface {
	// Uint32 returns a uniformly distributed 32-bit value.
	Uint32() uint32

	// Uint64 returns a uniformly distributed 64-bit value.
	Uint64() uint64

	// Config returns a copy of the service's configuration.
	Config() Config
}

// Default is a package-level Service backed by a pooled ChaCha20 stream,
// initialized at load time. Passes that don't need a dedicated instance
// use this directly, mirroring the teacher's package-level Reader.
var Default Service

func init() {
	svc, err := New()
	if err != nil {
		panic(fmt.Sprintf("prngsvc: default service init failed: %v", err))
	}
	Default = svc
}

// New constructs a Service backed by a pool of ChaCha20 ciphers, one pool
// per shard to reduce contention under concurrent pass execution.
func New(opts ...Option) (Service, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Shards <= 0 {
		cfg.Shards = runtime.GOMAXPROCS(0)
	}
	if cfg.MaxBytesPerKey == 0 {
		cfg.MaxBytesPerKey = maxBytesPerKey
	}
	if cfg.MaxInitRetries == 0 {
		cfg.MaxInitRetries = 3
	}
	if cfg.MaxRekeyAttempts == 0 {
		cfg.MaxRekeyAttempts = maxRekeyAttempts
	}
	if cfg.RekeyBackoff == 0 {
		cfg.RekeyBackoff = rekeyBackoff
	}

	pools := make([]*sync.Pool, cfg.Shards)
	for i := range pools {
		cfg := cfg
		pools[i] = &sync.Pool{
			New: func() interface{} {
				var (
					g   *generator
					err error
				)
				for r := 0; r < cfg.MaxInitRetries; r++ {
					if g, err = newGenerator(&cfg); err == nil {
						return g
					}
				}
				return nil
			},
		}

		item := pools[i].Get()
		if item == nil {
			return nil, fmt.Errorf("prngsvc: pool initialization failed after %d retries", cfg.MaxInitRetries)
		}
		pools[i].Put(item)
	}

	return &service{pools: pools, config: &cfg}, nil
}

type service struct {
	config *Config
	pools  []*sync.Pool
}

func (s *service) Config() Config { return *s.config }

func shardIndex(n int) int { return mrand.IntN(n) }

func (s *service) read(b []byte) {
	n := len(s.pools)
	shard := 0
	if n > 1 {
		shard = shardIndex(n)
	}
	g := s.pools[shard].Get().(*generator)
	defer s.pools[shard].Put(g)
	g.read(b)
}

func (s *service) Uint32() uint32 {
	var buf [4]byte
	s.read(buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

func (s *service) Uint64() uint64 {
	var buf [8]byte
	s.read(buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}

// IntRanged returns a value uniformly distributed over the inclusive
// range [lo, hi], for any integer width or signedness — MBASub uses it
// to pick both an identity index and, for the randomized add identity,
// a near-full-width uint64 constant. It draws 64 bits from svc per
// attempt and rejects any draw that would land outside the largest
// multiple of the span, so the result is uniform over [lo, hi] with no
// residual modulo bias; a rejected draw is redrawn, never folded onto
// an existing value. Panics if hi < lo.
func IntRanged[T constraints.Integer](svc Service, lo, hi T) T {
	if hi < lo {
		panic("prngsvc: IntRanged: hi < lo")
	}
	span := uint64(hi) - uint64(lo) + 1
	if span == 0 {
		// lo and hi span the type's entire 64-bit width; every 64-bit
		// draw is already uniform over it.
		return T(svc.Uint64())
	}
	limit := (^uint64(0) / span) * span
	for {
		v := svc.Uint64()
		if v < limit {
			return lo + T(v%span)
		}
	}
}

// generator implements the per-shard ChaCha20-based random byte source.
type generator struct {
	config *Config

	cipher   atomic.Value // *chacha20.Cipher
	zero     []byte
	usage    uint64
	rekeying uint32
}

func newGenerator(config *Config) (*generator, error) {
	stream, err := newCipher()
	if err != nil {
		return nil, err
	}
	g := &generator{config: config, zero: make([]byte, 0)}
	g.cipher.Store(stream)
	return g, nil
}

func (g *generator) read(b []byte) {
	n := len(b)
	if n == 0 {
		return
	}

	stream := g.cipher.Load().(*chacha20.Cipher)
	if cap(g.zero) < n {
		g.zero = make([]byte, n)
	} else {
		g.zero = g.zero[:n]
	}
	stream.XORKeyStream(b, g.zero)

	if g.config.EnableKeyRotation {
		atomic.AddUint64(&g.usage, uint64(n))
		if atomic.LoadUint64(&g.usage) > g.config.MaxBytesPerKey {
			if atomic.CompareAndSwapUint32(&g.rekeying, 0, 1) {
				go g.asyncRekey()
			}
		}
	}
}

func newCipher() (*chacha20.Cipher, error) {
	key := make([]byte, chacha20.KeySize)
	nonce := make([]byte, chacha20.NonceSizeX)

	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("prngsvc: failed to read key: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("prngsvc: failed to read nonce: %w", err)
	}

	stream, err := chacha20.NewUnauthenticatedCipher(key, nonce)

	for i := range key {
		key[i] = 0
	}
	for i := range nonce {
		nonce[i] = 0
	}

	if err != nil {
		return nil, fmt.Errorf("prngsvc: unable to initialize cipher: %w", err)
	}
	return stream, nil
}

func (g *generator) asyncRekey() {
	defer atomic.StoreUint32(&g.rekeying, 0)

	base := g.config.RekeyBackoff
	var old *chacha20.Cipher

	maxBackoff := g.config.MaxRekeyBackoff
	if maxBackoff == 0 {
		maxBackoff = maxRekeyBackoff
	}

	for i := 0; i < g.config.MaxRekeyAttempts; i++ {
		old = g.cipher.Load().(*chacha20.Cipher)

		stream, err := newCipher()
		if err == nil {
			g.cipher.Store(stream)
			atomic.StoreUint64(&g.usage, 0)
			*old = chacha20.Cipher{}
			return
		}

		var b [8]byte
		if _, err := rand.Read(b[:]); err == nil {
			rnd := binary.BigEndian.Uint64(b[:])
			delay := base + time.Duration(rnd%uint64(base))
			time.Sleep(delay)
		} else {
			time.Sleep(base)
		}

		base *= 2
		if base > maxBackoff {
			base = maxBackoff
		}
	}
}
