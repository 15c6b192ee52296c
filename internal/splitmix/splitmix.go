// Copyright (c) 2024-2025 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package splitmix implements the SplitMix32 bit-mixer and the XOR
// stream cipher String-Encryption builds on top of it. The same mixer
// runs twice: once here, natively, to precompute a string's ciphertext
// bytes at obfuscation time, and once again as emitted IR instructions
// (see the obfuscate/strenc package), to recover them at the target's
// runtime. Both must compute byte-for-byte identical keystreams.
package splitmix

// Mix advances state by the SplitMix32 step and returns the keystream
// word produced. Each call both mutates state and returns a new output;
// callers that need a reproducible stream must retain state between
// calls themselves.
func Mix(state *uint32) uint32 {
	*state += 0x9E3779B9
	z := *state
	z ^= z >> 16
	z *= 0x85EBCA6B
	z ^= z >> 13
	z *= 0xC2B2AE35
	z ^= z >> 16
	return z
}

// XorCrypt applies the SplitMix32 keystream to data in place, seeded
// with seed. It is its own inverse: calling it twice with the same seed
// restores the original bytes, so it serves as both the encryption and
// decryption step.
func XorCrypt(data []byte, seed uint32) {
	state := seed
	offset := 0
	for offset < len(data) {
		keyStream := Mix(&state)
		chunk := len(data) - offset
		if chunk > 4 {
			chunk = 4
		}
		for j := 0; j < chunk; j++ {
			data[offset+j] ^= byte(keyStream >> (uint(j) * 8))
		}
		offset += chunk
	}
}

// EncryptStrings XOR-encrypts each string in place (as raw bytes) with a
// per-string seed derived from masterSeed and the string's index in the
// slice, mirroring the original XorEncryptStrings helper that seeds each
// entry with masterSeed^i.
func EncryptStrings(strings [][]byte, masterSeed uint32) {
	for i, s := range strings {
		seed := masterSeed ^ uint32(i)
		XorCrypt(s, seed)
	}
}
