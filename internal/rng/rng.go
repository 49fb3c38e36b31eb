// Package rng provides the daemon's single strong random source.
//
// Every delay draw and every ephemeral shared-memory name is derived
// from here. Rejection sampling is mandatory: a direct modulo of a raw
// draw would bias small intervals and is never used.
package rng

import (
	"crypto/rand"
	"fmt"
	"io"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Source reads uniformly random bytes from a blocking cryptographic
// source. It has no internal state; all methods are safe to call from
// a single-threaded cooperative loop.
type Source struct {
	r io.Reader
}

// New returns a Source backed by crypto/rand.Reader.
func New() *Source {
	return &Source{r: rand.Reader}
}

// Uint64 draws 8 random bytes and returns them as a big-endian uint64.
// Any read error is treated as fatal by the caller (spec: RandomSource
// failure is a fatal environmental error, never substituted).
func (s *Source) Uint64() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(s.r, buf[:]); err != nil {
		return 0, fmt.Errorf("rng: read random bytes: %w", err)
	}
	var v uint64
	for _, b := range buf {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

// UniformInt draws an integer uniformly from the closed interval
// [lower, upper] using rejection sampling over 64-bit draws. Values in
// the top residual bucket (that would bias the reduction) are
// discarded and redrawn.
func (s *Source) UniformInt(lower, upper uint64) (uint64, error) {
	if upper < lower {
		return 0, fmt.Errorf("rng: invalid interval [%d, %d]", lower, upper)
	}
	span := upper - lower + 1
	if span == 0 {
		// upper == math.MaxUint64 && lower == 0: every draw is valid.
		v, err := s.Uint64()
		if err != nil {
			return 0, err
		}
		return lower + v, nil
	}

	// Largest multiple of span that fits in 64 bits; draws at or above
	// it are rejected to avoid modulo bias.
	limit := (^uint64(0) / span) * span
	for {
		v, err := s.Uint64()
		if err != nil {
			return 0, err
		}
		if v < limit {
			return lower + v%span, nil
		}
	}
}

// RandomAlphaString draws n characters uniformly from [A-Za-z], used
// to name ephemeral shared-memory objects (spec: "/kloak-" + 10 random
// letters).
func (s *Source) RandomAlphaString(n int) (string, error) {
	out := make([]byte, n)
	for i := range out {
		idx, err := s.UniformInt(0, uint64(len(alphabet)-1))
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx]
	}
	return string(out), nil
}
