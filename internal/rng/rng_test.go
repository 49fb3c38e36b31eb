package rng

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUniformIntWithinBounds(t *testing.T) {
	s := New()
	for i := 0; i < 2000; i++ {
		v, err := s.UniformInt(5, 9)
		require.NoError(t, err)
		require.GreaterOrEqual(t, v, uint64(5))
		require.LessOrEqual(t, v, uint64(9))
	}
}

func TestUniformIntSingleValueInterval(t *testing.T) {
	s := New()
	v, err := s.UniformInt(42, 42)
	require.NoError(t, err)
	require.Equal(t, uint64(42), v)
}

func TestUniformIntRejectsInvalidInterval(t *testing.T) {
	s := New()
	_, err := s.UniformInt(10, 3)
	require.Error(t, err)
}

func TestUniformIntDistributionRoughlyUniform(t *testing.T) {
	s := New()
	const n = 100
	const samples = 200000
	counts := make([]int, n+1)
	for i := 0; i < samples; i++ {
		v, err := s.UniformInt(0, n)
		require.NoError(t, err)
		counts[v]++
	}
	expected := float64(samples) / float64(n+1)
	for _, c := range counts {
		dev := float64(c) - expected
		if dev < 0 {
			dev = -dev
		}
		// generous bound; this is a smoke test, not the full chi-squared
		// property in spec.md section 8 item 3/6.
		require.Less(t, dev, expected*0.5)
	}
}

func TestRandomAlphaStringMatchesShmNamePattern(t *testing.T) {
	s := New()
	re := regexp.MustCompile(`^/kloak-[A-Za-z]{10}$`)
	for i := 0; i < 100; i++ {
		name, err := s.RandomAlphaString(10)
		require.NoError(t, err)
		require.Regexp(t, re, "/kloak-"+name)
	}
}
