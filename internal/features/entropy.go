package features

import "math"

// Entropy returns the Shannon entropy, in bits, of the multiset of values.
// Empty strings are treated as missing and do not take part.
func Entropy(values []string) float64 {
	freq := make(map[string]int, len(values))
	n := 0
	for _, v := range values {
		if v == "" {
			continue
		}
		freq[v]++
		n++
	}
	return shannon(freq, n)
}

// shannon computes -Σ p·log2(p) over a frequency table whose counts sum to n.
// The result lies in [0, log2(len(freq))].
func shannon[K comparable](freq map[K]int, n int) float64 {
	if n == 0 || len(freq) < 2 {
		return 0
	}
	total := float64(n)
	h := 0.0
	for _, count := range freq {
		if count == 0 {
			continue
		}
		p := float64(count) / total
		h -= p * math.Log2(p)
	}
	return h
}
