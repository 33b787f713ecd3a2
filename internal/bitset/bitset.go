// Package bitset provides a growable word-packed set of small non-negative
// integers, used for per-node flag tracking.
package bitset

import "math/bits"

// Set is a bitmap with one bit per index, packed into uint64 words.
// The zero value is an empty set. Set is not safe for concurrent use.
type Set struct {
	words []uint64
	n     int
}

// New creates a set able to hold indices in [0, n).
func New(n int) *Set {
	s := &Set{}
	s.Resize(n)
	return s
}

// Len returns the index capacity of the set.
func (s *Set) Len() int { return s.n }

// Resize grows or shrinks the capacity to n indices.
// Bits below n are preserved, bits at or above n are cleared.
func (s *Set) Resize(n int) {
	if n < 0 {
		n = 0
	}
	numWords := (n + 63) / 64
	if numWords > len(s.words) {
		grown := make([]uint64, numWords)
		copy(grown, s.words)
		s.words = grown
	} else {
		for i := numWords; i < len(s.words); i++ {
			s.words[i] = 0
		}
		s.words = s.words[:numWords]
	}
	if rem := n & 63; rem != 0 && numWords > 0 {
		s.words[numWords-1] &= (1 << rem) - 1
	}
	s.n = n
}

// Set marks index i. Out-of-range indices are ignored.
func (s *Set) Set(i int) {
	if i < 0 || i >= s.n {
		return
	}
	s.words[i>>6] |= 1 << (i & 63)
}

// Clear unmarks index i. Out-of-range indices are ignored.
func (s *Set) Clear(i int) {
	if i < 0 || i >= s.n {
		return
	}
	s.words[i>>6] &^= 1 << (i & 63)
}

// Put sets or clears index i according to v.
func (s *Set) Put(i int, v bool) {
	if v {
		s.Set(i)
	} else {
		s.Clear(i)
	}
}

// Has reports whether index i is marked.
func (s *Set) Has(i int) bool {
	if i < 0 || i >= s.n {
		return false
	}
	return s.words[i>>6]&(1<<(i&63)) != 0
}

// Count returns the number of marked indices.
func (s *Set) Count() int {
	count := 0
	for _, w := range s.words {
		count += bits.OnesCount64(w)
	}
	return count
}

// Reset clears every index without changing capacity.
func (s *Set) Reset() {
	clear(s.words)
}

// SetAll marks every index in [0, Len()).
func (s *Set) SetAll() {
	for i := range s.words {
		s.words[i] = ^uint64(0)
	}
	s.Resize(s.n)
}

// ForEach calls fn for every marked index in ascending order.
func (s *Set) ForEach(fn func(i int)) {
	for wi, w := range s.words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			fn(wi*64 + b)
			w &= w - 1
		}
	}
}
