// Package bloom implements a thread-safe Bloom filter. A negative
// membership answer is exact; a positive one is subject to the
// configured false-positive rate.
//
// Bit positions derive from the two halves of an FNV-128a digest via
// double hashing, h(i) = h1 + i*h2 mod m (Kirsch and Mitzenmacher).
package bloom

import (
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math"
	"math/bits"
	"sync"
)

const bitsPerWord = 64

// ln2Squared is the denominator of the optimal sizing formula.
const ln2Squared = math.Ln2 * math.Ln2

// Sizing errors.
var (
	ErrZeroN     = errors.New("bloom: n must be positive")
	ErrInvalidFP = errors.New("bloom: fp must be in (0, 1)")
)

// Filter is a fixed-size Bloom filter. The zero value is not usable;
// construct with NewWithEstimates.
type Filter struct {
	mu    sync.RWMutex
	bits  []uint64
	m     uint
	k     uint
	count uint
}

// NewWithEstimates sizes a filter for n expected elements at a
// false-positive rate of fp.
func NewWithEstimates(n uint, fp float64) (*Filter, error) {
	if n == 0 {
		return nil, ErrZeroN
	}

	if fp <= 0 || fp >= 1 {
		return nil, ErrInvalidFP
	}

	m := uint(math.Ceil(-float64(n) * math.Log(fp) / ln2Squared))

	k := uint(math.Round(float64(m) / float64(n) * math.Ln2))
	if k < 1 {
		k = 1
	}

	words := (m + bitsPerWord - 1) / bitsPerWord

	return &Filter{bits: make([]uint64, words), m: m, k: k}, nil
}

// Add inserts data into the filter.
func (f *Filter) Add(data []byte) {
	h1, h2 := hashKernel(data)

	f.mu.Lock()
	for i := range f.k {
		pos := (h1 + uint64(i)*h2) % uint64(f.m)
		f.bits[pos/bitsPerWord] |= 1 << (pos % bitsPerWord)
	}

	f.count++
	f.mu.Unlock()
}

// Test reports whether data was possibly added. False is authoritative.
func (f *Filter) Test(data []byte) bool {
	h1, h2 := hashKernel(data)

	f.mu.RLock()
	defer f.mu.RUnlock()

	for i := range f.k {
		pos := (h1 + uint64(i)*h2) % uint64(f.m)
		if f.bits[pos/bitsPerWord]&(1<<(pos%bitsPerWord)) == 0 {
			return false
		}
	}

	return true
}

// Reset clears the filter without reallocating the bit array.
func (f *Filter) Reset() {
	f.mu.Lock()
	for i := range f.bits {
		f.bits[i] = 0
	}

	f.count = 0
	f.mu.Unlock()
}

// EstimatedCount approximates how many elements were added. Duplicate
// adds count twice.
func (f *Filter) EstimatedCount() uint {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.count
}

// FillRatio returns the fraction of set bits, in [0, 1].
func (f *Filter) FillRatio() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	total := 0
	for _, word := range f.bits {
		total += bits.OnesCount64(word)
	}

	return float64(total) / float64(f.m)
}

// BitCount returns the bit-array size in bits.
func (f *Filter) BitCount() uint { return f.m }

// HashCount returns the number of probe positions per element.
func (f *Filter) HashCount() uint { return f.k }

// hashKernel splits an FNV-128a digest into two 64-bit halves. h2 is
// forced odd so the probe step stays coprime with an even m.
func hashKernel(data []byte) (h1, h2 uint64) {
	h := fnv.New128a()
	_, _ = h.Write(data)
	sum := h.Sum(nil)

	return binary.BigEndian.Uint64(sum[:8]), binary.BigEndian.Uint64(sum[8:]) | 1
}
