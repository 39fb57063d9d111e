// Package index provides nearest-neighbor search over embedding vectors.
package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// ErrDimensionMismatch indicates vectors of inconsistent dimensionality.
var ErrDimensionMismatch = errors.New("index: vector dimension mismatch")

// SearchResult represents a nearest neighbor match. Slot is the
// position of the vector in the build order.
type SearchResult struct {
	Slot     int
	Distance float32
}

// Flat is a brute-force index using squared Euclidean (L2) distance
// over raw vectors. There is no incremental insert or remove: the only
// way to change its contents is a full Build, which replaces the prior
// contents atomically. Searches running concurrently with a Build see
// either the old or the new contents, never a mix.
type Flat struct {
	mu    sync.RWMutex
	state *flatState
}

// flatState is an immutable snapshot of built vectors. A new value is
// installed wholesale on every Build.
type flatState struct {
	dims    int
	vectors [][]float32
}

// NewFlat creates an empty flat index.
func NewFlat() *Flat {
	return &Flat{}
}

// Build replaces the index contents with the given vectors, keyed by
// slot position. All vectors must share the same dimensionality or
// Build fails with ErrDimensionMismatch and the previous contents stay
// in effect.
func (f *Flat) Build(vectors [][]float32) error {
	state := &flatState{}
	if len(vectors) > 0 {
		state.dims = len(vectors[0])
		state.vectors = make([][]float32, len(vectors))
		for i, v := range vectors {
			if len(v) != state.dims {
				return fmt.Errorf("%w: vector %d has %d dims, want %d", ErrDimensionMismatch, i, len(v), state.dims)
			}
			vec := make([]float32, len(v))
			copy(vec, v)
			state.vectors[i] = vec
		}
	}

	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
	return nil
}

// Search returns the k nearest slots to query in ascending distance
// order. An empty index or k <= 0 yields an empty result, never an
// error. A query whose dimensionality differs from the built vectors
// fails with ErrDimensionMismatch.
func (f *Flat) Search(query []float32, k int) ([]SearchResult, error) {
	f.mu.RLock()
	state := f.state
	f.mu.RUnlock()

	if state == nil || len(state.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != state.dims {
		return nil, fmt.Errorf("%w: query has %d dims, want %d", ErrDimensionMismatch, len(query), state.dims)
	}

	results := make([]SearchResult, len(state.vectors))
	for i, v := range state.vectors {
		results[i] = SearchResult{Slot: i, Distance: squaredL2(query, v)}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Slot < results[j].Slot
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Len returns the number of indexed vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.state == nil {
		return 0
	}
	return len(f.state.vectors)
}

// Dimensions returns the dimensionality of the indexed vectors, or 0
// if the index is empty.
func (f *Flat) Dimensions() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.state == nil {
		return 0
	}
	return f.state.dims
}

// Marshal serializes the index contents for snapshot persistence.
// Layout: uint32 dims, uint32 count, then count*dims little-endian
// float32 values.
func (f *Flat) Marshal() ([]byte, error) {
	f.mu.RLock()
	state := f.state
	f.mu.RUnlock()

	if state == nil {
		state = &flatState{}
	}

	buf := make([]byte, 8+len(state.vectors)*state.dims*4)
	binary.LittleEndian.PutUint32(buf[0:], uint32(state.dims))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(state.vectors)))
	off := 8
	for _, v := range state.vectors {
		for _, x := range v {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(x))
			off += 4
		}
	}
	return buf, nil
}

// Unmarshal restores index contents from a Marshal payload, replacing
// any prior contents atomically.
func (f *Flat) Unmarshal(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("index: snapshot payload too short (%d bytes)", len(data))
	}
	dims := int(binary.LittleEndian.Uint32(data[0:]))
	count := int(binary.LittleEndian.Uint32(data[4:]))
	if len(data) != 8+count*dims*4 {
		return fmt.Errorf("index: snapshot payload size %d does not match %d vectors of %d dims", len(data), count, dims)
	}

	state := &flatState{dims: dims}
	if count > 0 {
		state.vectors = make([][]float32, count)
		off := 8
		for i := 0; i < count; i++ {
			vec := make([]float32, dims)
			for j := 0; j < dims; j++ {
				vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
				off += 4
			}
			state.vectors[i] = vec
		}
	} else {
		state.dims = 0
	}

	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
	return nil
}

// squaredL2 computes the squared Euclidean distance between two
// vectors of equal length.
func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
