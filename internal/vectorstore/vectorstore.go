package vectorstore

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
)

const (
	segmentBits = 10
	segmentLen  = 1 << segmentBits
	segmentMask = segmentLen - 1

	// maxReservedSegments caps the up-front segment table so huge capacity hints stay cheap.
	maxReservedSegments = 1 << 16
)

var (
	// ErrWrongDimension is returned when a vector doesn't match the store dimension.
	ErrWrongDimension = errors.New("wrong vector dimension")
	// ErrFull is returned when the store cannot address another vector.
	ErrFull = errors.New("vector store is full")
	// ErrReleased is returned by Append after Release.
	ErrReleased = errors.New("vector store is released")
)

type segment struct {
	data []float32
}

// Store is an append-only vector store with an optional borrowed prefix.
type Store struct {
	dim int

	borrowed  []float32
	nBorrowed uint32

	mu       sync.Mutex
	segments atomic.Pointer[[]*segment]
	count    atomic.Uint32
	released atomic.Bool
}

// New creates an empty heap-backed store. capacity is a hint for the expected number of vectors.
func New(dim int, capacity uint64) *Store {
	s := &Store{dim: dim}
	s.reserve(capacity)
	return s
}

// NewBorrowed creates a store whose first len(data)/dim vectors alias data.
// data must stay valid and unmodified until Release is called.
func NewBorrowed(dim int, data []float32, capacity uint64) (*Store, error) {
	if dim <= 0 || len(data)%dim != 0 {
		return nil, ErrWrongDimension
	}
	n := len(data) / dim
	if uint64(n) > math.MaxUint32 {
		return nil, ErrFull
	}
	s := &Store{
		dim:       dim,
		borrowed:  data[:len(data):len(data)],
		nBorrowed: uint32(n),
	}
	s.count.Store(uint32(n))
	var extra uint64
	if capacity > uint64(n) {
		extra = capacity - uint64(n)
	}
	s.reserve(extra)
	return s, nil
}

func (s *Store) reserve(capacity uint64) {
	nseg := (capacity + segmentLen - 1) / segmentLen
	if nseg > maxReservedSegments {
		nseg = maxReservedSegments
	}
	segs := make([]*segment, 0, nseg)
	s.segments.Store(&segs)
}

// Dimension returns the dimension of the vectors.
func (s *Store) Dimension() int { return s.dim }

// Len returns the number of vectors.
func (s *Store) Len() int { return int(s.count.Load()) }

// Borrowed returns the number of vectors that alias external memory.
func (s *Store) Borrowed() int { return int(s.nBorrowed) }

// Append copies v into the store and returns its id.
func (s *Store) Append(v []float32) (uint32, error) {
	if len(v) != s.dim {
		return 0, ErrWrongDimension
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released.Load() {
		return 0, ErrReleased
	}

	id := s.count.Load()
	if id == math.MaxUint32 {
		return 0, ErrFull
	}

	local := id - s.nBorrowed
	segIdx := int(local >> segmentBits)
	off := int(local&segmentMask) * s.dim

	segs := *s.segments.Load()
	if segIdx >= len(segs) {
		seg := &segment{data: make([]float32, segmentLen*s.dim)}
		if len(segs) < cap(segs) {
			segs = append(segs, seg)
		} else {
			grown := make([]*segment, len(segs), max(2*cap(segs), 4))
			copy(grown, segs)
			segs = append(grown, seg)
		}
		s.segments.Store(&segs)
	}

	copy(segs[segIdx].data[off:off+s.dim], v)
	s.count.Store(id + 1)

	return id, nil
}

// Get returns the vector for id. The slice aliases store memory.
func (s *Store) Get(id uint32) ([]float32, bool) {
	if id >= s.count.Load() {
		return nil, false
	}
	if id < s.nBorrowed {
		off := int(id) * s.dim
		return s.borrowed[off : off+s.dim : off+s.dim], true
	}

	local := id - s.nBorrowed
	segs := s.segments.Load()
	if segs == nil {
		return nil, false
	}
	segIdx := int(local >> segmentBits)
	if segIdx >= len(*segs) {
		return nil, false
	}
	off := int(local&segmentMask) * s.dim
	return (*segs)[segIdx].data[off : off+s.dim : off+s.dim], true
}

// MustGet is Get for ids known to be valid, such as ids reached through graph links.
func (s *Store) MustGet(id uint32) []float32 {
	v, ok := s.Get(id)
	if !ok {
		panic("vectorstore: id out of range")
	}
	return v
}

// IsBorrowed reports whether any vector aliases external memory.
func (s *Store) IsBorrowed() bool {
	return s.Borrowed() > 0 && !s.released.Load()
}

// Release drops every reference to borrowed and owned memory.
// The borrowed buffer may be unmapped once Release returns.
func (s *Store) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.released.Store(true)
	s.count.Store(0)
	s.borrowed = nil
	s.nBorrowed = 0
	empty := []*segment{}
	s.segments.Store(&empty)
}
