// Package store provides the memory used by the reference interpreter:
// a pool of integer arrays and the names they are bound to.
//
// Addresses are plain int64 values which encode an array handle in the high
// 32 bits and a biased element index in the low 32 bits, so address
// arithmetic on the index stays within the same array.
package store

import (
	"bytes"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Addr returns the address of element index of array h.
func Addr(h Handle, index int64) int64 {
	return int64(h)<<32 + index + indexBias
}

const indexBias = 1 << 31

// Split decomposes an address into its array handle and element index.
func Split(addr int64) (Handle, int64) {
	return Handle(addr >> 32), addr&0xffffffff - indexBias
}

// Store is a two-layer storage: names bound to arrays in a Pool.
type Store struct {
	logger *zap.SugaredLogger
	names  map[string]Handle
	vals   *Pool // Actual object storage.
}

func New() *Store {
	return &Store{
		logger: zap.NewNop().Sugar(),
		names:  make(map[string]Handle),
		vals:   newPool(),
	}
}

// SetLogger sets debug output to l.
func (s *Store) SetLogger(l *zap.SugaredLogger) {
	if l != nil {
		s.logger = l
	}
}

// Put creates a new array holding a copy of vals and binds it to name.
// It returns the address of the first element.
func (s *Store) Put(name string, vals []int64) int64 {
	h := s.vals.Alloc(len(vals))
	arr, _ := s.vals.Get(h)
	copy(arr, vals)
	if name != "" {
		s.names[name] = h
	}
	s.logger.Debugf("Put: %s ↦ %s len=%d", name, h.UniqName(), len(vals))
	return Addr(h, 0)
}

// Alloc creates a new anonymous zeroed array of n elements.
func (s *Store) Alloc(n int) int64 {
	return s.Put("", make([]int64, n))
}

// Get returns a copy of the array bound to name.
func (s *Store) Get(name string) ([]int64, bool) {
	h, ok := s.names[name]
	if !ok {
		return nil, false
	}
	arr, err := s.vals.Get(h)
	if err != nil {
		return nil, false
	}
	return append([]int64(nil), arr...), true
}

func (s *Store) element(addr int64) ([]int64, int64, error) {
	h, idx := Split(addr)
	arr, err := s.vals.Get(h)
	if err != nil {
		return nil, 0, err
	}
	if idx < 0 || idx >= int64(len(arr)) {
		return nil, 0, BoundsError{ID: h, Index: idx, Len: len(arr)}
	}
	return arr, idx, nil
}

// Load reads the element at addr.
func (s *Store) Load(addr int64) (int64, error) {
	arr, idx, err := s.element(addr)
	if err != nil {
		return 0, err
	}
	return arr[idx], nil
}

// StoreAt writes v to the element at addr.
func (s *Store) StoreAt(addr, v int64) error {
	arr, idx, err := s.element(addr)
	if err != nil {
		return err
	}
	arr[idx] = v
	return nil
}

// Clone returns a deep copy of s, names and contents included.
func (s *Store) Clone() *Store {
	c := &Store{logger: s.logger, names: make(map[string]Handle, len(s.names)), vals: s.vals.clone()}
	for k, v := range s.names {
		c.names[k] = v
	}
	return c
}

// Equal reports whether the named arrays of s and t hold the same contents.
func (s *Store) Equal(t *Store) bool {
	if len(s.names) != len(t.names) {
		return false
	}
	for name := range s.names {
		a, ok1 := s.Get(name)
		b, ok2 := t.Get(name)
		if !ok1 || !ok2 || len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	}
	return true
}

func (s *Store) String() string {
	var names []string
	for k := range s.names {
		names = append(names, k)
	}
	sort.Strings(names)
	var buf bytes.Buffer
	buf.WriteString("┌─────┄ name: val ┄──────\n")
	for _, k := range names {
		arr, _ := s.Get(k)
		buf.WriteString(fmt.Sprintf("│ %s:\t%v\n", k, arr))
	}
	buf.WriteString("└────────────────────────\n")
	return buf.String()
}
