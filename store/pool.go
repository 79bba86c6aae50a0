package store

import (
	"fmt"
	"sync"
)

// Handle identifies an array in a Pool. The zero Handle is never allocated.
type Handle int32

func (h Handle) UniqName() string {
	return fmt.Sprintf("pool_%d", h)
}

// ObjUndefError is the error returned if accessing a non-existent object.
type ObjUndefError struct {
	ID Handle
}

func (e ObjUndefError) Error() string {
	return fmt.Sprintf("object undefined (id: %v)", e.ID.UniqName())
}

// BoundsError is the error returned if accessing an array out of bounds.
type BoundsError struct {
	ID    Handle
	Index int64
	Len   int
}

func (e BoundsError) Error() string {
	return fmt.Sprintf("index %d out of bounds [0:%d] (id: %v)", e.Index, e.Len, e.ID.UniqName())
}

// Pool is the backing storage of arrays.
//
// Handles have no particular significance, except that they are unique
// within the Pool. A new handle is generated for each call to Alloc.
type Pool struct {
	pool  map[Handle][]int64
	count int

	mu sync.Mutex
}

func newPool() *Pool {
	return &Pool{pool: make(map[Handle][]int64)}
}

// Get returns the backing slice of array h.
func (p *Pool) Get(h Handle) ([]int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if arr, ok := p.pool[h]; ok {
		return arr, nil
	}
	return nil, ObjUndefError{ID: h}
}

// Alloc adds a new zeroed array of n elements.
func (p *Pool) Alloc(n int) Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := Handle(p.count + 1)
	p.pool[h] = make([]int64, n)
	p.count++
	return h
}

func (p *Pool) clone() *Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := &Pool{pool: make(map[Handle][]int64, len(p.pool)), count: p.count}
	for h, arr := range p.pool {
		c.pool[h] = append([]int64(nil), arr...)
	}
	return c
}
