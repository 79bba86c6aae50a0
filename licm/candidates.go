package licm

import "github.com/nickng/loopopt/ir"

// Candidates is the working list of instructions considered for motion out
// of a loop. Instructions are kept in the order they were added.
type Candidates struct {
	list []ir.ID
	in   map[ir.ID]bool
}

// NewCandidates returns an empty candidate list.
func NewCandidates() *Candidates {
	return &Candidates{in: make(map[ir.ID]bool)}
}

// Add appends id unless it is already present.
func (c *Candidates) Add(id ir.ID) {
	if c.in[id] {
		return
	}
	c.in[id] = true
	c.list = append(c.list, id)
}

// Contains reports whether id is a candidate.
func (c *Candidates) Contains(id ir.ID) bool { return c.in[id] }

// Remove drops id from the list.
func (c *Candidates) Remove(id ir.ID) {
	if !c.in[id] {
		return
	}
	delete(c.in, id)
	for i, x := range c.list {
		if x == id {
			c.list = append(c.list[:i], c.list[i+1:]...)
			return
		}
	}
}

// Front returns the oldest candidate, or NoID.
func (c *Candidates) Front() ir.ID {
	if len(c.list) == 0 {
		return ir.NoID
	}
	return c.list[0]
}

// Clear removes every candidate.
func (c *Candidates) Clear() {
	c.list = nil
	c.in = make(map[ir.ID]bool)
}

// Len returns the number of candidates.
func (c *Candidates) Len() int { return len(c.list) }

// IDs returns a copy of the candidates in order.
func (c *Candidates) IDs() []ir.ID { return append([]ir.ID(nil), c.list...) }
