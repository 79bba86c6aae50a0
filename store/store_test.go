package store

import "testing"

func TestAddr(t *testing.T) {
	for _, idx := range []int64{0, 1, -1, 1 << 20, -(1 << 20)} {
		h, i := Split(Addr(7, idx))
		if h != 7 || i != idx {
			t.Errorf("Split(Addr(7, %d))\nwant: 7 %d\ngot: %d %d\n", idx, idx, h, i)
		}
	}
	// Index arithmetic on an address stays within the array.
	if h, i := Split(Addr(3, 4) + 2); h != 3 || i != 6 {
		t.Errorf("Addr(3, 4)+2\nwant: 3 6\ngot: %d %d\n", h, i)
	}
	if h, i := Split(Addr(3, -1) + 1); h != 3 || i != 0 {
		t.Errorf("Addr(3, -1)+1\nwant: 3 0\ngot: %d %d\n", h, i)
	}
}

func TestStoreLoad(t *testing.T) {
	s := New()
	a := s.Put("a", []int64{1, 2, 3})
	if v, err := s.Load(a + 2); err != nil || v != 3 {
		t.Errorf("Load a[2]\nwant: 3\ngot: %d (%v)\n", v, err)
	}
	if err := s.StoreAt(a+1, 42); err != nil {
		t.Errorf("StoreAt a[1] failed: %v", err)
	}
	arr, ok := s.Get("a")
	if !ok || arr[1] != 42 {
		t.Errorf("Get a\nwant: [1 42 3]\ngot: %v\n", arr)
	}
	if _, err := s.Load(a + 3); err == nil {
		t.Errorf("Load a[3] should be out of bounds")
	} else if _, ok := err.(BoundsError); !ok {
		t.Errorf("expecting BoundsError, got %T", err)
	}
	if _, err := s.Load(Addr(99, 0)); err == nil {
		t.Errorf("Load from undefined array should fail")
	} else if _, ok := err.(ObjUndefError); !ok {
		t.Errorf("expecting ObjUndefError, got %T", err)
	}
}

func TestStoreClone(t *testing.T) {
	s := New()
	a := s.Put("a", []int64{1, 2})
	c := s.Clone()
	if !s.Equal(c) {
		t.Errorf("clone should be equal:\n%s\n%s", s, c)
	}
	c.StoreAt(a, 5)
	if s.Equal(c) {
		t.Errorf("clone should be independent:\n%s\n%s", s, c)
	}
	if v, _ := s.Load(a); v != 1 {
		t.Errorf("original modified through clone, a[0] = %d", v)
	}
}
