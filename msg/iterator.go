package msg

// Iterator walks a Msg's bytes page by page, the Go equivalent of
// msg_iterator in msg.h. It is bidirectional and supports random-access
// offset movement (Next/Prev/Move); Msg.Begin() returns one positioned at
// the first live byte, Msg.End() one positioned past the last.
type Iterator struct {
	first *page // first page of the message this iterator walks
	page  *page // current page, nil at End()
	idx   int   // byte offset within page
}

// Begin returns an iterator positioned at the first byte of the message,
// or one already AtEnd if the message holds no live bytes.
func (m *Msg) Begin() *Iterator {
	if m.head == nil || m.Size() == 0 {
		return m.End()
	}
	return &Iterator{first: m.head, page: m.head, idx: m.head.head}
}

// End returns an iterator positioned one past the last byte of the
// message, matching msg::end().
func (m *Msg) End() *Iterator {
	return &Iterator{first: m.head}
}

// AtEnd reports whether the iterator has run past the last byte.
func (it *Iterator) AtEnd() bool { return it.page == nil }

// Value returns the byte under the cursor. Undefined once AtEnd is true.
func (it *Iterator) Value() byte { return it.page.data[it.idx] }

// SetValue overwrites the byte under the cursor. Undefined once AtEnd is
// true or the underlying page is shared (ref > 1) — same precondition as
// Msg.SetAt.
func (it *Iterator) SetValue(v byte) { it.page.data[it.idx] = v }

// Equal reports whether two iterators reference the same position.
func (it *Iterator) Equal(other *Iterator) bool {
	return it.page == other.page && it.idx == other.idx
}

// Clone returns an independent copy of this iterator's position.
func (it *Iterator) Clone() *Iterator {
	c := *it
	return &c
}

// Next advances the cursor by one byte, crossing into the next page when
// the current one is exhausted — mirrors msg_iterator::operator++.
func (it *Iterator) Next() {
	if it.page == nil {
		return
	}
	it.idx++
	if it.idx >= it.page.tail {
		it.page = it.page.next
		if it.page != nil {
			it.idx = it.page.head
		} else {
			it.idx = 0
		}
	}
}

// Prev steps the cursor back by one byte, crossing into the previous page
// when the current one is exhausted — mirrors msg_iterator::operator--.
// A no-op at Begin().
func (it *Iterator) Prev() {
	if it.first == nil {
		return
	}
	if it.page == nil {
		// stepping back from End(): land on the last byte of the last page.
		p := it.first
		for p.next != nil {
			p = p.next
		}
		it.page = p
		it.idx = p.tail - 1
		return
	}
	if it.idx > it.page.head {
		it.idx--
		return
	}
	if it.page == it.first {
		return // already at Begin(), nothing before it
	}
	p := it.first
	for p.next != it.page {
		p = p.next
	}
	it.page = p
	it.idx = p.tail - 1
}

// Move steps the cursor by n bytes, forward for positive n and backward
// for negative n — mirrors msg_iterator::operator+=/operator-=.
func (it *Iterator) Move(n int) {
	for ; n > 0; n-- {
		it.Next()
	}
	for ; n < 0; n++ {
		it.Prev()
	}
}

// Add returns a new iterator n bytes ahead of (or behind, for negative n)
// this one, mirroring msg_iterator::operator+.
func (it *Iterator) Add(n int) *Iterator {
	c := it.Clone()
	c.Move(n)
	return c
}

// Sub returns a new iterator n bytes behind this one, mirroring
// msg_iterator::operator-.
func (it *Iterator) Sub(n int) *Iterator {
	return it.Add(-n)
}

// ForEach visits every byte of the message in order.
func (m *Msg) ForEach(fn func(b byte)) {
	for it := m.Begin(); !it.AtEnd(); it.Next() {
		fn(it.Value())
	}
}
