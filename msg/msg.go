package msg

import "github.com/mpaland/decom/internal/declog"

// illegalRef is the sentinel byte At returns for an out-of-range index,
// matching msg::illegal_ref_ in msg.h. Preserved deliberately: spec.md
// leaves this an open question and the original's observable contract is
// the tie-breaker (see DESIGN.md).
const illegalRef = 0xCC

// Msg is a deque of bytes spread over a chain of pool pages. It is the
// single buffer type passed between layers: Send/Receive/indication all
// move a *Msg by reference so no layer ever copies payload bytes unless it
// explicitly asks to (via RefCopy or a deep Clone).
type Msg struct {
	pool *Pool
	head *page // first page of the chain
	name string
}

// New allocates a message backed by pool, with its head/tail positioned
// DefaultPageBegin bytes into the first page so a lower protocol can
// PushFront a header without forcing a reallocation.
func New(pool *Pool) *Msg {
	return NewAt(pool, DefaultPageBegin)
}

// NewAt allocates a message whose first page starts empty at the given
// offset, mirroring msg's offset-taking ctor.
func NewAt(pool *Pool, offset int) *Msg {
	m := &Msg{pool: pool, name: "msg"}
	pg := pool.acquire()
	if pg == nil {
		declog.Error(m.name, "page allocation failed")
		return m
	}
	// A page smaller than the requested offset (small pools, e.g. in tests)
	// has no room to honor it; starting at 0 keeps the whole page usable
	// instead of leaving it permanently empty at capacity, same clamp Clear
	// uses.
	if offset > len(pg.data) {
		offset = 0
	}
	pg.head, pg.tail = offset, offset
	m.head = pg
	return m
}

// NewFromBytes builds a message by pushing every byte of b onto a fresh
// buffer. Convenience used throughout this module's tests and by protocols
// constructing small framed PDUs.
func NewFromBytes(pool *Pool, b []byte) *Msg {
	m := New(pool)
	for _, v := range b {
		m.PushBack(v)
	}
	return m
}

// readOnly reports whether any page behind this message is shared
// (ref > 1), the condition under which every mutator must refuse, per
// msg.h's "page_->ref > 1U" guard on push_back/pop_back/etc.
func (m *Msg) readOnly() bool {
	for p := m.head; p != nil; p = p.next {
		if p.ref > 1 {
			return true
		}
	}
	return false
}

func (m *Msg) lastPage() *page {
	p := m.head
	for p.next != nil {
		p = p.next
	}
	return p
}

// Free releases every page this message owns back to the pool. Callers
// must call this once a message is no longer needed — there is no garbage
// collector for pool pages, matching the original's refcounted dtor.
func (m *Msg) Free() {
	for p := m.head; p != nil; {
		next := p.next
		m.pool.release(p)
		p = next
	}
	m.head = nil
}

// Size returns the total number of live bytes across all pages.
func (m *Msg) Size() int {
	n := 0
	for p := m.head; p != nil; p = p.next {
		n += p.tail - p.head
	}
	return n
}

// Empty reports whether the message holds zero bytes.
func (m *Msg) Empty() bool { return m.Size() == 0 }

// At returns the byte at position pos, or the 0xCC sentinel if pos is out
// of range — mirrors msg::at().
func (m *Msg) At(pos int) byte {
	if m.head == nil || pos < 0 {
		return illegalRef
	}
	size := 0
	for p := m.head; p != nil; p = p.next {
		span := p.tail - p.head
		if pos < size+span {
			return p.data[p.head+pos-size]
		}
		size += span
	}
	declog.Warn(m.name, "at() position is out of range", "pos", pos)
	return illegalRef
}

// SetAt overwrites the byte at pos in place, returning false if pos is out
// of range or the message is read-only. msg.h allows writing through
// operator[] on a mutable reference; this is the Go equivalent.
func (m *Msg) SetAt(pos int, v byte) bool {
	if m.readOnly() || m.head == nil || pos < 0 {
		return false
	}
	size := 0
	for p := m.head; p != nil; p = p.next {
		span := p.tail - p.head
		if pos < size+span {
			p.data[p.head+pos-size] = v
			return true
		}
		size += span
	}
	return false
}

// Front returns the first byte, or the sentinel on an empty message.
func (m *Msg) Front() byte { return m.At(0) }

// Back returns the last byte, or the sentinel on an empty message.
func (m *Msg) Back() byte { return m.At(m.Size() - 1) }

// PushBack appends one byte, allocating a new page from the pool if the
// last page is full. Returns false (and logs) if the message is read-only
// or the pool is exhausted.
func (m *Msg) PushBack(v byte) bool {
	if m.head == nil || m.readOnly() {
		declog.Warn(m.name, "push_back refused", "reason", refusalReason(m))
		return false
	}
	last := m.lastPage()
	if last.tail == len(last.data) {
		np := m.pool.acquire()
		if np == nil {
			declog.Error(m.name, "push_back: pool exhausted")
			return false
		}
		last.next = np
		last = np
	}
	last.data[last.tail] = v
	last.tail++
	return true
}

// PushFront prepends one byte, allocating a new page ahead of the chain if
// the first page has no room before its head.
func (m *Msg) PushFront(v byte) bool {
	if m.head == nil || m.readOnly() {
		declog.Warn(m.name, "push_front refused", "reason", refusalReason(m))
		return false
	}
	if m.head.head == 0 {
		np := m.pool.acquire()
		if np == nil {
			declog.Error(m.name, "push_front: pool exhausted")
			return false
		}
		np.head, np.tail = len(np.data), len(np.data)
		np.next = m.head
		m.head = np
	}
	m.head.head--
	m.head.data[m.head.head] = v
	return true
}

// PopBack removes the last byte. No-op on an empty or read-only message.
func (m *Msg) PopBack() {
	if m.head == nil || m.readOnly() || m.Empty() {
		return
	}
	last := m.lastPage()
	last.tail--
	if last.tail == last.head && last != m.head {
		m.pool.release(last)
		p := m.head
		for p.next != last {
			p = p.next
		}
		p.next = nil
	}
}

// PopFront removes the first byte. No-op on an empty or read-only message.
func (m *Msg) PopFront() {
	if m.head == nil || m.readOnly() || m.Empty() {
		return
	}
	m.head.head++
	if m.head.head == m.head.tail && m.head.next != nil {
		old := m.head
		m.head = m.head.next
		m.pool.release(old)
	}
}

// Clear releases every page this message holds back to the pool and
// acquires a fresh one, ready for reuse — mirrors msg::clear(), which
// page_frees the whole chain (decrementing each page's refcount) before
// page_alloc'ing a new head. Reusing the head page in place instead would
// corrupt any sibling still sharing it via RefCopy/Append.
func (m *Msg) Clear() {
	for p := m.head; p != nil; {
		next := p.next
		m.pool.release(p)
		p = next
	}
	m.head = nil

	pg := m.pool.acquire()
	if pg == nil {
		declog.Error(m.name, "clear: pool exhausted")
		return
	}
	offset := DefaultPageBegin
	if offset > len(pg.data) {
		offset = 0
	}
	pg.head, pg.tail = offset, offset
	m.head = pg
}

// RefCopy makes this message share other's pages instead of copying bytes:
// every page's refcount is incremented, and because any page with ref > 1
// is read-only, both messages become immutable until one of them is freed
// or cleared. A Clone of either is a private, writable copy, but cloning
// leaves both originals shared.
func (m *Msg) RefCopy(other *Msg) {
	if m.head != nil {
		for p := m.head; p != nil; {
			next := p.next
			m.pool.release(p)
			p = next
		}
	}
	m.head = other.head
	for p := m.head; p != nil; p = p.next {
		m.pool.acquireRef(p)
	}
}

// Clone makes a full, independent, writable copy of this message.
func (m *Msg) Clone() *Msg {
	c := New(m.pool)
	c.Clear()
	m.CopyInto(c)
	return c
}

// CopyInto deep-copies this message's bytes into dst, which must already
// exist (and is cleared first).
func (m *Msg) CopyInto(dst *Msg) {
	dst.Clear()
	it := m.Begin()
	for !it.AtEnd() {
		dst.PushBack(it.Value())
		it.Next()
	}
}

// Equal reports whether two messages hold the same bytes.
func (m *Msg) Equal(other *Msg) bool {
	if m.Size() != other.Size() {
		return false
	}
	a, b := m.Begin(), other.Begin()
	for !a.AtEnd() {
		if a.Value() != b.Value() {
			return false
		}
		a.Next()
		b.Next()
	}
	return true
}

// Get linearizes up to len(dest) bytes starting at offset into dest, returning
// the number of bytes copied — mirrors msg::get(dest, maxlength, offset).
func (m *Msg) Get(dest []byte, offset int) int {
	n := 0
	it := m.Begin()
	for i := 0; i < offset && !it.AtEnd(); i++ {
		it.Next()
	}
	for n < len(dest) && !it.AtEnd() {
		dest[n] = it.Value()
		n++
		it.Next()
	}
	return n
}

// Put clears the message and pushes every byte of source onto it, mirroring
// msg::put(source, count). Returns false if the pool runs out of pages
// partway through, leaving the message holding whatever prefix it managed
// to push.
func (m *Msg) Put(source []byte) bool {
	m.Clear()
	for _, b := range source {
		if !m.PushBack(b) {
			return false
		}
	}
	return true
}

// Append concatenates other onto the end of this message by sharing
// other's pages (incrementing their refcount) rather than copying bytes,
// mirroring msg::append(). Both messages become read-only for the shared
// pages, same as RefCopy.
func (m *Msg) Append(other *Msg) {
	if other.head == nil {
		return
	}
	for p := other.head; p != nil; p = p.next {
		m.pool.acquireRef(p)
	}
	if m.head == nil {
		m.head = other.head
		return
	}
	m.lastPage().next = other.head
}

// indexOf walks from the front counting bytes until it matches position,
// returning Size() for End() or any iterator not found in this message.
func (m *Msg) indexOf(position *Iterator) int {
	if position.AtEnd() {
		return m.Size()
	}
	n := 0
	for it := m.Begin(); !it.AtEnd(); it.Next() {
		if it.Equal(position) {
			return n
		}
		n++
	}
	return m.Size()
}

// iteratorAt returns an iterator positioned at logical index i, or End() if
// i is at or past the current size.
func (m *Msg) iteratorAt(i int) *Iterator {
	it := m.Begin()
	for n := 0; n < i && !it.AtEnd(); n++ {
		it.Next()
	}
	return it
}

// Resize truncates or zero-pads the message to sz bytes, releasing or
// acquiring pages as needed — mirrors msg::resize(). Returns false if
// growing and the pool is exhausted, in which case the message is left
// however far PushBack got.
func (m *Msg) Resize(sz int) bool {
	if m.head == nil || m.readOnly() {
		declog.Warn(m.name, "resize refused", "reason", refusalReason(m))
		return false
	}
	size := m.Size()
	if sz == size {
		return true
	}
	if sz > size {
		for i := 0; i < sz-size; i++ {
			if !m.PushBack(0) {
				return false
			}
		}
		return true
	}
	for i := 0; i < size-sz; i++ {
		m.PopBack()
	}
	return true
}

// Insert places v immediately before position, shifting everything from
// position onward one byte to the right, and returns an iterator at the
// inserted byte. Mirrors msg::insert(iterator, value): it grows the buffer
// by one (duplicating the current last byte, or 0 if empty) and then
// shifts right down to position rather than shifting left from position,
// so the amortized trailing-page growth path is exercised the same way
// push_back's is. Returns ok=false (position unspecified, End() returned)
// if the message is read-only or the pool is exhausted.
func (m *Msg) Insert(position *Iterator, v byte) (*Iterator, bool) {
	if m.head == nil || m.readOnly() {
		declog.Warn(m.name, "insert refused", "reason", refusalReason(m))
		return m.End(), false
	}
	idx := m.indexOf(position)
	var placeholder byte
	if !m.Empty() {
		placeholder = m.Back()
	}
	if !m.PushBack(placeholder) {
		return m.End(), false
	}
	for i := m.Size() - 1; i > idx; i-- {
		m.SetAt(i, m.At(i-1))
	}
	m.SetAt(idx, v)
	return m.iteratorAt(idx), true
}

// InsertN inserts n copies of v before position, mirroring
// msg::insert(iterator, n, value).
func (m *Msg) InsertN(position *Iterator, n int, v byte) bool {
	idx := m.indexOf(position)
	for i := 0; i < n; i++ {
		if _, ok := m.Insert(m.iteratorAt(idx), v); !ok {
			return false
		}
	}
	return true
}

// InsertSeq inserts every byte of seq before position, preserving seq's
// order, mirroring msg::insert(iterator, first, last).
func (m *Msg) InsertSeq(position *Iterator, seq []byte) bool {
	idx := m.indexOf(position)
	for i, b := range seq {
		if _, ok := m.Insert(m.iteratorAt(idx+i), b); !ok {
			return false
		}
	}
	return true
}

// Erase removes the byte at position, shifting everything after it one
// byte to the left, and returns an iterator now sitting where position
// used to be. A no-op (returning End()) on a read-only message or when
// position is already End(). Mirrors msg::erase(iterator).
func (m *Msg) Erase(position *Iterator) *Iterator {
	if m.head == nil || m.readOnly() {
		declog.Warn(m.name, "erase refused", "reason", refusalReason(m))
		return m.End()
	}
	if position.AtEnd() {
		return m.End()
	}
	idx := m.indexOf(position)
	for i := idx; i < m.Size()-1; i++ {
		m.SetAt(i, m.At(i+1))
	}
	m.PopBack()
	return m.iteratorAt(idx)
}

// EraseRange removes every byte in [first,last), mirroring
// msg::erase(first, last).
func (m *Msg) EraseRange(first, last *Iterator) *Iterator {
	fi := m.indexOf(first)
	li := m.indexOf(last)
	for i := 0; i < li-fi; i++ {
		m.Erase(m.iteratorAt(fi))
	}
	return m.iteratorAt(fi)
}

// Bytes linearizes the whole message into a new slice. Convenience used by
// tests and by protocols handing payload to a consumer that wants a plain
// []byte (e.g. a communicator writing to a socket).
func (m *Msg) Bytes() []byte {
	b := make([]byte, m.Size())
	m.Get(b, 0)
	return b
}

func refusalReason(m *Msg) string {
	if m.head == nil {
		return "page invalid"
	}
	return "pageref > 1"
}
