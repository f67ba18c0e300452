package pco

// BufferPool is the external shared-memory buffer ring and its
// empty-buffer queue, out of scope per spec.md §1 and modeled here only
// as the two operations the acquisition loop needs.
type BufferPool interface {
	// GetEmptyBuffer returns an empty buffer's id and backing memory, or
	// ok=false if the pool is currently exhausted. The returned slice
	// must be at least frame.HeaderSize+imageSize bytes.
	GetEmptyBuffer() (id int, addr []byte, ok bool)

	// NotifyFrameReady marks the buffer identified by id as filled with
	// frameNumber's image data and ready for downstream consumption.
	// Must be called exactly once per successful image.
	NotifyFrameReady(id int, frameNumber uint32)
}

// FakeBufferPool is an in-memory BufferPool used by tests. Buffers are
// preallocated up front; Exhausted forces GetEmptyBuffer to report
// failure regardless of availability, simulating a downstream pipeline
// that isn't draining the ring.
type FakeBufferPool struct {
	bufs      [][]byte
	free      []int
	Exhausted bool

	// Ready records (id, frameNumber) pairs passed to NotifyFrameReady,
	// in call order.
	Ready []ReadyNotification
}

// ReadyNotification records one NotifyFrameReady call.
type ReadyNotification struct {
	ID          int
	FrameNumber uint32
}

// NewFakeBufferPool preallocates n buffers of bufSize bytes each.
func NewFakeBufferPool(n, bufSize int) *FakeBufferPool {
	p := &FakeBufferPool{}
	for i := 0; i < n; i++ {
		p.bufs = append(p.bufs, make([]byte, bufSize))
		p.free = append(p.free, i)
	}
	return p
}

func (p *FakeBufferPool) GetEmptyBuffer() (int, []byte, bool) {
	if p.Exhausted || len(p.free) == 0 {
		return 0, nil, false
	}
	id := p.free[0]
	p.free = p.free[1:]
	return id, p.bufs[id], true
}

func (p *FakeBufferPool) NotifyFrameReady(id int, frameNumber uint32) {
	p.Ready = append(p.Ready, ReadyNotification{ID: id, FrameNumber: frameNumber})
	p.free = append(p.free, id) // returned to the pool once "downstream" is done
}
