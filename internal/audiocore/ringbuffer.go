package audiocore

import (
	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/voicecap/internal/errors"
)

// FrameRing is a fixed-capacity sample ring shared by exactly one producer and
// one consumer. Storage is s16le bytes; every count in the API is in samples.
//
// Write never blocks and never waits for the consumer. When the ring cannot
// hold everything offered it keeps the samples that fit and drops the rest.
// Unread data is never overwritten.
type FrameRing struct {
	buf      *ringbuffer.RingBuffer
	capacity int
	notify   chan struct{}
}

// NewFrameRing creates a ring holding capacity samples. capacity must be a
// positive multiple of FrameSize.
func NewFrameRing(capacity int) (*FrameRing, error) {
	if capacity <= 0 || capacity%FrameSize != 0 {
		return nil, newError(ErrInvalidCapacity, errors.CategoryValidation, "new_frame_ring").
			Context("capacity", capacity).
			Context("frame_size", FrameSize).
			Build()
	}

	return &FrameRing{
		buf:      ringbuffer.New(capacity * BytesPerSample),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}, nil
}

// Write copies whole samples from pcm and returns how many were accepted.
// A trailing odd byte is ignored. After a non-zero write the consumer is
// woken through Notify.
func (r *FrameRing) Write(pcm []byte) int {
	n := min(len(pcm)/BytesPerSample, r.AvailableSpace())
	if n == 0 {
		return 0
	}

	// only this goroutine adds data, so the free space just read can only grow
	written, _ := r.buf.Write(pcm[:n*BytesPerSample])
	accepted := written / BytesPerSample
	if accepted > 0 {
		r.signal()
	}
	return accepted
}

// Read copies exactly count samples into dst and consumes them. It returns
// false, leaving the ring untouched, when fewer than count samples are
// buffered or dst cannot hold them.
func (r *FrameRing) Read(dst []byte, count int) bool {
	want := count * BytesPerSample
	if count <= 0 || len(dst) < want || r.buf.Length() < want {
		return false
	}

	n, err := r.buf.Read(dst[:want])
	return err == nil && n == want
}

// AvailableData returns the number of buffered samples
func (r *FrameRing) AvailableData() int {
	return r.buf.Length() / BytesPerSample
}

// AvailableSpace returns the number of samples that can be written
func (r *FrameRing) AvailableSpace() int {
	return r.buf.Free() / BytesPerSample
}

// Capacity returns the ring size in samples
func (r *FrameRing) Capacity() int {
	return r.capacity
}

// Notify returns the channel signalled after writes. It holds at most one
// pending signal, so a consumer must re-check AvailableData after every wake.
func (r *FrameRing) Notify() <-chan struct{} {
	return r.notify
}

// Clear empties the ring and drops a pending wake signal. It must only be
// called while no producer or consumer is active.
func (r *FrameRing) Clear() {
	r.buf.Reset()
	select {
	case <-r.notify:
	default:
	}
}

func (r *FrameRing) signal() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}
