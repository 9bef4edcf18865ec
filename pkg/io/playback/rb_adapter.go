package playback

import (
	"encoding/binary"
	"sync"

	"github.com/smallnest/ringbuffer"
)

type rb_impl struct {
	mu   sync.Mutex
	size int
	rb   *ringbuffer.RingBuffer
}

// Capacity implements FrameRing.
func (r *rb_impl) Capacity() int {
	return r.size
}

// Len implements FrameRing. Reports buffered bytes, including record headers.
func (r *rb_impl) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rb.Length()
}

// Enqueue implements FrameRing.
func (r *rb_impl) Enqueue(frame Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enqueue(frame)
}

func (r *rb_impl) enqueue(frame Frame) error {
	if recordSize(frame) > r.rb.Capacity() {
		return ErrFrameTooLarge
	}
	if r.rb.Free() < recordSize(frame) && !r.evictAudio(recordSize(frame)) {
		return ErrRingFull
	}
	return r.write(frame)
}

// records are size-prefixed so a frame can be read back whole
func recordSize(frame Frame) int {
	return 4 + frameHeaderSize + len(frame.Payload)
}

func (r *rb_impl) write(frame Frame) error {
	data, err := frame.MarshalBinary()
	if err != nil {
		return err
	}
	sizeBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBytes, uint32(len(data)))
	if _, err := r.rb.Write(sizeBytes); err != nil {
		return err
	}
	_, err = r.rb.Write(data)
	return err
}

// evictAudio drops the oldest audio frames until need bytes are free. Control
// frames are never evicted; when dropping every audio frame would still not
// make room the ring is left as it was and false is returned.
func (r *rb_impl) evictAudio(need int) bool {
	var frames []Frame
	for {
		frame, ok := r.dequeue()
		if !ok {
			break
		}
		frames = append(frames, frame)
	}

	free := r.rb.Capacity()
	for _, frame := range frames {
		free -= recordSize(frame)
	}
	kept := make([]Frame, 0, len(frames))
	for _, frame := range frames {
		if free < need && frame.Kind == FrameAudio {
			free += recordSize(frame)
			continue
		}
		kept = append(kept, frame)
	}
	evicted := free >= need
	if !evicted {
		kept = frames
	}

	r.rb.Reset()
	for _, frame := range kept {
		// everything here fit before
		_ = r.write(frame)
	}
	return evicted
}

// Dequeue implements FrameRing.
func (r *rb_impl) Dequeue() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dequeue()
}

func (r *rb_impl) dequeue() (Frame, bool) {
	if r.rb.IsEmpty() {
		return Frame{}, false
	}

	sizeBytes := make([]byte, 4)
	n, err := r.rb.Read(sizeBytes)
	if err != nil || n != 4 {
		return Frame{}, false
	}
	size := int(binary.LittleEndian.Uint32(sizeBytes))

	data := make([]byte, size)
	n, err = r.rb.Read(data)
	if err != nil || n != size {
		return Frame{}, false
	}

	var frame Frame
	if err := frame.UnmarshalBinary(data); err != nil {
		return Frame{}, false
	}
	return frame, true
}

// DropAudio implements FrameRing.
func (r *rb_impl) DropAudio() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []Frame
	dropped := 0
	for {
		frame, ok := r.dequeue()
		if !ok {
			break
		}
		if frame.Kind == FrameAudio {
			dropped++
			continue
		}
		kept = append(kept, frame)
	}
	r.rb.Reset()
	for _, frame := range kept {
		// control frames previously fit, so this cannot fail
		_ = r.write(frame)
	}
	return dropped
}

// Reset implements FrameRing.
func (r *rb_impl) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rb.Reset()
}

func New(size int) FrameRing {
	return &rb_impl{
		size: size,
		rb:   ringbuffer.New(size).SetBlocking(false), // non-blocking; overflow evicts audio instead of waiting
	}
}
