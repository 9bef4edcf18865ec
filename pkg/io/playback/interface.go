package playback

import (
	"encoding/binary"
	"errors"
)

// FrameKind separates device audio from control messages so an interrupt can
// discard the former without losing the latter.
type FrameKind uint8

const (
	FrameAudio FrameKind = iota + 1
	FrameControl
)

// Frame is one outbound device message.
type Frame struct {
	Kind    FrameKind
	Payload []byte
}

const frameHeaderSize = 1 + 4 // kind + payload length

func (f *Frame) MarshalBinary() ([]byte, error) {
	buf := make([]byte, frameHeaderSize+len(f.Payload))
	buf[0] = byte(f.Kind)
	binary.LittleEndian.PutUint32(buf[1:], uint32(len(f.Payload)))
	copy(buf[frameHeaderSize:], f.Payload)
	return buf, nil
}

func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) < frameHeaderSize {
		return errors.New("frame too short")
	}
	size := binary.LittleEndian.Uint32(data[1:])
	if uint32(len(data)-frameHeaderSize) < size {
		return errors.New("frame truncated")
	}
	f.Kind = FrameKind(data[0])
	f.Payload = make([]byte, size)
	copy(f.Payload, data[frameHeaderSize:frameHeaderSize+int(size)])
	return nil
}

var (
	ErrFrameTooLarge = errors.New("frame too large for buffer")
	ErrRingFull      = errors.New("ring full of control frames")
)

// FrameRing is a bounded FIFO of outbound frames. When full, the oldest audio
// frames are evicted to make room; control frames are never evicted.
type FrameRing interface {
	Enqueue(frame Frame) error
	Dequeue() (Frame, bool)
	// DropAudio discards queued audio frames, keeping control frames in order.
	DropAudio() int
	Len() int
	Capacity() int
	Reset()
}
