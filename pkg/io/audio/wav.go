package audio

import (
	"bytes"
	"encoding/binary"
)

const wavHeaderSize = 44

// PCMToWAV wraps mono PCM16 little-endian samples in a RIFF/WAVE container.
func PCMToWAV(pcm []byte, sampleRate int) []byte {
	buffer := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))

	dataSize := uint32(len(pcm))

	buffer.WriteString("RIFF")
	_ = binary.Write(buffer, binary.LittleEndian, dataSize+36)
	buffer.WriteString("WAVE")
	buffer.WriteString("fmt ")
	_ = binary.Write(buffer, binary.LittleEndian, uint32(16))           // fmt chunk size
	_ = binary.Write(buffer, binary.LittleEndian, uint16(1))            // PCM
	_ = binary.Write(buffer, binary.LittleEndian, uint16(1))            // mono
	_ = binary.Write(buffer, binary.LittleEndian, uint32(sampleRate))   // sample rate
	_ = binary.Write(buffer, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	_ = binary.Write(buffer, binary.LittleEndian, uint16(2))            // block align
	_ = binary.Write(buffer, binary.LittleEndian, uint16(16))           // bits per sample
	buffer.WriteString("data")
	_ = binary.Write(buffer, binary.LittleEndian, dataSize)

	buffer.Write(pcm)
	return buffer.Bytes()
}
