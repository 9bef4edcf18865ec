// Package audio holds the byte-level helpers shared by the device and backend
// paths: base64 text wrapping for JSON events, outbound chunking, and WAV
// framing for backends that only accept containerised audio.
package audio

import (
	"encoding/base64"
	"fmt"
)

// DeviceFrameSize is the largest binary frame the device firmware accepts.
const DeviceFrameSize = 1024

// Encode wraps raw bytes as standard base64 text.
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Decode reverses Encode.
func Decode(text string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("decode audio payload: %w", err)
	}
	return data, nil
}

// Chunk splits data into ordered slices of at most maxSize bytes. The slices
// alias data; callers that keep them past the next mutation must copy.
func Chunk(data []byte, maxSize int) [][]byte {
	if maxSize <= 0 {
		maxSize = DeviceFrameSize
	}
	if len(data) == 0 {
		return nil
	}
	chunks := make([][]byte, 0, (len(data)+maxSize-1)/maxSize)
	for start := 0; start < len(data); start += maxSize {
		end := start + maxSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[start:end:end])
	}
	return chunks
}
