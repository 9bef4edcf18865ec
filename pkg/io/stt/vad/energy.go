package vad

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/xpanvictor/quil-bridge/pkg/Logger"
)

const maxAmplitude = 32768.0

// EnergyDetector is an RMS-threshold endpoint detector. It is driven from a
// single goroutine and is not safe for concurrent use.
type EnergyDetector struct {
	config VADConfig
	logger *Logger.Logger

	mode    Mode
	chunks  [][]byte // utterance so far; empty unless mode == ModeSpeech
	pending [][]byte // below-threshold chunks since the last loud one

	silenceSamples int // below-threshold samples since the last loud chunk
	speechStart    time.Time

	// OnSpeechStart fires on the silence -> speech transition.
	OnSpeechStart func()
	// OnSpeechEnd receives the merged utterance, exactly once per utterance.
	OnSpeechEnd func(utterance []byte)
}

var _ EndpointDetector = (*EnergyDetector)(nil)

// NewEnergyDetector builds a detector; zero config fields fall back to defaults.
func NewEnergyDetector(config VADConfig, logger *Logger.Logger) *EnergyDetector {
	defaults := DefaultVADConfig()
	if config.SampleRate <= 0 {
		config.SampleRate = defaults.SampleRate
	}
	if config.SilenceDurationMs <= 0 {
		config.SilenceDurationMs = defaults.SilenceDurationMs
	}
	if logger == nil {
		logger = Logger.NewNop()
	}
	return &EnergyDetector{config: config, logger: logger, mode: ModeSilence}
}

// RMS returns the root-mean-square of normalised PCM16 LE samples. A trailing
// odd byte is ignored; a chunk with no whole sample has zero energy.
func RMS(chunk []byte) float64 {
	samples := len(chunk) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < samples; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(chunk[i*2:]))) / maxAmplitude
		sum += v * v
	}
	return math.Sqrt(sum / float64(samples))
}

func (d *EnergyDetector) Mode() Mode {
	return d.mode
}

func (d *EnergyDetector) Process(chunk []byte) {
	rms := RMS(chunk)
	loud := rms > d.config.Threshold

	switch d.mode {
	case ModeSilence:
		if !loud {
			return
		}
		d.mode = ModeSpeech
		d.speechStart = time.Now()
		d.chunks = append(d.chunks, clone(chunk))
		d.logger.Debugf("vad: speech detected (rms=%.4f)", rms)
		if d.OnSpeechStart != nil {
			d.OnSpeechStart()
		}

	case ModeSpeech:
		if loud {
			// a pause shorter than the window is part of the utterance
			d.chunks = append(d.chunks, d.pending...)
			d.chunks = append(d.chunks, clone(chunk))
			d.pending = nil
			d.silenceSamples = 0
			return
		}

		d.pending = append(d.pending, clone(chunk))
		d.silenceSamples += len(chunk) / 2
		if d.silenceSamples*1000 >= d.config.SilenceDurationMs*d.config.SampleRate {
			d.commit()
		}
	}
}

func (d *EnergyDetector) commit() {
	size := 0
	for _, c := range d.chunks {
		size += len(c)
	}
	merged := make([]byte, 0, size)
	for _, c := range d.chunks {
		merged = append(merged, c...)
	}

	d.logger.Debugf("vad: speech committed (%d chunks, %d bytes, %s)",
		len(d.chunks), len(merged), time.Since(d.speechStart).Round(time.Millisecond))

	d.Reset()

	if d.OnSpeechEnd != nil {
		d.OnSpeechEnd(merged)
	}
}

func (d *EnergyDetector) Reset() {
	d.mode = ModeSilence
	d.chunks = nil
	d.pending = nil
	d.silenceSamples = 0
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
