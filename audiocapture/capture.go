// Package audiocapture records microphone audio into a compressed container
// and hands it out in timed slices.
package audiocapture

import (
	"context"
	"errors"
)

// ErrNoDevice is returned when no input device is available.
var ErrNoDevice = errors.New("no input device")

// MediaTypeOgg is the container produced by Pipeline.
const MediaTypeOgg = "audio/ogg"

// Constraints are the processing hints requested from the microphone.
type Constraints struct {
	SampleRate       int  // Hz; Opus accepts 8000, 12000, 16000, 24000 or 48000
	Channels         int  // 1 for dictation
	EchoCancellation bool // Requested from the device; see Pipeline
	NoiseSuppression bool // Applied in the pipeline when the device can't
}

// DefaultConstraints returns the constraints used for dictation.
func DefaultConstraints() Constraints {
	return Constraints{
		SampleRate:       48000,
		Channels:         1,
		EchoCancellation: true,
		NoiseSuppression: true,
	}
}

// Microphone opens input streams. Open may block while the OS asks the
// user for permission.
type Microphone interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an open input device. Read fills pcm completely or fails.
// Stream is used from a single goroutine.
type Stream interface {
	Read(pcm []int16) error
	Close() error
}

// FrameEncoder compresses one frame of interleaved PCM into out and returns
// the number of bytes written.
type FrameEncoder interface {
	Encode(pcm []int16, out []byte) (int, error)
}

// EncoderFactory creates a FrameEncoder for a sample rate and channel count.
type EncoderFactory func(sampleRate, channels int) (FrameEncoder, error)

// Sink receives the output of one recording. Chunk is called with slices
// in arrival order; Flushed is called exactly once, after the last Chunk.
type Sink interface {
	Chunk(data []byte)
	Flushed(err error)
}

// Recording is a capture in progress.
type Recording interface {
	// Stop ends the capture. It returns immediately; the device is released
	// and the remaining data is delivered to the Sink asynchronously.
	// Calling Stop more than once is safe.
	Stop()

	// MediaType is the container type of the delivered bytes.
	MediaType() string
}
