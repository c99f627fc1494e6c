// Package device binds the capture pipeline to the host audio stack:
// PortAudio for the microphone and libopus for frame encoding.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	opuscodec "github.com/jj11hh/opus"

	"go.aimuz.me/echo/audiocapture"
)

// frameMillis matches the pipeline's 20 ms Opus frames.
const frameMillis = 20

var (
	initMu   sync.Mutex
	initRefs int
)

// acquire initializes PortAudio on first use. Every acquire is paired with
// a release.
func acquire() error {
	initMu.Lock()
	defer initMu.Unlock()
	if initRefs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("portaudio init: %w", err)
		}
	}
	initRefs++
	return nil
}

func release() {
	initMu.Lock()
	defer initMu.Unlock()
	if initRefs == 0 {
		return
	}
	initRefs--
	if initRefs == 0 {
		portaudio.Terminate()
	}
}

// Microphone opens the system default input device.
type Microphone struct{}

// NewMicrophone returns the default input device.
func NewMicrophone() *Microphone {
	return &Microphone{}
}

// Open starts a blocking input stream. PortAudio has no echo cancellation
// or noise suppression of its own; those constraints are handled by the
// pipeline or ignored.
func (m *Microphone) Open(ctx context.Context, c audiocapture.Constraints) (audiocapture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := acquire(); err != nil {
		return nil, err
	}

	if _, err := portaudio.DefaultInputDevice(); err != nil {
		release()
		return nil, fmt.Errorf("%w: %v", audiocapture.ErrNoDevice, err)
	}

	frames := c.SampleRate * frameMillis / 1000
	buf := make([]int16, frames*c.Channels)
	stream, err := portaudio.OpenDefaultStream(c.Channels, 0, float64(c.SampleRate), frames, buf)
	if err != nil {
		release()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		release()
		return nil, fmt.Errorf("start stream: %w", err)
	}

	return &inputStream{stream: stream, buf: buf}, nil
}

type inputStream struct {
	stream *portaudio.Stream
	buf    []int16
	closed bool
}

// Read fills pcm one device buffer at a time.
func (s *inputStream) Read(pcm []int16) error {
	if s.closed {
		return errors.New("stream closed")
	}
	for n := 0; n < len(pcm); {
		if err := s.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			return err
		}
		n += copy(pcm[n:], s.buf)
	}
	return nil
}

func (s *inputStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer release()

	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	return errors.Join(stopErr, closeErr)
}

// NewEncoder creates a libopus encoder tuned for speech.
func NewEncoder(sampleRate, channels int) (audiocapture.FrameEncoder, error) {
	enc, err := opuscodec.NewEncoder(sampleRate, channels, opuscodec.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	return enc, nil
}
