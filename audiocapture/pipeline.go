package audiocapture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

const (
	frameDuration  = 20 * time.Millisecond
	sliceInterval  = time.Second
	maxPacketBytes = 4000

	// Opus RTP timestamps always run at 48 kHz regardless of the input rate.
	rtpClockRate   = 48000
	rtpPayloadType = 111
)

// Pipeline records from a Microphone, encodes 20 ms Opus frames and muxes
// them into an Ogg stream delivered to a Sink once per second.
//
// Echo cancellation is passed to the device as a hint only; the pipeline
// has no far-end reference signal to cancel against.
type Pipeline struct {
	mic         Microphone
	newEncoder  EncoderFactory
	constraints Constraints
	slice       time.Duration
}

// NewPipeline creates a capture pipeline.
func NewPipeline(mic Microphone, newEncoder EncoderFactory, c Constraints) *Pipeline {
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	return &Pipeline{
		mic:         mic,
		newEncoder:  newEncoder,
		constraints: c,
		slice:       sliceInterval,
	}
}

// Start acquires the microphone and begins recording into sink.
// It blocks until the device is open.
func (p *Pipeline) Start(ctx context.Context, sink Sink) (Recording, error) {
	if sink == nil {
		return nil, errors.New("nil sink")
	}

	stream, err := p.mic.Open(ctx, p.constraints)
	if err != nil {
		return nil, fmt.Errorf("open microphone: %w", err)
	}

	enc, err := p.newEncoder(p.constraints.SampleRate, p.constraints.Channels)
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("create encoder: %w", err)
	}

	buf := &sliceBuffer{}
	ogg, err := oggwriter.NewWith(buf, uint32(p.constraints.SampleRate), uint16(p.constraints.Channels))
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("create ogg writer: %w", err)
	}

	frameSamples := p.constraints.SampleRate * int(frameDuration/time.Millisecond) / 1000
	r := &recording{
		stream: stream,
		enc:    enc,
		ogg:    ogg,
		buf:    buf,
		sink:   sink,
		frame:  make([]int16, frameSamples*p.constraints.Channels),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if p.constraints.NoiseSuppression {
		r.filter = newSuppressor()
	}

	go r.run(ctx, p.slice)

	return r, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Recording
// ─────────────────────────────────────────────────────────────────────────────

type recording struct {
	stream Stream
	enc    FrameEncoder
	ogg    *oggwriter.OggWriter
	buf    *sliceBuffer
	sink   Sink
	filter *suppressor

	frame     []int16
	packet    [maxPacketBytes]byte
	sequence  uint16
	timestamp uint32

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func (r *recording) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *recording) MediaType() string {
	return MediaTypeOgg
}

func (r *recording) run(ctx context.Context, slice time.Duration) {
	defer close(r.done)

	ticker := time.NewTicker(slice)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			r.finish(nil)
			return
		case <-ctx.Done():
			r.finish(nil)
			return
		case <-ticker.C:
			r.emit()
		default:
		}

		if err := r.stream.Read(r.frame); err != nil {
			r.finish(fmt.Errorf("read microphone: %w", err))
			return
		}
		if err := r.writeFrame(); err != nil {
			r.finish(err)
			return
		}
	}
}

func (r *recording) writeFrame() error {
	if r.filter != nil {
		r.filter.process(r.frame)
	}

	n, err := r.enc.Encode(r.frame, r.packet[:])
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if n == 0 {
		return nil
	}

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    rtpPayloadType,
			SequenceNumber: r.sequence,
			Timestamp:      r.timestamp,
		},
		Payload: append([]byte(nil), r.packet[:n]...),
	}
	r.sequence++
	r.timestamp += uint32(rtpClockRate * frameDuration / time.Second)

	if err := r.ogg.WriteRTP(pkt); err != nil {
		return fmt.Errorf("write ogg page: %w", err)
	}
	return nil
}

// finish releases the device, flushes the container and reports the end of
// the recording.
func (r *recording) finish(err error) {
	if cerr := r.stream.Close(); cerr != nil {
		slog.Warn("close microphone", "error", cerr)
	}
	if cerr := r.ogg.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close ogg writer: %w", cerr))
	}
	r.emit()
	r.sink.Flushed(err)
}

func (r *recording) emit() {
	if data := r.buf.drain(); len(data) > 0 {
		r.sink.Chunk(data)
	}
}

// sliceBuffer collects container bytes between slices.
type sliceBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *sliceBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *sliceBuffer) drain() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf.Len() == 0 {
		return nil
	}
	out := bytes.Clone(b.buf.Bytes())
	b.buf.Reset()
	return out
}
