package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.aimuz.me/echo/audiocapture"
	"go.aimuz.me/echo/internal/types"
)

const (
	defaultTick    = time.Second
	mailboxSize    = 64
	deliverTimeout = 10 * time.Second
)

// Recorder archives successful transcriptions.
type Recorder interface {
	Record(ctx context.Context, e types.HistoryEntry) error
}

// Options configures a Machine. Capturer, Transcriber and Copier are required.
type Options struct {
	Capturer    Capturer
	Transcriber Transcriber
	Copier      Copier
	Recorder    Recorder      // Optional
	Tick        time.Duration // Elapsed counter period, default 1s
}

// Machine owns the single session. Every transition happens on the goroutine
// running Run; other goroutines talk to it through a mailbox.
type Machine struct {
	capturer    Capturer
	transcriber Transcriber
	copier      Copier
	recorder    Recorder
	tick        time.Duration

	mailbox chan func()
	done    chan struct{}
	ctx     context.Context

	onChange  []func(Snapshot)
	onSettled []func(Outcome)

	// Owned by the loop.
	state     State
	startedAt time.Time
	stoppedAt time.Time
	elapsed   int
	chunks    [][]byte
	gen       uint64
	rec       audiocapture.Recording
	mediaType string
	stopTick  chan struct{}
	lastErr   error
}

// New creates a Machine in the Idle state.
func New(opts Options) *Machine {
	tick := opts.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	return &Machine{
		capturer:    opts.Capturer,
		transcriber: opts.Transcriber,
		copier:      opts.Copier,
		recorder:    opts.Recorder,
		tick:        tick,
		mailbox:     make(chan func(), mailboxSize),
		done:        make(chan struct{}),
		mediaType:   audiocapture.MediaTypeOgg,
	}
}

// OnChange registers fn to be called after every transition and tick.
// It must be called before Run. fn runs on the machine goroutine and must
// not call back into the Machine synchronously.
func (m *Machine) OnChange(fn func(Snapshot)) {
	m.onChange = append(m.onChange, fn)
}

// OnSettled registers fn to be called when a cycle ends, successfully or
// not. The same restrictions as OnChange apply.
func (m *Machine) OnSettled(fn func(Outcome)) {
	m.onSettled = append(m.onSettled, fn)
}

// Run processes events until ctx is done. An active recording is stopped on
// exit. Run must be called exactly once.
func (m *Machine) Run(ctx context.Context) {
	m.ctx = ctx
	defer close(m.done)

	for {
		select {
		case fn := <-m.mailbox:
			fn()
		case <-ctx.Done():
			m.shutdown()
			return
		}
	}
}

// Toggle starts a recording when idle and stops it when recording.
func (m *Machine) Toggle() { m.Send(IntentToggle) }

// Start begins a recording if the session is idle.
func (m *Machine) Start() { m.Send(IntentStart) }

// Stop ends the recording if one is in progress.
func (m *Machine) Stop() { m.Send(IntentStop) }

// Send delivers an intent. Intents that don't apply to the current state
// are ignored.
func (m *Machine) Send(i Intent) {
	m.post(func() { m.handle(i) })
}

// Snapshot returns the current session state. It blocks until Run is
// serving the mailbox, and returns a zero Snapshot after Run has exited.
func (m *Machine) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	if !m.post(func() { reply <- m.snapshot() }) {
		return Snapshot{}
	}
	select {
	case s := <-reply:
		return s
	case <-m.done:
		return Snapshot{}
	}
}

func (m *Machine) post(fn func()) bool {
	select {
	case m.mailbox <- fn:
		return true
	case <-m.done:
		return false
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Transitions
// ─────────────────────────────────────────────────────────────────────────────

func (m *Machine) handle(i Intent) {
	switch {
	case m.state == StateIdle && (i == IntentToggle || i == IntentStart):
		m.startRecording()
	case m.state == StateRecording && (i == IntentToggle || i == IntentStop):
		m.stopRecording()
	default:
		slog.Debug("ignore intent", "intent", i, "state", m.state)
	}
}

func (m *Machine) startRecording() {
	m.gen++
	gen := m.gen

	m.state = StateRecording
	m.startedAt = time.Now()
	m.stoppedAt = time.Time{}
	m.elapsed = 0
	m.chunks = nil
	m.rec = nil
	m.lastErr = nil
	m.startTicker(gen)
	m.changed()

	slog.Info("recording started", "generation", gen)

	// Acquisition can block on a permission prompt.
	ctx := m.ctx
	s := &sink{m: m, gen: gen}
	go func() {
		rec, err := m.capturer.Start(ctx, s)
		if !m.post(func() { m.acquired(gen, rec, err) }) && rec != nil {
			rec.Stop()
		}
	}()
}

func (m *Machine) acquired(gen uint64, rec audiocapture.Recording, err error) {
	if gen != m.gen || m.state == StateIdle {
		if rec != nil {
			rec.Stop()
		}
		return
	}
	if err != nil {
		m.fail(fmt.Errorf("%w: %w", ErrMicrophone, err))
		return
	}

	m.rec = rec
	m.mediaType = rec.MediaType()

	// Stop arrived while the device was being acquired.
	if m.state == StateProcessing {
		rec.Stop()
	}
}

func (m *Machine) stopRecording() {
	m.state = StateProcessing
	m.stoppedAt = time.Now()
	m.stopTicker()
	m.changed()

	slog.Info("recording stopped", "generation", m.gen, "chunks", len(m.chunks))

	if m.rec != nil {
		m.rec.Stop()
	}
}

func (m *Machine) onChunk(gen uint64, data []byte) {
	if gen != m.gen || m.state == StateIdle || len(data) == 0 {
		return
	}
	m.chunks = append(m.chunks, data)
}

// onFlushed runs once the pipeline has delivered its final slice.
func (m *Machine) onFlushed(gen uint64, err error) {
	if gen != m.gen || m.state == StateIdle {
		return
	}
	if m.state == StateRecording {
		slog.Warn("capture ended while recording", "error", err)
		m.state = StateProcessing
		m.stoppedAt = time.Now()
		m.stopTicker()
		m.changed()
	}
	m.rec = nil

	if err != nil {
		m.fail(fmt.Errorf("finish recording: %w", err))
		return
	}

	payload := audiocapture.Finalize(m.chunks, m.mediaType)
	m.chunks = nil
	if payload.Empty() {
		m.fail(ErrEmptyRecording)
		return
	}

	duration := m.stoppedAt.Sub(m.startedAt)
	slog.Info("transcribing", "generation", gen, "bytes", len(payload.Data), "duration", duration)

	ctx := m.ctx
	go func() {
		res, err := m.transcriber.Transcribe(ctx, payload)
		m.post(func() { m.settle(gen, duration, res, err) })
	}()
}

func (m *Machine) settle(gen uint64, d time.Duration, res types.TranscriptionResult, err error) {
	if gen != m.gen || m.state != StateProcessing {
		return
	}

	out := Outcome{Generation: gen, Result: res, Duration: d, Err: err}
	m.reset()
	if err != nil {
		m.lastErr = err
		slog.Error("transcription failed", "generation", gen, "error", err)
	} else {
		slog.Info("transcription complete", "generation", gen, "chars", len(res.Text))
		go m.deliver(out)
	}
	m.changed()
	m.settled(out)
}

// fail ends the current cycle without a result.
func (m *Machine) fail(err error) {
	out := Outcome{Generation: m.gen, Err: err}
	if m.rec != nil {
		m.rec.Stop()
	}
	m.reset()
	m.lastErr = err
	slog.Error("session failed", "generation", out.Generation, "error", err)
	m.changed()
	m.settled(out)
}

// reset returns to Idle and drops everything belonging to the cycle.
func (m *Machine) reset() {
	m.stopTicker()
	m.state = StateIdle
	m.startedAt = time.Time{}
	m.stoppedAt = time.Time{}
	m.elapsed = 0
	m.chunks = nil
	m.rec = nil
}

func (m *Machine) shutdown() {
	m.stopTicker()
	if m.rec != nil {
		m.rec.Stop()
		m.rec = nil
	}
	m.chunks = nil
}

// deliver runs the side effects of a successful cycle off the loop.
func (m *Machine) deliver(out Outcome) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(m.ctx), deliverTimeout)
	defer cancel()

	if err := m.copier.Copy(ctx, out.Result); err != nil {
		slog.Error("copy transcription", "error", err)
	}

	if m.recorder == nil {
		return
	}
	entry := types.HistoryEntry{
		Text:      out.Result.Text,
		Timestamp: out.Result.Timestamp,
		Duration:  int64(out.Duration.Round(time.Second) / time.Second),
		Language:  out.Result.Language,
		CreatedAt: time.Now(),
	}
	if err := m.recorder.Record(ctx, entry); err != nil {
		slog.Warn("record history", "error", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Elapsed counter
// ─────────────────────────────────────────────────────────────────────────────

func (m *Machine) startTicker(gen uint64) {
	m.stopTicker()
	stop := make(chan struct{})
	m.stopTick = stop

	go func() {
		t := time.NewTicker(m.tick)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if !m.post(func() { m.onTick(gen) }) {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

func (m *Machine) stopTicker() {
	if m.stopTick != nil {
		close(m.stopTick)
		m.stopTick = nil
	}
}

func (m *Machine) onTick(gen uint64) {
	if gen != m.gen || m.state != StateRecording {
		return
	}
	m.elapsed++
	m.changed()
}

// ─────────────────────────────────────────────────────────────────────────────
// Observers
// ─────────────────────────────────────────────────────────────────────────────

func (m *Machine) snapshot() Snapshot {
	return Snapshot{
		State:      m.state,
		StartedAt:  m.startedAt,
		Elapsed:    m.elapsed,
		Chunks:     len(m.chunks),
		Generation: m.gen,
		LastError:  m.lastErr,
	}
}

func (m *Machine) changed() {
	snap := m.snapshot()
	for _, fn := range m.onChange {
		fn(snap)
	}
}

func (m *Machine) settled(out Outcome) {
	for _, fn := range m.onSettled {
		fn(out)
	}
}

// sink forwards pipeline output into the mailbox, tagged with the
// generation it belongs to.
type sink struct {
	m   *Machine
	gen uint64
}

func (s *sink) Chunk(data []byte) {
	s.m.post(func() { s.m.onChunk(s.gen, data) })
}

func (s *sink) Flushed(err error) {
	s.m.post(func() { s.m.onFlushed(s.gen, err) })
}
