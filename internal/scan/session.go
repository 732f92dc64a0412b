// Package scan owns the camera lifecycle of a QR scanning surface.
//
// A Session acquires one camera stream, decodes frames until the first QR code
// is read, hands the resolved serial to its callback and releases the camera.
// The camera is an exclusive resource: every exit path closes the stream
// exactly once.
//
//	Idle -> Initializing -> Scanning -> Stopped
//	             |              |
//	             +---> Error <--+
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultFrameInterval is the pause between decode attempts.
const DefaultFrameInterval = 100 * time.Millisecond

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateScanning
	StateStopped
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateScanning:
		return "scanning"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Extractor maps decoded QR text to a serial. *serial.Extractor satisfies it.
type Extractor interface {
	Extract(ctx context.Context, payload string) string
}

// TorchStatus reports the outcome of a torch toggle. Supported is false when
// there is no active stream or its track has no torch.
type TorchStatus struct {
	Supported bool `json:"supported"`
	On        bool `json:"on"`
}

// Session is a single scanning surface. One owner drives it; the mutex only
// guards the hand-off between the caller and the decode goroutine.
type Session struct {
	media     MediaDevices
	decoder   Decoder
	extractor Extractor
	onResult  func(serial string)
	onError   func(err error)
	logger    *slog.Logger
	interval  time.Duration

	mu        sync.Mutex
	state     State
	gen       uint64
	stream    Stream
	cancel    context.CancelFunc
	done      chan struct{}
	acquiring chan struct{}
	resolved  bool
	torchOn   bool
	err       error
}

// Option configures a Session.
type Option func(*Session)

// WithFrameInterval sets the pause between decode attempts.
func WithFrameInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithErrorHandler is called when a running stream fails (device lost, stream
// ended). The camera has already been released when it runs.
func WithErrorHandler(fn func(err error)) Option {
	return func(s *Session) {
		s.onError = fn
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession builds an idle session. onResult receives at most one serial per
// Start, after the camera has been released.
func NewSession(media MediaDevices, decoder Decoder, extractor Extractor, onResult func(serial string), opts ...Option) *Session {
	s := &Session{
		media:     media,
		decoder:   decoder,
		extractor: extractor,
		onResult:  onResult,
		logger:    slog.Default(),
		interval:  DefaultFrameInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure that moved the session to StateError, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Start acquires a camera and begins decoding. It returns once the session is
// scanning or has failed. An empty preferredDeviceID asks for a rear camera.
// Start on an initializing or scanning session returns ErrSessionActive.
//
// When an earlier Start was stopped while its camera was still being acquired,
// Start waits for that acquisition to return and release the device before
// opening a new one.
func (s *Session) Start(ctx context.Context, preferredDeviceID string) error {
	s.mu.Lock()
	if s.state == StateInitializing || s.state == StateScanning {
		s.mu.Unlock()
		return ErrSessionActive
	}
	s.gen++
	gen := s.gen
	pending := s.acquiring
	acquired := make(chan struct{})
	defer close(acquired)
	s.acquiring = acquired
	initCtx, cancelInit := context.WithCancel(ctx)
	s.state = StateInitializing
	s.cancel = cancelInit
	s.resolved = false
	s.torchOn = false
	s.err = nil
	s.mu.Unlock()

	constraints := Constraints{DeviceID: preferredDeviceID}
	if preferredDeviceID == "" {
		constraints.Facing = FacingEnvironment
	}
	var (
		stream Stream
		err    error
	)
	if err = waitAcquisition(initCtx, pending); err == nil {
		stream, err = s.media.Open(initCtx, constraints)
	}
	cancelInit()

	s.mu.Lock()
	if s.acquiring == acquired {
		s.acquiring = nil
	}
	if s.gen != gen {
		// Stop ran while the camera was being acquired.
		s.mu.Unlock()
		if err == nil {
			s.closeStream(stream)
		}
		return ErrSessionStopped
	}
	if err != nil {
		s.state = StateError
		s.cancel = nil
		s.err = err
		s.mu.Unlock()
		s.logger.WarnContext(ctx, "camera acquisition failed",
			"device_id", preferredDeviceID,
			"error", err,
		)
		return fmt.Errorf("start camera: %w", err)
	}

	loopCtx, cancelLoop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.state = StateScanning
	s.stream = stream
	s.cancel = cancelLoop
	s.done = done
	s.mu.Unlock()

	go s.run(loopCtx, gen, stream, done)
	return nil
}

// waitAcquisition blocks until a previous, abandoned acquisition has returned.
func waitAcquisition(ctx context.Context, pending <-chan struct{}) error {
	if pending == nil {
		return nil
	}
	select {
	case <-pending:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop releases the camera and ends the decode loop. It is idempotent and safe
// in every state, including from inside the result callback. When it returns,
// the stream has been closed and the decode goroutine has exited.
func (s *Session) Stop() {
	s.mu.Lock()
	s.gen++
	stream, cancel, done := s.stream, s.cancel, s.done
	s.stream, s.cancel, s.done = nil, nil, nil
	s.torchOn = false
	if s.state == StateInitializing || s.state == StateScanning {
		s.state = StateStopped
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		s.closeStream(stream)
	}
	if done != nil {
		<-done
	}
}

// ListDevices enumerates cameras, rear-facing first. An empty list is valid.
func (s *Session) ListDevices(ctx context.Context) ([]Device, error) {
	devices, err := s.media.EnumerateDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	return SortDevices(devices), nil
}

// ToggleTorch flips the torch of the active stream. It never fails: a missing
// stream, a track without torch, or a platform error all report unsupported.
func (s *Session) ToggleTorch(ctx context.Context) TorchStatus {
	s.mu.Lock()
	stream, gen := s.stream, s.gen
	want := !s.torchOn
	s.mu.Unlock()

	if stream == nil {
		return TorchStatus{}
	}
	tc, ok := stream.(TorchController)
	if !ok {
		return TorchStatus{}
	}
	if err := tc.SetTorch(ctx, want); err != nil {
		s.logger.InfoContext(ctx, "torch not available", "error", err)
		return TorchStatus{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.stream == nil {
		return TorchStatus{}
	}
	s.torchOn = want
	return TorchStatus{Supported: true, On: want}
}

func (s *Session) run(ctx context.Context, gen uint64, stream Stream, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		frame, err := stream.ReadFrame(ctx)
		if ctx.Err() != nil {
			return
		}
		switch {
		case errors.Is(err, ErrDeviceLost), errors.Is(err, ErrStreamEnded):
			s.fail(gen, stream, err)
			return
		case err != nil:
			// A dropped frame; try the next one.
		default:
			if text, ok := s.decoder.Decode(frame); ok {
				serial := s.extractor.Extract(ctx, text)
				if s.release(gen, stream) && s.onResult != nil {
					s.onResult(serial)
				}
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// release ends a session that produced a result. It reports false when the
// session was already stopped or resolved, in which case the result is dropped.
func (s *Session) release(gen uint64, stream Stream) bool {
	s.mu.Lock()
	if s.gen != gen || s.resolved {
		s.mu.Unlock()
		return false
	}
	s.resolved = true
	cancel := s.detachLocked()
	s.state = StateStopped
	s.mu.Unlock()

	cancel()
	s.closeStream(stream)
	return true
}

func (s *Session) fail(gen uint64, stream Stream, err error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	cancel := s.detachLocked()
	s.state = StateError
	s.err = err
	s.mu.Unlock()

	cancel()
	s.closeStream(stream)
	s.logger.Warn("camera stream failed", "error", err)
	if s.onError != nil {
		s.onError(err)
	}
}

// detachLocked clears the active stream without waiting for the decode
// goroutine; callers run on that goroutine.
func (s *Session) detachLocked() context.CancelFunc {
	cancel := s.cancel
	s.stream, s.cancel, s.done = nil, nil, nil
	s.torchOn = false
	if cancel == nil {
		cancel = func() {}
	}
	return cancel
}

func (s *Session) closeStream(stream Stream) {
	if err := stream.Close(); err != nil {
		s.logger.Warn("failed to release camera", "error", err)
	}
}
