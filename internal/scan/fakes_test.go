package scan

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
)

var errStreamClosed = errors.New("stream closed")

// qrFrame is a frame the fake decoder can read.
type qrFrame struct {
	*image.Gray
	text string
}

func blankFrame() image.Image {
	return image.NewGray(image.Rect(0, 0, 1, 1))
}

func codeFrame(text string) image.Image {
	return qrFrame{Gray: image.NewGray(image.Rect(0, 0, 1, 1)), text: text}
}

var fakeDecoder = DecoderFunc(func(frame image.Image) (string, bool) {
	if f, ok := frame.(qrFrame); ok {
		return f.text, true
	}
	return "", false
})

type frameResult struct {
	img image.Image
	err error
}

type fakeStream struct {
	frames    chan frameResult
	closed    chan struct{}
	closeOnce sync.Once
	closes    atomic.Int32
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		frames: make(chan frameResult, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeStream) push(img image.Image) {
	f.frames <- frameResult{img: img}
}

func (f *fakeStream) pushErr(err error) {
	f.frames <- frameResult{err: err}
}

func (f *fakeStream) ReadFrame(ctx context.Context) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.closed:
		return nil, errStreamClosed
	case fr := <-f.frames:
		return fr.img, fr.err
	}
}

func (f *fakeStream) Close() error {
	f.closes.Add(1)
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

type torchStream struct {
	*fakeStream
	mu    sync.Mutex
	on    bool
	err   error
	calls int
}

func (t *torchStream) SetTorch(_ context.Context, on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.err != nil {
		return t.err
	}
	t.on = on
	return nil
}

// valueStream is a non-comparable Stream value, the shape some adapters return.
type valueStream struct {
	*fakeStream
	tags []string
}

// fakeMedia counts acquisitions so tests can assert acquire/release parity.
type fakeMedia struct {
	mu           sync.Mutex
	devices      []Device
	enumerateErr error
	openErr      error
	openGate     chan struct{}
	withTorch    bool
	byValue      bool
	torchErr     error
	constraints  []Constraints
	streams      []*fakeStream
	torches      []*torchStream
	opened       chan *fakeStream
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{opened: make(chan *fakeStream, 8)}
}

func (m *fakeMedia) EnumerateDevices(context.Context) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enumerateErr != nil {
		return nil, m.enumerateErr
	}
	return append([]Device(nil), m.devices...), nil
}

func (m *fakeMedia) Open(_ context.Context, c Constraints) (Stream, error) {
	m.mu.Lock()
	m.constraints = append(m.constraints, c)
	gate, err := m.openGate, m.openErr
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	fs := newFakeStream()
	m.mu.Lock()
	m.streams = append(m.streams, fs)
	var stream Stream = fs
	if m.withTorch {
		ts := &torchStream{fakeStream: fs, err: m.torchErr}
		m.torches = append(m.torches, ts)
		stream = ts
	}
	if m.byValue {
		stream = valueStream{fakeStream: fs, tags: []string{c.DeviceID}}
	}
	m.mu.Unlock()
	m.opened <- fs
	return stream, nil
}

func (m *fakeMedia) acquired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams)
}

func (m *fakeMedia) released() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, s := range m.streams {
		total += int(s.closes.Load())
	}
	return total
}

func (m *fakeMedia) opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.constraints)
}

func (m *fakeMedia) lastConstraints() Constraints {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.constraints[len(m.constraints)-1]
}
