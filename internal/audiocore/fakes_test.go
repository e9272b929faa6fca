package audiocore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/voicecap/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, time.UTC)
}

// lockedBuffer collects log output written from pipeline goroutines
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// makeFrame returns count s16le samples forming a ramp starting at seed
func makeFrame(seed int16, count int) []byte {
	pcm := make([]byte, count*BytesPerSample)
	for i := range count {
		binary.LittleEndian.PutUint16(pcm[i*BytesPerSample:], uint16(seed+int16(i%1000)))
	}
	return pcm
}

// memSink collects writes in memory
type memSink struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	writeErr error
	closeErr error
	closed   bool
}

func (s *memSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	return s.buf.Write(p)
}

func (s *memSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.closeErr
}

func (s *memSink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.buf.Bytes())
}

func (s *memSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

func (s *memSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// sinkSet opens memSinks by target and can refuse chosen targets
type sinkSet struct {
	mu    sync.Mutex
	sinks map[string]*memSink
	fail  map[string]error
}

func newSinkSet() *sinkSet {
	return &sinkSet{sinks: map[string]*memSink{}, fail: map[string]error{}}
}

func (s *sinkSet) open(target string) (Sink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[target]; err != nil {
		return nil, err
	}
	sink := &memSink{}
	s.sinks[target] = sink
	return sink, nil
}

func (s *sinkSet) get(target string) *memSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sinks[target]
}

// fakeStream is a capture stream driven by the test
type fakeStream struct {
	callbacks CaptureCallbacks
	startErr  error
	stopErr   error

	// failOnStop is reported through the error callback while stopping
	failOnStop error

	started atomic.Bool
	stopped atomic.Bool
	closed  atomic.Bool
}

func (s *fakeStream) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started.Store(true)
	return nil
}

func (s *fakeStream) Stop() error {
	if s.failOnStop != nil {
		s.callbacks.Error(s.failOnStop)
	}
	s.stopped.Store(true)
	return s.stopErr
}

func (s *fakeStream) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *fakeStream) deliver(pcm []byte) {
	s.callbacks.Data(pcm)
}

func (s *fakeStream) fail(err error) {
	s.callbacks.Error(err)
}

type fakeOpener struct {
	mu       sync.Mutex
	openErr  error
	startErr error
	config   CaptureConfig
	stream   *fakeStream
}

func (o *fakeOpener) OpenStream(cfg CaptureConfig, callbacks CaptureCallbacks) (CaptureStream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.openErr != nil {
		return nil, o.openErr
	}
	o.config = cfg
	o.stream = &fakeStream{callbacks: callbacks, startErr: o.startErr}
	return o.stream, nil
}

func (o *fakeOpener) current() *fakeStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stream
}

var errEnhance = errors.New("enhance failed")

// fakeEnhancer copies input to output. failOn selects frames, counted from
// 1, that return an error instead.
type fakeEnhancer struct {
	calls   atomic.Int64
	failOn  func(frame int64) bool
	panicOn func(frame int64) bool
	gate    chan struct{} // when set, every call waits for a receive
	entered chan struct{}
	farEnd  atomic.Int64
	closed  atomic.Bool
}

func (e *fakeEnhancer) ProcessStream(in [][]float32, inFmt, outFmt StreamFormat, out [][]float32) error {
	frame := e.calls.Add(1)
	if e.entered != nil {
		select {
		case e.entered <- struct{}{}:
		default:
		}
	}
	if e.gate != nil {
		<-e.gate
	}
	if e.panicOn != nil && e.panicOn(frame) {
		panic("boom")
	}
	if e.failOn != nil && e.failOn(frame) {
		return errEnhance
	}
	copy(out[0], in[0])
	return nil
}

func (e *fakeEnhancer) FeedFarEnd(frame []float32) {
	e.farEnd.Add(int64(len(frame)))
}

func (e *fakeEnhancer) Close() error {
	e.closed.Store(true)
	return nil
}
