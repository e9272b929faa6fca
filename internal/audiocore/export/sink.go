// Package export opens the destinations the capture pipeline writes to and
// the recordings the reprocess command reads from.
package export

import (
	"bufio"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"

	"github.com/tphakala/voicecap/internal/audiocore"
	"github.com/tphakala/voicecap/internal/errors"
)

// ComponentExport identifies errors from this package
const ComponentExport = "export"

// writeBufferSize holds about a third of a second of audio
const writeBufferSize = 32 * 1024

// Target placeholders
const (
	PlaceholderSession   = "{session}"
	PlaceholderTimestamp = "{timestamp}"

	timestampLayout = "20060102T150405"
)

// ExpandTarget replaces {session} and {timestamp} in target
func ExpandTarget(target string, session uuid.UUID, now time.Time) string {
	return strings.NewReplacer(
		PlaceholderSession, session.String(),
		PlaceholderTimestamp, now.Format(timestampLayout),
	).Replace(target)
}

// OpenSink creates target and any missing parent directories. Targets ending
// in .wav get a 48 kHz 16-bit mono WAV file whose header is written on Close;
// anything else receives the raw s16le stream. An existing file is truncated.
func OpenSink(target string) (audiocore.Sink, error) {
	if target == "" {
		return nil, errors.Newf("empty sink target").
			Component(ComponentExport).
			Category(errors.CategoryValidation).
			Build()
	}

	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fileError(err, "create_directory", dir)
		}
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fileError(err, "open_sink", target)
	}

	if strings.EqualFold(filepath.Ext(target), ".wav") {
		return newWAVSink(f), nil
	}
	return &rawSink{file: f, w: bufio.NewWriterSize(f, writeBufferSize)}, nil
}

// rawSink appends s16le bytes to a file
type rawSink struct {
	file *os.File
	w    *bufio.Writer
}

func (s *rawSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s *rawSink) Close() error {
	flushErr := s.w.Flush()
	closeErr := s.file.Close()
	if flushErr != nil {
		return fileError(flushErr, "flush_sink", s.file.Name())
	}
	if closeErr != nil {
		return fileError(closeErr, "close_sink", s.file.Name())
	}
	return nil
}

// wavSink encodes s16le bytes into a WAV container
type wavSink struct {
	file    *os.File
	enc     *wav.Encoder
	buf     *audio.IntBuffer
	pending []byte // odd byte carried to the next Write
}

func newWAVSink(f *os.File) *wavSink {
	return &wavSink{
		file: f,
		enc:  wav.NewEncoder(f, audiocore.SampleRate, audiocore.BitDepth, audiocore.Channels, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{SampleRate: audiocore.SampleRate, NumChannels: audiocore.Channels},
			SourceBitDepth: audiocore.BitDepth,
		},
		pending: make([]byte, 0, 1),
	}
}

func (s *wavSink) Write(p []byte) (int, error) {
	data := p
	if len(s.pending) > 0 {
		data = append(s.pending, p...)
		s.pending = s.pending[:0]
	}

	samples := len(data) / audiocore.BytesPerSample
	if cap(s.buf.Data) < samples {
		s.buf.Data = make([]int, samples)
	}
	s.buf.Data = s.buf.Data[:samples]
	for i := range samples {
		s.buf.Data[i] = int(int16(binary.LittleEndian.Uint16(data[i*audiocore.BytesPerSample:])))
	}
	if len(data)%audiocore.BytesPerSample != 0 {
		s.pending = append(s.pending, data[len(data)-1])
	}

	if samples > 0 {
		if err := s.enc.Write(s.buf); err != nil {
			return 0, fileError(err, "encode_wav", s.file.Name())
		}
	}
	return len(p), nil
}

func (s *wavSink) Close() error {
	encErr := s.enc.Close()
	closeErr := s.file.Close()
	if encErr != nil {
		return fileError(encErr, "finalize_wav", s.file.Name())
	}
	if closeErr != nil {
		return fileError(closeErr, "close_sink", s.file.Name())
	}
	return nil
}

func fileError(err error, operation, path string) error {
	return errors.New(err).
		Component(ComponentExport).
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		Context("path", path).
		Build()
}
