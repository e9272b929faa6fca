package export

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	resampler "github.com/tphakala/go-audio-resampler"
	"github.com/tphakala/flac"

	"github.com/tphakala/voicecap/internal/audiocore"
	"github.com/tphakala/voicecap/internal/errors"
)

// decodeChunk is the number of samples read from a WAV decoder at once
const decodeChunk = 8192

// InputFormat describes a recording as stored on disk
type InputFormat struct {
	Container  string `json:"container"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
	Converted  bool   `json:"converted"` // downmixed, resampled or requantised to s16le mono
}

// Input is a recording presented as 48 kHz s16le mono
type Input struct {
	io.Reader
	Format InputFormat

	file *os.File
}

// Close releases the underlying file
func (in *Input) Close() error {
	if in.file == nil {
		return nil
	}
	return in.file.Close()
}

// OpenInput opens a raw .pcm/.raw stream, which is assumed to already be
// 48 kHz s16le mono, or a WAV or FLAC file. WAV and FLAC files in any other
// layout are decoded, downmixed and resampled in memory.
func OpenInput(path string) (*Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fileError(err, "open_input", path)
	}

	var in *Input
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pcm", ".raw":
		return &Input{
			Reader: f,
			Format: InputFormat{Container: "raw", SampleRate: audiocore.SampleRate, Channels: audiocore.Channels, BitDepth: audiocore.BitDepth},
			file:   f,
		}, nil
	case ".wav":
		in, err = decodeWAV(f)
	case ".flac":
		in, err = decodeFLAC(f)
	default:
		err = errors.Newf("unsupported input format %q", ext).
			Component(ComponentExport).
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}

	// decoded inputs live in memory
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = fileError(closeErr, "close_input", path)
	}
	if err != nil {
		return nil, err
	}
	return in, nil
}

func decodeWAV(f *os.File) (*Input, error) {
	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, invalidInput(f.Name(), "not a valid WAV file").Build()
	}

	format := InputFormat{
		Container:  "wav",
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	if err := checkFormat(f.Name(), format); err != nil {
		return nil, err
	}

	divisor := fullScale(format.BitDepth)
	buf := &audio.IntBuffer{
		Data:   make([]int, decodeChunk),
		Format: &audio.Format{SampleRate: format.SampleRate, NumChannels: format.Channels},
	}

	var interleaved []float64
	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return nil, errors.New(err).
				Component(ComponentExport).
				Category(errors.CategoryFileParsing).
				Context("path", f.Name()).
				Build()
		}
		if n == 0 {
			break
		}
		for _, s := range buf.Data[:n] {
			interleaved = append(interleaved, float64(s)/divisor)
		}
	}

	return toPipelineFormat(format, interleaved)
}

func decodeFLAC(f *os.File) (*Input, error) {
	dec, err := flac.NewDecoder(f)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentExport).
			Category(errors.CategoryFileParsing).
			Context("path", f.Name()).
			Build()
	}

	format := InputFormat{
		Container:  "flac",
		SampleRate: dec.SampleRate,
		Channels:   dec.NChannels,
		BitDepth:   dec.BitsPerSample,
	}
	if err := checkFormat(f.Name(), format); err != nil {
		return nil, err
	}

	width := format.BitDepth / 8
	divisor := fullScale(format.BitDepth)

	var interleaved []float64
	for {
		frame, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.New(err).
				Component(ComponentExport).
				Category(errors.CategoryFileParsing).
				Context("path", f.Name()).
				Build()
		}
		for i := 0; i+width <= len(frame); i += width {
			interleaved = append(interleaved, float64(decodeSample(frame[i:], format.BitDepth))/divisor)
		}
	}

	return toPipelineFormat(format, interleaved)
}

// decodeSample reads one little-endian signed sample
func decodeSample(b []byte, bitDepth int) int32 {
	switch bitDepth {
	case 16:
		return int32(int16(binary.LittleEndian.Uint16(b)))
	case 24:
		return int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
	default:
		return int32(binary.LittleEndian.Uint32(b))
	}
}

func checkFormat(path string, format InputFormat) error {
	switch {
	case format.BitDepth != 16 && format.BitDepth != 24 && format.BitDepth != 32:
		return invalidInput(path, "unsupported bit depth").Context("bit_depth", format.BitDepth).Build()
	case format.Channels < 1:
		return invalidInput(path, "no channels").Build()
	case format.SampleRate <= 0:
		return invalidInput(path, "invalid sample rate").Context("sample_rate", format.SampleRate).Build()
	}
	return nil
}

// toPipelineFormat downmixes interleaved samples to mono, resamples to the
// pipeline rate and encodes s16le
func toPipelineFormat(format InputFormat, interleaved []float64) (*Input, error) {
	mono := interleaved
	if format.Channels > 1 {
		mono = make([]float64, len(interleaved)/format.Channels)
		for i := range mono {
			var sum float64
			for c := range format.Channels {
				sum += interleaved[i*format.Channels+c]
			}
			mono[i] = sum / float64(format.Channels)
		}
	}

	if format.SampleRate != audiocore.SampleRate && len(mono) > 0 {
		resampled, err := resampler.ResampleMono(mono, float64(format.SampleRate), audiocore.SampleRate, resampler.QualityHigh)
		if err != nil {
			return nil, errors.New(err).
				Component(ComponentExport).
				Category(errors.CategoryAudio).
				Context("operation", "resample").
				Context("sample_rate", format.SampleRate).
				Build()
		}
		mono = resampled
	}

	pcm := make([]byte, len(mono)*audiocore.BytesPerSample)
	for i, v := range mono {
		binary.LittleEndian.PutUint16(pcm[i*audiocore.BytesPerSample:], uint16(audiocore.FloatToSample(float32(v))))
	}

	format.Converted = format.Channels != audiocore.Channels ||
		format.SampleRate != audiocore.SampleRate ||
		format.BitDepth != audiocore.BitDepth

	return &Input{Reader: bytes.NewReader(pcm), Format: format}, nil
}

func fullScale(bitDepth int) float64 {
	return float64(int64(1) << (bitDepth - 1))
}

func invalidInput(path, reason string) *errors.ErrorBuilder {
	return errors.Newf("invalid input: %s", reason).
		Component(ComponentExport).
		Category(errors.CategoryValidation).
		Context("path", path)
}
