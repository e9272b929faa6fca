package audiocore

import (
	"encoding/binary"
	"math"

	"github.com/tphakala/simd/f32"
)

// PCM16ToFloat32 decodes s16le samples from pcm into dst as value/32768 and
// returns the number of samples converted.
func PCM16ToFloat32(dst []float32, pcm []byte) int {
	n := min(len(dst), len(pcm)/BytesPerSample)
	out := dst[:n]
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*BytesPerSample:])))
	}
	f32.Scale(out, out, 1/fullScale)
	return n
}

// Float32ToPCM16 encodes src into dst as s16le, scaling by 32768, rounding
// to nearest and saturating at the int16 range. It returns the number of
// samples converted.
func Float32ToPCM16(dst []byte, src []float32) int {
	n := min(len(src), len(dst)/BytesPerSample)
	for i, v := range src[:n] {
		binary.LittleEndian.PutUint16(dst[i*BytesPerSample:], uint16(FloatToSample(v)))
	}
	return n
}

// FloatToSample converts one float sample to int16. NaN maps to silence.
func FloatToSample(v float32) int16 {
	scaled := math.Round(float64(v) * fullScale)
	switch {
	case math.IsNaN(scaled):
		return 0
	case scaled >= math.MaxInt16:
		return math.MaxInt16
	case scaled <= math.MinInt16:
		return math.MinInt16
	default:
		return int16(scaled)
	}
}

// SampleToFloat converts one int16 sample to float
func SampleToFloat(s int16) float32 {
	return float32(s) / fullScale
}
