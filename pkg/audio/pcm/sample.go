package pcm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/xaionaro-go/audioalign/pkg/audio"
)

// Sample decodes a single sample of format f from the beginning of p
// and brings it into [-1, 1].
func Sample(f audio.PCMFormat, p []byte) float64 {
	switch f {
	case audio.PCMFormatU8:
		return (float64(p[0]) - 128) / 128
	case audio.PCMFormatS16LE:
		return float64(int16(binary.LittleEndian.Uint16(p))) / audio.MaxAmplitudeS16
	case audio.PCMFormatS16BE:
		return float64(int16(binary.BigEndian.Uint16(p))) / audio.MaxAmplitudeS16
	case audio.PCMFormatS24LE:
		return float64(signExtend24(uint32(p[0])|uint32(p[1])<<8|uint32(p[2])<<16)) / 8388607
	case audio.PCMFormatS24BE:
		return float64(signExtend24(uint32(p[2])|uint32(p[1])<<8|uint32(p[0])<<16)) / 8388607
	case audio.PCMFormatS32LE:
		return float64(int32(binary.LittleEndian.Uint32(p))) / 2147483647
	case audio.PCMFormatS32BE:
		return float64(int32(binary.BigEndian.Uint32(p))) / 2147483647
	case audio.PCMFormatFloat32LE:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p)))
	case audio.PCMFormatFloat32BE:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(p)))
	case audio.PCMFormatFloat64LE:
		return math.Float64frombits(binary.LittleEndian.Uint64(p))
	case audio.PCMFormatFloat64BE:
		return math.Float64frombits(binary.BigEndian.Uint64(p))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

func signExtend24(v uint32) int32 {
	val := int32(v)
	if val&0x800000 != 0 {
		val |= -16777216
	}
	return val
}

// Number is anything a decoder may hand over as a raw sample.
type Number interface {
	~int | ~int16 | ~int32 | ~float32 | ~float64
}

// Downmix averages every group of `channels` interleaved values of src
// into one sample of dst, dividing by fullScale. It returns the amount
// of samples written; a trailing incomplete frame is ignored.
func Downmix[T Number](dst []float64, src []T, channels int, fullScale float64) int {
	if channels <= 0 {
		return 0
	}
	frames := len(src) / channels
	if frames > len(dst) {
		frames = len(dst)
	}
	div := fullScale * float64(channels)
	for frameIdx := 0; frameIdx < frames; frameIdx++ {
		var sum float64
		for _, v := range src[frameIdx*channels : (frameIdx+1)*channels] {
			sum += float64(v)
		}
		dst[frameIdx] = sum / div
	}
	return frames
}
