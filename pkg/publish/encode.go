package publish

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SampleSize is the encoded size of one sample in bytes.
const SampleSize = 4

// EncodeFloat32 appends the little-endian encoding of samples to dst.
func EncodeFloat32(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(s))
	}
	return dst
}

// DecodeFloat32 appends the samples held in payload to dst.
func DecodeFloat32(dst []float32, payload []byte) ([]float32, error) {
	if len(payload)%SampleSize != 0 {
		return dst, fmt.Errorf("payload length %d is not a multiple of %d", len(payload), SampleSize)
	}
	for i := 0; i < len(payload); i += SampleSize {
		dst = append(dst, math.Float32frombits(binary.LittleEndian.Uint32(payload[i:])))
	}
	return dst, nil
}
