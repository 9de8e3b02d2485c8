// Package audio implements the transport codec and playback scheduling for
// the realtime session: float samples to base64-packed PCM16LE frames and
// back, plus the single-cursor scheduler that keeps streamed response audio
// gapless.
package audio

import (
	"encoding/base64"
	"fmt"
	"math"

	"github.com/vango-go/voicenav/pkg/core"
)

// EncodePCM16 converts float samples to little-endian signed 16-bit PCM.
// Samples are clamped to [-1, 1] first; the clamp distortion is acceptable,
// clipping artifacts on the wire are not.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(math.Round(float64(s) * 32767))
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// DecodePCM16 converts little-endian signed 16-bit PCM back to floats in
// [-1, 1). Odd-length payloads are malformed.
func DecodePCM16(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, core.NewMalformedEventError(fmt.Sprintf("pcm payload has odd length %d", len(pcm)))
	}
	out := make([]float32, len(pcm)/2)
	for i := 0; i+1 < len(pcm); i += 2 {
		v := int16(pcm[i]) | int16(pcm[i+1])<<8
		out[i/2] = float32(v) / 32768.0
	}
	return out, nil
}

// EncodeFrames packs samples into fixed-size transport frames and
// base64-encodes each. The final short frame is zero-padded so the wire
// always carries whole frames.
func EncodeFrames(samples []float32, cfg Config) []string {
	frameBytes := cfg.FrameBytes()
	if frameBytes <= 0 || len(samples) == 0 {
		return nil
	}
	pcm := EncodePCM16(samples)
	frames := make([]string, 0, (len(pcm)+frameBytes-1)/frameBytes)
	for start := 0; start < len(pcm); start += frameBytes {
		end := start + frameBytes
		if end > len(pcm) {
			padded := make([]byte, frameBytes)
			copy(padded, pcm[start:])
			frames = append(frames, base64.StdEncoding.EncodeToString(padded))
			break
		}
		frames = append(frames, base64.StdEncoding.EncodeToString(pcm[start:end]))
	}
	return frames
}

// DecodeFrameBytes decodes one base64 transport frame to raw PCM16LE.
func DecodeFrameBytes(frame string) ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(frame)
	if err != nil {
		return nil, core.NewMalformedEventError("audio frame is not valid base64")
	}
	return pcm, nil
}

// DecodeFrame decodes one base64 transport frame to float samples.
func DecodeFrame(frame string) ([]float32, error) {
	pcm, err := DecodeFrameBytes(frame)
	if err != nil {
		return nil, err
	}
	return DecodePCM16(pcm)
}
