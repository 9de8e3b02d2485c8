package audio

import "math"

// RMSEnergy calculates the root-mean-square energy of PCM16LE audio,
// normalized to [0, 1].
func RMSEnergy(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}

	var sum float64
	count := 0
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}

// PeakAmplitude returns the largest absolute sample in PCM16LE audio,
// normalized to [0, 1].
func PeakAmplitude(pcm []byte) float64 {
	var peak float64
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		normalized := math.Abs(float64(sample) / 32768.0)
		if normalized > peak {
			peak = normalized
		}
	}
	return peak
}
