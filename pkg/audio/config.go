package audio

import "time"

// Config describes the PCM stream format used on both directions of the
// realtime transport.
type Config struct {
	SampleRateHz    int `json:"sample_rate_hz"`
	Channels        int `json:"channels"`
	BitsPerSample   int `json:"bits_per_sample"`
	FrameDurationMs int `json:"frame_duration_ms"`
}

// DefaultConfig returns the wire format: 24 kHz, mono, 16-bit, 40 ms frames.
func DefaultConfig() Config {
	return Config{
		SampleRateHz:    24000,
		Channels:        1,
		BitsPerSample:   16,
		FrameDurationMs: 40,
	}
}

// BytesPerSecond returns the byte rate of the stream.
func (c Config) BytesPerSecond() int {
	return c.SampleRateHz * c.Channels * (c.BitsPerSample / 8)
}

// DurationMs returns the duration in milliseconds of byteLen bytes of audio.
func (c Config) DurationMs(byteLen int) int {
	bps := c.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return byteLen * 1000 / bps
}

// BytesForDurationMs returns the byte count for a duration in milliseconds.
func (c Config) BytesForDurationMs(ms int) int {
	return c.BytesPerSecond() * ms / 1000
}

// SamplesPerFrame returns the sample count of one transport frame.
func (c Config) SamplesPerFrame() int {
	return c.SampleRateHz * c.FrameDurationMs / 1000 * c.Channels
}

// FrameBytes returns the byte size of one transport frame.
func (c Config) FrameBytes() int {
	return c.SamplesPerFrame() * (c.BitsPerSample / 8)
}

// FrameDuration returns the length of one transport frame.
func (c Config) FrameDuration() time.Duration {
	return time.Duration(c.FrameDurationMs) * time.Millisecond
}

// PCMDuration returns the playback duration of a decoded PCM payload.
func (c Config) PCMDuration(byteLen int) time.Duration {
	bps := c.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(byteLen) * time.Second / time.Duration(bps)
}
