package realtime

import (
	"strings"
	"time"

	"github.com/vango-go/voicenav/pkg/audio"
	"github.com/vango-go/voicenav/pkg/core"
)

const (
	defaultHandshakeTimeout = 15 * time.Second

	// Reconnect policy: delay grows by the base on every failed attempt,
	// capped, with a bounded attempt count before the session goes fatal.
	defaultReconnectBase = 1 * time.Second
	defaultReconnectCap  = 10 * time.Second
	defaultMaxReconnects = 5

	// A transcription-only session still needs a token ceiling the remote
	// service accepts, so it uses the smallest legal value instead of zero.
	transcriptionOnlyTokenCeiling = 1
)

// VADConfig holds server-side turn detection parameters.
type VADConfig struct {
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms"`
	SilenceDurationMS int     `json:"silence_duration_ms"`
}

// SessionConfig describes one realtime session: where to connect, how the
// remote session is configured on handshake, and how reconnection behaves.
type SessionConfig struct {
	// URL is the websocket endpoint. The model is appended as a query
	// parameter when not already present.
	URL   string `json:"url"`
	Model string `json:"model"`

	Instructions string   `json:"instructions,omitempty"`
	Modalities   []string `json:"modalities"`
	Voice        string   `json:"voice,omitempty"`

	InputAudioFormat   string `json:"input_audio_format"`
	OutputAudioFormat  string `json:"output_audio_format"`
	TranscriptionModel string `json:"transcription_model,omitempty"`

	VAD VADConfig `json:"vad"`

	// MaxResponseTokens caps each model response. CreateResponse controls
	// whether the remote service starts a response on its own when turn
	// detection fires; transcription-only sessions disable it.
	MaxResponseTokens int  `json:"max_response_tokens"`
	CreateResponse    bool `json:"create_response"`

	HandshakeTimeout time.Duration `json:"handshake_timeout"`

	ReconnectBase time.Duration `json:"reconnect_base"`
	ReconnectCap  time.Duration `json:"reconnect_cap"`
	MaxReconnects int           `json:"max_reconnects"`

	Audio audio.Config `json:"audio"`
}

// DefaultSessionConfig returns a speech-to-speech session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Modalities:         []string{"text", "audio"},
		Voice:              "alloy",
		InputAudioFormat:   "pcm16",
		OutputAudioFormat:  "pcm16",
		TranscriptionModel: "whisper-1",
		VAD: VADConfig{
			Threshold:         0.5,
			PrefixPaddingMS:   300,
			SilenceDurationMS: 500,
		},
		MaxResponseTokens: 4096,
		CreateResponse:    true,
		HandshakeTimeout:  defaultHandshakeTimeout,
		ReconnectBase:     defaultReconnectBase,
		ReconnectCap:      defaultReconnectCap,
		MaxReconnects:     defaultMaxReconnects,
		Audio:             audio.DefaultConfig(),
	}
}

// TranscriptionOnlyConfig returns a configuration that reuses the streaming
// channel for pure speech-to-text: text modality only, automatic responses
// disabled, and the token ceiling pinned near zero so an accidental model
// turn cannot say anything.
func TranscriptionOnlyConfig() SessionConfig {
	cfg := DefaultSessionConfig()
	cfg.Modalities = []string{"text"}
	cfg.Voice = ""
	cfg.OutputAudioFormat = ""
	cfg.MaxResponseTokens = transcriptionOnlyTokenCeiling
	cfg.CreateResponse = false
	return cfg
}

// Validate reports configuration problems before any connection attempt.
func (c SessionConfig) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return core.NewConfigurationRejected("session url must not be empty", "")
	}
	if strings.TrimSpace(c.Model) == "" {
		return core.NewConfigurationRejected("session model must not be empty", "")
	}
	if len(c.Modalities) == 0 {
		return core.NewConfigurationRejected("session modalities must not be empty", "")
	}
	if c.MaxReconnects < 0 {
		return core.NewConfigurationRejected("max_reconnects must be >= 0", "")
	}
	return nil
}

// sessionParams builds the single configuration frame payload sent after
// the transport handshake.
func (c SessionConfig) sessionParams() SessionParams {
	params := SessionParams{
		Modalities:              append([]string(nil), c.Modalities...),
		Instructions:            c.Instructions,
		Voice:                   c.Voice,
		InputAudioFormat:        c.InputAudioFormat,
		OutputAudioFormat:       c.OutputAudioFormat,
		MaxResponseOutputTokens: c.MaxResponseTokens,
	}
	if strings.TrimSpace(c.TranscriptionModel) != "" {
		params.InputAudioTranscription = &TranscriptionParams{Model: c.TranscriptionModel}
	}
	createResponse := c.CreateResponse
	params.TurnDetection = &TurnDetectionParams{
		Type:              "server_vad",
		Threshold:         c.VAD.Threshold,
		PrefixPaddingMS:   c.VAD.PrefixPaddingMS,
		SilenceDurationMS: c.VAD.SilenceDurationMS,
		CreateResponse:    &createResponse,
	}
	return params
}
