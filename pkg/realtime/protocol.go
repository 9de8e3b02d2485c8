package realtime

import (
	"encoding/json"
	"strings"

	"github.com/vango-go/voicenav/pkg/core"
)

// Wire frame types for the realtime streaming protocol. Every frame is a
// JSON object carrying a "type" discriminator.
const (
	// client -> server
	TypeSessionUpdate  = "session.update"
	TypeAudioAppend    = "input_audio_buffer.append"
	TypeAudioCommit    = "input_audio_buffer.commit"
	TypeResponseCreate = "response.create"
	TypeResponseCancel = "response.cancel"

	// server -> client
	TypeSessionCreated      = "session.created"
	TypeSessionUpdated      = "session.updated"
	TypeSpeechStarted       = "input_audio_buffer.speech_started"
	TypeSpeechStopped       = "input_audio_buffer.speech_stopped"
	TypeInputCommitted      = "input_audio_buffer.committed"
	TypeTranscriptCompleted = "conversation.item.input_audio_transcription.completed"
	TypeTranscriptFailed    = "conversation.item.input_audio_transcription.failed"
	TypeResponseCreated     = "response.created"
	TypeAudioDelta          = "response.audio.delta"
	TypeAudioTranscript     = "response.audio_transcript.delta"
	TypeTextDelta           = "response.text.delta"
	TypeResponseDone        = "response.done"
	TypeServerError         = "error"
)

// Error codes the session treats specially.
const (
	CodeSessionExpired = "session_expired"
	CodeInvalidAPIKey  = "invalid_api_key"
)

// TranscriptionParams selects the model used to transcribe input audio.
type TranscriptionParams struct {
	Model string `json:"model"`
}

// TurnDetectionParams configures server-side voice activity detection.
type TurnDetectionParams struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMS int     `json:"silence_duration_ms,omitempty"`
	CreateResponse    *bool   `json:"create_response,omitempty"`
}

// SessionParams is the payload of a session.update frame.
type SessionParams struct {
	Modalities              []string             `json:"modalities,omitempty"`
	Instructions            string               `json:"instructions,omitempty"`
	Voice                   string               `json:"voice,omitempty"`
	InputAudioFormat        string               `json:"input_audio_format,omitempty"`
	OutputAudioFormat       string               `json:"output_audio_format,omitempty"`
	InputAudioTranscription *TranscriptionParams `json:"input_audio_transcription,omitempty"`
	TurnDetection           *TurnDetectionParams `json:"turn_detection,omitempty"`
	MaxResponseOutputTokens int                  `json:"max_response_output_tokens,omitempty"`
}

type ClientSessionUpdate struct {
	Type    string        `json:"type"`
	Session SessionParams `json:"session"`
}

type ClientAudioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type ClientAudioCommit struct {
	Type string `json:"type"`
}

type ClientResponseCancel struct {
	Type string `json:"type"`
}

// ResponseParams is the payload of a response.create frame. Instructions
// override the session instructions for this one response.
type ResponseParams struct {
	Modalities   []string `json:"modalities,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
}

type ClientResponseCreate struct {
	Type     string         `json:"type"`
	Response ResponseParams `json:"response"`
}

// SessionInfo identifies the remote session in acknowledgment frames.
type SessionInfo struct {
	ID    string `json:"id,omitempty"`
	Model string `json:"model,omitempty"`
}

type ServerSessionCreated struct {
	Type    string      `json:"type"`
	Session SessionInfo `json:"session"`
}

type ServerSessionUpdated struct {
	Type    string      `json:"type"`
	Session SessionInfo `json:"session"`
}

type ServerSpeechStarted struct {
	Type         string `json:"type"`
	AudioStartMS int64  `json:"audio_start_ms,omitempty"`
	ItemID       string `json:"item_id,omitempty"`
}

type ServerSpeechStopped struct {
	Type       string `json:"type"`
	AudioEndMS int64  `json:"audio_end_ms,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
}

type ServerInputCommitted struct {
	Type   string `json:"type"`
	ItemID string `json:"item_id,omitempty"`
}

type ServerTranscriptCompleted struct {
	Type       string `json:"type"`
	ItemID     string `json:"item_id,omitempty"`
	Transcript string `json:"transcript"`
}

type ServerTranscriptFailed struct {
	Type   string       `json:"type"`
	ItemID string       `json:"item_id,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// ResponseInfo summarizes a model response in lifecycle frames.
type ResponseInfo struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
}

type ServerResponseCreated struct {
	Type     string       `json:"type"`
	Response ResponseInfo `json:"response"`
}

type ServerAudioDelta struct {
	Type       string `json:"type"`
	ResponseID string `json:"response_id,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	Delta      string `json:"delta"`
}

type ServerTextDelta struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
}

type ServerResponseDone struct {
	Type     string       `json:"type"`
	Response ResponseInfo `json:"response"`
}

type ErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

type ServerError struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

// ServerUnknown carries a frame whose type the client does not recognize.
// Unknown frames are not an error; the protocol adds event types over time.
type ServerUnknown struct {
	Type string
	Raw  json.RawMessage
}

// DecodeServerEvent decodes one inbound JSON frame into its typed form.
// A payload that cannot be decoded returns a malformed-event error so the
// caller can log and drop it without tearing the session down.
func DecodeServerEvent(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, core.NewMalformedEventError("invalid json frame")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, core.NewMalformedEventError("frame missing type")
	}

	switch typ {
	case TypeSessionCreated:
		var msg ServerSessionCreated
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, core.NewMalformedEventError("invalid session.created frame")
		}
		return msg, nil
	case TypeSessionUpdated:
		var msg ServerSessionUpdated
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, core.NewMalformedEventError("invalid session.updated frame")
		}
		return msg, nil
	case TypeSpeechStarted:
		var msg ServerSpeechStarted
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, core.NewMalformedEventError("invalid speech_started frame")
		}
		return msg, nil
	case TypeSpeechStopped:
		var msg ServerSpeechStopped
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, core.NewMalformedEventError("invalid speech_stopped frame")
		}
		return msg, nil
	case TypeInputCommitted:
		var msg ServerInputCommitted
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, core.NewMalformedEventError("invalid committed frame")
		}
		return msg, nil
	case TypeTranscriptCompleted:
		var msg ServerTranscriptCompleted
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, core.NewMalformedEventError("invalid transcription.completed frame")
		}
		return msg, nil
	case TypeTranscriptFailed:
		var msg ServerTranscriptFailed
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, core.NewMalformedEventError("invalid transcription.failed frame")
		}
		return msg, nil
	case TypeResponseCreated:
		var msg ServerResponseCreated
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, core.NewMalformedEventError("invalid response.created frame")
		}
		return msg, nil
	case TypeAudioDelta:
		var msg ServerAudioDelta
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, core.NewMalformedEventError("invalid audio delta frame")
		}
		if strings.TrimSpace(msg.Delta) == "" {
			return nil, core.NewMalformedEventError("audio delta missing payload")
		}
		return msg, nil
	case TypeAudioTranscript, TypeTextDelta:
		var msg ServerTextDelta
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, core.NewMalformedEventError("invalid text delta frame")
		}
		msg.Type = typ
		return msg, nil
	case TypeResponseDone:
		var msg ServerResponseDone
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, core.NewMalformedEventError("invalid response.done frame")
		}
		return msg, nil
	case TypeServerError:
		var msg ServerError
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, core.NewMalformedEventError("invalid error frame")
		}
		return msg, nil
	default:
		return ServerUnknown{
			Type: typ,
			Raw:  append(json.RawMessage(nil), data...),
		}, nil
	}
}
