package realtime

// Event is emitted by a Session as the connection and the remote service
// change state. Consumers type-switch on the concrete event structs.
type Event interface {
	eventType() string
}

// StateChangedEvent reports a session state transition.
type StateChangedEvent struct {
	From State
	To   State
}

func (e StateChangedEvent) eventType() string { return "state_changed" }

// SessionCreatedEvent reports the remote session identity after handshake.
type SessionCreatedEvent struct {
	ID string
}

func (e SessionCreatedEvent) eventType() string { return "session_created" }

// SessionConfiguredEvent reports the first configuration acknowledgment.
type SessionConfiguredEvent struct {
	ID string
}

func (e SessionConfiguredEvent) eventType() string { return "session_configured" }

// SpeechStartedEvent reports server-side voice activity detection firing.
// Playback has already been interrupted by the time this is emitted.
type SpeechStartedEvent struct {
	AudioStartMS int64
}

func (e SpeechStartedEvent) eventType() string { return "speech_started" }

// SpeechStoppedEvent signals that server-side processing of the turn began.
type SpeechStoppedEvent struct {
	AudioEndMS int64
}

func (e SpeechStoppedEvent) eventType() string { return "speech_stopped" }

// TranscriptEvent carries one finalized user utterance. It is the sole
// entry point into downstream command handling.
type TranscriptEvent struct {
	ItemID string
	Text   string
}

func (e TranscriptEvent) eventType() string { return "transcript" }

// AssistantTextDeltaEvent carries streaming response text.
type AssistantTextDeltaEvent struct {
	Delta string
}

func (e AssistantTextDeltaEvent) eventType() string { return "assistant_text_delta" }

// AssistantAudioEvent carries one decoded PCM chunk of spoken response.
type AssistantAudioEvent struct {
	PCM []byte
}

func (e AssistantAudioEvent) eventType() string { return "assistant_audio" }

// AssistantDoneEvent reports a completed model turn with the accumulated
// per-turn text.
type AssistantDoneEvent struct {
	Text   string
	Status string
}

func (e AssistantDoneEvent) eventType() string { return "assistant_done" }

// SessionErrorEvent surfaces a session fault. Fatal errors mean the session
// has reached Closed and will not recover on its own.
type SessionErrorEvent struct {
	Err   error
	Fatal bool
}

func (e SessionErrorEvent) eventType() string { return "session_error" }
