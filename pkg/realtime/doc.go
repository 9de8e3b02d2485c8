// Package realtime manages one persistent streaming connection to a
// realtime voice service: connection lifecycle, session configuration,
// audio relay, and reconnection with bounded backoff.
//
// # State Machine
//
// A session progresses through these states:
//
//	Idle → Connecting → Configuring → Active
//	                        ↑            │
//	                  Reconnecting ← Disconnected
//	                        │
//	                     Closed (backoff exhausted, fatal error, or Stop)
//
// Start obtains a credential and dials; a missing credential fails the
// start and leaves the session Idle, never retried on its own. After the
// transport handshake the session sends exactly one configuration frame
// (modalities, audio formats, voice, server-side turn detection, response
// token ceiling) and becomes Active on the first acknowledgment. A dropped
// transport re-enters Configuring through Reconnecting with delays that
// grow per attempt up to a cap; exhausting the attempt budget is fatal.
//
// # Usage
//
//	cfg := realtime.DefaultSessionConfig()
//	cfg.URL = "wss://api.example.com/v1/realtime"
//	cfg.Model = "gpt-4o-realtime-preview"
//
//	session := realtime.NewSession(cfg, creds,
//	    realtime.WithPlayback(scheduler),
//	)
//	if err := session.Start(ctx); err != nil {
//	    return err
//	}
//	defer session.Stop()
//
//	for event := range session.Events() {
//	    switch e := event.(type) {
//	    case realtime.TranscriptEvent:
//	        handleCommand(e.Text)
//	    case realtime.AssistantAudioEvent:
//	        play(e.PCM)
//	    }
//	}
//
// Transcription-only sessions reuse the same channel for pure speech to
// text; see TranscriptionOnlyConfig.
package realtime
