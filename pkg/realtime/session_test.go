package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/voicenav/pkg/core"
)

// scriptedServer fakes the remote realtime service. Each accepted
// connection is handed to the per-dial handler.
type scriptedServer struct {
	t   *testing.T
	srv *httptest.Server

	upgrader websocket.Upgrader
	handle   func(conn *websocket.Conn, dial int)

	mu          sync.Mutex
	dials       int
	refuseAll   bool
	protocols   []string
	updates     []SessionParams
	audioFrames []string
	responses   []ResponseParams
}

func newScriptedServer(t *testing.T, handle func(conn *websocket.Conn, dial int)) *scriptedServer {
	t.Helper()
	s := &scriptedServer{
		t: t,
		upgrader: websocket.Upgrader{
			CheckOrigin:  func(r *http.Request) bool { return true },
			Subprotocols: []string{"realtime"},
		},
		handle: handle,
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *scriptedServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.dials++
	dial := s.dials
	s.protocols = append(s.protocols, r.Header.Get("Sec-Websocket-Protocol"))
	refuse := s.refuseAll
	s.mu.Unlock()

	if refuse || s.handle == nil {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.handle(conn, dial)
}

func (s *scriptedServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *scriptedServer) dialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

func (s *scriptedServer) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func (s *scriptedServer) lastUpdate(t *testing.T) SessionParams {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.updates) == 0 {
		t.Fatal("server saw no session.update frame")
	}
	return s.updates[len(s.updates)-1]
}

func (s *scriptedServer) protocolHeader(dial int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dial >= len(s.protocols) {
		return ""
	}
	return s.protocols[dial]
}

func (s *scriptedServer) audioFrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audioFrames)
}

// ackConfigure reads frames until session.update arrives, records it, and
// acknowledges with session.created followed by session.updated.
func (s *scriptedServer) ackConfigure(conn *websocket.Conn, sessionID string) bool {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return false
		}
		var envelope struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &envelope) != nil || envelope.Type != TypeSessionUpdate {
			continue
		}
		var update ClientSessionUpdate
		if err := json.Unmarshal(data, &update); err != nil {
			s.t.Errorf("decode session.update: %v", err)
			return false
		}
		s.mu.Lock()
		s.updates = append(s.updates, update.Session)
		s.mu.Unlock()

		_ = conn.WriteJSON(ServerSessionCreated{Type: TypeSessionCreated, Session: SessionInfo{ID: sessionID}})
		_ = conn.WriteJSON(ServerSessionUpdated{Type: TypeSessionUpdated, Session: SessionInfo{ID: sessionID}})
		return true
	}
}

// holdAndRecord keeps the connection open, recording inbound audio and
// response.create frames, until the client goes away.
func (s *scriptedServer) holdAndRecord(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var envelope struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &envelope) != nil {
			continue
		}
		switch envelope.Type {
		case TypeAudioAppend:
			var frame ClientAudioAppend
			if json.Unmarshal(data, &frame) == nil {
				s.mu.Lock()
				s.audioFrames = append(s.audioFrames, frame.Audio)
				s.mu.Unlock()
			}
		case TypeResponseCreate:
			var frame ClientResponseCreate
			if json.Unmarshal(data, &frame) == nil {
				s.mu.Lock()
				s.responses = append(s.responses, frame.Response)
				s.mu.Unlock()
			}
		}
	}
}

func (s *scriptedServer) responseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}

type fakePlayback struct {
	interrupts atomic.Int32
}

func (p *fakePlayback) Interrupt() time.Duration {
	p.interrupts.Add(1)
	return 120 * time.Millisecond
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSessionConfig(url string) SessionConfig {
	cfg := DefaultSessionConfig()
	cfg.URL = url
	cfg.Model = "test-realtime-model"
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.ReconnectBase = 5 * time.Millisecond
	cfg.ReconnectCap = 20 * time.Millisecond
	cfg.MaxReconnects = 5
	return cfg
}

func waitState(t *testing.T, events <-chan Event, want State) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event channel closed before reaching state %s", want)
			}
			if sc, ok := ev.(StateChangedEvent); ok && sc.To == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

func TestSession_ConfiguresOnceAndActivates(t *testing.T) {
	var server *scriptedServer
	server = newScriptedServer(t, func(conn *websocket.Conn, dial int) {
		if !server.ackConfigure(conn, "sess_1") {
			return
		}
		server.holdAndRecord(conn)
	})

	session := NewSession(testSessionConfig(server.url()), core.StaticCredential("test-token"), WithLogger(discardLogger()))
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()

	waitState(t, session.Events(), StateActive)
	if got := session.State(); got != StateActive {
		t.Fatalf("State() = %s, want %s", got, StateActive)
	}
	if got := session.RemoteID(); got != "sess_1" {
		t.Errorf("RemoteID() = %q, want sess_1", got)
	}

	if got := server.updateCount(); got != 1 {
		t.Fatalf("server saw %d configuration frames, want exactly 1", got)
	}
	params := server.lastUpdate(t)
	if len(params.Modalities) != 2 {
		t.Errorf("modalities = %v, want [text audio]", params.Modalities)
	}
	if params.Voice != "alloy" {
		t.Errorf("voice = %q, want alloy", params.Voice)
	}
	if params.MaxResponseOutputTokens != 4096 {
		t.Errorf("max_response_output_tokens = %d, want 4096", params.MaxResponseOutputTokens)
	}
	td := params.TurnDetection
	if td == nil || td.Type != "server_vad" {
		t.Fatalf("turn_detection = %+v, want server_vad", td)
	}
	if td.Threshold != 0.5 || td.PrefixPaddingMS != 300 || td.SilenceDurationMS != 500 {
		t.Errorf("turn_detection params = %+v", td)
	}
	if td.CreateResponse == nil || !*td.CreateResponse {
		t.Errorf("create_response = %v, want true", td.CreateResponse)
	}

	proto := server.protocolHeader(0)
	if !strings.Contains(proto, "openai-insecure-api-key.test-token") {
		t.Errorf("subprotocol header %q does not carry the credential", proto)
	}
	if !strings.Contains(proto, "realtime") {
		t.Errorf("subprotocol header %q missing realtime identifier", proto)
	}
}

func TestSession_TranscriptionOnlyConfiguration(t *testing.T) {
	var server *scriptedServer
	server = newScriptedServer(t, func(conn *websocket.Conn, dial int) {
		if !server.ackConfigure(conn, "sess_stt") {
			return
		}
		server.holdAndRecord(conn)
	})

	cfg := TranscriptionOnlyConfig()
	cfg.URL = server.url()
	cfg.Model = "test-realtime-model"
	cfg.ReconnectBase = 5 * time.Millisecond

	session := NewSession(cfg, core.StaticCredential("test-token"), WithLogger(discardLogger()))
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()
	waitState(t, session.Events(), StateActive)

	params := server.lastUpdate(t)
	if len(params.Modalities) != 1 || params.Modalities[0] != "text" {
		t.Errorf("modalities = %v, want [text]", params.Modalities)
	}
	if params.MaxResponseOutputTokens != 1 {
		t.Errorf("max_response_output_tokens = %d, want 1", params.MaxResponseOutputTokens)
	}
	if params.TurnDetection == nil || params.TurnDetection.CreateResponse == nil || *params.TurnDetection.CreateResponse {
		t.Errorf("create_response = %+v, want false", params.TurnDetection)
	}
	if params.Voice != "" {
		t.Errorf("voice = %q, want empty for transcription-only", params.Voice)
	}
}

func TestSession_CredentialErrorLeavesIdle(t *testing.T) {
	tests := []struct {
		name  string
		creds core.CredentialSupplier
	}{
		{"supplier error", core.CredentialFunc(func(ctx context.Context) (string, error) {
			return "", errors.New("keychain unavailable")
		})},
		{"empty token", core.StaticCredential("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newScriptedServer(t, nil)
			session := NewSession(testSessionConfig(server.url()), tt.creds, WithLogger(discardLogger()))

			err := session.Start(context.Background())
			if err == nil {
				t.Fatal("Start succeeded without a credential")
			}
			if typ, ok := core.TypeOf(err); !ok || typ != core.ErrCredential {
				t.Fatalf("error type = %v, want %v", typ, core.ErrCredential)
			}
			if got := session.State(); got != StateIdle {
				t.Fatalf("State() = %s after credential failure, want %s", got, StateIdle)
			}
			if got := server.dialCount(); got != 0 {
				t.Fatalf("server saw %d dials, want 0 (credential errors are never retried)", got)
			}
		})
	}
}

func TestSession_RelaysEventsAndBuffersTurnText(t *testing.T) {
	var server *scriptedServer
	server = newScriptedServer(t, func(conn *websocket.Conn, dial int) {
		if !server.ackConfigure(conn, "sess_relay") {
			return
		}
		_ = conn.WriteJSON(ServerResponseCreated{Type: TypeResponseCreated, Response: ResponseInfo{ID: "resp_1"}})
		_ = conn.WriteJSON(ServerTextDelta{Type: TypeAudioTranscript, Delta: "Sure, "})
		_ = conn.WriteJSON(ServerTextDelta{Type: TypeAudioTranscript, Delta: "clicking now."})
		_ = conn.WriteJSON(ServerAudioDelta{
			Type:  TypeAudioDelta,
			Delta: base64.StdEncoding.EncodeToString([]byte{1, 0, 2, 0}),
		})
		_ = conn.WriteJSON(ServerResponseDone{Type: TypeResponseDone, Response: ResponseInfo{ID: "resp_1", Status: "completed"}})
		_ = conn.WriteJSON(ServerSpeechStarted{Type: TypeSpeechStarted, AudioStartMS: 1200})
		_ = conn.WriteJSON(ServerTranscriptCompleted{Type: TypeTranscriptCompleted, ItemID: "item_1", Transcript: " click the first link "})
		server.holdAndRecord(conn)
	})

	playback := &fakePlayback{}
	session := NewSession(testSessionConfig(server.url()), core.StaticCredential("test-token"),
		WithLogger(discardLogger()), WithPlayback(playback))
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()

	var (
		deltas     []string
		audioBytes int
		done       *AssistantDoneEvent
		speech     bool
		transcript *TranscriptEvent
	)
	deadline := time.After(3 * time.Second)
	for transcript == nil {
		select {
		case ev, ok := <-session.Events():
			if !ok {
				t.Fatal("event channel closed before transcript arrived")
			}
			switch e := ev.(type) {
			case AssistantTextDeltaEvent:
				deltas = append(deltas, e.Delta)
			case AssistantAudioEvent:
				audioBytes += len(e.PCM)
			case AssistantDoneEvent:
				done = &e
			case SpeechStartedEvent:
				speech = true
			case TranscriptEvent:
				transcript = &e
			}
		case <-deadline:
			t.Fatal("timed out waiting for transcript event")
		}
	}

	if len(deltas) != 2 {
		t.Errorf("text deltas = %v, want 2", deltas)
	}
	if audioBytes != 4 {
		t.Errorf("decoded audio bytes = %d, want 4", audioBytes)
	}
	if done == nil || done.Text != "Sure, clicking now." {
		t.Errorf("turn text = %+v, want accumulated deltas", done)
	}
	if !speech {
		t.Error("speech start event was not relayed")
	}
	if got := playback.interrupts.Load(); got != 1 {
		t.Errorf("playback interrupted %d times, want 1 (barge-in)", got)
	}
	if transcript.Text != "click the first link" {
		t.Errorf("transcript = %q, want trimmed text", transcript.Text)
	}
	if transcript.ItemID != "item_1" {
		t.Errorf("transcript item = %q, want item_1", transcript.ItemID)
	}
}

func TestSession_DropsMalformedFrames(t *testing.T) {
	var server *scriptedServer
	server = newScriptedServer(t, func(conn *websocket.Conn, dial int) {
		if !server.ackConfigure(conn, "sess_mal") {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"no_type":true}`))
		_ = conn.WriteJSON(ServerTranscriptCompleted{Type: TypeTranscriptCompleted, Transcript: "still alive"})
		server.holdAndRecord(conn)
	})

	session := NewSession(testSessionConfig(server.url()), core.StaticCredential("test-token"), WithLogger(discardLogger()))
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-session.Events():
			if !ok {
				t.Fatal("event channel closed; malformed frame killed the session")
			}
			if e, ok := ev.(TranscriptEvent); ok {
				if e.Text != "still alive" {
					t.Fatalf("transcript = %q", e.Text)
				}
				if got := session.State(); got != StateActive {
					t.Fatalf("State() = %s after malformed frames, want %s", got, StateActive)
				}
				return
			}
		case <-deadline:
			t.Fatal("transcript never arrived after malformed frames")
		}
	}
}

func TestSession_SessionExpiryReconnects(t *testing.T) {
	var server *scriptedServer
	server = newScriptedServer(t, func(conn *websocket.Conn, dial int) {
		switch dial {
		case 1:
			if !server.ackConfigure(conn, "sess_old") {
				return
			}
			_ = conn.WriteJSON(ServerError{Type: TypeServerError, Error: ErrorDetail{
				Code:    CodeSessionExpired,
				Message: "session timed out",
			}})
		default:
			if !server.ackConfigure(conn, "sess_new") {
				return
			}
			server.holdAndRecord(conn)
		}
	})

	session := NewSession(testSessionConfig(server.url()), core.StaticCredential("test-token"), WithLogger(discardLogger()))
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()

	waitState(t, session.Events(), StateActive)
	// Expiry must drop back through Reconnecting into a second Active,
	// not a fatal Closed.
	waitState(t, session.Events(), StateActive)

	if got := server.dialCount(); got != 2 {
		t.Fatalf("server saw %d dials, want 2", got)
	}
	if got := server.updateCount(); got != 2 {
		t.Fatalf("server saw %d configuration frames, want one per connection", got)
	}
	if got := session.ReconnectAttempts(); got != 0 {
		t.Errorf("ReconnectAttempts() = %d after successful reconnect, want 0", got)
	}
	if got := session.RemoteID(); got != "sess_new" {
		t.Errorf("RemoteID() = %q, want sess_new", got)
	}
}

func TestSession_BackoffExhaustionGoesFatal(t *testing.T) {
	server := newScriptedServer(t, nil)

	session := NewSession(testSessionConfig(server.url()), core.StaticCredential("test-token"), WithLogger(discardLogger()))
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var (
		reconnects int
		fatal      *SessionErrorEvent
	)
	deadline := time.After(5 * time.Second)
drain:
	for {
		select {
		case ev, ok := <-session.Events():
			if !ok {
				break drain
			}
			switch e := ev.(type) {
			case StateChangedEvent:
				if e.To == StateReconnecting {
					reconnects++
				}
			case SessionErrorEvent:
				if e.Fatal {
					fatal = &e
				}
			}
		case <-deadline:
			t.Fatal("session never reached a terminal state")
		}
	}

	if reconnects != 5 {
		t.Errorf("reconnect attempts = %d, want 5", reconnects)
	}
	if fatal == nil {
		t.Fatal("no fatal error surfaced after exhausting the retry budget")
	}
	if typ, ok := core.TypeOf(fatal.Err); !ok || typ != core.ErrTransport {
		t.Errorf("fatal error type = %v, want %v", typ, core.ErrTransport)
	}
	if got := session.State(); got != StateClosed {
		t.Fatalf("State() = %s, want %s", got, StateClosed)
	}
	// Initial dial plus five retries; never a sixth retry.
	if got := server.dialCount(); got != 6 {
		t.Errorf("server saw %d dials, want 6", got)
	}
}

func TestSession_ConfigurationRejectedIsFatal(t *testing.T) {
	var server *scriptedServer
	server = newScriptedServer(t, func(conn *websocket.Conn, dial int) {
		_, _, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.WriteJSON(ServerError{Type: TypeServerError, Error: ErrorDetail{
			Code:    "invalid_session_params",
			Message: "voice not available",
		}})
	})

	session := NewSession(testSessionConfig(server.url()), core.StaticCredential("test-token"), WithLogger(discardLogger()))
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var fatal *SessionErrorEvent
	deadline := time.After(3 * time.Second)
drain:
	for {
		select {
		case ev, ok := <-session.Events():
			if !ok {
				break drain
			}
			if e, ok := ev.(SessionErrorEvent); ok && e.Fatal {
				fatal = &e
			}
			if sc, ok := ev.(StateChangedEvent); ok && sc.To == StateReconnecting {
				t.Fatal("configuration rejection must not be retried")
			}
		case <-deadline:
			t.Fatal("session never reached a terminal state")
		}
	}

	if fatal == nil {
		t.Fatal("no fatal error surfaced")
	}
	if typ, ok := core.TypeOf(fatal.Err); !ok || typ != core.ErrConfigurationRejected {
		t.Errorf("fatal error type = %v, want %v", typ, core.ErrConfigurationRejected)
	}
	if got := server.dialCount(); got != 1 {
		t.Errorf("server saw %d dials, want 1", got)
	}
	if got := session.State(); got != StateClosed {
		t.Fatalf("State() = %s, want %s", got, StateClosed)
	}
}

func TestSession_StopIsIdempotentAndRunsDisposersOnce(t *testing.T) {
	var server *scriptedServer
	server = newScriptedServer(t, func(conn *websocket.Conn, dial int) {
		if !server.ackConfigure(conn, "sess_stop") {
			return
		}
		server.holdAndRecord(conn)
	})

	session := NewSession(testSessionConfig(server.url()), core.StaticCredential("test-token"), WithLogger(discardLogger()))
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitState(t, session.Events(), StateActive)

	var micReleases, ctxReleases atomic.Int32
	session.OnDispose(func() { micReleases.Add(1) })
	session.OnDispose(func() { ctxReleases.Add(1) })

	session.Stop()
	if got := session.State(); got != StateClosed {
		t.Fatalf("State() = %s immediately after Stop, want %s", got, StateClosed)
	}
	if err := session.SendAudio(make([]float32, 960)); err == nil {
		t.Error("SendAudio succeeded after Stop")
	}
	session.Stop()

	select {
	case <-session.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("session teardown never finished")
	}
	for range session.Events() {
		// Drain to the close.
	}

	if got := micReleases.Load(); got != 1 {
		t.Errorf("first disposer ran %d times, want exactly 1", got)
	}
	if got := ctxReleases.Load(); got != 1 {
		t.Errorf("second disposer ran %d times, want exactly 1", got)
	}

	// Late registration on a closed session runs immediately, still once.
	var late atomic.Int32
	session.OnDispose(func() { late.Add(1) })
	if got := late.Load(); got != 1 {
		t.Errorf("late disposer ran %d times, want 1", got)
	}
}

func TestSession_SpeakRequestsVerbatimResponse(t *testing.T) {
	var server *scriptedServer
	server = newScriptedServer(t, func(conn *websocket.Conn, dial int) {
		if !server.ackConfigure(conn, "sess_speak") {
			return
		}
		server.holdAndRecord(conn)
	})

	session := NewSession(testSessionConfig(server.url()), core.StaticCredential("test-token"), WithLogger(discardLogger()))
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()
	waitState(t, session.Events(), StateActive)

	if err := session.Speak("   "); err != nil {
		t.Fatalf("Speak with blank text: %v", err)
	}
	if err := session.Speak("Done. I clicked the Sign In button."); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	for i := 0; i < 100; i++ {
		if server.responseCount() >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := server.responseCount(); got != 1 {
		t.Fatalf("server received %d response.create frames, want 1 (blank text sends nothing)", got)
	}

	server.mu.Lock()
	resp := server.responses[0]
	server.mu.Unlock()
	if !strings.Contains(resp.Instructions, "Done. I clicked the Sign In button.") {
		t.Errorf("instructions %q do not carry the answer verbatim", resp.Instructions)
	}
	if len(resp.Modalities) != 2 {
		t.Errorf("modalities = %v, want the session's [text audio]", resp.Modalities)
	}
}

func TestSession_SendAudioFrames(t *testing.T) {
	var server *scriptedServer
	server = newScriptedServer(t, func(conn *websocket.Conn, dial int) {
		if !server.ackConfigure(conn, "sess_audio") {
			return
		}
		server.holdAndRecord(conn)
	})

	cfg := testSessionConfig(server.url())
	session := NewSession(cfg, core.StaticCredential("test-token"), WithLogger(discardLogger()))
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()
	waitState(t, session.Events(), StateActive)

	// 1200 samples at a 960-sample frame size -> two frames, second padded.
	if err := session.SendAudio(make([]float32, 1200)); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}

	for i := 0; i < 100; i++ {
		if server.audioFrameCount() >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := server.audioFrameCount(); got != 2 {
		t.Fatalf("server received %d audio frames, want 2", got)
	}

	server.mu.Lock()
	frames := append([]string(nil), server.audioFrames...)
	server.mu.Unlock()
	for i, frame := range frames {
		pcm, err := base64.StdEncoding.DecodeString(frame)
		if err != nil {
			t.Fatalf("frame %d not base64: %v", i, err)
		}
		if len(pcm) != cfg.Audio.FrameBytes() {
			t.Errorf("frame %d carries %d bytes, want %d", i, len(pcm), cfg.Audio.FrameBytes())
		}
	}
}
