package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/voicenav/pkg/audio"
	"github.com/vango-go/voicenav/pkg/core"
)

// State is the session lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConfiguring  State = "configuring"
	StateActive       State = "active"
	StateDisconnected State = "disconnected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

var errStopped = errors.New("session stopped")
var errSessionExpired = errors.New("remote session expired")

// Interrupter truncates in-progress playback when the user starts speaking.
type Interrupter interface {
	Interrupt() time.Duration
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDialer sets the websocket dialer used to connect.
func WithDialer(dialer *websocket.Dialer) SessionOption {
	return func(s *Session) {
		if dialer != nil {
			s.dialer = dialer
		}
	}
}

// WithPlayback wires the playback scheduler so speech-start events can
// barge in on audio that is still queued.
func WithPlayback(playback Interrupter) SessionOption {
	return func(s *Session) {
		s.playback = playback
	}
}

// Session owns one persistent streaming connection: it connects,
// authenticates via protocol subprotocol identifiers, sends a single
// configuration frame, relays audio in and typed events out, and reconnects
// with bounded backoff when the transport drops.
//
// A Session is single use. After Stop or a fatal error it stays Closed;
// reconnecting manually means building a new Session.
type Session struct {
	cfg      SessionConfig
	creds    core.CredentialSupplier
	dialer   *websocket.Dialer
	logger   *slog.Logger
	playback Interrupter

	mu           sync.Mutex
	state        State
	conn         *websocket.Conn
	shouldRun    bool
	started      bool
	remoteID     string
	lastActivity time.Time
	turnText     strings.Builder
	backoff      Backoff
	disposers    []func()
	disposed     bool
	eventsClosed bool

	writeMu sync.Mutex

	events   chan Event
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once
}

// NewSession builds a session in the Idle state. Nothing connects until
// Start is called.
func NewSession(cfg SessionConfig, creds core.CredentialSupplier, opts ...SessionOption) *Session {
	s := &Session{
		cfg:    cfg,
		creds:  creds,
		logger: slog.Default(),
		state:  StateIdle,
		backoff: Backoff{
			Base:        cfg.ReconnectBase,
			Cap:         cfg.ReconnectCap,
			MaxAttempts: cfg.MaxReconnects,
		},
		events: make(chan Event, 256),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events yields session events. The channel closes after the session has
// fully shut down.
func (s *Session) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.events
}

// Done is closed once teardown has finished.
func (s *Session) Done() <-chan struct{} {
	if s == nil {
		return nil
	}
	return s.done
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RemoteID returns the identifier the remote service assigned, if any.
func (s *Session) RemoteID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteID
}

// LastActivity returns when the last inbound frame arrived.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// ReconnectAttempts returns the consecutive failed connection attempts.
func (s *Session) ReconnectAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backoff.Attempts()
}

// OnDispose registers cleanup to run exactly once when the session reaches
// Closed, whichever path closed it. If the session is already closed, fn
// runs immediately.
func (s *Session) OnDispose(fn func()) {
	if s == nil || fn == nil {
		return
	}
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		fn()
		return
	}
	s.disposers = append(s.disposers, fn)
	s.mu.Unlock()
}

// Start obtains a credential and launches the connection supervisor.
// A missing or rejected credential fails the start attempt and leaves the
// session Idle; it is never retried automatically. Transport failures after
// this point go through the reconnect machinery instead and surface as
// events.
func (s *Session) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("session must not be nil")
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if s.creds == nil {
		return core.NewCredentialError("no credential supplier configured")
	}

	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("session already started (state %s)", state)
	}
	s.mu.Unlock()

	token, err := s.creds.Token(ctx)
	if err != nil {
		if typ, ok := core.TypeOf(err); !ok || typ != core.ErrCredential {
			err = core.NewCredentialError(err.Error())
		}
		return err
	}
	if strings.TrimSpace(token) == "" {
		return core.NewCredentialError("credential supplier returned an empty token")
	}

	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("session already started (state %s)", state)
	}
	s.started = true
	s.shouldRun = true
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	go s.run(ctx, token)
	return nil
}

// Stop closes the session. It is idempotent and effective immediately: the
// state flips to Closed synchronously and any in-flight reconnect attempt
// is abandoned, while transport teardown finishes in the background.
func (s *Session) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.shouldRun = false
	conn := s.conn
	s.conn = nil
	started := s.started
	s.turnText.Reset()
	s.setStateLocked(StateClosed)
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.stopCh) })

	if conn != nil {
		s.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		_ = conn.Close()
	}

	if !started {
		// The supervisor never ran, so teardown completes here.
		s.runDisposers()
		s.closeEvents()
		s.doneOnce.Do(func() { close(s.done) })
	}
}

// SendAudio encodes captured PCM samples and transmits them in capture
// order. It fails when the session is not Active.
func (s *Session) SendAudio(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}
	for _, frame := range audio.EncodeFrames(samples, s.cfg.Audio) {
		if err := s.sendJSON(ClientAudioAppend{Type: TypeAudioAppend, Audio: frame}); err != nil {
			return err
		}
	}
	return nil
}

// CommitAudio finalizes the input buffer, forcing the remote service to
// treat captured audio as a completed utterance.
func (s *Session) CommitAudio() error {
	return s.sendJSON(ClientAudioCommit{Type: TypeAudioCommit})
}

// CancelResponse asks the remote service to stop the in-flight response.
func (s *Session) CancelResponse() error {
	return s.sendJSON(ClientResponseCancel{Type: TypeResponseCancel})
}

// Speak asks the remote model to voice the given text verbatim in the
// session's configured voice. It fails when the session is not Active.
func (s *Session) Speak(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return s.sendJSON(ClientResponseCreate{
		Type: TypeResponseCreate,
		Response: ResponseParams{
			Modalities:   append([]string(nil), s.cfg.Modalities...),
			Instructions: "Repeat the following to the user exactly as written: " + text,
		},
	})
}

func (s *Session) sendJSON(v any) error {
	s.mu.Lock()
	conn := s.conn
	state := s.state
	s.mu.Unlock()
	if conn == nil || state != StateActive {
		return core.NewTransportError(fmt.Sprintf("session is not active (state %s)", state), nil)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// run is the connection supervisor: connect, configure, relay, and on
// transport loss retry with backoff until stopped or exhausted.
func (s *Session) run(ctx context.Context, token string) {
	defer s.doneOnce.Do(func() { close(s.done) })
	defer s.closeEvents()
	defer s.runDisposers()
	defer s.markClosed()

	for {
		if ctx.Err() != nil || !s.running() {
			return
		}

		conn, remoteID, err := s.connect(ctx, token)
		if err != nil {
			if errors.Is(err, errStopped) || ctx.Err() != nil {
				return
			}
			if typ, ok := core.TypeOf(err); ok && (typ == core.ErrCredential || typ == core.ErrConfigurationRejected) {
				s.fail(err)
				return
			}
			if !s.retryAfterFailure(ctx, err) {
				return
			}
			continue
		}

		s.mu.Lock()
		if !s.shouldRun {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conn = conn
		s.remoteID = remoteID
		s.backoff.Reset()
		s.setStateLocked(StateActive)
		s.emitLocked(SessionConfiguredEvent{ID: remoteID})
		s.mu.Unlock()

		err = s.readLoop(conn)

		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.turnText.Reset()
		running := s.shouldRun
		s.mu.Unlock()
		_ = conn.Close()

		if !running || ctx.Err() != nil {
			return
		}

		s.logger.Warn("realtime transport lost", "error", err, "session_id", remoteID)
		s.setState(StateDisconnected)
		s.emit(SessionErrorEvent{Err: core.NewTransportError("connection lost", err), Fatal: false})

		if !s.retryAfterFailure(ctx, err) {
			return
		}
	}
}

// retryAfterFailure consumes one backoff attempt and sleeps through the
// delay. It returns false when the session must stop, either because the
// attempt budget ran out (fatal) or a stop arrived mid-wait.
func (s *Session) retryAfterFailure(ctx context.Context, cause error) bool {
	if !s.running() {
		return false
	}
	s.mu.Lock()
	delay, ok := s.backoff.Next()
	attempt := s.backoff.Attempts()
	s.mu.Unlock()
	if !ok {
		s.fail(core.NewTransportError(fmt.Sprintf("gave up after %d reconnect attempts", attempt), cause))
		return false
	}

	s.logger.Warn("realtime reconnecting", "attempt", attempt, "delay", delay, "error", cause)
	s.setState(StateReconnecting)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return s.running()
	case <-ctx.Done():
		return false
	case <-s.stopCh:
		return false
	}
}

// connect dials the endpoint and completes the configuration handshake:
// one session.update frame out, session.updated back. The whole exchange
// is bounded by the handshake timeout.
func (s *Session) connect(ctx context.Context, token string) (*websocket.Conn, string, error) {
	base := s.dialer
	if base == nil {
		base = websocket.DefaultDialer
	}
	dialer := *base
	dialer.Subprotocols = subprotocols(token)
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = s.handshakeTimeout()
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, s.handshakeTimeout())
		defer cancel()
	}

	conn, resp, err := dialer.DialContext(dialCtx, s.endpoint(), nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, "", core.NewCredentialError(fmt.Sprintf("websocket dial rejected (status %d)", resp.StatusCode))
		}
		return nil, "", core.NewTransportError("websocket dial failed", err)
	}

	// Register the connection before the handshake so Stop can abort a
	// configure that is still waiting on the remote service.
	s.mu.Lock()
	if !s.shouldRun {
		s.mu.Unlock()
		_ = conn.Close()
		return nil, "", errStopped
	}
	s.conn = conn
	s.setStateLocked(StateConfiguring)
	s.mu.Unlock()

	update := ClientSessionUpdate{Type: TypeSessionUpdate, Session: s.cfg.sessionParams()}
	s.writeMu.Lock()
	err = conn.WriteJSON(update)
	s.writeMu.Unlock()
	if err != nil {
		s.clearConn(conn)
		if !s.running() {
			return nil, "", errStopped
		}
		return nil, "", core.NewTransportError("send session.update", err)
	}

	remoteID, err := s.awaitConfigured(conn)
	if err != nil {
		s.clearConn(conn)
		if !s.running() {
			return nil, "", errStopped
		}
		return nil, "", err
	}
	return conn, remoteID, nil
}

func (s *Session) clearConn(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()
}

// awaitConfigured reads frames until the first configuration acknowledgment
// arrives. Frames other than the ack are surfaced or dropped but never end
// the wait; an error frame does.
func (s *Session) awaitConfigured(conn *websocket.Conn) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(s.handshakeTimeout()))
	defer conn.SetReadDeadline(time.Time{})

	remoteID := ""
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return "", core.NewTransportError("await configuration ack", err)
		}
		event, decErr := DecodeServerEvent(payload)
		if decErr != nil {
			s.logger.Debug("dropping malformed frame during handshake", "error", decErr)
			continue
		}

		switch msg := event.(type) {
		case ServerSessionCreated:
			remoteID = msg.Session.ID
			s.emit(SessionCreatedEvent{ID: remoteID})
		case ServerSessionUpdated:
			if msg.Session.ID != "" {
				remoteID = msg.Session.ID
			}
			return remoteID, nil
		case ServerError:
			detail := msg.Error
			if detail.Code == CodeInvalidAPIKey {
				return "", core.NewCredentialError(detail.Message)
			}
			return "", core.NewConfigurationRejected(detail.Message, detail.Code)
		default:
			// Other frames may precede the ack; they carry nothing the
			// handshake needs.
		}
	}
}

// readLoop relays inbound frames until the transport drops or the remote
// session expires. Malformed payloads are logged and dropped.
func (s *Session) readLoop(conn *websocket.Conn) error {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.touch()

		event, decErr := DecodeServerEvent(payload)
		if decErr != nil {
			s.logger.Debug("dropping malformed frame", "error", decErr)
			continue
		}
		if s.handleServerEvent(event) {
			return errSessionExpired
		}
	}
}

// handleServerEvent dispatches one decoded frame. It returns true when the
// frame demands a reconnect (remote session expiry).
func (s *Session) handleServerEvent(event any) bool {
	switch msg := event.(type) {
	case ServerSpeechStarted:
		// Barge-in: queued playback is cut before anyone hears more of it.
		if s.playback != nil {
			if cut := s.playback.Interrupt(); cut > 0 {
				s.logger.Debug("barge-in truncated playback", "truncated", cut)
			}
		}
		s.emit(SpeechStartedEvent{AudioStartMS: msg.AudioStartMS})
	case ServerSpeechStopped:
		s.emit(SpeechStoppedEvent{AudioEndMS: msg.AudioEndMS})
	case ServerInputCommitted:
		// Activity already recorded; nothing else to relay.
	case ServerTranscriptCompleted:
		if text := strings.TrimSpace(msg.Transcript); text != "" {
			s.emit(TranscriptEvent{ItemID: msg.ItemID, Text: text})
		}
	case ServerTranscriptFailed:
		detail := ""
		if msg.Error != nil {
			detail = msg.Error.Message
		}
		s.logger.Warn("input transcription failed", "item_id", msg.ItemID, "error", detail)
	case ServerTextDelta:
		s.appendTurnText(msg.Delta)
		s.emit(AssistantTextDeltaEvent{Delta: msg.Delta})
	case ServerAudioDelta:
		pcm, err := audio.DecodeFrameBytes(msg.Delta)
		if err != nil {
			s.logger.Debug("dropping malformed audio delta", "error", err)
			return false
		}
		s.emit(AssistantAudioEvent{PCM: pcm})
	case ServerResponseCreated:
		// Turn text starts accumulating with the first delta.
	case ServerResponseDone:
		text := s.flushTurnText()
		s.emit(AssistantDoneEvent{Text: text, Status: msg.Response.Status})
	case ServerError:
		detail := msg.Error
		if detail.Code == CodeSessionExpired {
			s.logger.Warn("remote session expired, reconnecting", "message", detail.Message)
			s.clearTurnText()
			return true
		}
		s.clearTurnText()
		s.logger.Warn("remote session error", "code", detail.Code, "message", detail.Message)
		s.emit(SessionErrorEvent{
			Err:   &core.Error{Type: core.ErrTransport, Message: detail.Message, Code: detail.Code},
			Fatal: false,
		})
	case ServerUnknown:
		s.logger.Debug("ignoring unknown frame", "frame_type", msg.Type)
	}
	return false
}

// fail records a fatal error: the session goes Closed and will not retry.
func (s *Session) fail(err error) {
	s.logger.Error("realtime session failed", "error", err)
	s.mu.Lock()
	s.shouldRun = false
	conn := s.conn
	s.conn = nil
	s.setStateLocked(StateClosed)
	s.emitLocked(SessionErrorEvent{Err: err, Fatal: true})
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (s *Session) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shouldRun
}

func (s *Session) markClosed() {
	s.mu.Lock()
	s.shouldRun = false
	s.setStateLocked(StateClosed)
	s.mu.Unlock()
}

func (s *Session) setState(to State) {
	s.mu.Lock()
	s.setStateLocked(to)
	s.mu.Unlock()
}

func (s *Session) setStateLocked(to State) {
	if s.state == to {
		return
	}
	from := s.state
	s.state = to
	s.emitLocked(StateChangedEvent{From: from, To: to})
}

func (s *Session) emit(event Event) {
	s.mu.Lock()
	s.emitLocked(event)
	s.mu.Unlock()
}

func (s *Session) emitLocked(event Event) {
	if s.eventsClosed || event == nil {
		return
	}
	select {
	case s.events <- event:
	default:
		// Avoid deadlocking the read loop if the caller stops consuming.
	}
}

func (s *Session) closeEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eventsClosed {
		return
	}
	s.eventsClosed = true
	close(s.events)
}

func (s *Session) runDisposers() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	fns := s.disposers
	s.disposers = nil
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) appendTurnText(delta string) {
	s.mu.Lock()
	s.turnText.WriteString(delta)
	s.mu.Unlock()
}

func (s *Session) flushTurnText() string {
	s.mu.Lock()
	text := s.turnText.String()
	s.turnText.Reset()
	s.mu.Unlock()
	return strings.TrimSpace(text)
}

func (s *Session) clearTurnText() {
	s.mu.Lock()
	s.turnText.Reset()
	s.mu.Unlock()
}

func (s *Session) handshakeTimeout() time.Duration {
	if s.cfg.HandshakeTimeout > 0 {
		return s.cfg.HandshakeTimeout
	}
	return defaultHandshakeTimeout
}

func (s *Session) endpoint() string {
	u, err := url.Parse(strings.TrimSpace(s.cfg.URL))
	if err != nil {
		return s.cfg.URL
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if s.cfg.Model != "" {
		q := u.Query()
		if q.Get("model") == "" {
			q.Set("model", s.cfg.Model)
			u.RawQuery = q.Encode()
		}
	}
	return u.String()
}

// subprotocols carries authentication in the websocket subprotocol list,
// the only header-free channel available to browser-originated clients.
func subprotocols(token string) []string {
	return []string{
		"realtime",
		"openai-insecure-api-key." + token,
		"openai-beta.realtime-v1",
	}
}
