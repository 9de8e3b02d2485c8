package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vango-go/voicenav/pkg/agent"
	"github.com/vango-go/voicenav/pkg/audio"
	"github.com/vango-go/voicenav/pkg/metrics"
	"github.com/vango-go/voicenav/pkg/realtime"
	"github.com/vango-go/voicenav/pkg/store"
)

// assistant routes finalized utterances through the safety gate into the
// agent loop and sends answers back out, spoken when a voice path exists.
type assistant struct {
	loop      *agent.Loop
	gate      *agent.Gate
	store     store.HistoryStore
	sessionID string

	// speak voices an answer through the realtime session. Nil in text
	// and transcription-only modes.
	speak   func(text string) error
	speaker *speaker

	metrics *metrics.Metrics
	logger  *slog.Logger
	out     io.Writer
	meter   levelMeter

	wg sync.WaitGroup
}

// Handle takes one utterance through gate and agent to an answer. It blocks
// until the task finishes; voice mode calls it on its own goroutine while a
// concurrent run is rejected by the loop's busy check.
func (a *assistant) Handle(ctx context.Context, utterance string) {
	outcome := a.gate.Check(utterance)
	a.metrics.RecordGateCheck(string(outcome.Decision))

	switch outcome.Decision {
	case agent.DecisionHold:
		a.respond(outcome.Prompt)
		return
	case agent.DecisionCancel:
		a.respond("Okay, I won't do that.")
		return
	}

	result, err := a.loop.Run(ctx, outcome.Command)
	switch {
	case errors.Is(err, agent.ErrBusy):
		a.respond("One moment, I'm still working on the previous task.")
	case err != nil:
		a.logger.Error("task failed", "error", err)
		a.respond("Sorry, I ran into a problem with that.")
	default:
		a.respond(result.Answer)
		a.persist(ctx)
	}
}

func (a *assistant) respond(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	fmt.Fprintf(a.out, "assistant: %s\n", text)
	if a.speak != nil {
		if err := a.speak(text); err != nil {
			a.logger.Warn("could not speak answer", "error", err)
		}
	}
}

func (a *assistant) persist(ctx context.Context) {
	if a.store == nil {
		return
	}
	if err := a.store.Save(ctx, a.sessionID, a.loop.History.Turns()); err != nil {
		a.logger.Warn("could not persist history", "error", err)
	}
}

// reset clears the dialogue and any held command, and persists the empty
// state so a restart does not resurrect it.
func (a *assistant) reset(ctx context.Context) {
	a.loop.History.Replace(nil)
	a.gate.Clear()
	a.persist(ctx)
}

// wait blocks until all in-flight command handlers have returned.
func (a *assistant) wait() {
	a.wg.Wait()
}

// drainEvents consumes session events until the channel closes. It returns
// the fatal session error, if any; a clean stop returns nil.
func (a *assistant) drainEvents(ctx context.Context, session *realtime.Session) error {
	a.metrics.RecordSessionStart()
	started := time.Now()
	status := "stopped"
	var fatal error

	for ev := range session.Events() {
		switch e := ev.(type) {
		case realtime.StateChangedEvent:
			a.logger.Info("session state", "from", e.From, "to", e.To)
			if e.To == realtime.StateReconnecting {
				a.metrics.RecordReconnect()
			}
		case realtime.SessionCreatedEvent:
			a.logger.Info("realtime session established", "id", e.ID)
		case realtime.SpeechStartedEvent:
			a.logger.Debug("user started speaking", "audio_start_ms", e.AudioStartMS)
		case realtime.TranscriptEvent:
			a.metrics.RecordTranscript()
			fmt.Fprintf(a.out, "you: %s\n", e.Text)
			command := e.Text
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				a.Handle(ctx, command)
			}()
		case realtime.AssistantAudioEvent:
			a.metrics.RecordAudio("out", len(e.PCM))
			a.playAudio(e.PCM)
		case realtime.AssistantDoneEvent:
			if e.Text != "" {
				fmt.Fprintf(a.out, "assistant: %s\n", e.Text)
			}
		case realtime.SessionErrorEvent:
			if e.Fatal {
				fatal = e.Err
				status = "fatal"
			} else {
				a.logger.Warn("session error", "error", e.Err)
			}
		}
	}

	a.metrics.RecordSessionEnd(status, time.Since(started))
	return fatal
}

func (a *assistant) playAudio(pcm []byte) {
	if a.speaker == nil {
		return
	}
	if err := a.speaker.Play(pcm); err != nil {
		a.logger.Warn("playback write failed", "error", err)
	}
	if rms, peak, ok := a.meter.sample(pcm); ok {
		a.logger.Debug("assistant audio level",
			"rms", fmt.Sprintf("%.3f", rms),
			"peak", fmt.Sprintf("%.3f", peak),
			"buffered", a.speaker.Buffered())
	}
}

// pumpMic reads capture frames and forwards them to the session. Frames
// arriving while the session is not active (reconnecting) are dropped.
func (a *assistant) pumpMic(ctx context.Context, mic io.Reader, session *realtime.Session, cfg audio.Config) {
	frame := make([]byte, cfg.FrameBytes())
	for ctx.Err() == nil {
		n, err := io.ReadFull(mic, frame)
		if n > 0 && session.State() == realtime.StateActive {
			if samples, decErr := audio.DecodePCM16(frame[:n]); decErr == nil {
				if sendErr := session.SendAudio(samples); sendErr == nil {
					a.metrics.RecordAudio("in", n)
				}
			}
		}
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				a.logger.Error("mic capture stopped", "error", err)
			}
			return
		}
	}
}
