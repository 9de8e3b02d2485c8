package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/vango-go/voicenav/pkg/audio"
	"github.com/vango-go/voicenav/pkg/core"
	"github.com/vango-go/voicenav/pkg/realtime"
)

// runVoice connects the realtime session and wires microphone capture and
// speaker playback around it. It returns when the session shuts down: nil
// after a user-initiated stop, the fatal error otherwise.
func runVoice(ctx context.Context, cfg config, a *assistant, logger *slog.Logger) error {
	scfg := realtime.DefaultSessionConfig()
	if cfg.TranscriptionOnly {
		scfg = realtime.TranscriptionOnlyConfig()
	} else {
		scfg.Voice = cfg.Voice
	}
	scfg.URL = cfg.RealtimeURL
	scfg.Model = cfg.RealtimeModel

	mic, err := newMicCapture(scfg.Audio)
	if err != nil {
		return err
	}
	defer mic.Close()

	opts := []realtime.SessionOption{realtime.WithLogger(logger)}
	if !cfg.TranscriptionOnly {
		spk, err := newSpeaker(scfg.Audio)
		if err != nil {
			return err
		}
		defer spk.Close()
		opts = append(opts, realtime.WithPlayback(spk))
		a.speaker = spk
	}

	session := realtime.NewSession(scfg, core.StaticCredential(cfg.APIKey), opts...)
	if !cfg.TranscriptionOnly {
		a.speak = session.Speak
	}

	if err := session.Start(ctx); err != nil {
		return err
	}
	go func() {
		select {
		case <-ctx.Done():
			session.Stop()
		case <-session.Done():
		}
	}()

	go a.pumpMic(ctx, mic, session, scfg.Audio)

	fmt.Fprintln(a.out, "voicenav listening. Speak a command; Ctrl-C to quit.")
	err = a.drainEvents(ctx, session)
	a.wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// levelMeter rate-limits audio level reporting so debug logs show a meter
// reading instead of one line per chunk.
type levelMeter struct {
	last time.Time
}

const meterInterval = 500 * time.Millisecond

func (m *levelMeter) sample(pcm []byte) (rms, peak float64, ok bool) {
	now := time.Now()
	if now.Sub(m.last) < meterInterval {
		return 0, 0, false
	}
	m.last = now
	return audio.RMSEnergy(pcm), audio.PeakAmplitude(pcm), true
}

// micCapture reads mono 16-bit PCM from an ffmpeg child process attached
// to the platform's default input device.
type micCapture struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

func newMicCapture(cfg audio.Config) (*micCapture, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, errors.New("ffmpeg is required for voice input (install it or run with -text)")
	}
	args, err := micArgs(runtime.GOOS, cfg.SampleRateHz)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg mic capture: %w", err)
	}
	return &micCapture{cmd: cmd, stdout: stdout}, nil
}

func micArgs(goos string, sampleRateHz int) ([]string, error) {
	switch goos {
	case "darwin":
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "avfoundation", "-i", ":0",
			"-ac", "1", "-ar", fmt.Sprintf("%d", sampleRateHz),
			"-f", "s16le", "-",
		}, nil
	case "linux":
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "pulse", "-i", "default",
			"-ac", "1", "-ar", fmt.Sprintf("%d", sampleRateHz),
			"-f", "s16le", "-",
		}, nil
	default:
		return nil, fmt.Errorf("voice input is not implemented for %s; supported platforms: darwin, linux", goos)
	}
}

func (m *micCapture) Read(p []byte) (int, error) {
	if m == nil || m.stdout == nil {
		return 0, io.EOF
	}
	return m.stdout.Read(p)
}

func (m *micCapture) Close() error {
	if m == nil {
		return nil
	}
	if m.cmd != nil && m.cmd.Process != nil {
		_ = m.cmd.Process.Kill()
		_ = m.cmd.Wait()
	}
	return nil
}

// speaker plays decoded assistant audio through ffplay while a Scheduler
// tracks how far ahead of the clock the stream is buffered. Interrupt
// implements barge-in: the schedule cursor resets and the pipe restarts so
// still-buffered audio is dropped.
type speaker struct {
	player   *pcmPlayer
	schedule *audio.Scheduler
	cfg      audio.Config
}

func newSpeaker(cfg audio.Config) (*speaker, error) {
	player, err := newPCMPlayer(cfg.SampleRateHz)
	if err != nil {
		return nil, err
	}
	return &speaker{player: player, schedule: audio.NewScheduler(), cfg: cfg}, nil
}

func (s *speaker) Play(pcm []byte) error {
	s.schedule.Schedule(s.cfg.PCMDuration(len(pcm)))
	return s.player.Write(pcm)
}

// Interrupt implements realtime.Interrupter.
func (s *speaker) Interrupt() time.Duration {
	truncated := s.schedule.Interrupt()
	_ = s.player.Reset()
	return truncated
}

func (s *speaker) Buffered() time.Duration {
	return s.schedule.Buffered()
}

func (s *speaker) Close() error {
	return s.player.Close()
}

// pcmPlayer streams raw PCM into an ffplay child process. Reset kills and
// restarts the process, which is the only reliable way to drop audio that
// ffplay has already buffered.
type pcmPlayer struct {
	mu           sync.Mutex
	sampleRateHz int
	cmd          *exec.Cmd
	stdin        io.WriteCloser
}

func newPCMPlayer(sampleRateHz int) (*pcmPlayer, error) {
	if _, err := exec.LookPath("ffplay"); err != nil {
		return nil, errors.New("ffplay is required for spoken answers (install ffmpeg/ffplay, or run with -transcribe-only)")
	}
	player := &pcmPlayer{sampleRateHz: sampleRateHz}
	if err := player.startLocked(); err != nil {
		return nil, err
	}
	return player, nil
}

func (p *pcmPlayer) startLocked() error {
	p.cmd = exec.Command("ffplay",
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", p.sampleRateHz),
		"-ac", "1",
		"-i", "pipe:0",
	)
	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open ffplay stdin: %w", err)
	}
	p.cmd.Stdout = io.Discard
	p.cmd.Stderr = io.Discard
	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("start ffplay: %w", err)
	}
	p.stdin = stdin
	return nil
}

func (p *pcmPlayer) Write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdin == nil {
		return errors.New("ffplay stdin is not initialized")
	}
	_, err := p.stdin.Write(data)
	return err
}

func (p *pcmPlayer) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
		_ = p.cmd.Wait()
	}
	p.stdin = nil
	return p.startLocked()
}

func (p *pcmPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
		_ = p.cmd.Wait()
	}
	p.stdin = nil
	return nil
}
