// Command voicenav is a voice-controlled browsing assistant. It streams
// microphone audio to a realtime speech session, routes finalized
// transcripts through a safety gate into a tool-calling agent that drives
// a local Chrome instance, and speaks the agent's answers back.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vango-go/voicenav/pkg/agent"
	"github.com/vango-go/voicenav/pkg/agent/tools"
	"github.com/vango-go/voicenav/pkg/browser"
	"github.com/vango-go/voicenav/pkg/core/providers/openai"
	"github.com/vango-go/voicenav/pkg/metrics"
	"github.com/vango-go/voicenav/pkg/store"
)

const (
	defaultChatModel     = openai.DefaultModel
	defaultRealtimeModel = "gpt-4o-realtime-preview"
	defaultRealtimeURL   = "wss://api.openai.com/v1/realtime"
	defaultVoice         = "alloy"
	defaultSessionID     = "default"
)

type config struct {
	APIKey            string
	ChatModel         string
	RealtimeModel     string
	RealtimeURL       string
	Voice             string
	TranscriptionOnly bool
	TextOnly          bool
	StartURL          string
	SessionID         string
	PostgresDSN       string
	MetricsAddr       string
	Headful           bool
	NoSandbox         bool
	MaxSteps          int
	Debug             bool
}

func parseConfig(args []string, getenv func(string) string) (config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	env := func(name, fallback string) string {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			return v
		}
		return fallback
	}

	cfg := config{}
	fs := flag.NewFlagSet("voicenav", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ChatModel, "chat-model", env("VOICENAV_CHAT_MODEL", defaultChatModel), "chat model driving the browser agent")
	fs.StringVar(&cfg.RealtimeModel, "realtime-model", env("VOICENAV_REALTIME_MODEL", defaultRealtimeModel), "realtime model handling speech")
	fs.StringVar(&cfg.RealtimeURL, "realtime-url", env("VOICENAV_REALTIME_URL", defaultRealtimeURL), "realtime websocket endpoint")
	fs.StringVar(&cfg.Voice, "voice", env("VOICENAV_VOICE", defaultVoice), "assistant voice")
	fs.BoolVar(&cfg.TranscriptionOnly, "transcribe-only", false, "use the realtime channel only to transcribe; answers are printed, not spoken")
	fs.BoolVar(&cfg.TextOnly, "text", false, "type commands instead of speaking (no realtime session)")
	fs.StringVar(&cfg.StartURL, "start-url", env("VOICENAV_START_URL", ""), "page to open on startup")
	fs.StringVar(&cfg.SessionID, "session", env("VOICENAV_SESSION_ID", defaultSessionID), "conversation id used for persisted history")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", env("VOICENAV_METRICS_ADDR", ""), "optional listen address for /metrics")
	fs.BoolVar(&cfg.Headful, "headful", false, "run the browser with a visible window")
	fs.BoolVar(&cfg.NoSandbox, "no-sandbox", false, "disable the Chrome sandbox (needed when running as root)")
	fs.IntVar(&cfg.MaxSteps, "max-steps", 0, "model request ceiling per task (0 uses the built-in default)")
	fs.BoolVar(&cfg.Debug, "debug", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	cfg.APIKey = strings.TrimSpace(getenv("OPENAI_API_KEY"))
	cfg.PostgresDSN = strings.TrimSpace(getenv("VOICENAV_POSTGRES_DSN"))

	if err := validateConfig(cfg); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg config) error {
	if cfg.APIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.ChatModel) == "" {
		return errors.New("chat-model must not be empty")
	}
	if !cfg.TextOnly {
		if strings.TrimSpace(cfg.RealtimeModel) == "" {
			return errors.New("realtime-model must not be empty")
		}
		if strings.TrimSpace(cfg.RealtimeURL) == "" {
			return errors.New("realtime-url must not be empty")
		}
	}
	if cfg.TextOnly && cfg.TranscriptionOnly {
		return errors.New("transcribe-only has no effect with -text")
	}
	if cfg.MaxSteps < 0 {
		return errors.New("max-steps must be >= 0")
	}
	if strings.TrimSpace(cfg.SessionID) == "" {
		return errors.New("session must not be empty")
	}
	return nil
}

func run(ctx context.Context, cfg config, in io.Reader, out, errOut io.Writer) error {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	m := metrics.NewMetrics("voicenav")
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	var hist store.HistoryStore
	if cfg.PostgresDSN != "" {
		pg, err := store.NewPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer pg.Close()
		hist = pg
	} else {
		hist = store.NewMemoryStore()
	}

	provider, err := openai.New(cfg.APIKey, openai.WithModel(cfg.ChatModel))
	if err != nil {
		return err
	}

	chrome, err := browser.NewChrome(ctx, browser.ChromeOptions{
		Headful:   cfg.Headful,
		NoSandbox: cfg.NoSandbox,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer chrome.Close()

	if cfg.StartURL != "" {
		if err := chrome.Navigate(ctx, cfg.StartURL); err != nil {
			return fmt.Errorf("open start page: %w", err)
		}
	}

	history := agent.NewHistory(0)
	if turns, err := hist.Load(ctx, cfg.SessionID); err != nil {
		logger.Warn("could not load saved history", "error", err)
	} else if len(turns) > 0 {
		history.Replace(turns)
		logger.Info("restored conversation history", "turns", len(turns))
	}

	loop := &agent.Loop{
		Provider: provider,
		Tools:    tools.NewBrowserRegistry(chrome),
		Page:     chrome,
		History:  history,
		Model:    cfg.ChatModel,
		MaxSteps: cfg.MaxSteps,
		Logger:   logger,
		Metrics:  m,
	}

	a := &assistant{
		loop:      loop,
		gate:      agent.NewGate(),
		store:     hist,
		sessionID: cfg.SessionID,
		metrics:   m,
		logger:    logger,
		out:       out,
	}

	if cfg.TextOnly {
		return runText(ctx, a, in, out)
	}
	return runVoice(ctx, cfg, a, logger)
}

// runText is the typed fallback: same gate and agent, commands read from
// stdin instead of the realtime session.
func runText(ctx context.Context, a *assistant, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "voicenav ready. Type a command, /reset to clear history, /exit to quit.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read command: %w", err)
			}
			fmt.Fprintln(out)
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch line {
		case "/exit", "/quit":
			return nil
		case "/reset":
			a.reset(ctx)
			fmt.Fprintln(out, "history cleared")
			continue
		}

		a.Handle(ctx, line)
	}
}

func main() {
	_ = godotenv.Load()

	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicenav: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "voicenav: %v\n", err)
		os.Exit(1)
	}
}
