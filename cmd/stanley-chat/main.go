// Command stanley-chat is a terminal client for the Stanley's Cafeteria
// assistant. It talks to the Gemini API directly and supports text
// turns, transcript search, spoken replies and a live voice mode.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v9"

	"github.com/stanley-cafeteria/stanley-chat/chat"
	"github.com/stanley-cafeteria/stanley-chat/gemini"
	"github.com/stanley-cafeteria/stanley-chat/internal/dotenv"
	"github.com/stanley-cafeteria/stanley-chat/internal/logging"
)

type cliConfig struct {
	GeminiAPIKey string     `env:"GEMINI_API_KEY,required"`
	LogLevel     slog.Level `env:"STANLEY_LOG_LEVEL" envDefault:"warn"`

	// Optional fixed location for "nearby" queries; both must be set.
	Latitude  *float64 `env:"STANLEY_LATITUDE"`
	Longitude *float64 `env:"STANLEY_LONGITUDE"`
}

// staticLocator serves a fixed location from configuration.
type staticLocator struct {
	loc chat.Location
}

func (l staticLocator) Locate(context.Context) (chat.Location, error) {
	return l.loc, nil
}

var errExitRequested = errors.New("exit requested")

func run(ctx context.Context, in io.Reader, out, errOut io.Writer) error {
	if err := dotenv.Load(); err != nil {
		return err
	}

	var cfg cliConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	logger := slog.New(logging.NewHandler(errOut, &logging.Options{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	provider, err := gemini.New(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey, Logger: logger})
	if err != nil {
		return fmt.Errorf("init provider: %w", err)
	}

	opts := []chat.OrchestratorOption{chat.WithLogger(logger)}
	if cfg.Latitude != nil && cfg.Longitude != nil {
		opts = append(opts, chat.WithLocator(staticLocator{loc: chat.Location{
			Latitude:  *cfg.Latitude,
			Longitude: *cfg.Longitude,
		}}))
	}
	orchestrator := chat.NewOrchestrator(provider, opts...)

	fmt.Fprintln(out, "Stanley's Cafeteria")
	fmt.Fprintln(out, "Commands: /mode <standard|thinking|fast>, /search <query>, /say <text>, /voice, /exit")
	printMessage(out, orchestrator.Transcript().Messages()[0])

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "(%s)> ", strings.ToLower(string(orchestrator.Mode())))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			fmt.Fprintln(out)
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			err := handleCommand(ctx, line, orchestrator, scanner, out, errOut)
			if errors.Is(err, errExitRequested) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(errOut, "%v\n", err)
			}
			continue
		}

		msg, err := orchestrator.SubmitTurn(ctx, line, nil)
		if err != nil && !errors.Is(err, chat.ErrEmptyTurn) {
			logger.Debug("turn failed", logging.Err(err))
		}
		printMessage(out, msg)
	}
}

func handleCommand(ctx context.Context, line string, orchestrator *chat.Orchestrator, scanner *bufio.Scanner, out, errOut io.Writer) error {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/exit", "/quit":
		return errExitRequested

	case "/mode":
		switch strings.ToLower(arg) {
		case "standard":
			orchestrator.SetMode(chat.ModeStandard)
		case "thinking":
			orchestrator.SetMode(chat.ModeThinking)
		case "fast":
			orchestrator.SetMode(chat.ModeFast)
		default:
			return fmt.Errorf("unknown mode %q (standard, thinking, fast)", arg)
		}
		return nil

	case "/search":
		if arg == "" {
			return errors.New("usage: /search <query>")
		}
		result := orchestrator.Search(ctx, arg)
		fmt.Fprintf(out, "%d matching message(s)\n", len(result.Matches))
		for _, m := range result.Matches {
			fmt.Fprintf(out, "  [%s] %s\n", m.Author, m.TextContent())
		}
		fmt.Fprintf(out, "summary: %s\n", result.Summary)
		return nil

	case "/say":
		if arg == "" {
			return errors.New("usage: /say <text>")
		}
		audio, err := orchestrator.Speak(ctx, arg)
		if err != nil {
			return fmt.Errorf("synthesize speech: %w", err)
		}
		if len(audio) == 0 {
			fmt.Fprintln(out, "no audio available")
			return nil
		}
		return playOnce(audio)

	case "/voice":
		return runVoice(ctx, orchestrator, scanner, out, errOut)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// runVoice holds a live voice session open until the user presses enter.
func runVoice(ctx context.Context, orchestrator *chat.Orchestrator, scanner *bufio.Scanner, out, errOut io.Writer) error {
	mic, speaker, cleanup, err := initAudio()
	if err != nil {
		return err
	}
	defer cleanup()

	orchestrator.SetMode(chat.ModeVoice)
	controller := chat.NewLiveController(orchestrator.Capability(), orchestrator.Transcript(),
		chat.WithSink(speaker),
		chat.WithOnStop(func() { orchestrator.SetMode(chat.ModeStandard) }),
	)
	if err := controller.Start(ctx, mic); err != nil {
		orchestrator.SetMode(chat.ModeStandard)
		return fmt.Errorf("start voice session: %w", err)
	}
	defer controller.Stop()

	fmt.Fprintln(out, "voice session active, press enter to stop")
	if !scanner.Scan() {
		return scanner.Err()
	}
	return nil
}

// playOnce plays a single synthesized clip and tears the device down.
func playOnce(audio []byte) error {
	_, speaker, cleanup, err := initAudio()
	if err != nil {
		return err
	}
	defer cleanup()

	speaker.Play(audio)
	speaker.Drain()
	return nil
}

func printMessage(out io.Writer, msg chat.Message) {
	label := "stanley"
	switch msg.Author {
	case chat.AuthorUser:
		label = "you"
	case chat.AuthorSystem:
		label = "system"
	}
	fmt.Fprintf(out, "[%s] %s\n", label, msg.TextContent())

	for _, part := range msg.Parts {
		if part.Type != chat.PartGrounding {
			continue
		}
		for _, citation := range part.Citations {
			switch {
			case citation.Web != nil:
				fmt.Fprintf(out, "  source: %s (%s)\n", citation.Web.Title, citation.Web.URI)
			case citation.Place != nil:
				fmt.Fprintf(out, "  place: %s (%s)\n", citation.Place.Title, citation.Place.URI)
			}
		}
	}
}

func main() {
	if err := run(context.Background(), os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "stanley-chat: %v\n", err)
		os.Exit(1)
	}
}
