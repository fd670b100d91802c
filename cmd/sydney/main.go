package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/codefionn/sydney/internal/chathub"
	"github.com/codefionn/sydney/internal/config"
	"github.com/codefionn/sydney/internal/logger"
	"golang.org/x/term"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	fs := flag.NewFlagSet("sydney", flag.ContinueOnError)
	toneFlag := fs.String("tone", "", "conversation tone: precise, creative or balanced")
	citations := fs.Bool("citations", false, "keep citation markers in the answer")
	suggestions := fs.Bool("suggestions", false, "print suggested follow-up prompts")
	keepOpen := fs.Bool("keep-open", false, "keep the channel open after the answer")
	stream := fs.Bool("stream", false, "print partial answers while the service is typing")
	plain := fs.Bool("plain", false, "print the raw answer without markdown rendering")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error, none")
	logPath := fs.String("log-path", "", "log file path")
	configPath := fs.String("config", config.GetConfigPath(), "config file path")

	if parseErr := fs.Parse(os.Args[1:]); parseErr != nil {
		if errors.Is(parseErr, flag.ErrHelp) {
			return nil
		}
		return parseErr
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *toneFlag != "" {
		cfg.Tone = *toneFlag
	}
	if *citations {
		cfg.Citations = true
	}
	if *suggestions {
		cfg.Suggestions = true
	}
	cfg.CloseAfterResponse = !*keepOpen
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logPath != "" {
		cfg.LogPath = *logPath
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()

	prompt, err := readPrompt(fs.Args())
	if err != nil {
		return err
	}

	tone, err := chathub.ParseTone(cfg.Tone)
	if err != nil {
		return err
	}

	ctx := context.Background()
	session, err := chathub.NewSession(ctx, chathub.Options{
		Tone:               tone,
		Citations:          cfg.Citations,
		Suggestions:        cfg.Suggestions,
		CloseAfterResponse: cfg.CloseAfterResponse,
		CreateURL:          cfg.CreateURL,
		ChatHubURL:         cfg.ChatHubURL,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	logger.Info("Conversation %s started (tone %s)", session.ConversationID(), tone)

	if err := session.Ask(ctx, prompt); err != nil {
		return err
	}

	return readAnswer(ctx, session, *stream, *plain)
}

// readPrompt takes the question from the remaining args, or from stdin when
// none are given.
func readPrompt(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("no prompt given (pass it as arguments or on stdin)")
	}
	return prompt, nil
}

// readAnswer drives the event loop for one turn and prints the result.
func readAnswer(ctx context.Context, session *chathub.Session, stream, plain bool) error {
	var finalText string
	var prompts []string

	for {
		events, err := session.NextEvents(ctx)
		if errors.Is(err, chathub.ErrEndOfResponse) {
			break
		}
		if err != nil {
			return err
		}

		for _, ev := range events {
			switch ev := ev.(type) {
			case chathub.StreamDelta:
				if stream {
					fmt.Fprintf(os.Stderr, "\r%d chars...", len(ev.Text))
				}
			case chathub.FinalAnswer:
				finalText = ev.Text
			case chathub.Suggestions:
				prompts = ev.Prompts
			}
		}
	}

	if stream {
		fmt.Fprint(os.Stderr, "\r")
	}
	if finalText == "" {
		return errors.New("no final answer received")
	}

	fmt.Println(renderAnswer(finalText, plain))

	for _, p := range prompts {
		fmt.Printf("  > %s\n", p)
	}
	return nil
}

// renderAnswer renders the markdown answer for a terminal, falling back to
// the raw text when rendering is disabled or stdout is not a TTY.
func renderAnswer(text string, plain bool) string {
	if plain || !term.IsTerminal(int(os.Stdout.Fd())) {
		return text
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		logger.Warn("Markdown renderer unavailable: %v", err)
		return text
	}

	rendered, err := renderer.Render(text)
	if err != nil {
		logger.Warn("Markdown rendering failed: %v", err)
		return text
	}
	return strings.TrimRight(rendered, "\n")
}
