package chathub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/codefionn/sydney/internal/logger"
	"golang.org/x/net/publicsuffix"
)

// State represents the session's position in the request/response cycle.
type State int

const (
	// StateBootstrapped means the identity exists but no channel is open yet.
	StateBootstrapped State = iota
	// StateConnected means the channel is open and no turn is outstanding.
	StateConnected
	// StateAwaitingResponse means a question was sent and its terminal event
	// has not arrived yet.
	StateAwaitingResponse
	// StateClosed is terminal; the session cannot be used again.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateBootstrapped:
		return "bootstrapped"
	case StateConnected:
		return "connected"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options configures a session. The zero value is usable: Balanced tone,
// plain-text answers, no suggestions, channel kept open between turns.
type Options struct {
	// Tone selects the conversation style.
	Tone Tone
	// Citations extracts answer text from the rich-card body instead of the
	// plain text field, keeping citation markers.
	Citations bool
	// Suggestions surfaces follow-up prompts attached to the final answer.
	Suggestions bool
	// CloseAfterResponse tears the channel down after each terminal event.
	// The next Ask dials and negotiates a fresh channel.
	CloseAfterResponse bool

	// CreateURL and ChatHubURL override the service endpoints, mainly for
	// tests. Empty means the production endpoints.
	CreateURL  string
	ChatHubURL string

	// HTTPClient overrides the bootstrap HTTP client. Empty means a
	// cookie-jar-enabled client with the fixed browser user agent.
	HTTPClient *http.Client
}

// Session is one logical conversation with the chat service. It owns the
// channel, tracks the turn counter, and enforces the one-outstanding-turn
// discipline. A Session is not safe for concurrent use; the protocol itself
// is strictly request/response.
type Session struct {
	opts Options

	id           *identity
	invocationID int64
	state        State

	transport *Transport
	classify  classifier

	// dial is swapped out by tests.
	dial func(ctx context.Context, wsURL string) (*Transport, error)
}

// NewSession performs the bootstrap handshake and returns a ready session.
// The channel itself is opened lazily by the first Ask. Bootstrap is atomic:
// on any failure no session exists.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	client := opts.HTTPClient
	if client == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("%w: cookie jar: %v", ErrBootstrapFailed, err)
		}
		client = &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		}
	}

	createURL := opts.CreateURL
	if createURL == "" {
		createURL = defaultCreateURL
	}

	id, err := bootstrap(ctx, client, createURL)
	if err != nil {
		return nil, err
	}

	return &Session{
		opts:  opts,
		id:    id,
		state: StateBootstrapped,
		classify: classifier{
			citations:   opts.Citations,
			suggestions: opts.Suggestions,
		},
		dial: Dial,
	}, nil
}

// ConversationID returns the opaque conversation identifier.
func (s *Session) ConversationID() string {
	return s.id.ConversationID
}

// State returns the session's current state.
func (s *Session) State() State {
	return s.state
}

// Ask sends one question. At most one question may be outstanding; a second
// Ask before the terminal event fails with ErrTurnOutstanding. The channel
// is dialed and negotiated lazily if it is not open.
func (s *Session) Ask(ctx context.Context, prompt string) error {
	switch s.state {
	case StateAwaitingResponse:
		return ErrTurnOutstanding
	case StateClosed:
		return ErrNotConnected
	}
	if strings.TrimSpace(prompt) == "" {
		return errors.New("prompt cannot be empty")
	}

	if s.transport == nil {
		if err := s.connect(ctx); err != nil {
			return err
		}
	}

	envelope := buildAskEnvelope(prompt, s.invocationID, s.opts.Tone,
		s.id.ConversationSignature, s.id.ClientID, s.id.ConversationID)
	if err := s.transport.Send(envelope); err != nil {
		return err
	}

	s.invocationID++
	s.state = StateAwaitingResponse
	return nil
}

// NextEvents pulls the next raw batch from the channel and classifies it.
// When no turn is outstanding it fails with ErrEndOfResponse; callers treat
// that as normal loop termination. Service-side terminal conditions
// (ErrThrottled, ErrChallengeRequired, ErrThrottlingError) end the turn but
// leave the session usable.
func (s *Session) NextEvents(ctx context.Context) ([]Event, error) {
	if s.state != StateAwaitingResponse {
		return nil, ErrEndOfResponse
	}
	if s.transport == nil {
		return nil, ErrNotConnected
	}

	raw, err := s.transport.ReceiveNextBatch(ctx)
	if err != nil {
		if errors.Is(err, ErrConnectionClosed) {
			s.teardown()
		}
		return nil, err
	}

	events, done, err := s.classify.classifyBatch(raw)
	if err != nil {
		if isTerminalServiceError(err) {
			s.finishTurn()
		}
		return events, err
	}
	if done {
		s.finishTurn()
	}
	return events, nil
}

// FinalResponse asks nothing itself; it reads events for the outstanding
// turn until the final answer arrives and returns its text.
func (s *Session) FinalResponse(ctx context.Context) (string, error) {
	for {
		events, err := s.NextEvents(ctx)
		if errors.Is(err, ErrEndOfResponse) {
			return "", errors.New("no final answer in response")
		}
		if err != nil {
			return "", err
		}
		for _, ev := range events {
			if final, ok := ev.(FinalAnswer); ok {
				return final.Text, nil
			}
		}
	}
}

// Close tears the channel down and makes the session unusable. Idempotent.
func (s *Session) Close() error {
	s.teardown()
	return nil
}

// connect opens and negotiates a fresh channel for this session.
func (s *Session) connect(ctx context.Context) error {
	hubURL := s.opts.ChatHubURL
	if hubURL == "" {
		hubURL = defaultChatHubURL
	}
	wsURL := hubURL + "?sec_access_token=" + url.QueryEscape(s.id.EncryptedConversationSignature)

	transport, err := s.dial(ctx, wsURL)
	if err != nil {
		return err
	}
	s.transport = transport
	s.state = StateConnected
	return nil
}

// finishTurn runs after every terminal event. Already-queued batches belong
// to the finished turn and are discarded, unless the channel is being torn
// down anyway.
func (s *Session) finishTurn() {
	if s.opts.CloseAfterResponse {
		if s.transport != nil {
			_ = s.transport.Close()
			s.transport = nil
		}
		logger.Debug("Channel closed after response")
		s.state = StateBootstrapped
		return
	}
	if s.transport != nil {
		s.transport.Drain()
	}
	s.state = StateConnected
}

func (s *Session) teardown() {
	if s.transport != nil {
		_ = s.transport.Close()
		s.transport = nil
	}
	s.state = StateClosed
}

func isTerminalServiceError(err error) bool {
	return errors.Is(err, ErrThrottled) ||
		errors.Is(err, ErrChallengeRequired) ||
		errors.Is(err, ErrThrottlingError)
}
