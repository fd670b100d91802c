package chathub

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deltaBatch(text string) []byte {
	return []byte(`{"type":1,"arguments":[{"messages":[{"text":"` + text + `"}]}]}` + frameDelimiter)
}

func finalBatch(text string) []byte {
	return []byte(`{"type":2,"item":{"messages":[{"text":"` + text + `"}]}}` + frameDelimiter)
}

// newTestSession bootstraps a session against a fake create endpoint and
// points its channel at a scripted websocket test server.
func newTestSession(t *testing.T, script func(conn *websocket.Conn), opts Options) *Session {
	t.Helper()

	opts.CreateURL = "http://bing.test/turing/conversation/create"
	opts.ChatHubURL = wsEndpoint(newChatHubServer(t, script))
	opts.HTTPClient = newBootstrapClient(func(req *http.Request) (*http.Response, error) {
		return newCreateResponse(req, http.StatusOK, goodCreateBody, goodCreateHeaders), nil
	})

	session, err := NewSession(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

// readAsk consumes one ask envelope and sanity-checks its shape.
func readAsk(t *testing.T, conn *websocket.Conn) bool {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return false
	}
	raw := string(data)
	if !strings.Contains(raw, `"target":"chat"`) || !strings.Contains(raw, `"type":4`) {
		t.Errorf("unexpected ask envelope: %s", raw)
		return false
	}
	return true
}

func TestSessionStreamsThenFinal(t *testing.T) {
	session := newTestSession(t, func(conn *websocket.Conn) {
		if !readAsk(t, conn) {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, deltaBatch("Hel"))
		_ = conn.WriteMessage(websocket.TextMessage, finalBatch("Hello!"))
	}, Options{})
	ctx := context.Background()

	require.NoError(t, session.Ask(ctx, "Hi"))
	assert.Equal(t, StateAwaitingResponse, session.State())

	events, err := session.NextEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, StreamDelta{Text: "Hel"}, events[0])

	events, err = session.NextEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, FinalAnswer{Text: "Hello!"}, events[0])
	assert.Equal(t, StateConnected, session.State())

	_, err = session.NextEvents(ctx)
	assert.ErrorIs(t, err, ErrEndOfResponse)
}

func TestSessionTurnDiscipline(t *testing.T) {
	session := newTestSession(t, func(conn *websocket.Conn) {
		readAsk(t, conn)
		// Never answer; the turn stays outstanding.
	}, Options{})
	ctx := context.Background()

	// Nothing outstanding yet.
	_, err := session.NextEvents(ctx)
	assert.ErrorIs(t, err, ErrEndOfResponse)

	require.NoError(t, session.Ask(ctx, "first"))
	assert.ErrorIs(t, session.Ask(ctx, "second"), ErrTurnOutstanding)
}

func TestSessionRejectsEmptyPrompt(t *testing.T) {
	session := newTestSession(t, nil, Options{})

	err := session.Ask(context.Background(), "   ")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTurnOutstanding)
}

func TestSessionCaptchaChallenge(t *testing.T) {
	session := newTestSession(t, func(conn *websocket.Conn) {
		if !readAsk(t, conn) {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":2,"item":{"result":{"value":"CaptchaChallenge"}}}`+frameDelimiter))
	}, Options{})
	ctx := context.Background()

	require.NoError(t, session.Ask(ctx, "Hi"))

	events, err := session.NextEvents(ctx)
	assert.ErrorIs(t, err, ErrChallengeRequired)
	assert.Empty(t, events)

	// The turn ended; the session stays usable.
	assert.Equal(t, StateConnected, session.State())
	_, err = session.NextEvents(ctx)
	assert.ErrorIs(t, err, ErrEndOfResponse)
}

func TestSessionThrottledAtMessageLimit(t *testing.T) {
	session := newTestSession(t, func(conn *websocket.Conn) {
		if !readAsk(t, conn) {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":2,"item":{"throttling":{"numUserMessagesInConversation":30,"maxNumUserMessagesInConversation":30},"messages":[{"text":"x"}]}}`+frameDelimiter))
	}, Options{})
	ctx := context.Background()

	require.NoError(t, session.Ask(ctx, "Hi"))

	_, err := session.NextEvents(ctx)
	assert.ErrorIs(t, err, ErrThrottled)
	assert.Equal(t, StateConnected, session.State())
}

func TestSessionDiscardsStaleFramesBetweenTurns(t *testing.T) {
	session := newTestSession(t, func(conn *websocket.Conn) {
		if !readAsk(t, conn) {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, finalBatch("one"))
		_ = conn.WriteMessage(websocket.TextMessage, deltaBatch("stale"))

		if !readAsk(t, conn) {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, finalBatch("two"))
	}, Options{})
	ctx := context.Background()

	require.NoError(t, session.Ask(ctx, "first"))

	// Let both frames arrive before consuming, so the stale one is queued
	// when the terminal event is classified.
	time.Sleep(300 * time.Millisecond)

	text, err := session.FinalResponse(ctx)
	require.NoError(t, err)
	assert.Equal(t, "one", text)

	require.NoError(t, session.Ask(ctx, "second"))
	text, err = session.FinalResponse(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", text)
}

func TestSessionCloseAfterResponse(t *testing.T) {
	// Each turn dials a fresh connection, so the script runs per connection.
	session := newTestSession(t, func(conn *websocket.Conn) {
		if !readAsk(t, conn) {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, finalBatch("bye"))
	}, Options{CloseAfterResponse: true})
	ctx := context.Background()

	require.NoError(t, session.Ask(ctx, "Hi"))
	text, err := session.FinalResponse(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bye", text)

	// The channel is gone; the next Ask negotiates a fresh one.
	assert.Equal(t, StateBootstrapped, session.State())

	require.NoError(t, session.Ask(ctx, "again"))
	text, err = session.FinalResponse(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bye", text)
}

func TestSessionAskAfterClose(t *testing.T) {
	session := newTestSession(t, nil, Options{})

	require.NoError(t, session.Close())
	assert.Equal(t, StateClosed, session.State())
	assert.ErrorIs(t, session.Ask(context.Background(), "Hi"), ErrNotConnected)
}

func TestSessionSuggestions(t *testing.T) {
	session := newTestSession(t, func(conn *websocket.Conn) {
		if !readAsk(t, conn) {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":2,"item":{"messages":[{"text":"Hello!","suggestedResponses":[{"text":"More?"}]}]}}`+frameDelimiter))
	}, Options{Suggestions: true})
	ctx := context.Background()

	require.NoError(t, session.Ask(ctx, "Hi"))

	events, err := session.NextEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, Suggestions{Prompts: []string{"More?"}}, events[0])
	assert.Equal(t, FinalAnswer{Text: "Hello!"}, events[1])
}

func TestSessionConversationID(t *testing.T) {
	session := newTestSession(t, nil, Options{})
	assert.Equal(t, "conv-1", session.ConversationID())
}
