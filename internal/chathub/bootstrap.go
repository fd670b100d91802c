package chathub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/codefionn/sydney/internal/logger"
)

const (
	defaultCreateURL  = "https://www.bing.com/turing/conversation/create"
	defaultChatHubURL = "wss://sydney.bing.com/sydney/ChatHub"

	bundleVersion = "1.1586.1"
	userAgent     = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	headerConversationSignature          = "X-Sydney-ConversationSignature"
	headerEncryptedConversationSignature = "X-Sydney-EncryptedConversationSignature"
)

// createResponse is the JSON body of the conversation-create endpoint.
type createResponse struct {
	ConversationID string        `json:"conversationId"`
	ClientID       string        `json:"clientId"`
	Result         *createResult `json:"result"`
}

type createResult struct {
	Value   string `json:"value"`
	Message string `json:"message"`
}

// identity holds everything the bootstrap handshake yields. The encrypted
// signature is a connection credential: it is only used to address the
// channel and must never be logged in full.
type identity struct {
	ClientID                       string
	ConversationID                 string
	ConversationSignature          string
	EncryptedConversationSignature string
}

// bootstrap performs the conversation-create handshake. It either returns a
// complete identity or fails; partial success is not possible.
func bootstrap(ctx context.Context, client *http.Client, createURL string) (*identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s?bundleVersion=%s", createURL, bundleVersion), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBootstrapFailed, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBootstrapFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrBootstrapFailed, resp.StatusCode)
	}

	var body createResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBootstrapFailed, err)
	}

	if body.Result == nil || body.Result.Value != "Success" {
		value := "missing"
		if body.Result != nil {
			value = body.Result.Value
		}
		return nil, fmt.Errorf("%w: create result %q", ErrBootstrapFailed, value)
	}
	if body.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client id", ErrBootstrapFailed)
	}
	if body.ConversationID == "" {
		return nil, fmt.Errorf("%w: missing conversation id", ErrBootstrapFailed)
	}

	signature := resp.Header.Get(headerConversationSignature)
	if signature == "" {
		return nil, fmt.Errorf("%w: missing %s header", ErrBootstrapFailed, headerConversationSignature)
	}
	encrypted := resp.Header.Get(headerEncryptedConversationSignature)
	if encrypted == "" {
		return nil, fmt.Errorf("%w: missing %s header", ErrBootstrapFailed, headerEncryptedConversationSignature)
	}

	logger.Debug("Client id: %s", body.ClientID)
	logger.Debug("Conversation id: %s", body.ConversationID)
	logger.Debug("Conversation signature: %s", signature)
	logger.Debug("Encrypted conversation signature: %s", logger.Redact(encrypted))

	return &identity{
		ClientID:                       body.ClientID,
		ConversationID:                 body.ConversationID,
		ConversationSignature:          signature,
		EncryptedConversationSignature: encrypted,
	}, nil
}
