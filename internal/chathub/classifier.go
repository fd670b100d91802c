package chathub

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Inbound frame discriminants. Anything else is skipped for forward
// compatibility with unrecognized server notifications.
const (
	frameTypeUpdate = 1
	frameTypeFinal  = 2
)

const resultCaptchaChallenge = "CaptchaChallenge"

// Typed wire shapes for inbound frames. Decoding into these makes field
// absence an explicit case instead of a runtime guess while chasing nested
// optional fields.

type frameProbe struct {
	Type *int `json:"type"`
}

type updateFrame struct {
	Arguments []updateArgument `json:"arguments"`
}

type updateArgument struct {
	// nil when the frame carries no content (a bare status ping).
	Messages []wireMessage `json:"messages"`
}

type finalFrame struct {
	Item *finalItem `json:"item"`
}

type finalItem struct {
	// nil when absent; an empty-but-present list violates the protocol.
	Messages   []wireMessage   `json:"messages"`
	Result     *wireResult     `json:"result"`
	Throttling *throttlingInfo `json:"throttling"`
}

type wireResult struct {
	Value string `json:"value"`
}

type throttlingInfo struct {
	NumUserMessages    int64  `json:"numUserMessagesInConversation"`
	MaxNumUserMessages *int64 `json:"maxNumUserMessagesInConversation"`
}

type wireMessage struct {
	Text               *string         `json:"text"`
	AdaptiveCards      []adaptiveCard  `json:"adaptiveCards"`
	SuggestedResponses []wireSuggested `json:"suggestedResponses"`
}

type wireSuggested struct {
	Text string `json:"text"`
}

type adaptiveCard struct {
	Body []cardBlock `json:"body"`
}

type cardBlock struct {
	Text *string `json:"text"`
	// Present only on citation-marker blocks ("searching the web" notices
	// and trailing citations-only cards); the content is irrelevant.
	Inlines json.RawMessage `json:"inlines"`
}

// classifier turns raw inbound batches into ordered events. The toggles
// mirror the session options: citations switches text extraction to the
// adaptive-card body, suggestions enables follow-up prompt events.
type classifier struct {
	citations   bool
	suggestions bool
}

// classifyBatch splits one raw batch on the frame delimiter, decodes each
// document, and returns the events it produced plus whether the turn ended.
// Segments after the first terminal segment are not processed. Service-side
// terminal failures (throttling, captcha) are returned as errors; they end
// the turn like a final answer does.
func (c *classifier) classifyBatch(raw string) ([]Event, bool, error) {
	var events []Event

	for _, segment := range splitBatch(raw) {
		var probe frameProbe
		if err := json.Unmarshal([]byte(segment), &probe); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if probe.Type == nil {
			return nil, false, fmt.Errorf("%w: missing type discriminant", ErrMalformedFrame)
		}

		switch *probe.Type {
		case frameTypeUpdate:
			ev, err := c.classifyUpdate(segment)
			if err != nil {
				return nil, false, err
			}
			if ev != nil {
				events = append(events, ev)
			}

		case frameTypeFinal:
			finalEvents, err := c.classifyFinal(segment)
			if err != nil {
				return events, true, err
			}
			return append(events, finalEvents...), true, nil

		default:
			// Unrecognized notification; skip.
		}
	}

	return events, false, nil
}

// classifyUpdate handles a type-1 (incremental) document. It returns nil with
// no error for segments that carry nothing worth surfacing.
func (c *classifier) classifyUpdate(segment string) (Event, error) {
	var frame updateFrame
	if err := json.Unmarshal([]byte(segment), &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	if len(frame.Arguments) == 0 || frame.Arguments[0].Messages == nil {
		// Bare status ping, no content.
		return nil, nil
	}
	messages := frame.Arguments[0].Messages
	if len(messages) == 0 {
		return nil, nil
	}
	msg := messages[0]

	if len(msg.AdaptiveCards) > 0 {
		// A leading inline-citations block marks a transient "searching the
		// web" notice; it is never shown to the caller.
		if cardStartsWithInlines(msg.AdaptiveCards[0]) {
			return nil, nil
		}
		if c.citations {
			text, err := cardText(msg.AdaptiveCards[0])
			if err != nil {
				return nil, err
			}
			return StreamDelta{Text: text}, nil
		}
	}

	if !c.citations && msg.Text != nil {
		return StreamDelta{Text: *msg.Text}, nil
	}
	return nil, nil
}

// classifyFinal handles a type-2 (terminal) document. Its result always ends
// the turn, either with events or with a terminal error.
func (c *classifier) classifyFinal(segment string) ([]Event, error) {
	var frame finalFrame
	if err := json.Unmarshal([]byte(segment), &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if frame.Item == nil {
		return nil, fmt.Errorf("%w: final frame without item", ErrMalformedFrame)
	}
	item := frame.Item

	if item.Throttling != nil {
		if item.Throttling.MaxNumUserMessages == nil {
			return nil, fmt.Errorf("%w: throttling record without max message count", ErrMalformedFrame)
		}
		if item.Throttling.NumUserMessages == *item.Throttling.MaxNumUserMessages {
			return nil, fmt.Errorf("%w (%d/%d)", ErrThrottled,
				item.Throttling.NumUserMessages, *item.Throttling.MaxNumUserMessages)
		}
	}

	if item.Messages == nil {
		if item.Result == nil {
			return nil, fmt.Errorf("%w: final frame without messages or result", ErrMalformedFrame)
		}
		if item.Result.Value == resultCaptchaChallenge {
			return nil, ErrChallengeRequired
		}
		return nil, fmt.Errorf("%w (result %q)", ErrThrottlingError, item.Result.Value)
	}
	if len(item.Messages) == 0 {
		return nil, fmt.Errorf("%w: final frame with empty message list", ErrMalformedFrame)
	}

	// The answer is the last message, unless a trailing citations-only card
	// follows it; then the true answer is the one before.
	idx := len(item.Messages) - 1
	last := item.Messages[idx]
	if len(last.AdaptiveCards) > 0 && cardStartsWithInlines(last.AdaptiveCards[len(last.AdaptiveCards)-1]) {
		idx--
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: no answer message before trailing citations card", ErrMalformedFrame)
	}
	msg := item.Messages[idx]

	var events []Event
	if c.suggestions && msg.SuggestedResponses != nil {
		prompts := make([]string, 0, len(msg.SuggestedResponses))
		for _, sr := range msg.SuggestedResponses {
			if sr.Text != "" {
				prompts = append(prompts, sr.Text)
			}
		}
		events = append(events, Suggestions{Prompts: prompts})
	}

	if c.citations {
		if len(msg.AdaptiveCards) == 0 {
			return nil, fmt.Errorf("%w: answer message without adaptive cards", ErrMalformedFrame)
		}
		text, err := cardText(msg.AdaptiveCards[0])
		if err != nil {
			return nil, err
		}
		events = append(events, FinalAnswer{Text: text})
	} else if msg.Text != nil {
		events = append(events, FinalAnswer{Text: *msg.Text})
	}

	return events, nil
}

// cardStartsWithInlines reports whether the card's first body block is an
// inline-citations marker.
func cardStartsWithInlines(card adaptiveCard) bool {
	return len(card.Body) > 0 && card.Body[0].Inlines != nil
}

// cardText extracts the card body's text, falling back to the second body
// block when the first lacks a text field.
func cardText(card adaptiveCard) (string, error) {
	if len(card.Body) > 0 && card.Body[0].Text != nil {
		return *card.Body[0].Text, nil
	}
	if len(card.Body) > 1 && card.Body[1].Text != nil {
		return *card.Body[1].Text, nil
	}
	return "", fmt.Errorf("%w: adaptive card body without text", ErrMalformedFrame)
}

// splitBatch splits a raw inbound batch on the frame delimiter, discarding
// empty segments.
func splitBatch(raw string) []string {
	parts := strings.Split(raw, frameDelimiter)
	segments := parts[:0]
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}
