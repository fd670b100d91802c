package chathub

import (
	"fmt"
	"strconv"
	"strings"
)

// Tone selects the conversation style. It controls which feature tokens are
// attached to every outbound envelope.
type Tone int

const (
	// ToneBalanced is the default conversation style.
	ToneBalanced Tone = iota
	// TonePrecise favors short, factual answers.
	TonePrecise
	// ToneCreative favors longer, generative answers.
	ToneCreative
)

func (t Tone) String() string {
	switch t {
	case TonePrecise:
		return "Precise"
	case ToneCreative:
		return "Creative"
	case ToneBalanced:
		return "Balanced"
	default:
		return "Balanced"
	}
}

// ParseTone parses a tone name, case-insensitively.
func ParseTone(s string) (Tone, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "precise":
		return TonePrecise, nil
	case "creative":
		return ToneCreative, nil
	case "balanced", "":
		return ToneBalanced, nil
	default:
		return ToneBalanced, fmt.Errorf("unknown tone %q", s)
	}
}

// optionsSets returns the tone-specific feature tokens.
func (t Tone) optionsSets() []string {
	switch t {
	case TonePrecise:
		return []string{"h3precise", "clgalileo"}
	case ToneCreative:
		return []string{"h3imaginative", "clgalileo", "gencontentv3"}
	default:
		return []string{"galileo"}
	}
}

// baseOptionsSets is attached to every ask envelope regardless of tone.
var baseOptionsSets = []string{
	"nlu_direct_response_filter",
	"deepleo",
	"disable_emoji_spoken_text",
	"responsible_ai_policy_235",
	"enablemm",
	"dv3sugg",
	"iyxapbing",
	"iycapbing",
	"saharagenconv5",
	"eredirecturl",
}

// allowedMessageTypes is the fixed allow-list of message categories the
// client accepts from the service.
var allowedMessageTypes = []string{
	"Chat",
	"ActionRequest",
	"AdsQuery",
	"ConfirmationCard",
	"Context",
	"Disengaged",
	"InternalLoaderMessage",
	"InternalSearchQuery",
	"InternalSearchResult",
	"InvokeAction",
	"Progress",
	"RenderCardRequest",
	"RenderContentRequest",
	"SemanticSerp",
	"GenerateContentQuery",
	"SearchQuery",
}

var conversationHistoryOptionsSets = []string{
	"autosave",
	"savemem",
	"uprofupd",
	"uprofgen",
}

// askEnvelope is the outbound wire shape for one question. The outer Type is
// always 4 and Target is always "chat".
type askEnvelope struct {
	Arguments    []askArgument `json:"arguments"`
	InvocationID string        `json:"invocationId"`
	Target       string        `json:"target"`
	Type         int           `json:"type"`
}

type askArgument struct {
	Source                         string         `json:"source"`
	OptionsSets                    []string       `json:"optionsSets"`
	AllowedMessageTypes            []string       `json:"allowedMessageTypes"`
	SliceIDs                       []string       `json:"sliceIds"`
	Verbosity                      string         `json:"verbosity"`
	Scenario                       string         `json:"scenario"`
	Plugins                        []string       `json:"plugins"`
	ConversationHistoryOptionsSets []string       `json:"conversationHistoryOptionsSets"`
	IsStartOfSession               bool           `json:"isStartOfSession"`
	Message                        askMessage     `json:"message"`
	ConversationSignature          string         `json:"conversationSignature"`
	Participant                    askParticipant `json:"participant"`
	Tone                           string         `json:"tone"`
	SpokenTextMode                 string         `json:"spokenTextMode"`
	ConversationID                 string         `json:"conversationId"`
}

type askMessage struct {
	Author           string  `json:"author"`
	InputMethod      string  `json:"inputMethod"`
	Text             string  `json:"text"`
	MessageType      string  `json:"messageType"`
	ImageURL         *string `json:"imageUrl"`
	OriginalImageURL *string `json:"originalImageUrl"`
}

type askParticipant struct {
	ID string `json:"id"`
}

// buildAskEnvelope renders one question into its wire document. It is pure:
// the same inputs always produce the same envelope. The prompt must be
// non-empty; the caller enforces that precondition.
func buildAskEnvelope(prompt string, invocationID int64, tone Tone, conversationSignature, clientID, conversationID string) *askEnvelope {
	optionsSets := make([]string, 0, len(baseOptionsSets)+3)
	optionsSets = append(optionsSets, baseOptionsSets...)
	optionsSets = append(optionsSets, tone.optionsSets()...)

	return &askEnvelope{
		Arguments: []askArgument{
			{
				Source:                         "cib",
				OptionsSets:                    optionsSets,
				AllowedMessageTypes:            allowedMessageTypes,
				SliceIDs:                       []string{},
				Verbosity:                      "verbose",
				Scenario:                       "SERP",
				Plugins:                        []string{},
				ConversationHistoryOptionsSets: conversationHistoryOptionsSets,
				IsStartOfSession:               invocationID == 0,
				Message: askMessage{
					Author:      "user",
					InputMethod: "Keyboard",
					Text:        prompt,
					MessageType: "Chat",
				},
				ConversationSignature: conversationSignature,
				Participant:           askParticipant{ID: clientID},
				Tone:                  tone.String(),
				SpokenTextMode:        "None",
				ConversationID:        conversationID,
			},
		},
		InvocationID: strconv.FormatInt(invocationID, 10),
		Target:       "chat",
		Type:         4,
	}
}
