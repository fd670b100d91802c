package chathub

// Event is one classified unit of the server's streamed reply.
type Event interface {
	isEvent()
}

// StreamDelta is an in-progress partial answer. Each delta carries the full
// text streamed so far, not an increment.
type StreamDelta struct {
	Text string
}

// FinalAnswer is the complete answer for the current turn.
type FinalAnswer struct {
	Text string
}

// Suggestions carries optional follow-up prompts attached to the final turn.
// It may accompany a FinalAnswer in the same batch.
type Suggestions struct {
	Prompts []string
}

func (StreamDelta) isEvent() {}
func (FinalAnswer) isEvent() {}
func (Suggestions) isEvent() {}
