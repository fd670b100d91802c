// Package chathub implements the client side of the Sydney streaming chat
// protocol: conversation bootstrap, the persistent framed websocket channel,
// outbound ask envelopes, and the classification of inbound frames into
// stream deltas, final answers, and service-side failure conditions.
//
// # Architecture
//
//   - Session: owns one conversation; enforces the one-outstanding-turn
//     discipline and the connect/ask/receive state machine
//   - Transport: one duplex websocket channel with a background read pump
//     feeding an unbounded inbound queue
//   - classifier: typed decoding of inbound frames and the delta/final
//     dispatch rules
//
// Basic usage:
//
//	session, err := chathub.NewSession(ctx, chathub.Options{Tone: chathub.TonePrecise})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	if err := session.Ask(ctx, "Hello!"); err != nil {
//	    log.Fatal(err)
//	}
//	for {
//	    events, err := session.NextEvents(ctx)
//	    if errors.Is(err, chathub.ErrEndOfResponse) {
//	        break
//	    }
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    for _, ev := range events {
//	        if final, ok := ev.(chathub.FinalAnswer); ok {
//	            fmt.Println(final.Text)
//	        }
//	    }
//	}
//
// The service reports throttling and captcha conditions as terminal errors
// (ErrThrottled, ErrChallengeRequired, ErrThrottlingError). They end the
// current turn but the session stays usable; retrying is the caller's call.
package chathub
