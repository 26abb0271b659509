// Package relay multiplexes one completion stream into two consumers:
// the caller's output sink and an in-memory accumulator that is
// persisted as the assistant turn once the stream drains.
package relay

import (
	"context"
	"log"
	"strings"

	"github.com/zhouzirui/cipherchat/backend/internal/model/chat"
	"github.com/zhouzirui/cipherchat/backend/internal/store"
	"github.com/zhouzirui/cipherchat/backend/internal/wire"
)

// State tracks the relay lifecycle for one request.
type State int

const (
	StateInit State = iota
	StateStreaming
	StateDraining
	StateClosed
	// StateErrored is reached when the gateway fails before producing
	// any frame; the caller answers with an error response and the
	// relay never runs.
	StateErrored
)

// Sink receives forwarded frames. A Send error means the caller is gone;
// the relay stops forwarding but keeps accumulating.
type Sink interface {
	Send(frame []byte) error
}

// Relay owns the accumulation buffer for exactly one request. The
// caller's user turn must already be durably appended before Run starts,
// so the user's side of the exchange survives a failed generation.
type Relay struct {
	store store.Store
	state State
}

// New creates a relay bound to the message store.
func New(st store.Store) *Relay {
	return &Relay{store: st, state: StateInit}
}

// State reports the current lifecycle state.
func (r *Relay) State() State {
	return r.state
}

// Run consumes frames until the upstream channel closes, forwarding each
// to the sink in arrival order and folding parsed deltas into the
// accumulator. It then persists the accumulated text as the owner's
// assistant turn and returns it.
//
// Both consumers observe every frame exactly once and in the same order:
// the single consuming loop is the ordering contract.
func (r *Relay) Run(ctx context.Context, owner string, frames <-chan []byte, sink Sink) string {
	r.state = StateStreaming

	var acc strings.Builder
	forwarding := true

	for frame := range frames {
		if forwarding {
			if err := sink.Send(frame); err != nil {
				// Caller disconnected. Generation cost is already
				// incurred, so keep draining and accumulating.
				log.Printf("[relay] caller gone, continuing accumulation: %v", err)
				forwarding = false
			}
		}

		if wire.IsTerminal(frame) {
			r.state = StateDraining
			continue
		}

		delta, ok := wire.ParseDelta(frame)
		if !ok {
			// Losing one malformed frame beats truncating the response.
			log.Printf("[relay] skipping unparseable frame (%d bytes)", len(frame))
			continue
		}
		acc.WriteString(delta)
	}

	r.state = StateDraining
	text := strings.TrimSpace(acc.String())
	r.persist(ctx, owner, text)
	r.state = StateClosed

	return text
}

// persist appends the assistant turn after the caller's channel is done.
// The caller already saw the rendered text, so a failure here is a
// background concern: logged, never resurfaced on the response.
func (r *Relay) persist(ctx context.Context, owner, text string) {
	if text == "" {
		return
	}

	// The HTTP interaction may already be over; do not let its
	// cancellation abort the write.
	id, err := r.store.Append(context.WithoutCancel(ctx), owner, text, chat.RoleAssistant)
	if err != nil {
		log.Printf("[relay] failed to save assistant message for user=%s: %v", owner, err)
		return
	}
	log.Printf("[relay] saved assistant message id=%s length=%d", id, len(text))
}
