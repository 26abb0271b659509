// Package ai adapts the hosted completion provider into an incremental
// token stream for the relay.
package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/cipherchat/backend/internal/config"
	"github.com/zhouzirui/cipherchat/backend/internal/model/chat"
	"github.com/zhouzirui/cipherchat/backend/internal/wire"
)

// systemPrompt is the fixed persona injected ahead of every request. It
// is never persisted and never echoed back to the caller.
const systemPrompt = "You are basic chatbot. " +
	"You are AI assistant, be polite and friendly. " +
	"Do not keep your messages too long."

// ErrProvider wraps failures to initiate a completion. Once a stream has
// begun, later provider faults surface as premature channel closure
// instead, since the response headers are already on the wire.
var ErrProvider = errors.New("completion provider failure")

// Service runs conversations through a compiled prompt/model chain.
type Service struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the gateway and compiles its chain once.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{chatModel: chatModel, chain: runnable}, nil
}

// Stream starts generation for the given conversation and returns a
// channel of wire frames in provider emission order. A clean end of
// stream is signalled with the terminal marker before the channel
// closes; a mid-stream provider fault closes the channel without it.
func (s *Service) Stream(ctx context.Context, history []chat.Turn) (<-chan []byte, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: empty conversation", ErrProvider)
	}

	stream, err := s.chain.Stream(ctx, s.buildChainInput(history))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	frames := make(chan []byte)
	go s.pump(stream, frames)
	return frames, nil
}

// pump converts provider chunks into wire frames, one goroutine per
// request, and owns closing the channel.
func (s *Service) pump(stream *schema.StreamReader[*schema.Message], frames chan<- []byte) {
	defer close(frames)
	defer stream.Close()

	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			frames <- []byte(wire.Terminal)
			return
		}
		if recvErr != nil {
			// Headers are already flushed; terminate without the marker.
			log.Printf("[ai] stream terminated early: %v", recvErr)
			return
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		frame, err := wire.EncodeDelta(chunk.Content)
		if err != nil {
			log.Printf("[ai] failed to encode delta: %v", err)
			continue
		}
		frames <- frame
	}
}

// buildChainInput maps stored turns onto the chain variables: everything
// before the last turn becomes history, the last turn is the query.
func (s *Service) buildChainInput(history []chat.Turn) map[string]any {
	last := history[len(history)-1]

	msgs := make([]*schema.Message, 0, len(history)-1)
	for _, turn := range history[:len(history)-1] {
		switch turn.Role {
		case chat.RoleUser:
			msgs = append(msgs, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(turn.Content, nil))
		}
	}

	return map[string]any{
		"system":  systemPrompt,
		"history": msgs,
		"query":   last.Content,
	}
}
