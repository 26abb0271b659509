package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/cipherchat/backend/internal/model/chat"
)

func TestStreamRejectsEmptyConversation(t *testing.T) {
	svc := &Service{}

	if _, err := svc.Stream(context.Background(), nil); !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}

func TestBuildChainInput(t *testing.T) {
	svc := &Service{}

	turns := []chat.Turn{
		{Role: chat.RoleUser, Content: "first question"},
		{Role: chat.RoleAssistant, Content: "first answer"},
		{Role: chat.RoleSystem, Content: "client-smuggled system turn"},
		{Role: chat.RoleUser, Content: "second question"},
	}

	input := svc.buildChainInput(turns)

	if input["system"] != systemPrompt {
		t.Fatalf("system prompt: got %v", input["system"])
	}
	if input["query"] != "second question" {
		t.Fatalf("query: got %v", input["query"])
	}

	history, ok := input["history"].([]*schema.Message)
	if !ok {
		t.Fatalf("history has wrong type: %T", input["history"])
	}
	// The smuggled system turn is dropped; only user/assistant map over.
	if len(history) != 2 {
		t.Fatalf("history length: got %d want 2", len(history))
	}
	if history[0].Role != schema.User || history[0].Content != "first question" {
		t.Fatalf("history[0]: %+v", history[0])
	}
	if history[1].Role != schema.Assistant || history[1].Content != "first answer" {
		t.Fatalf("history[1]: %+v", history[1])
	}
}

func TestSingleTurnConversationHasEmptyHistory(t *testing.T) {
	svc := &Service{}

	input := svc.buildChainInput([]chat.Turn{{Role: chat.RoleUser, Content: "Hello"}})

	if input["query"] != "Hello" {
		t.Fatalf("query: got %v", input["query"])
	}
	history, _ := input["history"].([]*schema.Message)
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d", len(history))
	}
}
