// Package wire defines the outbound chunk framing for streamed
// completions. Each frame is the JSON body of one server-sent event,
// shaped like the completion provider's native delta format so browsers
// can reuse existing parsing; the stream ends with a terminal marker.
package wire

import (
	"bytes"
	"encoding/json"
)

// Terminal is the sentinel data payload that signals end of stream.
const Terminal = "[DONE]"

// Event is one streamed frame: {"choices":[{"delta":{"content":...}}]}.
type Event struct {
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Delta Delta `json:"delta"`
}

type Delta struct {
	Content string `json:"content,omitempty"`
}

// EncodeDelta frames one increment of generated text.
func EncodeDelta(text string) ([]byte, error) {
	return json.Marshal(Event{Choices: []Choice{{Delta: Delta{Content: text}}}})
}

// IsTerminal reports whether a frame is the end-of-stream marker.
func IsTerminal(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte(Terminal))
}

// ParseDelta extracts the textual delta from a frame. Unknown or missing
// fields mean "no delta", never a parse error: a malformed frame among
// valid ones must not halt the stream, so ok=false is the only failure
// signal.
func ParseDelta(data []byte) (string, bool) {
	if IsTerminal(data) {
		return "", false
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return "", false
	}
	if len(event.Choices) == 0 {
		return "", false
	}
	return event.Choices[0].Delta.Content, true
}
