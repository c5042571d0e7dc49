package llm

import (
	"context"

	"github.com/dshills/langgraph-go/graph/model"
)

// MockChatModel is the graph package's test double, reused unmodified since
// llm.ChatModel is a type alias for model.ChatModel: the adapter under test
// cannot tell a real provider backend from this double.
type MockChatModel = model.MockChatModel

// MockStreamingChatModel wraps a MockChatModel and adds ChatStream, invoking
// the token callback with the whole response text as a single chunk. This is
// enough to exercise the adapter's streaming branch in tests without a real
// provider's incremental wire format.
type MockStreamingChatModel struct {
	MockChatModel
}

func (m *MockStreamingChatModel) ChatStream(ctx context.Context, messages []Message, tools []ToolSpec, onToken func(string)) (ChatOut, error) {
	out, err := m.MockChatModel.Chat(ctx, messages, tools)
	if err != nil {
		return out, err
	}
	if onToken != nil && out.Text != "" {
		onToken(out.Text)
	}
	return out, nil
}
