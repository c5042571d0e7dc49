// Package llm implements the LM invocation adapter: schema-coached
// structured completions, retry discipline, streaming, JSON repair parsing,
// and the cost ledger. It wraps the per-provider graph/model clients the
// router selects.
package llm

import (
	"context"

	"github.com/dshills/langgraph-go/graph/model"
)

// ChatModel, Message and friends are reused unmodified from the graph's
// model package: every provider backend (openai, anthropic, google) already
// implements this interface, so the adapter built here is provider-agnostic.
type (
	ChatModel = model.ChatModel
	Message   = model.Message
	ToolSpec  = model.ToolSpec
	ChatOut   = model.ChatOut
	ToolCall  = model.ToolCall
)

const (
	RoleSystem    = model.RoleSystem
	RoleUser      = model.RoleUser
	RoleAssistant = model.RoleAssistant
)

// StreamingChatModel is an optional capability a ChatModel backend may
// implement. When present, the adapter uses it instead of Chat whenever a
// token callback is active in the invocation context (see WithTokenCallback).
type StreamingChatModel interface {
	ChatStream(ctx context.Context, messages []Message, tools []ToolSpec, onToken func(string)) (ChatOut, error)
}

type tokenCallbackKey struct{}

// WithTokenCallback returns a context that activates streaming mode for any
// adapter call made with it: the adapter forwards each incremental chunk to
// cb as it arrives, then returns the concatenated response as usual.
func WithTokenCallback(ctx context.Context, cb func(string)) context.Context {
	return context.WithValue(ctx, tokenCallbackKey{}, cb)
}

func tokenCallbackFrom(ctx context.Context) (func(string), bool) {
	cb, ok := ctx.Value(tokenCallbackKey{}).(func(string))
	return cb, ok
}
