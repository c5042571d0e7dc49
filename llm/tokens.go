package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates token counts for text that will cross an LM
// boundary. graph/model.ChatOut carries no usage field (none of the
// provider backends report it through the shared interface), so the cost
// ledger needs its own estimate; cl100k_base is a reasonable stand-in
// across providers since none of them expose native counts here.
type TokenCounter struct {
	mu       sync.Mutex
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter loads the cl100k_base encoding, grounded on the
// tokenizer package's NewTiktokenWithCL100KBase helper.
func NewTokenCounter() (*TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	if err != nil {
		return nil, err
	}
	return &TokenCounter{encoding: enc}, nil
}

// Count returns the estimated token count of text.
func (t *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.encoding.Encode(text, nil, nil))
}

// CountMessages sums the estimated token count across a message slice, used
// as the input-token figure for a completion about to be sent.
func (t *TokenCounter) CountMessages(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += t.Count(m.Content)
	}
	return total
}
