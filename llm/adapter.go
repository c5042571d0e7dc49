package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// BackoffPolicy controls the adapter's internal retry discipline for
// transient failures. The formula mirrors graph's computeBackoff
// (min(base*2^attempt, maxDelay) + jitter(0, base)); it is re-derived here
// rather than imported because graph's version is unexported.
type BackoffPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultBackoffPolicy allows up to 4 attempts total (1 initial + 3 retries).
var DefaultBackoffPolicy = BackoffPolicy{
	MaxAttempts: 4,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    8 * time.Second,
}

func computeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	delay := base * (1 << attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	var jitter time.Duration
	if base > 0 {
		jitter = time.Duration(rng.Int63n(int64(base)))
	}
	return delay + jitter
}

// IsTransient reports whether err is (or wraps) a TransientLmError, i.e. a
// failed backend call. StructuredCompletion wraps every backend call error
// this way; it does not tell a malformed request from a passing outage.
func IsTransient(err error) bool {
	var te *TransientLmError
	return errors.As(err, &te)
}

// CompletionRequest describes one schema-coached structured completion.
type CompletionRequest struct {
	Model      ChatModel
	ModelID    string // pricing/ledger key; distinct from the Model instance
	NodeID     string
	Messages   []Message
	Tools      []ToolSpec
	Schema     Schema
	Backoff    BackoffPolicy
	Tracker    *CostTracker
	Tokens     *TokenCounter
	RNG        *rand.Rand
}

// StructuredCompletion drives one schema-coached request to completion: it
// augments the system message with the schema's shape hint, retries with
// exponential backoff and jitter, up to Backoff.MaxAttempts in all, both a
// failed backend call and a response that cannot be used (unparseable,
// schema echo, missing required fields), returning the last error, activates
// streaming when the context carries a token callback (see
// WithTokenCallback), parses the response strictly and falls back to
// schema-guided repair on failure, rejects a response that merely echoes
// the schema, and records the call on the cost ledger. out must be a
// pointer to the struct the schema describes.
func StructuredCompletion(ctx context.Context, req CompletionRequest, out interface{}) error {
	if req.Backoff.MaxAttempts <= 0 {
		req.Backoff = DefaultBackoffPolicy
	}
	rng := req.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	messages := withSchemaHint(req.Messages, req.Schema)

	var lastErr error
	for attempt := 0; attempt < req.Backoff.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := computeBackoff(attempt-1, req.Backoff.BaseDelay, req.Backoff.MaxDelay, rng)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		result, err := invoke(ctx, req, messages)
		if err != nil {
			lastErr = &TransientLmError{Attempt: attempt + 1, Cause: err}
			continue
		}

		if req.Tracker != nil && req.Tokens != nil {
			inTok := req.Tokens.CountMessages(messages)
			outTok := req.Tokens.Count(result.Text)
			req.Tracker.RecordCall(req.ModelID, inTok, outTok, req.NodeID)
		}

		obj, ok := ParseLoose(result.Text)
		if !ok {
			if err := RepairJSON(result.Text, req.Schema, out); err != nil {
				lastErr = err
				continue
			}
		} else {
			if ContainsOnlySchemaKeys(obj) {
				lastErr = &LmReturnedSchemaError{Raw: result.Text}
				continue
			}
			if missing := MissingRequiredFields(obj, req.Schema); len(missing) > 0 {
				if err := RepairJSON(result.Text, req.Schema, out); err != nil {
					lastErr = &LmProtocolError{Reason: fmt.Sprintf("missing required fields: %v", missing), Raw: result.Text}
					continue
				}
			} else if err := remarshalInto(obj, out); err != nil {
				lastErr = &LmProtocolError{Reason: err.Error(), Raw: result.Text}
				continue
			}
		}

		return nil
	}

	return lastErr
}

func invoke(ctx context.Context, req CompletionRequest, messages []Message) (ChatOut, error) {
	if cb, ok := tokenCallbackFrom(ctx); ok {
		if streamer, ok := req.Model.(StreamingChatModel); ok {
			return streamer.ChatStream(ctx, messages, req.Tools, cb)
		}
	}
	return req.Model.Chat(ctx, messages, req.Tools)
}

func withSchemaHint(messages []Message, schema Schema) []Message {
	hint := schema.Hint()
	out := make([]Message, 0, len(messages)+1)
	appendedSystem := false
	for _, m := range messages {
		if m.Role == RoleSystem && !appendedSystem {
			m.Content = m.Content + "\n\n" + hint
			appendedSystem = true
		}
		out = append(out, m)
	}
	if !appendedSystem {
		out = append([]Message{{Role: RoleSystem, Content: hint}}, out...)
	}
	return out
}

func remarshalInto(obj map[string]interface{}, out interface{}) error {
	b, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
