// Package llmtest provides a scripted llm.Completer for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/joseph-ayodele/job-intake/internal/llm"
)

// Reply is one scripted answer.
type Reply struct {
	Text string
	Err  error
}

// Call records one Complete invocation.
type Call struct {
	Mode     llm.Mode
	Messages []llm.Message
}

// Fake replays Replies in order. Once they run out it repeats the last one,
// or fails when none were scripted.
type Fake struct {
	mu      sync.Mutex
	Replies []Reply
	calls   []Call
}

var _ llm.Completer = (*Fake)(nil)

// NewFake scripts plain-text replies.
func NewFake(texts ...string) *Fake {
	f := &Fake{}
	for _, t := range texts {
		f.Replies = append(f.Replies, Reply{Text: t})
	}
	return f
}

// Failing returns a fake whose every call fails with err.
func Failing(err error) *Fake {
	return &Fake{Replies: []Reply{{Err: err}}}
}

func (f *Fake) Complete(_ context.Context, mode llm.Mode, msgs []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Mode: mode, Messages: append([]llm.Message(nil), msgs...)})
	if len(f.Replies) == 0 {
		return "", fmt.Errorf("llmtest: no scripted reply for call %d", len(f.calls))
	}
	idx := len(f.calls) - 1
	if idx >= len(f.Replies) {
		idx = len(f.Replies) - 1
	}
	r := f.Replies[idx]
	return r.Text, r.Err
}

// CallCount returns how many times Complete ran.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}
