package llm

import "context"

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prompt message sent to a completion backend.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func System(content string) Message { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message   { return Message{Role: RoleUser, Content: content} }

// Mode selects how literal the completion should be.
type Mode int

const (
	// ModePrecise favours literal fidelity (extraction).
	ModePrecise Mode = iota
	// ModeCreative allows freer phrasing (summaries).
	ModeCreative
)

func (m Mode) String() string {
	if m == ModeCreative {
		return "creative"
	}
	return "precise"
}

// Temperatures maps each Mode to a sampling temperature.
type Temperatures struct {
	Precise  float32
	Creative float32
}

func DefaultTemperatures() Temperatures {
	return Temperatures{Precise: 0.1, Creative: 0.7}
}

func (t Temperatures) For(m Mode) float32 {
	if m == ModeCreative {
		return t.Creative
	}
	return t.Precise
}

// Completer is the text-completion capability the pipeline depends on.
type Completer interface {
	Complete(ctx context.Context, mode Mode, msgs []Message) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, mode Mode, msgs []Message) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, mode Mode, msgs []Message) (string, error) {
	return f(ctx, mode, msgs)
}
