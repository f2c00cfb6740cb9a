package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the roles a committed turn can carry.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one committed message in a conversation.
//
// A Turn is a value: once it has been appended to a Conversation it is never
// changed. In-progress assistant text lives in the session's accumulator until
// the stream terminates.
type Turn struct {
	ID        uuid.UUID `json:"id" yaml:"id"`
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

type TurnOption func(*Turn)

func WithTime(t time.Time) TurnOption {
	return func(turn *Turn) {
		turn.CreatedAt = t
	}
}

func WithID(id uuid.UUID) TurnOption {
	return func(turn *Turn) {
		turn.ID = id
	}
}

func NewTurn(role Role, content string, options ...TurnOption) Turn {
	ret := Turn{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	for _, o := range options {
		o(&ret)
	}
	return ret
}

func NewUserTurn(content string, options ...TurnOption) Turn {
	return NewTurn(RoleUser, content, options...)
}

func NewAssistantTurn(content string, options ...TurnOption) Turn {
	return NewTurn(RoleAssistant, content, options...)
}

func (t Turn) String() string {
	return fmt.Sprintf("[%s]: %s", t.Role, strings.TrimRight(t.Content, "\n"))
}

// Conversation is an ordered sequence of committed turns. Insertion order is
// conversation order.
type Conversation []Turn

// Clone returns a copy that shares no backing array with c.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	ret := make(Conversation, len(c))
	copy(ret, c)
	return ret
}

// Last returns the final turn, if any.
func (c Conversation) Last() (Turn, bool) {
	if len(c) == 0 {
		return Turn{}, false
	}
	return c[len(c)-1], true
}

// SplitLastUser separates a trailing user turn from the turns before it.
// Chat-session style APIs want the earlier turns as history and the latest
// prompt as the message to send.
func (c Conversation) SplitLastUser() (Conversation, Turn, bool) {
	last, ok := c.Last()
	if !ok || last.Role != RoleUser {
		return c, Turn{}, false
	}
	return c[:len(c)-1], last, true
}

// GetSinglePrompt concatenates all the turns with a role prefix. A single
// turn is returned verbatim.
func (c Conversation) GetSinglePrompt() string {
	if len(c) == 0 {
		return ""
	}
	if len(c) == 1 {
		return c[0].Content
	}
	var b strings.Builder
	for _, t := range c {
		b.WriteString(t.String())
		b.WriteString("\n")
	}
	return b.String()
}
