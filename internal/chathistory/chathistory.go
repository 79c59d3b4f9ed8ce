// Package chathistory keeps the process-lifetime conversation buffer for
// the site chat. There is exactly one buffer shared by every caller: PROMT
// holds a single collective conversation, not per-user sessions.
package chathistory

import (
	"sync"

	"github.com/wotyapustoy-lab/promt-protocol-chat/llm"
)

const DefaultMax = 10

type Buffer struct {
	mu    sync.Mutex
	max   int
	turns []llm.Message
}

func New(max int) *Buffer {
	if max <= 0 {
		max = DefaultMax
	}
	return &Buffer{max: max}
}

// Append adds a turn at the end, evicting from the front until the buffer
// is back within capacity. Turns with an empty role are dropped.
func (b *Buffer) Append(turn llm.Message) {
	if turn.Role == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = append(b.turns, turn)
	if n := len(b.turns) - b.max; n > 0 {
		b.turns = append([]llm.Message(nil), b.turns[n:]...)
	}
}

// Snapshot returns a copy of the current turns in order.
func (b *Buffer) Snapshot() []llm.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]llm.Message(nil), b.turns...)
}

// Reset empties the buffer. Idempotent.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = nil
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.turns)
}
