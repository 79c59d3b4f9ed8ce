// Package reply is the boundary around the completion API: it builds the
// persona-prefixed message list and converts every upstream failure into
// the fixed fallback line, so callers never see an error.
package reply

import (
	"context"
	"log/slog"
	"strings"

	"github.com/wotyapustoy-lab/promt-protocol-chat/llm"
)

const DefaultFallback = ">_ signal interference detected."

type Generator struct {
	Client    llm.Client
	Model     string
	MaxTokens int
	Fallback  string
	Logger    *slog.Logger
}

// Generate runs one completion over [system, turns...] and returns the
// reply text. Network failures, non-2xx statuses and malformed responses
// all degrade to the fallback line.
func (g *Generator) Generate(ctx context.Context, system string, turns []llm.Message) string {
	msgs := make([]llm.Message, 0, len(turns)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	msgs = append(msgs, turns...)

	res, err := g.Client.Chat(ctx, llm.Request{
		Model:     g.Model,
		Messages:  msgs,
		MaxTokens: g.MaxTokens,
	})
	if err != nil {
		g.logger().Warn("completion_error", "error", err.Error())
		return g.fallback()
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		g.logger().Warn("completion_empty")
		return g.fallback()
	}
	return res.Text
}

func (g *Generator) fallback() string {
	if strings.TrimSpace(g.Fallback) != "" {
		return g.Fallback
	}
	return DefaultFallback
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}
