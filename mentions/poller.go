// Package mentions runs the X mention worker: a tick loop that fetches new
// mentions since the last seen id, replies to the ones addressed to the
// bot, and advances the cursor.
package mentions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wotyapustoy-lab/promt-protocol-chat/internal/reply"
	"github.com/wotyapustoy-lab/promt-protocol-chat/internal/xapi"
	"github.com/wotyapustoy-lab/promt-protocol-chat/llm"
	"github.com/wotyapustoy-lab/promt-protocol-chat/persona"
)

const (
	// DefaultInterval matches the current operational policy. Earlier
	// deployments polled every few seconds; the cadence is configuration,
	// never a constant baked into call sites.
	DefaultInterval = 8 * time.Hour
	DefaultPageSize = 10
)

// API is the slice of the platform client the poller needs.
type API interface {
	UserByUsername(ctx context.Context, username string) (*xapi.User, error)
	Mentions(ctx context.Context, userID string, sinceID int64, pageSize int) ([]xapi.Mention, error)
	PostReply(ctx context.Context, text string, inReplyTo int64) error
}

type Poller struct {
	API       API
	Replies   *reply.Generator
	Persona   persona.Config
	BotHandle string
	Interval  time.Duration
	PageSize  int
	Logger    *slog.Logger

	// Tick overrides the internal ticker; tests drive cycles by sending
	// on it instead of waiting on the wall clock.
	Tick <-chan time.Time

	userID string
	cursor int64
}

// Run blocks until ctx is done, polling once per interval. Cycle failures
// are logged and the next tick proceeds regardless.
func (p *Poller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	tick := p.Tick
	if tick == nil {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}

	p.logger().Info("mention_poller_start",
		"bot_handle", p.BotHandle,
		"interval", interval.String(),
		"page_size", p.pageSize(),
	)

	for {
		select {
		case <-ctx.Done():
			p.logger().Info("mention_poller_stop")
			return
		case <-tick:
			if err := p.PollOnce(ctx); err != nil {
				p.logger().Warn("mention_poll_error", "error", err.Error())
			}
		}
	}
}

// PollOnce runs a single fetch/filter/reply cycle. The cursor advances to
// the newest id observed in the fetched page even when items are skipped
// or a reply fails: a failed reply is never retried on a later cycle.
func (p *Poller) PollOnce(ctx context.Context) error {
	if p.userID == "" {
		u, err := p.API.UserByUsername(ctx, p.BotHandle)
		if err != nil {
			return fmt.Errorf("resolve bot user: %w", err)
		}
		p.userID = u.ID
		p.logger().Info("mention_poller_identity", "user_id", u.ID)
	}

	page, err := p.API.Mentions(ctx, p.userID, p.cursor, p.pageSize())
	if err != nil {
		return fmt.Errorf("fetch mentions: %w", err)
	}
	if len(page) == 0 {
		return nil
	}

	defer func() {
		for _, m := range page {
			if m.ID > p.cursor {
				p.cursor = m.ID
			}
		}
	}()

	needle := "@" + strings.ToLower(strings.TrimPrefix(p.BotHandle, "@"))
	for _, m := range page {
		if !strings.Contains(strings.ToLower(m.Text), needle) {
			p.logger().Debug("mention_skipped", "id", m.ID)
			continue
		}

		locale := persona.Detect(m.Text)
		privileged := p.Persona.IsPrivileged(m.AuthorUsername)
		system := p.Persona.System(locale, privileged)
		text := p.Replies.Generate(ctx, system, []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("%s says: %s", m.AuthorUsername, m.Text),
		}})

		if err := p.API.PostReply(ctx, text, m.ID); err != nil {
			return fmt.Errorf("post reply to %d: %w", m.ID, err)
		}
		p.logger().Info("mention_replied", "id", m.ID, "author", m.AuthorUsername, "locale", locale, "privileged", privileged)
	}
	return nil
}

// Cursor returns the last seen mention id. Held in memory only; restarts
// begin from zero.
func (p *Poller) Cursor() int64 { return p.cursor }

func (p *Poller) pageSize() int {
	if p.PageSize > 0 {
		return p.PageSize
	}
	return DefaultPageSize
}

func (p *Poller) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
