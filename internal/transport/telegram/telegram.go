// Package telegram implements the outbound transport over the Bot API.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	kit "rondo/internal/transport"
	logx "rondo/pkg/logx"
	"rondo/pkg/msgfmt"
)

// textLimit stays under Telegram's hard 4096-character message cap with
// headroom for entity expansion.
const textLimit = 4000

var ErrStopped = errors.New("telegram: sender stopped")

type Config struct {
	Token string
}

// Sender is a send-only Telegram client. It never polls for updates, so
// construction is the only call that touches the network eagerly (token
// check via getMe).
type Sender struct {
	cfg Config
	log logx.Logger

	bot    *tele.Bot
	closed atomic.Bool
}

func New(cfg Config, log logx.Logger) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sender{cfg: cfg, log: log, bot: b}, nil
}

// SendText delivers text to a chat, splitting it into chunks of at most
// textLimit runes. Rendering is line oriented with balanced tags per line,
// and chunk cuts prefer newline boundaries, so HTML chunks stay valid.
func (s *Sender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if s.closed.Load() {
		return kit.MessageRef{}, ErrStopped
	}
	if opt == nil {
		opt = &kit.SendOptions{}
	}

	chunks := msgfmt.SplitRunes(text, textLimit)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	chat := &tele.Chat{ID: to.ChatID}

	var first kit.MessageRef
	for i, chunk := range chunks {
		if ctx != nil {
			select {
			case <-ctx.Done():
				if first.ChatID != 0 {
					return first, ctx.Err()
				}
				return kit.MessageRef{}, ctx.Err()
			default:
			}
		}
		if s.closed.Load() {
			return first, ErrStopped
		}

		sendOpt := &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		}

		msg, err := s.bot.Send(chat, chunk, sendOpt)
		if err != nil {
			if first.ChatID != 0 {
				return first, err
			}
			return kit.MessageRef{}, err
		}

		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}

	return first, nil
}

// Stop blocks further sends. There is no poller to wind down; in-flight
// sends finish their current chunk and then observe the closed flag.
func (s *Sender) Stop(ctx context.Context) error {
	if s.closed.Swap(true) {
		s.log.Debug("telegram stop called but already stopped")
		return nil
	}
	s.log.Info("telegram sender stopped")
	return nil
}
