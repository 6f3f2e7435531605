// Package notifier delivers cycle reports to a Telegram chat.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/spigell/job-hunter/internal/jobs"
)

const (
	NoMatchesText = "🤖 Job Hunter: no matching jobs found in this search."
	headerFormat  = "🚀 *Job Hunter Bot* - found %d new matching jobs!"
)

// sender is satisfied by *tgbotapi.BotAPI.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	sender  sender
	chatID  int64
	channel string
	logger  *zap.Logger
}

// NewTelegram prepares a Bot API client without contacting Telegram. With a
// missing token, a missing chat id or an unusable chat id it returns a
// disabled notifier whose calls are logged no-ops.
func NewTelegram(token, chat string, logger *zap.Logger) *Telegram {
	token = strings.TrimSpace(token)
	chat = strings.TrimSpace(chat)

	if token == "" || chat == "" {
		logger.Warn("telegram notifier is disabled",
			zap.Bool("token_set", token != ""),
			zap.Bool("chat_id_set", chat != ""),
		)
		return &Telegram{logger: logger}
	}

	t, err := newTelegram(newBotAPI(token, tgbotapi.APIEndpoint), chat, logger)
	if err != nil {
		logger.Warn("telegram notifier is disabled", zap.Error(err))
		return &Telegram{logger: logger}
	}

	return t
}

// newBotAPI skips the getMe round trip of tgbotapi.NewBotAPI, so a bad token
// or an unreachable API only fails individual sends.
func newBotAPI(token, endpoint string) *tgbotapi.BotAPI {
	bot := &tgbotapi.BotAPI{
		Token:  token,
		Client: &http.Client{Timeout: 10 * time.Second},
		Buffer: 100,
	}
	bot.SetAPIEndpoint(endpoint)
	return bot
}

func newTelegram(s sender, chat string, logger *zap.Logger) (*Telegram, error) {
	t := &Telegram{sender: s, logger: logger}

	chat = strings.TrimSpace(chat)
	if strings.HasPrefix(chat, "@") {
		t.channel = chat
		return t, nil
	}

	id, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: expected a number or @channel", chat)
	}
	t.chatID = id

	return t, nil
}

func (t *Telegram) Enabled() bool { return t != nil && t.sender != nil }

// Report sends a header and one message per evaluation, or a single
// "no matches" notice for an empty batch.
func (t *Telegram) Report(ctx context.Context, batch jobs.Batch) {
	if batch.Len() == 0 {
		t.Send(ctx, NoMatchesText)
		return
	}

	t.Send(ctx, fmt.Sprintf(headerFormat, batch.Len()))

	delivered := 0
	for _, evaluation := range batch {
		if t.Send(ctx, evaluation.Text) {
			delivered++
		}
	}

	t.logger.Info("report sent",
		zap.Int("evaluations", batch.Len()),
		zap.Int("delivered", delivered),
	)
}

// Send delivers text with Markdown formatting, retrying once as plain text
// when the formatted attempt fails. It reports whether delivery succeeded.
func (t *Telegram) Send(ctx context.Context, text string) bool {
	if !t.Enabled() {
		t.logger.Warn("skipping telegram message: notifier is disabled",
			zap.Int("length", len(text)),
		)
		return false
	}

	if err := ctx.Err(); err != nil {
		t.logger.Warn("skipping telegram message", zap.Error(err))
		return false
	}

	err := t.send(text, tgbotapi.ModeMarkdown)
	if err == nil {
		return true
	}

	t.logger.Warn("formatted telegram message failed, retrying as plain text", zap.Error(err))

	if err := t.send(text, ""); err != nil {
		t.logger.Error("telegram message failed", zap.Error(err))
		return false
	}

	return true
}

func (t *Telegram) send(text, parseMode string) error {
	var msg tgbotapi.MessageConfig
	if t.channel != "" {
		msg = tgbotapi.NewMessageToChannel(t.channel, text)
	} else {
		msg = tgbotapi.NewMessage(t.chatID, text)
	}
	msg.ParseMode = parseMode
	msg.DisableWebPagePreview = true

	_, err := t.sender.Send(msg)
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("telegram api error %d: %s", apiErr.Code, apiErr.Message)
	}
	return err
}
