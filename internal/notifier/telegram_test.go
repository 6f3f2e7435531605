package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/job-hunter/internal/jobs"
)

type sent struct {
	text      string
	parseMode string
	chatID    int64
	channel   string
}

type fakeSender struct {
	sent []sent
	// fail decides whether a given message fails
	fail func(m tgbotapi.MessageConfig) bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m := c.(tgbotapi.MessageConfig)
	f.sent = append(f.sent, sent{text: m.Text, parseMode: m.ParseMode, chatID: m.ChatID, channel: m.ChannelUsername})
	if f.fail != nil && f.fail(m) {
		return tgbotapi.Message{}, &tgbotapi.Error{Code: 400, Message: "Bad Request: can't parse entities"}
	}
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func newTestTelegram(t *testing.T, s sender) *Telegram {
	t.Helper()
	tg, err := newTelegram(s, "123456", zap.NewNop())
	require.NoError(t, err)
	return tg
}

func TestReportEmptyBatchSendsNotice(t *testing.T) {
	s := &fakeSender{}
	newTestTelegram(t, s).Report(context.Background(), nil)

	require.Len(t, s.sent, 1)
	assert.Equal(t, NoMatchesText, s.sent[0].text)
	assert.Equal(t, int64(123456), s.sent[0].chatID)
}

func TestReportSendsHeaderAndOneMessagePerEvaluation(t *testing.T) {
	s := &fakeSender{}
	batch := jobs.Batch{
		{URL: "https://a", Text: "**Gerente** a"},
		{URL: "https://b", Text: "**HRBP** b"},
	}

	newTestTelegram(t, s).Report(context.Background(), batch)

	require.Len(t, s.sent, 3)
	assert.Contains(t, s.sent[0].text, "found 2 new matching jobs")
	assert.Equal(t, batch[0].Text, s.sent[1].text)
	assert.Equal(t, batch[1].Text, s.sent[2].text)
	for _, m := range s.sent {
		assert.Equal(t, tgbotapi.ModeMarkdown, m.parseMode)
	}
}

func TestSendFallsBackToPlainTextOnce(t *testing.T) {
	s := &fakeSender{fail: func(m tgbotapi.MessageConfig) bool { return m.ParseMode != "" }}

	ok := newTestTelegram(t, s).Send(context.Background(), "broken *markdown")

	assert.True(t, ok)
	require.Len(t, s.sent, 2)
	assert.Equal(t, tgbotapi.ModeMarkdown, s.sent[0].parseMode)
	assert.Equal(t, "", s.sent[1].parseMode)
	assert.Equal(t, s.sent[0].text, s.sent[1].text)
}

func TestSendGivesUpAfterPlainFailure(t *testing.T) {
	s := &fakeSender{fail: func(tgbotapi.MessageConfig) bool { return true }}

	ok := newTestTelegram(t, s).Send(context.Background(), "text")

	assert.False(t, ok)
	assert.Len(t, s.sent, 2)
}

func TestChannelRecipient(t *testing.T) {
	s := &fakeSender{}
	tg, err := newTelegram(s, "@vagas_manaus", zap.NewNop())
	require.NoError(t, err)

	tg.Send(context.Background(), "hi")

	require.Len(t, s.sent, 1)
	assert.Equal(t, "@vagas_manaus", s.sent[0].channel)
}

func TestInvalidChatID(t *testing.T) {
	_, err := newTelegram(&fakeSender{}, "not-a-number", zap.NewNop())
	assert.Error(t, err)
}

func TestDisabledNotifierIsNoop(t *testing.T) {
	tg := NewTelegram("", "123", zap.NewNop())

	assert.False(t, tg.Enabled())
	assert.False(t, tg.Send(context.Background(), "hi"))
	tg.Report(context.Background(), jobs.Batch{{Text: "x"}})
}

// botAPIServer emulates the parts of the Telegram Bot API used by the notifier.
type botAPIServer struct {
	mu    sync.Mutex
	forms []map[string]string
}

func (b *botAPIServer) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if strings.HasSuffix(r.URL.Path, "/getMe") {
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"hunter","username":"hunter_bot"}}`))
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	b.forms = append(b.forms, map[string]string{
		"text":       r.PostForm.Get("text"),
		"parse_mode": r.PostForm.Get("parse_mode"),
		"chat_id":    r.PostForm.Get("chat_id"),
	})
	b.mu.Unlock()

	if r.PostForm.Get("parse_mode") != "" {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`))
		return
	}

	_, _ = fmt.Fprint(w, `{"ok":true,"result":{"message_id":7,"date":1,"chat":{"id":123456,"type":"private"},"text":"ok"}}`)
}

func TestSendAgainstBotAPI(t *testing.T) {
	api := &botAPIServer{}
	srv := httptest.NewServer(http.HandlerFunc(api.handler))
	defer srv.Close()

	bot, err := tgbotapi.NewBotAPIWithClient("test-token", srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)

	tg, err := newTelegram(bot, "123456", zap.NewNop())
	require.NoError(t, err)

	assert.True(t, tg.Send(context.Background(), "**Gerente de RH** [link"))

	require.Len(t, api.forms, 2)
	assert.Equal(t, "Markdown", api.forms[0]["parse_mode"])
	assert.Equal(t, "", api.forms[1]["parse_mode"])
	assert.Equal(t, "**Gerente de RH** [link", api.forms[1]["text"])
	assert.Equal(t, "123456", api.forms[1]["chat_id"])
}

func TestSendSkipsOnCancelledContext(t *testing.T) {
	s := &fakeSender{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, newTestTelegram(t, s).Send(ctx, "hi"))
	assert.Empty(t, s.sent)
}

func TestNewTelegramDoesNotContactAPI(t *testing.T) {
	tg := NewTelegram("123:not-a-real-token", "123456", zap.NewNop())

	assert.True(t, tg.Enabled())
}

func TestNewTelegramInvalidChatIDDisablesNotifier(t *testing.T) {
	tg := NewTelegram("123:token", "not-a-number", zap.NewNop())

	assert.False(t, tg.Enabled())
	assert.False(t, tg.Send(context.Background(), "hi"))
}

func TestUnreachableAPIFailsOnlySends(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/bot%s/%s"
	srv.Close()

	tg, err := newTelegram(newBotAPI("123:token", endpoint), "123456", zap.NewNop())
	require.NoError(t, err)
	require.True(t, tg.Enabled())

	assert.False(t, tg.Send(context.Background(), "hi"))
	tg.Report(context.Background(), jobs.Batch{{Text: "a"}})
}
