package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type mockBot struct {
	mu       sync.Mutex
	updates  chan tgbotapi.Update
	sent     chan tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
	admins   []tgbotapi.ChatMember
	stopped  bool
}

func newMockBot() *mockBot {
	return &mockBot{updates: make(chan tgbotapi.Update, 8), sent: make(chan tgbotapi.MessageConfig, 8)}
}

func (m *mockBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return m.updates }
func (m *mockBot) StopReceivingUpdates() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}
func (m *mockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if mc, ok := c.(tgbotapi.MessageConfig); ok {
		m.sent <- mc
	}
	return tgbotapi.Message{}, nil
}
func (m *mockBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, c)
	m.mu.Unlock()
	return &tgbotapi.APIResponse{Ok: true}, nil
}
func (m *mockBot) GetChatAdministrators(tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error) {
	return m.admins, nil
}
func (m *mockBot) GetSelf() tgbotapi.User { return tgbotapi.User{ID: 1, UserName: "StreamCastBot", IsBot: true} }

func factoryFor(bot TelegramBot) BotFactory {
	return func(string, string, *http.Client) (TelegramBot, error) { return bot, nil }
}

func startTelegram(t *testing.T, bot *mockBot, h Handler, owner uint64) (context.CancelFunc, <-chan error) {
	t.Helper()
	g, err := NewTelegramGatewayWithFactory(TelegramConfig{Token: "123:abc", OwnerID: owner}, h, factoryFor(bot))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- g.Run(ctx) }()
	return cancel, errc
}

func groupMessage(from *tgbotapi.User, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 10,
		From:      from,
		Chat:      &tgbotapi.Chat{ID: -500, Type: "supergroup"},
		Text:      text,
	}}
}

func TestTelegramGateway_GroupOwnerIsCreator(t *testing.T) {
	bot := newMockBot()
	bot.admins = []tgbotapi.ChatMember{
		{User: &tgbotapi.User{ID: 7}, Status: "administrator"},
		{User: &tgbotapi.User{ID: 9}, Status: "creator"},
	}
	h := newRecordingHandler("Successfully switched to: Intro")
	cancel, errc := startTelegram(t, bot, h, 0)

	bot.updates <- groupMessage(&tgbotapi.User{ID: 7, UserName: "mod7"}, "/switch@StreamCastBot Intro")
	waitFor(t, h.seen)
	inv := h.last()
	if inv.OwnerID != 9 || inv.Caller.ID != 7 || inv.Command != "switch" || inv.Arg != "Intro" {
		t.Errorf("invocation = %+v", inv)
	}

	select {
	case reply := <-bot.sent:
		if reply.ChatID != -500 || reply.ReplyToMessageID != 10 || reply.Text != "Successfully switched to: Intro" {
			t.Errorf("reply = %+v", reply)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reply sent")
	}

	cancel()
	if err := <-errc; err != nil {
		t.Errorf("Run() = %v", err)
	}
	bot.mu.Lock()
	defer bot.mu.Unlock()
	if !bot.stopped {
		t.Error("updates not stopped on shutdown")
	}
	if len(bot.requests) != 1 {
		t.Errorf("expected setMyCommands request, got %d requests", len(bot.requests))
	} else if cfg, ok := bot.requests[0].(tgbotapi.SetMyCommandsConfig); !ok || len(cfg.Commands) != 2 {
		t.Errorf("request = %#v", bot.requests[0])
	}
}

func TestTelegramGateway_PrivateChatUsesConfiguredOwner(t *testing.T) {
	bot := newMockBot()
	h := newRecordingHandler("")
	cancel, errc := startTelegram(t, bot, h, 42)
	defer func() { cancel(); <-errc }()

	bot.updates <- tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: 42, FirstName: "Owner"},
		Chat:      &tgbotapi.Chat{ID: 42, Type: "private"},
		Text:      "/listmod",
	}}
	waitFor(t, h.seen)
	if inv := h.last(); inv.OwnerID != 42 || inv.Caller.Name != "Owner" {
		t.Errorf("invocation = %+v", inv)
	}
}

func TestTelegramGateway_Targets(t *testing.T) {
	bot := newMockBot()
	h := newRecordingHandler("")
	cancel, errc := startTelegram(t, bot, h, 0)
	defer func() { cancel(); <-errc }()

	owner := &tgbotapi.User{ID: 9, UserName: "boss"}

	// Seen @username.
	bot.updates <- groupMessage(&tgbotapi.User{ID: 55, UserName: "Carol"}, "hello")
	bot.updates <- groupMessage(owner, "/addmod @carol")
	waitFor(t, h.seen)
	if tgt := h.last().Target; tgt == nil || tgt.ID != 55 {
		t.Errorf("username target = %+v", tgt)
	}

	// Reply to a message.
	u := groupMessage(owner, "/addmod")
	u.Message.ReplyToMessage = &tgbotapi.Message{From: &tgbotapi.User{ID: 66, UserName: "dave"}}
	bot.updates <- u
	waitFor(t, h.seen)
	if tgt := h.last().Target; tgt == nil || tgt.ID != 66 || tgt.Name != "dave" {
		t.Errorf("reply target = %+v", tgt)
	}

	// Text mention of a user without a username.
	u = groupMessage(owner, "/addmod Erin")
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "text_mention", Offset: 8, Length: 4, User: &tgbotapi.User{ID: 77, FirstName: "Erin"}}}
	bot.updates <- u
	waitFor(t, h.seen)
	if tgt := h.last().Target; tgt == nil || tgt.ID != 77 {
		t.Errorf("mention target = %+v", tgt)
	}

	// Numeric id.
	bot.updates <- groupMessage(owner, "/remmod 88")
	waitFor(t, h.seen)
	if tgt := h.last().Target; tgt == nil || tgt.ID != 88 {
		t.Errorf("numeric target = %+v", tgt)
	}
}

func TestTelegramGateway_InvalidToken(t *testing.T) {
	factory := func(string, string, *http.Client) (TelegramBot, error) {
		return nil, &tgbotapi.Error{Code: 401, Message: "Unauthorized"}
	}
	g, err := NewTelegramGatewayWithFactory(TelegramConfig{Token: "bad"}, newRecordingHandler(""), factory)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Run(context.Background()); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Run() = %v, want ErrInvalidToken", err)
	}
}

func TestNewTelegramGateway_RequiresToken(t *testing.T) {
	if _, err := NewTelegramGateway(TelegramConfig{}, newRecordingHandler("")); err == nil {
		t.Error("expected error for empty token")
	}
}
