package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/onnwee/streamcast/dispatch"
	"github.com/onnwee/streamcast/telemetry"
)

// TelegramBot interface for mocking telegram bot API
type TelegramBot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatAdministrators(config tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error)
	GetSelf() tgbotapi.User
}

// tgBotWrapper wraps tgbotapi.BotAPI to implement TelegramBot interface
type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *tgBotWrapper) StopReceivingUpdates() { w.bot.StopReceivingUpdates() }

func (w *tgBotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *tgBotWrapper) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return w.bot.Request(c)
}

func (w *tgBotWrapper) GetChatAdministrators(config tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error) {
	return w.bot.GetChatAdministrators(config)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User { return w.bot.Self }

// BotFactory creates TelegramBot instances (allows mocking)
type BotFactory func(token, apiEndpoint string, client *http.Client) (TelegramBot, error)

// defaultBotFactory creates a real bot; construction calls getMe, so a bad
// token fails here.
var defaultBotFactory BotFactory = func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

// TelegramConfig configures a TelegramGateway.
type TelegramConfig struct {
	Token string
	// OwnerID is the owner in private chats (groups use their creator).
	OwnerID uint64
	Prefix  string
}

// TelegramGateway delivers commands from every chat the bot is in.
type TelegramGateway struct {
	cfg        TelegramConfig
	handler    Handler
	factory    BotFactory
	bot        TelegramBot
	directory  *Directory
	inflight   tracker
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTelegramGateway returns a gateway using the real Bot API.
func NewTelegramGateway(cfg TelegramConfig, h Handler) (*TelegramGateway, error) {
	return NewTelegramGatewayWithFactory(cfg, h, defaultBotFactory)
}

// NewTelegramGatewayWithFactory creates a TelegramGateway with custom bot factory (for testing)
func NewTelegramGatewayWithFactory(cfg TelegramConfig, h Handler, factory BotFactory) (*TelegramGateway, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "/"
	}
	return &TelegramGateway{
		cfg:        cfg,
		handler:    h,
		factory:    factory,
		directory:  NewDirectory(),
		httpClient: http.DefaultClient,
		logger:     slog.Default().With(slog.String("component", "telegram_gateway")),
	}, nil
}

// Platform implements Gateway.
func (g *TelegramGateway) Platform() string { return "telegram" }

// Run authorizes the bot, registers the command list and long-polls updates
// until ctx is cancelled.
func (g *TelegramGateway) Run(ctx context.Context) error {
	bot, err := g.factory(g.cfg.Token, tgbotapi.APIEndpoint, g.httpClient)
	if err != nil {
		if isUnauthorized(err) {
			return fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return fmt.Errorf("create telegram bot: %w", err)
	}
	g.bot = bot
	g.logger.Info("authorized", slog.String("bot", bot.GetSelf().UserName))
	g.registerCommands()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)
	telemetry.UpdateChatGauge(true)
	defer telemetry.UpdateChatGauge(false)

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			g.inflight.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				g.inflight.Wait()
				return errors.New("telegram update channel closed")
			}
			if update.Message != nil {
				g.handleMessage(ctx, update.Message)
			}
		}
	}
}

func isUnauthorized(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return true
	}
	return strings.Contains(err.Error(), "Unauthorized")
}

// registerCommands publishes the command table so clients offer completion.
func (g *TelegramGateway) registerCommands() {
	cmds := g.handler.Commands()
	botCmds := make([]tgbotapi.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		botCmds = append(botCmds, tgbotapi.BotCommand{Command: c.Name, Description: c.Description})
	}
	if _, err := g.bot.Request(tgbotapi.NewSetMyCommands(botCmds...)); err != nil {
		g.logger.Warn("setMyCommands failed", slog.Any("err", err))
	}
}

func (g *TelegramGateway) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	telemetry.RecordChatMessage(g.Platform())
	caller := telegramMember(msg.From)
	g.directory.Observe(msg.From.UserName, caller)

	name, arg, ok := ParseCommand(msg.Text, g.cfg.Prefix)
	if !ok {
		return
	}

	g.inflight.Go(func() {
		cmdCtx := context.WithoutCancel(ctx)
		inv := dispatch.Invocation{
			Command:  name,
			Arg:      arg,
			Caller:   caller,
			OwnerID:  g.resolveOwner(msg.Chat),
			Platform: g.Platform(),
		}
		if needsTarget(name) {
			inv.Target = g.resolveTarget(msg, arg)
		}
		out := g.handler.Dispatch(cmdCtx, inv)
		if out.Message == "" {
			return
		}
		reply := tgbotapi.NewMessage(msg.Chat.ID, out.Message)
		reply.ReplyToMessageID = msg.MessageID
		if _, err := g.bot.Send(reply); err != nil {
			g.logger.Warn("send reply failed", slog.Int64("chat_id", msg.Chat.ID), slog.Any("err", err))
		}
	})
}

// resolveOwner looks the owner up on every command: the creator of a group,
// or the configured owner in private chats and when the lookup fails.
func (g *TelegramGateway) resolveOwner(chat *tgbotapi.Chat) uint64 {
	if chat.IsPrivate() {
		return g.cfg.OwnerID
	}
	admins, err := g.bot.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chat.ID},
	})
	if err != nil {
		g.logger.Warn("getChatAdministrators failed", slog.Int64("chat_id", chat.ID), slog.Any("err", err))
		return g.cfg.OwnerID
	}
	for _, a := range admins {
		if a.IsCreator() && a.User != nil {
			return uint64(a.User.ID)
		}
	}
	return g.cfg.OwnerID
}

// resolveTarget picks the user a roster command acts on: the author of the
// replied-to message, a text mention, a numeric id, or a seen @username.
func (g *TelegramGateway) resolveTarget(msg *tgbotapi.Message, arg string) *dispatch.Member {
	if r := msg.ReplyToMessage; r != nil && r.From != nil && !r.From.IsBot {
		m := telegramMember(r.From)
		return &m
	}
	for _, e := range msg.Entities {
		if e.Type == "text_mention" && e.User != nil {
			m := telegramMember(e.User)
			return &m
		}
	}
	word := firstWord(arg)
	if word == "" {
		return nil
	}
	if id, err := strconv.ParseUint(word, 10, 64); err == nil && id != 0 {
		m := dispatch.Member{ID: id, Name: word}
		if seen, ok := g.directory.lookupID(id); ok {
			m = seen
		}
		return &m
	}
	if m, ok := g.directory.Lookup(word); ok {
		return &m
	}
	return nil
}

func telegramMember(u *tgbotapi.User) dispatch.Member {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if u.UserName != "" {
		name = u.UserName
	}
	return dispatch.Member{ID: uint64(u.ID), Name: name}
}
