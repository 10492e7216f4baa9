package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/streamcast/dispatch"
	"github.com/onnwee/streamcast/telemetry"
	"github.com/onnwee/streamcast/twitchapi"
)

// IRCClient is the subset of *twitch.Client the gateway uses.
type IRCClient interface {
	OnPrivateMessage(callback func(message twitch.PrivateMessage))
	OnConnect(callback func())
	Join(channels ...string)
	Say(channel, text string)
	Reply(channel, parentMsgID, text string)
	Connect() error
	Disconnect() error
}

// UserLookup resolves a Twitch login. *twitchapi.HelixClient implements it.
type UserLookup interface {
	GetUser(ctx context.Context, login string) (twitchapi.User, error)
}

// TwitchConfig configures a TwitchGateway.
type TwitchConfig struct {
	Channel     string
	BotUsername string
	// Token is the bot's user OAuth token, with or without the "oauth:" prefix.
	Token  string
	Prefix string
	// Users is optional; without it only logins seen in chat resolve.
	Users UserLookup
}

// TwitchGateway delivers chat commands from one Twitch channel.
type TwitchGateway struct {
	cfg       TwitchConfig
	client    IRCClient
	handler   Handler
	directory *Directory
	inflight  tracker
	logger    *slog.Logger
}

// NewTwitchGateway builds a gateway around a real go-twitch-irc client.
func NewTwitchGateway(cfg TwitchConfig, h Handler) (*TwitchGateway, error) {
	if cfg.Channel == "" || cfg.BotUsername == "" || cfg.Token == "" {
		return nil, errors.New("twitch gateway requires channel, bot username and token")
	}
	token := cfg.Token
	if !strings.HasPrefix(token, "oauth:") {
		token = "oauth:" + token
	}
	return NewTwitchGatewayWithClient(cfg, h, twitch.NewClient(cfg.BotUsername, token)), nil
}

// NewTwitchGatewayWithClient uses client instead of dialing Twitch (for testing).
func NewTwitchGatewayWithClient(cfg TwitchConfig, h Handler, client IRCClient) *TwitchGateway {
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	cfg.Channel = strings.TrimPrefix(strings.ToLower(cfg.Channel), "#")
	return &TwitchGateway{
		cfg:       cfg,
		client:    client,
		handler:   h,
		directory: NewDirectory(),
		logger:    slog.Default().With(slog.String("component", "twitch_gateway"), slog.String("channel", cfg.Channel)),
	}
}

// Platform implements Gateway.
func (g *TwitchGateway) Platform() string { return "twitch" }

// Run connects, joins the channel and serves commands until ctx is cancelled.
func (g *TwitchGateway) Run(ctx context.Context) error {
	g.client.OnConnect(func() {
		telemetry.UpdateChatGauge(true)
		g.logger.Info("connected to twitch chat")
	})
	g.client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		g.handleMessage(ctx, msg)
	})
	g.client.Join(g.cfg.Channel)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			if err := g.client.Disconnect(); err != nil {
				g.logger.Debug("twitch disconnect", slog.Any("err", err))
			}
		case <-stop:
		}
	}()

	err := g.client.Connect()
	telemetry.UpdateChatGauge(false)
	g.inflight.Wait()
	switch {
	case errors.Is(err, twitch.ErrLoginAuthenticationFailed):
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case ctx.Err() != nil:
		return nil
	case err != nil:
		return fmt.Errorf("twitch chat: %w", err)
	}
	return nil
}

func (g *TwitchGateway) handleMessage(ctx context.Context, msg twitch.PrivateMessage) {
	telemetry.RecordChatMessage(g.Platform())
	caller := twitchMember(msg.User)
	g.directory.Observe(msg.User.Name, caller)

	name, arg, ok := ParseCommand(msg.Message, g.cfg.Prefix)
	if !ok {
		return
	}
	owner, err := strconv.ParseUint(msg.RoomID, 10, 64)
	if err != nil {
		g.logger.Warn("message without a usable room id", slog.String("room_id", msg.RoomID))
		return
	}

	g.inflight.Go(func() {
		cmdCtx := context.WithoutCancel(ctx)
		inv := dispatch.Invocation{
			Command:  name,
			Arg:      arg,
			Caller:   caller,
			OwnerID:  owner,
			Platform: g.Platform(),
		}
		if needsTarget(name) {
			inv.Target = g.resolveTarget(cmdCtx, arg)
		}
		out := g.handler.Dispatch(cmdCtx, inv)
		if out.Message != "" {
			g.client.Reply(msg.Channel, msg.ID, out.Message)
		}
	})
}

// resolveTarget maps "@login" to a member: chat history first, then Helix.
func (g *TwitchGateway) resolveTarget(ctx context.Context, arg string) *dispatch.Member {
	login := normalizeLogin(firstWord(arg))
	if login == "" {
		return nil
	}
	if m, ok := g.directory.Lookup(login); ok {
		return &m
	}
	if g.cfg.Users == nil {
		return nil
	}
	u, err := g.cfg.Users.GetUser(ctx, login)
	if err != nil {
		g.logger.Debug("helix user lookup failed", slog.String("login", login), slog.Any("err", err))
		return nil
	}
	m := dispatch.Member{ID: u.ID, Name: u.DisplayName}
	if m.Name == "" {
		m.Name = u.Login
	}
	g.directory.Observe(u.Login, m)
	return &m
}

func twitchMember(u twitch.User) dispatch.Member {
	id, _ := strconv.ParseUint(u.ID, 10, 64)
	name := u.DisplayName
	if name == "" {
		name = u.Name
	}
	return dispatch.Member{ID: id, Name: name}
}
