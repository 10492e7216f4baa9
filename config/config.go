// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For platform-specific requirements, use ValidateChatReady.
//
// Secrets (bot token, OBS password, moderator roster) are not configuration:
// they live in the encrypted credentials file managed by securestore.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Chat platforms.
const (
	PlatformTwitch   = "twitch"
	PlatformTelegram = "telegram"
)

// DefaultEnvFile holds optional process settings loaded before the environment is read.
const DefaultEnvFile = "streamcast.env"

type Config struct {
	// Credentials. CredentialsKey is an optional base64 AES-256 key; when
	// unset the key is derived from the host identity.
	CredentialsFile string
	CredentialsKey  string

	// Chat
	Platform      string
	CommandPrefix string

	// Twitch
	TwitchChannel      string
	TwitchBotUsername  string
	TwitchClientID     string
	TwitchClientSecret string

	// Telegram
	TelegramOwnerID uint64

	// OBS
	OBSHost    string
	OBSPort    int
	OBSTimeout time.Duration

	// Scene list refresh (cron spec); empty disables the scheduler.
	SceneRefreshSchedule string

	// HTTP
	HTTPAddr string

	// Database (optional audit log)
	DBDsn string
}

// Load reads environment variables and applies defaults. An env file named by
// STREAMCAST_ENV_FILE (default streamcast.env) is loaded first if present;
// variables already set in the environment win.
func Load() (*Config, error) {
	envFile := os.Getenv("STREAMCAST_ENV_FILE")
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &Config{}

	cfg.CredentialsFile = getenv("CREDENTIALS_FILE", ".env")
	cfg.CredentialsKey = os.Getenv("CREDENTIALS_KEY")

	cfg.Platform = strings.ToLower(getenv("CHAT_PLATFORM", PlatformTwitch))
	if cfg.Platform != PlatformTwitch && cfg.Platform != PlatformTelegram {
		return nil, fmt.Errorf("invalid CHAT_PLATFORM %q (want twitch or telegram)", cfg.Platform)
	}
	cfg.CommandPrefix = os.Getenv("COMMAND_PREFIX")
	if cfg.CommandPrefix == "" {
		if cfg.Platform == PlatformTelegram {
			cfg.CommandPrefix = "/"
		} else {
			cfg.CommandPrefix = "!"
		}
	}

	// Twitch
	cfg.TwitchChannel = strings.TrimPrefix(strings.ToLower(os.Getenv("TWITCH_CHANNEL")), "#")
	cfg.TwitchBotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")

	// Telegram
	if v := os.Getenv("TELEGRAM_OWNER_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_OWNER_ID: %w", err)
		}
		cfg.TelegramOwnerID = id
	}

	// OBS
	cfg.OBSHost = getenv("OBS_HOST", "localhost")
	port, err := strconv.Atoi(getenv("OBS_PORT", "4455"))
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid OBS_PORT %q", os.Getenv("OBS_PORT"))
	}
	cfg.OBSPort = port
	cfg.OBSTimeout, err = time.ParseDuration(getenv("OBS_TIMEOUT", "5s"))
	if err != nil || cfg.OBSTimeout <= 0 {
		return nil, fmt.Errorf("invalid OBS_TIMEOUT %q", os.Getenv("OBS_TIMEOUT"))
	}

	cfg.SceneRefreshSchedule = os.Getenv("SCENE_REFRESH_SCHEDULE")

	cfg.HTTPAddr = getenv("HTTP_ADDR", "127.0.0.1:8080")

	// DB: unset disables the audit log.
	cfg.DBDsn = os.Getenv("DB_DSN")

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ValidateChatReady checks what the selected platform needs before a chat
// session can be built. botToken comes from the credentials file.
func (c *Config) ValidateChatReady(botToken string) error {
	if botToken == "" {
		return errors.New("no bot token stored; run `streamcast setup` first")
	}
	switch c.Platform {
	case PlatformTwitch:
		if c.TwitchChannel == "" || c.TwitchBotUsername == "" {
			return fmt.Errorf("missing twitch env: require TWITCH_CHANNEL, TWITCH_BOT_USERNAME")
		}
	case PlatformTelegram:
	default:
		return fmt.Errorf("unsupported chat platform %q", c.Platform)
	}
	return nil
}

// Warnings lists settings that are valid but leave part of the bridge unusable.
func (c *Config) Warnings() []string {
	var w []string
	if c.Platform == PlatformTelegram && c.TelegramOwnerID == 0 {
		w = append(w, "TELEGRAM_OWNER_ID not set: owner-only commands are unavailable in private chats")
	}
	return w
}

// HelixEnabled reports whether app credentials for login lookups are configured.
func (c *Config) HelixEnabled() bool {
	return c.TwitchClientID != "" && c.TwitchClientSecret != ""
}
